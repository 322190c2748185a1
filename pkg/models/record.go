// Package models provides the data model for Harvester: acquisition
// requests, raw and canonical records, per-source results, and run
// outcomes. All request-scoped types are plain values discarded after a
// run; only tracker state outlives a run, and it lives in the engine.
package models

import (
	"strings"
	"time"
)

// RawRecord is one backend-specific record as a collector produced it:
// an arbitrary key/value map whose field names have not yet been
// standardized.
type RawRecord map[string]interface{}

// GetString returns the value for key as a string, or "" when the key is
// absent or not string-shaped.
func (r RawRecord) GetString(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// CanonicalRecord is the standardized representation of one acquired item
// after field mapping and fusion. Title and Company are the only mandatory
// fields; everything a backend reported that had no canonical home is
// preserved in Extra.
type CanonicalRecord struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Salary      string `json:"salary,omitempty"`
	URL         string `json:"url,omitempty"`
	PostedAt    string `json:"posted_at,omitempty"`

	// Extra preserves unmapped backend fields
	Extra map[string]interface{} `json:"extra,omitempty"`

	// Provenance lists the source ids that contributed to this record
	Provenance []string `json:"provenance,omitempty"`

	// Verified is true when the record was confirmed by more than one source
	Verified bool `json:"verified"`

	// Confidence is the fusion confidence in [0,1]
	Confidence float64 `json:"confidence"`
}

// CanonicalFieldNames lists the canonical fields in completeness-weight
// order: primary identity fields first, secondary detail fields after.
var (
	PrimaryFields   = []string{"title", "company", "url"}
	SecondaryFields = []string{"location", "description", "salary", "posted_at"}
)

// Field returns the canonical field value by name, or "" for unknown names.
func (c *CanonicalRecord) Field(name string) string {
	switch name {
	case "title":
		return c.Title
	case "company":
		return c.Company
	case "location":
		return c.Location
	case "description":
		return c.Description
	case "salary":
		return c.Salary
	case "url":
		return c.URL
	case "posted_at":
		return c.PostedAt
	}
	return ""
}

// SetField sets the canonical field value by name; unknown names are ignored.
func (c *CanonicalRecord) SetField(name, value string) {
	switch name {
	case "title":
		c.Title = value
	case "company":
		c.Company = value
	case "location":
		c.Location = value
	case "description":
		c.Description = value
	case "salary":
		c.Salary = value
	case "url":
		c.URL = value
	case "posted_at":
		c.PostedAt = value
	}
}

// FilledFieldCount returns the number of non-empty canonical fields.
func (c *CanonicalRecord) FilledFieldCount() int {
	n := 0
	for _, f := range append(append([]string{}, PrimaryFields...), SecondaryFields...) {
		if strings.TrimSpace(c.Field(f)) != "" {
			n++
		}
	}
	return n
}

// SourceResult is the outcome of one collector invocation. Collectors never
// fail with an error value; every failure mode is folded into Success=false
// plus Error text.
type SourceResult struct {
	SourceID string      `json:"source_id"`
	Success  bool        `json:"success"`
	Records  []RawRecord `json:"records,omitempty"`
	Error    string      `json:"error,omitempty"`

	// Metadata about the invocation
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// SourceSummary is the per-source entry reported on an ExecutionResult.
type SourceSummary struct {
	SourceID    string        `json:"source_id"`
	Success     bool          `json:"success"`
	RecordCount int           `json:"record_count"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// ExecutionResult is what Orchestrator.Run returns: the fused record set
// plus enough detail for callers to understand partial failures.
type ExecutionResult struct {
	RunID        string            `json:"run_id"`
	StrategyUsed StrategyKind      `json:"strategy_used"`
	Records      []CanonicalRecord `json:"records"`
	PerSource    []SourceSummary   `json:"per_source"`
	Duration     time.Duration     `json:"duration"`
	Success      bool              `json:"success"`
	Error        string            `json:"error,omitempty"`
}

// Outcome is the per-run feedback event recorded into the performance
// tracker and delivered to outcome observers.
type Outcome struct {
	Strategy    StrategyKind  `json:"strategy"`
	Success     bool          `json:"success"`
	Duration    time.Duration `json:"duration"`
	Quality     float64       `json:"quality"`
	RecordCount int           `json:"record_count"`
	Timestamp   time.Time     `json:"timestamp"`
}
