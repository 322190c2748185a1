package models

import (
	"strings"
	"time"

	"github.com/quarrylabs/harvester/pkg/errors"
)

// AcquisitionRequest describes one search request. Requests are immutable
// once handed to the orchestrator; configuration-level knobs (window sizes,
// thresholds) live in pkg/config, not here.
type AcquisitionRequest struct {
	// SearchTerm is the query string; must be non-empty
	SearchTerm string `json:"search_term" yaml:"search_term"`

	// Location optionally narrows the search geographically
	Location string `json:"location,omitempty" yaml:"location"`

	// MaxRecords caps how many records the caller wants
	MaxRecords int `json:"max_records" yaml:"max_records"`

	// HighQualityRequired biases selection toward record completeness
	HighQualityRequired bool `json:"high_quality_required" yaml:"high_quality_required"`

	// LargeVolumeRequired biases selection toward throughput and enables
	// parallel hybrid execution
	LargeVolumeRequired bool `json:"large_volume_required" yaml:"large_volume_required"`

	// Timeout bounds the whole run; zero means the configured default
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`

	// CrossValidation enables merge verification across sources
	CrossValidation bool `json:"cross_validation" yaml:"cross_validation"`

	// Strategy, when non-default, bypasses scoring entirely
	Strategy StrategyKind `json:"strategy,omitempty" yaml:"strategy"`
}

// Validate rejects malformed requests before any collector runs.
func (r *AcquisitionRequest) Validate() error {
	if strings.TrimSpace(r.SearchTerm) == "" {
		return errors.New(errors.ErrorTypeInvalidRequest, "search term is required")
	}
	if r.MaxRecords < 0 {
		return errors.New(errors.ErrorTypeInvalidRequest, "max_records cannot be negative").
			WithDetail("max_records", r.MaxRecords)
	}
	if r.Timeout < 0 {
		return errors.New(errors.ErrorTypeInvalidRequest, "timeout cannot be negative")
	}
	if !r.Strategy.Valid() {
		return errors.Newf(errors.ErrorTypeInvalidRequest, "unknown strategy %q", r.Strategy)
	}
	return nil
}
