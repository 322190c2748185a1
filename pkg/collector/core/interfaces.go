// Package core defines the collector contract the engine consumes. The
// engine is polymorphic over a single capability: produce a SourceResult
// for an AcquisitionRequest without ever returning an error. Adapters for
// concrete backends live outside the engine and register under logical
// source ids.
package core

import (
	"context"
	"time"

	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/models"
)

// SourceCollector is the one capability the engine requires of a backend.
//
// Collect MUST NOT return an error or panic past this boundary: every
// failure mode (network errors, blocks, timeouts, parse failures) is
// folded into SourceResult{Success: false, Error: ...}. A collector that
// violates this is in breach of contract; the engine does not defend
// against it. Implementations should honor ctx cancellation best-effort.
type SourceCollector interface {
	// SourceID returns the logical source id this collector serves
	SourceID() string

	// Collect performs one acquisition. The returned result is never nil.
	Collect(ctx context.Context, req *models.AcquisitionRequest) *models.SourceResult
}

// Collector is the full lifecycle interface concrete adapters implement.
// The engine only needs SourceCollector; the rest is operational surface
// for the host application.
type Collector interface {
	SourceCollector

	// Initialize prepares the collector for use
	Initialize(ctx context.Context, cfg *config.Config) error

	// Close releases collector resources
	Close(ctx context.Context) error

	// Health reports whether the collector can currently serve requests
	Health(ctx context.Context) error

	// Metrics returns operational metrics
	Metrics() map[string]interface{}
}

// CollectFunc adapts a plain function to the SourceCollector interface,
// mainly for tests and inline adapters.
type CollectFunc struct {
	ID string
	Fn func(ctx context.Context, req *models.AcquisitionRequest) *models.SourceResult
}

// SourceID returns the logical source id.
func (c CollectFunc) SourceID() string { return c.ID }

// Collect invokes the wrapped function.
func (c CollectFunc) Collect(ctx context.Context, req *models.AcquisitionRequest) *models.SourceResult {
	return c.Fn(ctx, req)
}

// HealthStatus represents the health status of a collector
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy", "degraded"
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
	Error     error                  `json:"error,omitempty"`
}

// FailureResult builds the conventional failed SourceResult for a source.
func FailureResult(sourceID string, start time.Time, msg string) *models.SourceResult {
	return &models.SourceResult{
		SourceID:  sourceID,
		Success:   false,
		Error:     msg,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	}
}
