// Package testutil provides testing utilities for Harvester: scripted
// fake collectors, deterministic clocks, and record builders.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quarrylabs/harvester/pkg/models"
)

// FakeCollector is a scripted SourceCollector for engine tests. Each
// Collect pops the next scripted result; the last result repeats once
// the script is exhausted. Call counting is safe under concurrency.
type FakeCollector struct {
	ID      string
	Results []*models.SourceResult

	// Delay makes Collect block, for timeout and parallelism tests
	Delay time.Duration

	calls atomic.Int64
	mu    sync.Mutex
	next  int
}

// SourceID returns the scripted source id.
func (f *FakeCollector) SourceID() string { return f.ID }

// Collect returns the next scripted result. Honors ctx during Delay.
func (f *FakeCollector) Collect(ctx context.Context, req *models.AcquisitionRequest) *models.SourceResult {
	f.calls.Add(1)

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return &models.SourceResult{
				SourceID:  f.ID,
				Success:   false,
				Error:     "timeout",
				Timestamp: time.Now(),
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Results) == 0 {
		return &models.SourceResult{SourceID: f.ID, Success: true, Timestamp: time.Now()}
	}
	res := f.Results[f.next]
	if f.next < len(f.Results)-1 {
		f.next++
	}
	return res
}

// Calls reports how many times Collect has been invoked.
func (f *FakeCollector) Calls() int { return int(f.calls.Load()) }

// SuccessResult builds a successful SourceResult carrying records.
func SuccessResult(sourceID string, records ...models.RawRecord) *models.SourceResult {
	return &models.SourceResult{
		SourceID:  sourceID,
		Success:   true,
		Records:   records,
		Duration:  10 * time.Millisecond,
		Timestamp: time.Now(),
	}
}

// FailureResult builds a failed SourceResult with the given error text.
func FailureResult(sourceID, errMsg string) *models.SourceResult {
	return &models.SourceResult{
		SourceID:  sourceID,
		Success:   false,
		Error:     errMsg,
		Duration:  10 * time.Millisecond,
		Timestamp: time.Now(),
	}
}

// JobRecord builds a complete raw record with every canonical field
// filled, suitable for high-quality fixtures.
func JobRecord(title, company, url string) models.RawRecord {
	return models.RawRecord{
		"title":       title,
		"company":     company,
		"url":         url,
		"location":    "Remote",
		"description": "Build and operate data acquisition pipelines.",
		"salary":      "$120k-$160k",
		"posted_at":   "2025-06-01",
	}
}

// SparseRecord builds a raw record carrying only title and company.
func SparseRecord(title, company string) models.RawRecord {
	return models.RawRecord{"title": title, "company": company}
}

// Clock is a manually-advanced clock for deterministic time handling.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock fixed at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
