// Package base provides the foundational BaseCollector that collector
// adapters embed. It supplies the production features the engine expects
// adapters to own (rate limiting, circuit breaking, retry with backoff,
// health monitoring) and the Guard helper that makes the "collectors
// never fail with an error" contract structurally true at the boundary.
//
// # Usage
//
//	type APICollector struct {
//	    *base.BaseCollector
//	    client *clients.HTTPClient
//	}
//
//	func (c *APICollector) Collect(ctx context.Context, req *models.AcquisitionRequest) *models.SourceResult {
//	    return c.Guard(ctx, req, func(ctx context.Context) ([]models.RawRecord, error) {
//	        return c.fetch(ctx, req)
//	    })
//	}
package base

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quarrylabs/harvester/pkg/clients"
	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/errors"
	"github.com/quarrylabs/harvester/pkg/logger"
	"github.com/quarrylabs/harvester/pkg/models"
	"go.uber.org/zap"
)

// BaseCollector provides common functionality for collector adapters.
type BaseCollector struct {
	sourceID string
	version  string
	config   *config.Config
	logger   *zap.Logger

	// Resource management
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
	closeMutex sync.Mutex

	// Production features
	circuitBreaker *clients.CircuitBreaker
	rateLimiter    clients.RateLimiter
	healthChecker  *HealthChecker
	retryPolicy    *RetryPolicy

	// Counters
	collects int64
	failures int64
}

// NewBaseCollector creates a base collector for the given source id.
func NewBaseCollector(sourceID, version string) *BaseCollector {
	return &BaseCollector{
		sourceID: sourceID,
		version:  version,
		logger:   logger.Get().With(zap.String("source", sourceID)),
	}
}

// Initialize sets up rate limiting, circuit breaking, retries, and health
// monitoring from the unified configuration. Must be called before use.
func (bc *BaseCollector) Initialize(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}

	bc.config = cfg
	bc.ctx, bc.cancel = context.WithCancel(ctx)

	if cfg.Reliability.CircuitBreaker {
		bc.circuitBreaker = clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 3,
			Timeout:          30 * time.Second,
		}, bc.logger)
	}

	if cfg.Reliability.RateLimitPerSec > 0 {
		bc.rateLimiter = clients.NewRateLimiter(
			cfg.Reliability.RateLimitPerSec,
			cfg.Reliability.RateLimitPerSec*2,
		)
	}

	bc.retryPolicy = NewRetryPolicy(cfg.Reliability.RetryAttempts, cfg.Reliability.RetryDelay)
	bc.retryPolicy.Multiplier = cfg.Reliability.RetryMultiplier
	if cfg.Reliability.MaxRetryDelay > 0 {
		bc.retryPolicy.MaxDelay = cfg.Reliability.MaxRetryDelay
	}

	bc.healthChecker = NewHealthChecker(bc.sourceID, 30*time.Second)
	bc.healthChecker.Start(bc.ctx)

	bc.logger.Info("collector initialized", zap.String("version", bc.version))
	return nil
}

// SourceID returns the logical source id.
func (bc *BaseCollector) SourceID() string {
	return bc.sourceID
}

// Guard runs fn under the per-collector timeout and converts every failure
// mode, whether error return, panic, or rate-limit rejection, into a failed
// SourceResult. This is what keeps the collector contract airtight.
func (bc *BaseCollector) Guard(ctx context.Context, req *models.AcquisitionRequest,
	fn func(ctx context.Context) ([]models.RawRecord, error)) (result *models.SourceResult) {

	start := time.Now()
	atomic.AddInt64(&bc.collects, 1)

	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&bc.failures, 1)
			bc.logger.Error("collector panic recovered", zap.Any("panic", r))
			result = bc.failure(start, fmt.Sprintf("panic: %v", r))
		}
	}()

	if bc.config != nil && bc.config.Timeouts.Collector > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bc.config.Timeouts.Collector)
		defer cancel()
	}

	if bc.rateLimiter != nil {
		if err := bc.rateLimiter.Wait(ctx); err != nil {
			atomic.AddInt64(&bc.failures, 1)
			return bc.failure(start, "rate limit wait cancelled: "+err.Error())
		}
	}

	var records []models.RawRecord
	call := func() error {
		var err error
		records, err = fn(ctx)
		return err
	}

	var err error
	switch {
	case bc.circuitBreaker != nil && bc.retryPolicy != nil:
		err = bc.retryPolicy.ExecuteWithCondition(ctx, func() error {
			return bc.circuitBreaker.Execute(call)
		}, errors.IsRetryable)
	case bc.retryPolicy != nil:
		err = bc.retryPolicy.ExecuteWithCondition(ctx, call, errors.IsRetryable)
	default:
		err = call()
	}

	if err != nil {
		atomic.AddInt64(&bc.failures, 1)
		msg := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			msg = "timeout"
		}
		return bc.failure(start, msg)
	}

	return &models.SourceResult{
		SourceID:  bc.sourceID,
		Success:   true,
		Records:   records,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	}
}

func (bc *BaseCollector) failure(start time.Time, msg string) *models.SourceResult {
	return &models.SourceResult{
		SourceID:  bc.sourceID,
		Success:   false,
		Error:     msg,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	}
}

// Health performs a health check.
func (bc *BaseCollector) Health(ctx context.Context) error {
	if bc.closed {
		return errors.New(errors.ErrorTypeConnection, "collector is closed")
	}

	if bc.healthChecker != nil {
		status := bc.healthChecker.GetStatus()
		if status.Status != "healthy" {
			return errors.Wrap(status.Error, errors.ErrorTypeHealth, "health check failed")
		}
	}

	return nil
}

// SetHealthCheck installs the adapter's health probe.
func (bc *BaseCollector) SetHealthCheck(fn func(ctx context.Context) error) {
	if bc.healthChecker != nil {
		bc.healthChecker.SetCheckFunc(fn)
	}
}

// Metrics returns operational metrics.
func (bc *BaseCollector) Metrics() map[string]interface{} {
	m := map[string]interface{}{
		"source":   bc.sourceID,
		"version":  bc.version,
		"collects": atomic.LoadInt64(&bc.collects),
		"failures": atomic.LoadInt64(&bc.failures),
	}

	if bc.circuitBreaker != nil {
		m["circuit_breaker_state"] = bc.circuitBreaker.State().String()
	}
	if bc.rateLimiter != nil {
		stats := bc.rateLimiter.GetStats()
		m["rate_limit"] = stats.Rate
		m["rate_limiter_allowed"] = stats.AllowedRequests
		m["rate_limiter_blocked"] = stats.BlockedRequests
	}
	if bc.healthChecker != nil {
		m["health_status"] = bc.healthChecker.GetStatus().Status
	}

	return m
}

// Close shuts down the collector.
func (bc *BaseCollector) Close(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return nil
	}

	if bc.cancel != nil {
		bc.cancel()
	}
	if bc.healthChecker != nil {
		bc.healthChecker.Stop()
	}

	bc.closed = true
	bc.logger.Info("collector closed")
	return nil
}

// GetLogger returns the collector logger.
func (bc *BaseCollector) GetLogger() *zap.Logger {
	return bc.logger
}

// GetConfig returns the collector configuration.
func (bc *BaseCollector) GetConfig() *config.Config {
	return bc.config
}
