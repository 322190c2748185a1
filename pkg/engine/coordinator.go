package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/harvester/pkg/collector/core"
	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/logger"
	"github.com/quarrylabs/harvester/pkg/metrics"
	"github.com/quarrylabs/harvester/pkg/models"
)

// Coordinator executes a selected strategy over the registered
// collectors: exactly one for *_only, sequential fallback for *_first,
// and one of three hybrid sub-policies resolved from request shape.
type Coordinator struct {
	cfg      *config.Config
	tracker  *Tracker
	selector *Selector
	logger   *zap.Logger
}

// NewCoordinator creates a coordinator. The tracker receives a
// per-source outcome for every collector invocation so adaptive hybrid
// execution can compare backends; the selector provides the backend
// composite scores for that comparison.
func NewCoordinator(cfg *config.Config, tracker *Tracker, selector *Selector) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		tracker:  tracker,
		selector: selector,
		logger:   logger.Get().With(zap.String("component", "coordinator")),
	}
}

// Execute runs the strategy and returns every SourceResult produced, in
// invocation order for sequential modes and registration order for
// parallel mode. It never returns an empty slice for a known strategy
// with registered collectors.
func (c *Coordinator) Execute(ctx context.Context, strategy models.StrategyKind, req *models.AcquisitionRequest, collectors map[string]core.SourceCollector) []*models.SourceResult {
	browser := collectors[c.cfg.Sources.Browser]
	api := collectors[c.cfg.Sources.API]

	switch strategy {
	case models.StrategyBrowserOnly:
		return c.only(ctx, req, browser, c.cfg.Sources.Browser)
	case models.StrategyAPIOnly:
		return c.only(ctx, req, api, c.cfg.Sources.API)
	case models.StrategyBrowserFirst:
		return c.primaryFallback(ctx, req, browser, api)
	case models.StrategyAPIFirst:
		return c.primaryFallback(ctx, req, api, browser)
	case models.StrategyHybrid:
		return c.hybrid(ctx, req, collectors, browser, api)
	}

	c.logger.Warn("unknown strategy, falling back to hybrid",
		zap.String("strategy", string(strategy)))
	return c.hybrid(ctx, req, collectors, browser, api)
}

// only invokes exactly the designated collector with no fallback.
func (c *Coordinator) only(ctx context.Context, req *models.AcquisitionRequest, col core.SourceCollector, sourceID string) []*models.SourceResult {
	if col == nil {
		return []*models.SourceResult{unregisteredResult(sourceID)}
	}
	return []*models.SourceResult{c.invoke(ctx, col, req)}
}

// primaryFallback runs the primary and, only when it fails, the
// secondary. The secondary never starts before the primary's result is
// known.
func (c *Coordinator) primaryFallback(ctx context.Context, req *models.AcquisitionRequest, primary, secondary core.SourceCollector) []*models.SourceResult {
	if primary == nil && secondary == nil {
		return nil
	}
	if primary == nil {
		primary, secondary = secondary, nil
	}

	first := c.invoke(ctx, primary, req)
	results := []*models.SourceResult{first}
	if first.Success || secondary == nil {
		return results
	}

	c.logger.Info("primary failed, invoking fallback",
		zap.String("primary", primary.SourceID()),
		zap.String("fallback", secondary.SourceID()),
		zap.String("error", first.Error))
	return append(results, c.invoke(ctx, secondary, req))
}

// hybrid resolves deterministically by request shape: progressive for
// small requests, parallel when volume is required, adaptive otherwise.
func (c *Coordinator) hybrid(ctx context.Context, req *models.AcquisitionRequest, collectors map[string]core.SourceCollector, browser, api core.SourceCollector) []*models.SourceResult {
	switch {
	case req.MaxRecords > 0 && req.MaxRecords < c.cfg.Progressive.MaxRecordsThreshold:
		return c.progressive(ctx, req, api, browser)
	case req.LargeVolumeRequired:
		return c.parallel(ctx, req, collectors)
	default:
		return c.adaptive(ctx, req, collectors, browser, api)
	}
}

// progressive runs the cheap collector first and stops when its result
// is sufficient; the expensive collector is only invoked when it is not.
func (c *Coordinator) progressive(ctx context.Context, req *models.AcquisitionRequest, cheap, expensive core.SourceCollector) []*models.SourceResult {
	if cheap == nil {
		if expensive == nil {
			return nil
		}
		return []*models.SourceResult{c.invoke(ctx, expensive, req)}
	}

	first := c.invoke(ctx, cheap, req)
	results := []*models.SourceResult{first}
	if c.sufficient(first, req) {
		c.logger.Debug("progressive sufficiency met, skipping expensive collector",
			zap.String("source", first.SourceID),
			zap.Int("records", len(first.Records)))
		return results
	}
	if expensive == nil {
		return results
	}
	return append(results, c.invoke(ctx, expensive, req))
}

// sufficient reports whether a result satisfies the progressive
// sufficiency check: enough records and a high enough estimated quality.
func (c *Coordinator) sufficient(result *models.SourceResult, req *models.AcquisitionRequest) bool {
	if !result.Success || req.MaxRecords <= 0 {
		return false
	}
	needed := c.cfg.Progressive.SufficiencyRatio * float64(req.MaxRecords)
	return float64(len(result.Records)) >= needed &&
		EstimateQuality(result) >= c.cfg.Progressive.SufficiencyQuality
}

// parallel fans out to every registered collector at once and waits for
// all of them. Partial failures are tolerated; results come back in a
// deterministic order regardless of completion order.
func (c *Coordinator) parallel(ctx context.Context, req *models.AcquisitionRequest, collectors map[string]core.SourceCollector) []*models.SourceResult {
	ordered := make([]core.SourceCollector, 0, len(collectors))
	for _, id := range []string{c.cfg.Sources.Browser, c.cfg.Sources.API} {
		if col, ok := collectors[id]; ok {
			ordered = append(ordered, col)
		}
	}
	for id, col := range collectors {
		if id != c.cfg.Sources.Browser && id != c.cfg.Sources.API {
			ordered = append(ordered, col)
		}
	}

	results := make([]*models.SourceResult, len(ordered))
	var wg sync.WaitGroup
	for i, col := range ordered {
		wg.Add(1)
		go func(i int, col core.SourceCollector) {
			defer wg.Done()
			results[i] = c.invoke(ctx, col, req)
		}(i, col)
	}
	wg.Wait()
	return results
}

// adaptive compares the tracked composite scores of the two backends.
// A clear leader runs first with fallback on failure; otherwise both run
// in parallel.
func (c *Coordinator) adaptive(ctx context.Context, req *models.AcquisitionRequest, collectors map[string]core.SourceCollector, browser, api core.SourceCollector) []*models.SourceResult {
	if browser == nil || api == nil {
		return c.primaryFallback(ctx, req, browser, api)
	}

	browserScore := c.selector.CompositeScore(c.cfg.Sources.Browser)
	apiScore := c.selector.CompositeScore(c.cfg.Sources.API)
	margin := c.cfg.Engine.AdaptiveMargin

	c.logger.Debug("adaptive backend comparison",
		zap.Float64("browser_score", browserScore),
		zap.Float64("api_score", apiScore),
		zap.Float64("margin", margin))

	switch {
	case browserScore-apiScore > margin:
		return c.primaryFallback(ctx, req, browser, api)
	case apiScore-browserScore > margin:
		return c.primaryFallback(ctx, req, api, browser)
	default:
		return c.parallel(ctx, req, collectors)
	}
}

// invoke runs one collector call under ctx. When ctx expires before the
// collector returns, the result is synthesized as a timeout failure and
// the straggler's eventual return is discarded.
func (c *Coordinator) invoke(ctx context.Context, col core.SourceCollector, req *models.AcquisitionRequest) *models.SourceResult {
	start := time.Now()
	timer := metrics.NewTimer("collect")
	ctx = context.WithValue(ctx, logger.SourceKey, col.SourceID())
	done := make(chan *models.SourceResult, 1)
	go func() {
		done <- col.Collect(ctx, req)
	}()

	var result *models.SourceResult
	select {
	case result = <-done:
		if result == nil {
			result = core.FailureResult(col.SourceID(), start, "collector returned no result")
		}
	case <-ctx.Done():
		result = core.FailureResult(col.SourceID(), start, "timeout")
	}

	status := "success"
	if !result.Success {
		status = "failure"
		if result.Error == "timeout" {
			status = "timeout"
		}
	}
	metrics.CollectorLatency.WithLabelValues(result.SourceID, status).Observe(timer.Stop().Seconds())

	logger.WithContext(ctx).Debug("collector finished",
		zap.String("status", status),
		zap.Int("records", len(result.Records)))

	c.tracker.RecordOutcome(result.SourceID, models.Outcome{
		Success:     result.Success,
		Duration:    result.Duration,
		Quality:     EstimateQuality(result),
		RecordCount: len(result.Records),
		Timestamp:   result.Timestamp,
	})
	return result
}

func unregisteredResult(sourceID string) *models.SourceResult {
	return &models.SourceResult{
		SourceID:  sourceID,
		Success:   false,
		Error:     "no collector registered",
		Timestamp: time.Now(),
	}
}
