package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/quarrylabs/harvester/pkg/collector/core"
	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/logger"
	"github.com/quarrylabs/harvester/pkg/metrics"
	"github.com/quarrylabs/harvester/pkg/models"
)

// OutcomeObserver receives the per-run outcome event after every run,
// successful or not. Observers must not block; persistence and export
// belong behind this hook, not in the engine.
type OutcomeObserver interface {
	ObserveOutcome(outcome models.Outcome)
}

// OutcomeObserverFunc adapts a function to the OutcomeObserver interface.
type OutcomeObserverFunc func(outcome models.Outcome)

// ObserveOutcome invokes the wrapped function.
func (f OutcomeObserverFunc) ObserveOutcome(outcome models.Outcome) { f(outcome) }

// NewLogObserver returns an observer that logs every outcome at info
// level, useful when metrics are disabled.
func NewLogObserver() OutcomeObserver {
	log := logger.Get().With(zap.String("component", "outcome_log"))
	return OutcomeObserverFunc(func(outcome models.Outcome) {
		log.Info("outcome recorded",
			zap.String("strategy", string(outcome.Strategy)),
			zap.Bool("success", outcome.Success),
			zap.Duration("duration", outcome.Duration),
			zap.Float64("quality", outcome.Quality),
			zap.Int("records", outcome.RecordCount))
	})
}

// Orchestrator is the engine's sole public entry point. One instance
// owns one Tracker and one collector set; callers construct it once and
// reuse it, or construct a fresh one per test. Run is safe for
// concurrent use.
type Orchestrator struct {
	cfg         *config.Config
	tracker     *Tracker
	selector    *Selector
	coordinator *Coordinator
	fuser       *Fuser
	collectors  map[string]core.SourceCollector
	observers   []OutcomeObserver
	now         func() time.Time
	logger      *zap.Logger

	probeOverride EnvironmentProbe
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithCollector registers a collector under its own source id.
func WithCollector(col core.SourceCollector) Option {
	return func(o *Orchestrator) {
		o.collectors[col.SourceID()] = col
	}
}

// WithObserver adds an outcome observer.
func WithObserver(obs OutcomeObserver) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, obs)
	}
}

// WithTracker replaces the default tracker, e.g. one restored from a
// snapshot.
func WithTracker(t *Tracker) Option {
	return func(o *Orchestrator) {
		o.tracker = t
	}
}

// WithProbe replaces the default environment probe.
func WithProbe(p EnvironmentProbe) Option {
	return func(o *Orchestrator) {
		o.probeOverride = p
	}
}

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New constructs an Orchestrator from cfg and options. Metrics
// observation is wired automatically when cfg enables it.
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		collectors: make(map[string]core.SourceCollector),
		now:        time.Now,
		logger:     logger.Get().With(zap.String("component", "orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.tracker == nil {
		o.tracker = NewTracker(cfg.Engine.WindowSize, cfg.Engine.StabilitySubwindow)
	}

	probe := o.probeOverride
	if probe == nil {
		probe = NewSystemProbe(o.tracker, cfg.Sources.API)
	}
	env := NewCachedEnvironment(probe, cfg.Environment.RefreshInterval, o.now)

	o.selector = NewSelector(cfg, o.tracker, env)
	o.coordinator = NewCoordinator(cfg, o.tracker, o.selector)
	o.fuser = NewFuser()

	if cfg.Observability.EnableMetrics {
		o.observers = append(o.observers, metrics.NewRunObserver())
	}
	return o
}

// Tracker exposes the orchestrator's performance tracker so hosts can
// snapshot and restore it across restarts.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// Run executes one acquisition: select a strategy, execute it over the
// registered collectors, fuse the results, and record the outcome. It
// always returns a completed ExecutionResult; failures are reported in
// Success and Error, never as a panic or a Go error. The outcome is
// recorded even when every source failed, so future selection adapts to
// failure.
func (o *Orchestrator) Run(ctx context.Context, req *models.AcquisitionRequest) *models.ExecutionResult {
	start := o.now()
	runID := uuid.NewString()
	log := o.logger.With(zap.String("run_id", runID))

	tracer := otel.Tracer("harvester/engine")
	ctx, span := tracer.Start(ctx, "engine.run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID))

	ctx = context.WithValue(ctx, logger.RunIDKey, runID)

	result := &models.ExecutionResult{RunID: runID}

	if err := req.Validate(); err != nil {
		log.Warn("invalid request", zap.Error(err))
		result.Success = false
		result.Error = err.Error()
		result.Duration = o.now().Sub(start)
		metrics.RunsTotal.WithLabelValues("invalid", "failure").Inc()
		return result
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = o.cfg.Timeouts.Run
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Info("run starting",
		zap.String("search_term", req.SearchTerm),
		zap.Int("max_records", req.MaxRecords))

	strategy := o.selector.Select(ctx, req)
	result.StrategyUsed = strategy
	span.SetAttributes(attribute.String("run.strategy", string(strategy)))
	ctx = context.WithValue(ctx, logger.StrategyKey, string(strategy))
	log.Debug("run executing", zap.String("strategy", string(strategy)))

	sourceResults := o.coordinator.Execute(ctx, strategy, req, o.collectors)

	log.Debug("run fusing", zap.Int("source_results", len(sourceResults)))
	records := o.fuser.Fuse(sourceResults, req.CrossValidation)
	if req.MaxRecords > 0 && len(records) > req.MaxRecords {
		records = records[:req.MaxRecords]
	}

	result.Records = records
	result.PerSource = summarize(sourceResults)
	result.Duration = o.now().Sub(start)

	anySuccess := false
	for _, res := range sourceResults {
		if res != nil && res.Success {
			anySuccess = true
			break
		}
	}
	result.Success = anySuccess && len(records) > 0
	if !result.Success {
		result.Error = aggregateError(sourceResults)
	}

	outcome := models.Outcome{
		Strategy:    strategy,
		Success:     result.Success,
		Duration:    result.Duration,
		Quality:     meanCompleteness(records),
		RecordCount: len(records),
		Timestamp:   o.now(),
	}
	o.tracker.RecordOutcome(string(strategy), outcome)
	for _, obs := range o.observers {
		obs.ObserveOutcome(outcome)
	}

	status := "failure"
	if result.Success {
		status = "success"
	}
	log.Info("run finished",
		zap.String("strategy", string(strategy)),
		zap.String("status", status),
		zap.Int("records", len(records)),
		zap.Duration("duration", result.Duration))
	return result
}

// summarize builds the per-source report from raw results.
func summarize(results []*models.SourceResult) []models.SourceSummary {
	out := make([]models.SourceSummary, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		out = append(out, models.SourceSummary{
			SourceID:    res.SourceID,
			Success:     res.Success,
			RecordCount: len(res.Records),
			Duration:    res.Duration,
			Error:       res.Error,
		})
	}
	return out
}

// aggregateError builds a human-readable failure message covering every
// failed source.
func aggregateError(results []*models.SourceResult) string {
	if len(results) == 0 {
		return "no collectors registered"
	}

	var parts []string
	anySuccess := false
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Success {
			anySuccess = true
			continue
		}
		parts = append(parts, res.SourceID+": "+res.Error)
	}
	if !anySuccess {
		return "all sources failed: " + strings.Join(parts, "; ")
	}
	if len(parts) > 0 {
		return "no valid records after fusion (" + strings.Join(parts, "; ") + ")"
	}
	return "no valid records after fusion"
}

// meanCompleteness is the run quality metric: mean canonical field
// completeness over the output records, zero when there are none.
func meanCompleteness(records []models.CanonicalRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	total := 0.0
	for i := range records {
		total += RecordCompleteness(&records[i])
	}
	return total / float64(len(records))
}
