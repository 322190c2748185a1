package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/quarrylabs/harvester/pkg/logger"
	"go.uber.org/zap"
)

// Environment is a snapshot of acquisition conditions the selector's
// adaptability term feeds on. All signals are normalized to [0,1].
type Environment struct {
	// BlockLikelihood estimates how likely the lightweight backend is to
	// be blocked or degraded right now
	BlockLikelihood float64 `json:"block_likelihood"`

	// LatencyTolerance estimates how much extra latency the host can
	// absorb; high local load means slow backends cost comparatively less
	LatencyTolerance float64 `json:"latency_tolerance"`

	Timestamp time.Time `json:"timestamp"`
}

// Hostile reports conditions favoring the heavy, block-resistant backend.
func (e Environment) Hostile() bool {
	return e.BlockLikelihood >= 0.6 || e.LatencyTolerance >= 0.7
}

// Easy reports conditions favoring the cheap, fast backend.
func (e Environment) Easy() bool {
	return e.BlockLikelihood <= 0.3 && e.LatencyTolerance <= 0.4
}

// EnvironmentProbe samples current acquisition conditions. Probes must be
// injectable so selection is deterministic under test.
type EnvironmentProbe interface {
	Sample(ctx context.Context) (Environment, error)
}

// EnvironmentProbeFunc adapts a function to the EnvironmentProbe interface.
type EnvironmentProbeFunc func(ctx context.Context) (Environment, error)

// Sample invokes the wrapped function.
func (f EnvironmentProbeFunc) Sample(ctx context.Context) (Environment, error) {
	return f(ctx)
}

// SystemProbe derives an Environment from host telemetry and recent
// backend failure history: local CPU/memory pressure raises latency
// tolerance, and the tracked failure rate of the lightweight backend
// stands in for block likelihood.
type SystemProbe struct {
	tracker     *Tracker
	lightSource string
	logger      *zap.Logger
}

// NewSystemProbe creates a probe over the given tracker. lightSource is
// the source id whose failure rate approximates block likelihood.
func NewSystemProbe(tracker *Tracker, lightSource string) *SystemProbe {
	return &SystemProbe{
		tracker:     tracker,
		lightSource: lightSource,
		logger:      logger.Get().With(zap.String("component", "environment_probe")),
	}
}

// Sample builds an Environment snapshot. Telemetry failures degrade to
// neutral signals rather than failing the probe.
func (p *SystemProbe) Sample(ctx context.Context) (Environment, error) {
	env := Environment{
		BlockLikelihood:  0.5,
		LatencyTolerance: 0.5,
		Timestamp:        time.Now(),
	}

	if p.tracker != nil && p.lightSource != "" {
		stats := p.tracker.Stats(p.lightSource)
		if stats.SampleCount > 0 {
			env.BlockLikelihood = 1 - stats.SuccessRate
		}
	}

	load := 0.0
	samples := 0

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		load += percents[0] / 100
		samples++
	} else if err != nil {
		p.logger.Debug("cpu sample unavailable", zap.Error(err))
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		load += vm.UsedPercent / 100
		samples++
	} else {
		p.logger.Debug("memory sample unavailable", zap.Error(err))
	}

	if samples > 0 {
		env.LatencyTolerance = load / float64(samples)
	}

	return env, nil
}

// CachedEnvironment wraps a probe with an interval cache: the probe is
// consulted at most once per refresh interval, and the cached snapshot is
// served between refreshes. The clock is injectable for testing.
type CachedEnvironment struct {
	probe    EnvironmentProbe
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	current   Environment
	refreshed time.Time
	valid     bool
}

// NewCachedEnvironment creates a caching provider around probe.
func NewCachedEnvironment(probe EnvironmentProbe, interval time.Duration, now func() time.Time) *CachedEnvironment {
	if now == nil {
		now = time.Now
	}
	return &CachedEnvironment{
		probe:    probe,
		interval: interval,
		now:      now,
	}
}

// Current returns the cached snapshot, refreshing it when stale. A probe
// error keeps serving the previous snapshot; with no snapshot at all a
// neutral Environment is returned.
func (c *CachedEnvironment) Current(ctx context.Context) Environment {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.valid && now.Sub(c.refreshed) < c.interval {
		return c.current
	}

	env, err := c.probe.Sample(ctx)
	if err != nil {
		if c.valid {
			return c.current
		}
		return Environment{BlockLikelihood: 0.5, LatencyTolerance: 0.5, Timestamp: now}
	}

	c.current = env
	c.refreshed = now
	c.valid = true
	return c.current
}
