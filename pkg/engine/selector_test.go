package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/models"
)

func neutralEnv() *CachedEnvironment {
	probe := EnvironmentProbeFunc(func(ctx context.Context) (Environment, error) {
		return Environment{BlockLikelihood: 0.5, LatencyTolerance: 0.5}, nil
	})
	return NewCachedEnvironment(probe, time.Hour, nil)
}

func fixedEnv(block, tolerance float64) *CachedEnvironment {
	probe := EnvironmentProbeFunc(func(ctx context.Context) (Environment, error) {
		return Environment{BlockLikelihood: block, LatencyTolerance: tolerance}, nil
	})
	return NewCachedEnvironment(probe, time.Hour, nil)
}

func newTestSelector(cfg *config.Config, tr *Tracker, env *CachedEnvironment) *Selector {
	if cfg == nil {
		cfg = config.Default()
	}
	if tr == nil {
		tr = NewTracker(cfg.Engine.WindowSize, cfg.Engine.StabilitySubwindow)
	}
	if env == nil {
		env = neutralEnv()
	}
	return NewSelector(cfg, tr, env)
}

func TestSelectExplicitOverrideAlwaysWins(t *testing.T) {
	cfg := config.Default()
	tr := NewTracker(cfg.Engine.WindowSize, cfg.Engine.StabilitySubwindow)

	// make the overridden strategy look terrible
	for i := 0; i < 20; i++ {
		tr.RecordOutcome(string(models.StrategyAPIOnly), outcome(false, time.Minute, 0))
	}

	sel := newTestSelector(cfg, tr, nil)
	for _, override := range models.CandidateStrategies() {
		req := &models.AcquisitionRequest{SearchTerm: "go", Strategy: override}
		assert.Equal(t, override, sel.Select(context.Background(), req))
	}
}

func TestSelectDefaultsRequireScoring(t *testing.T) {
	sel := newTestSelector(nil, nil, nil)
	req := &models.AcquisitionRequest{SearchTerm: "go"}

	got := sel.Select(context.Background(), req)
	assert.True(t, got.IsOverride(), "selection must produce a concrete strategy")
	assert.True(t, got.Valid())
}

func TestScoreMonotonicInSuccessRate(t *testing.T) {
	cfg := config.Default()
	key := string(models.StrategyAPIFirst)

	// 8 outcomes keep stability at its default on both sides, isolating
	// the success-rate term
	low := NewTracker(cfg.Engine.WindowSize, cfg.Engine.StabilitySubwindow)
	high := NewTracker(cfg.Engine.WindowSize, cfg.Engine.StabilitySubwindow)
	for i := 0; i < 8; i++ {
		low.RecordOutcome(key, outcome(i%2 == 0, 5*time.Second, 0.7))
		high.RecordOutcome(key, outcome(true, 5*time.Second, 0.7))
	}

	env := Environment{BlockLikelihood: 0.5, LatencyTolerance: 0.5}
	req := &models.AcquisitionRequest{SearchTerm: "go"}

	lowScore := newTestSelector(cfg, low, nil).Score(models.StrategyAPIFirst, req, env)
	highScore := newTestSelector(cfg, high, nil).Score(models.StrategyAPIFirst, req, env)
	assert.Greater(t, highScore, lowScore)
}

func TestSelectTieBreakDeterministic(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.AdaptabilityWeight = 0
	tr := NewTracker(cfg.Engine.WindowSize, cfg.Engine.StabilitySubwindow)

	// identical history for every candidate: all scores tie
	for _, s := range models.CandidateStrategies() {
		for i := 0; i < 10; i++ {
			tr.RecordOutcome(string(s), outcome(true, 5*time.Second, 0.8))
		}
	}

	sel := newTestSelector(cfg, tr, nil)
	req := &models.AcquisitionRequest{SearchTerm: "go"}
	for i := 0; i < 5; i++ {
		assert.Equal(t, models.StrategyHybrid, sel.Select(context.Background(), req))
	}
}

func TestScoreFavorsStrongerBackendHistory(t *testing.T) {
	cfg := config.Default()
	tr := NewTracker(cfg.Engine.WindowSize, cfg.Engine.StabilitySubwindow)

	// browser-leaning history: 85% success, quality 0.9
	// api-leaning history: 75% success, quality 0.7
	for i := 0; i < 20; i++ {
		tr.RecordOutcome(string(models.StrategyBrowserFirst),
			outcome(i%20 < 17, 5*time.Second, 0.9))
		tr.RecordOutcome(string(models.StrategyAPIFirst),
			outcome(i%20 < 15, 5*time.Second, 0.7))
	}

	sel := newTestSelector(cfg, tr, nil)
	req := &models.AcquisitionRequest{
		SearchTerm:          "python developer",
		MaxRecords:          10,
		HighQualityRequired: true,
	}
	env := Environment{BlockLikelihood: 0.5, LatencyTolerance: 0.5}

	browserScore := sel.Score(models.StrategyBrowserFirst, req, env)
	apiScore := sel.Score(models.StrategyAPIFirst, req, env)
	assert.Greater(t, browserScore, apiScore)
}

func TestAdaptability(t *testing.T) {
	hostile := Environment{BlockLikelihood: 0.9, LatencyTolerance: 0.8}
	easy := Environment{BlockLikelihood: 0.1, LatencyTolerance: 0.2}
	neutral := Environment{BlockLikelihood: 0.5, LatencyTolerance: 0.5}

	assert.Greater(t,
		adaptability(models.StrategyBrowserOnly, hostile),
		adaptability(models.StrategyAPIOnly, hostile))
	assert.Greater(t,
		adaptability(models.StrategyAPIOnly, easy),
		adaptability(models.StrategyBrowserOnly, easy))
	assert.Equal(t,
		adaptability(models.StrategyBrowserOnly, neutral),
		adaptability(models.StrategyAPIOnly, neutral))
	assert.Equal(t, adaptHybrid, adaptability(models.StrategyHybrid, hostile))
	assert.Equal(t, adaptHybrid, adaptability(models.StrategyHybrid, easy))
}

func TestSpeedScore(t *testing.T) {
	norm := 10 * time.Second
	assert.Equal(t, 1.0, speedScore(0, norm))
	assert.Equal(t, 1.0, speedScore(5*time.Second, norm))
	assert.InDelta(t, 0.5, speedScore(20*time.Second, norm), 1e-9)
	assert.InDelta(t, 0.25, speedScore(40*time.Second, norm), 1e-9)
}

func TestCachedEnvironmentRefresh(t *testing.T) {
	calls := 0
	probe := EnvironmentProbeFunc(func(ctx context.Context) (Environment, error) {
		calls++
		return Environment{BlockLikelihood: 0.4, LatencyTolerance: 0.4}, nil
	})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	env := NewCachedEnvironment(probe, 5*time.Minute, clock)

	env.Current(context.Background())
	env.Current(context.Background())
	assert.Equal(t, 1, calls, "within the interval the cache serves")

	now = now.Add(6 * time.Minute)
	env.Current(context.Background())
	assert.Equal(t, 2, calls, "stale cache triggers a refresh")
}
