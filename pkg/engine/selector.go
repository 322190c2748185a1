package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/logger"
	"github.com/quarrylabs/harvester/pkg/metrics"
	"github.com/quarrylabs/harvester/pkg/models"
)

// Adaptability scores per environment shape. Hostile conditions favor
// the browser backend, easy conditions favor the API backend, and hybrid
// always gets a flat moderate score.
const (
	adaptFavored    = 0.9
	adaptDisfavored = 0.2
	adaptNeutral    = 0.5
	adaptHybrid     = 0.6
)

// Selector picks the strategy for a request from tracked performance,
// request requirements, and the current environment snapshot.
type Selector struct {
	cfg     *config.Config
	tracker *Tracker
	env     *CachedEnvironment
	logger  *zap.Logger
}

// NewSelector creates a selector over the shared tracker and the cached
// environment provider.
func NewSelector(cfg *config.Config, tracker *Tracker, env *CachedEnvironment) *Selector {
	return &Selector{
		cfg:     cfg,
		tracker: tracker,
		env:     env,
		logger:  logger.Get().With(zap.String("component", "selector")),
	}
}

// Select returns the strategy to run for req. An explicit strategy on
// the request wins unconditionally and is never scored. Otherwise every
// candidate is scored and the arg-max wins, with ties broken by the
// fixed priority order.
func (s *Selector) Select(ctx context.Context, req *models.AcquisitionRequest) models.StrategyKind {
	if req.Strategy.IsOverride() {
		s.logger.Debug("explicit strategy override",
			zap.String("strategy", string(req.Strategy)))
		return req.Strategy
	}

	env := s.env.Current(ctx)

	best := models.StrategyHybrid
	bestScore := -1.0
	for _, candidate := range models.CandidateStrategies() {
		score := s.Score(candidate, req, env)
		metrics.StrategyScore.WithLabelValues(string(candidate)).Set(score)
		// strictly greater keeps the earlier (higher-priority) candidate
		// on ties
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	s.logger.Info("strategy selected",
		zap.String("strategy", string(best)),
		zap.Float64("score", bestScore),
		zap.Float64("block_likelihood", env.BlockLikelihood),
		zap.Float64("latency_tolerance", env.LatencyTolerance))
	return best
}

// Score computes the composite selection score for one candidate.
func (s *Selector) Score(candidate models.StrategyKind, req *models.AcquisitionRequest, env Environment) float64 {
	stats := s.tracker.Stats(string(candidate))
	metrics.StrategySuccessRate.WithLabelValues(string(candidate)).Set(stats.SuccessRate)

	eng := s.cfg.Engine
	qualityWeight := eng.QualityWeight
	if req.HighQualityRequired {
		qualityWeight = eng.QualityWeightHigh
	}
	speedWeight := eng.SpeedWeight
	if req.LargeVolumeRequired {
		speedWeight = eng.SpeedWeightVolume
	}

	return eng.SuccessWeight*stats.SuccessRate +
		qualityWeight*stats.AvgQuality +
		speedWeight*speedScore(stats.AvgDuration, eng.SpeedNormalization) +
		eng.StabilityWeight*stats.Stability +
		eng.AdaptabilityWeight*adaptability(candidate, env)
}

// CompositeScore scores a tracked key with neutral request weights. The
// coordinator uses it to compare backends in adaptive hybrid execution.
func (s *Selector) CompositeScore(key string) float64 {
	stats := s.tracker.Stats(key)
	eng := s.cfg.Engine
	return eng.SuccessWeight*stats.SuccessRate +
		eng.QualityWeight*stats.AvgQuality +
		eng.SpeedWeight*speedScore(stats.AvgDuration, eng.SpeedNormalization) +
		eng.StabilityWeight*stats.Stability
}

// speedScore maps an average duration to [0,1]: anything at or below the
// normalization duration earns a full score, longer averages scale down
// inversely.
func speedScore(avg, normalization time.Duration) float64 {
	if avg <= 0 {
		return 1
	}
	score := float64(normalization) / float64(avg)
	if score > 1 {
		return 1
	}
	return score
}

// adaptability rates how well a candidate fits current conditions.
// Browser-leaning strategies win under hostile conditions, API-leaning
// strategies win when conditions are easy, and hybrid is always a safe
// middle choice.
func adaptability(candidate models.StrategyKind, env Environment) float64 {
	if candidate == models.StrategyHybrid {
		return adaptHybrid
	}

	browserLeaning := candidate == models.StrategyBrowserFirst || candidate == models.StrategyBrowserOnly
	switch {
	case env.Hostile():
		if browserLeaning {
			return adaptFavored
		}
		return adaptDisfavored
	case env.Easy():
		if browserLeaning {
			return adaptDisfavored
		}
		return adaptFavored
	default:
		return adaptNeutral
	}
}
