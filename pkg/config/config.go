// Package config provides the unified configuration system for Harvester.
// It defines a single Config structure consumed by the engine and by
// collector adapters, organized into logical sections:
//   - Engine: selection weights, performance window sizing
//   - Progressive: hybrid progressive-execution thresholds
//   - Environment: environment probe refresh behavior
//   - Sources: logical source-id role mapping
//   - Timeouts: run and per-collector timeouts
//   - Reliability: collector-side retry, rate limiting, circuit breaking
//   - Observability: metrics, tracing, logging
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.Engine.AdaptiveMargin = 0.25
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"
)

// Config is the single unified configuration structure for the engine.
type Config struct {
	// Name identifies the engine instance
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Engine controls strategy selection and performance tracking
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Progressive controls hybrid progressive execution
	Progressive ProgressiveConfig `yaml:"progressive" json:"progressive"`

	// Environment controls the environment snapshot probe
	Environment EnvironmentConfig `yaml:"environment" json:"environment"`

	// Sources maps backend roles to registered collector ids
	Sources SourcesConfig `yaml:"sources" json:"sources"`

	// Timeouts define run-level and collector-level deadlines
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Reliability settings for collector adapters
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// EngineConfig contains strategy selection and tracking settings.
type EngineConfig struct {
	// WindowSize bounds the per-strategy outcome history
	WindowSize int `yaml:"window_size" json:"window_size"`
	// StabilitySubwindow is the sub-window size for stability computation
	StabilitySubwindow int `yaml:"stability_subwindow" json:"stability_subwindow"`
	// SuccessWeight is the selection weight on recent success rate
	SuccessWeight float64 `yaml:"success_weight" json:"success_weight"`
	// StabilityWeight is the selection weight on outcome stability
	StabilityWeight float64 `yaml:"stability_weight" json:"stability_weight"`
	// AdaptabilityWeight is the selection weight on environment fit
	AdaptabilityWeight float64 `yaml:"adaptability_weight" json:"adaptability_weight"`
	// QualityWeight is the selection weight on average record quality
	QualityWeight float64 `yaml:"quality_weight" json:"quality_weight"`
	// QualityWeightHigh replaces QualityWeight when the request demands
	// high quality
	QualityWeightHigh float64 `yaml:"quality_weight_high" json:"quality_weight_high"`
	// SpeedWeight is the selection weight on normalized speed
	SpeedWeight float64 `yaml:"speed_weight" json:"speed_weight"`
	// SpeedWeightVolume replaces SpeedWeight for large-volume requests
	SpeedWeightVolume float64 `yaml:"speed_weight_volume" json:"speed_weight_volume"`
	// AdaptiveMargin is the composite-score lead required before adaptive
	// hybrid execution commits to a single leader
	AdaptiveMargin float64 `yaml:"adaptive_margin" json:"adaptive_margin"`
	// SpeedNormalization is the average duration that still earns a full
	// speed score; longer averages scale down inversely
	SpeedNormalization time.Duration `yaml:"speed_normalization" json:"speed_normalization"`
}

// ProgressiveConfig contains hybrid progressive execution thresholds.
type ProgressiveConfig struct {
	// MaxRecordsThreshold selects progressive mode for small requests
	MaxRecordsThreshold int `yaml:"max_records_threshold" json:"max_records_threshold"`
	// SufficiencyRatio is the fraction of requested records that must be
	// present before the expensive collector is skipped
	SufficiencyRatio float64 `yaml:"sufficiency_ratio" json:"sufficiency_ratio"`
	// SufficiencyQuality is the estimated-quality floor for sufficiency
	SufficiencyQuality float64 `yaml:"sufficiency_quality" json:"sufficiency_quality"`
}

// EnvironmentConfig contains environment probe settings.
type EnvironmentConfig struct {
	// RefreshInterval bounds how often the probe is consulted
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
}

// SourcesConfig maps backend roles to logical collector ids.
type SourcesConfig struct {
	// Browser is the source id of the heavy, rendering backend
	Browser string `yaml:"browser" json:"browser"`
	// API is the source id of the lightweight HTTP backend
	API string `yaml:"api" json:"api"`
}

// TimeoutConfig contains all timeout-related settings.
type TimeoutConfig struct {
	// Run bounds a whole orchestrated run when the request carries none
	Run time.Duration `yaml:"run" json:"run"`
	// Collector bounds each individual collector invocation
	Collector time.Duration `yaml:"collector" json:"collector"`
	// Connection timeout for establishing collector connections
	Connection time.Duration `yaml:"connection" json:"connection"`
}

// ReliabilityConfig contains collector-adapter reliability settings.
// The orchestrator itself never retries; these apply inside adapters.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum retry attempts for failed collector calls
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	// CircuitBreaker enables circuit breaker protection in adapters
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker"`
	// RateLimitPerSec limits collector requests per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing activates distributed tracing
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// Default returns a Config with production-ready defaults. Callers override
// individual fields as needed and then call Validate.
func Default() *Config {
	return &Config{
		Name:    "harvester",
		Version: "1.0.0",
		Engine: EngineConfig{
			WindowSize:         20,
			StabilitySubwindow: 5,
			SuccessWeight:      0.4,
			StabilityWeight:    0.1,
			AdaptabilityWeight: 0.1,
			QualityWeight:      0.3,
			QualityWeightHigh:  0.5,
			SpeedWeight:        0.2,
			SpeedWeightVolume:  0.3,
			AdaptiveMargin:     0.20,
			SpeedNormalization: 10 * time.Second,
		},
		Progressive: ProgressiveConfig{
			MaxRecordsThreshold: 20,
			SufficiencyRatio:    0.8,
			SufficiencyQuality:  0.7,
		},
		Environment: EnvironmentConfig{
			RefreshInterval: 5 * time.Minute,
		},
		Sources: SourcesConfig{
			Browser: "browser",
			API:     "api",
		},
		Timeouts: TimeoutConfig{
			Run:        5 * time.Minute,
			Collector:  90 * time.Second,
			Connection: 10 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   60 * time.Second,
			CircuitBreaker:  true,
			RateLimitPerSec: 0,
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			LogLevel:          "info",
			TracingSampleRate: 0.1,
		},
	}
}

// Validate validates the configuration for correctness. It checks required
// fields and ensures values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Engine.WindowSize <= 0 {
		return fmt.Errorf("engine.window_size must be positive")
	}
	if c.Engine.StabilitySubwindow <= 0 || c.Engine.StabilitySubwindow > c.Engine.WindowSize {
		return fmt.Errorf("engine.stability_subwindow must be in [1, window_size]")
	}
	if c.Engine.AdaptiveMargin < 0 || c.Engine.AdaptiveMargin > 1 {
		return fmt.Errorf("engine.adaptive_margin must be in [0,1]")
	}
	if c.Engine.SpeedNormalization <= 0 {
		return fmt.Errorf("engine.speed_normalization must be positive")
	}
	if c.Engine.SuccessWeight < 0 || c.Engine.StabilityWeight < 0 ||
		c.Engine.AdaptabilityWeight < 0 || c.Engine.QualityWeight < 0 ||
		c.Engine.QualityWeightHigh < 0 || c.Engine.SpeedWeight < 0 ||
		c.Engine.SpeedWeightVolume < 0 {
		return fmt.Errorf("engine selection weights cannot be negative")
	}
	if c.Progressive.MaxRecordsThreshold < 0 {
		return fmt.Errorf("progressive.max_records_threshold cannot be negative")
	}
	if c.Progressive.SufficiencyRatio <= 0 || c.Progressive.SufficiencyRatio > 1 {
		return fmt.Errorf("progressive.sufficiency_ratio must be in (0,1]")
	}
	if c.Progressive.SufficiencyQuality < 0 || c.Progressive.SufficiencyQuality > 1 {
		return fmt.Errorf("progressive.sufficiency_quality must be in [0,1]")
	}
	if c.Environment.RefreshInterval <= 0 {
		return fmt.Errorf("environment.refresh_interval must be positive")
	}
	if c.Sources.Browser == "" || c.Sources.API == "" {
		return fmt.Errorf("sources.browser and sources.api are required")
	}
	if c.Sources.Browser == c.Sources.API {
		return fmt.Errorf("sources.browser and sources.api must differ")
	}
	if c.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("reliability.retry_attempts cannot be negative")
	}
	if c.Reliability.RateLimitPerSec < 0 {
		return fmt.Errorf("reliability.rate_limit_per_sec cannot be negative")
	}
	return nil
}
