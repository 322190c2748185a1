// Package metrics provides performance tracking and observability for
// Harvester using Prometheus metrics. It exposes counters, gauges, and
// histograms for runs, strategy selection, collector calls, and fusion.
//
// # Basic Usage
//
//	// Record a completed run
//	metrics.RunsTotal.WithLabelValues("hybrid", "success").Inc()
//
//	// Track collector latency
//	timer := metrics.NewTimer("collect")
//	result := collector.Collect(ctx, req)
//	metrics.CollectorLatency.WithLabelValues("api", status(result)).
//	    Observe(timer.Stop().Seconds())
//
// Metric registration happens at package init via promauto; all recording
// methods are safe for concurrent use.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts orchestrated runs.
	// Labels: strategy (selected strategy), status (success/failure)
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_runs_total",
			Help: "Total number of orchestrated acquisition runs",
		},
		[]string{"strategy", "status"},
	)

	// RunDuration tracks end-to-end run duration in seconds.
	// Labels: strategy
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_run_duration_seconds",
			Help:    "End-to-end run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"strategy"},
	)

	// CollectorLatency tracks per-collector invocation latency in seconds.
	// Labels: source (collector id), status (success/failure/timeout)
	CollectorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_collector_latency_seconds",
			Help:    "Collector invocation latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"source", "status"},
	)

	// RecordsFused counts canonical records produced by fusion.
	// Labels: strategy
	RecordsFused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_records_fused_total",
			Help: "Total canonical records produced by fusion",
		},
		[]string{"strategy"},
	)

	// RecordsDropped counts raw records dropped during fusion.
	// Labels: reason (duplicate_url/duplicate_pair/invalid)
	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_records_dropped_total",
			Help: "Raw records dropped during standardization and dedup",
		},
		[]string{"reason"},
	)

	// StrategyScore exposes the most recent composite selection score.
	// Labels: strategy
	StrategyScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvester_strategy_score",
			Help: "Most recent composite selection score per strategy",
		},
		[]string{"strategy"},
	)

	// StrategySuccessRate exposes the tracked sliding-window success rate.
	// Labels: strategy
	StrategySuccessRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvester_strategy_success_rate",
			Help: "Sliding-window success rate per strategy",
		},
		[]string{"strategy"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times, each returning the total elapsed time.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
