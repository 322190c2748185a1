package metrics

import (
	"github.com/quarrylabs/harvester/pkg/models"
)

// RunObserver publishes per-run outcome events into the Prometheus
// registry. It satisfies the engine's OutcomeObserver hook, keeping the
// engine itself free of any metrics dependency.
type RunObserver struct{}

// NewRunObserver returns an observer wired to the package-level metrics.
func NewRunObserver() *RunObserver {
	return &RunObserver{}
}

// ObserveOutcome records one run outcome.
func (o *RunObserver) ObserveOutcome(outcome models.Outcome) {
	status := "failure"
	if outcome.Success {
		status = "success"
	}
	RunsTotal.WithLabelValues(string(outcome.Strategy), status).Inc()
	RunDuration.WithLabelValues(string(outcome.Strategy)).Observe(outcome.Duration.Seconds())
	if outcome.RecordCount > 0 {
		RecordsFused.WithLabelValues(string(outcome.Strategy)).Add(float64(outcome.RecordCount))
	}
}
