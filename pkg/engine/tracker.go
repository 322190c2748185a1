// Package engine implements the adaptive orchestration and fusion core of
// Harvester: sliding-window performance tracking, scored strategy
// selection, concurrency-bounded execution coordination, and data fusion.
//
// One Orchestrator instance owns one Tracker and one collector set; there
// are no package-level singletons. Construct once and reuse across runs,
// or construct fresh per test.
package engine

import (
	"math"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/quarrylabs/harvester/pkg/errors"
	"github.com/quarrylabs/harvester/pkg/models"
)

// Stats are the derived statistics for one tracked key (a strategy or a
// backend source id). All four fields are computed from the same window
// version under one lock, so readers never see torn values.
type Stats struct {
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
	AvgQuality  float64       `json:"avg_quality"`
	Stability   float64       `json:"stability"`

	// SampleCount is how many outcomes back these stats; zero means the
	// values are the seeded baseline
	SampleCount int `json:"sample_count"`
}

// Baseline is the seeded Stats returned for a key with no recorded
// history. Seeding avoids cold-start starvation: a never-tried strategy
// would otherwise score zero and never be selected.
type Baseline struct {
	SuccessRate float64
	AvgDuration time.Duration
	AvgQuality  float64
	Stability   float64
}

// defaultBaselines reflect the backends' expected character before any
// history exists: the browser backend is slow but dependable, the API
// backend fast but fragile, hybrid strategies in between.
var defaultBaselines = map[string]Baseline{
	string(models.StrategyHybrid):       {SuccessRate: 0.75, AvgDuration: 25 * time.Second, AvgQuality: 0.75, Stability: 0.8},
	string(models.StrategyBrowserFirst): {SuccessRate: 0.80, AvgDuration: 40 * time.Second, AvgQuality: 0.85, Stability: 0.8},
	string(models.StrategyAPIFirst):     {SuccessRate: 0.70, AvgDuration: 10 * time.Second, AvgQuality: 0.65, Stability: 0.7},
	string(models.StrategyBrowserOnly):  {SuccessRate: 0.80, AvgDuration: 45 * time.Second, AvgQuality: 0.85, Stability: 0.8},
	string(models.StrategyAPIOnly):      {SuccessRate: 0.65, AvgDuration: 8 * time.Second, AvgQuality: 0.60, Stability: 0.7},
}

// genericBaseline seeds keys without a dedicated entry (backend source ids).
var genericBaseline = Baseline{SuccessRate: 0.7, AvgDuration: 20 * time.Second, AvgQuality: 0.7, Stability: 0.75}

// window is the bounded FIFO outcome history for one key. Its mutex is the
// single critical section for both writes and derived reads.
type window struct {
	mu       sync.Mutex
	outcomes []models.Outcome
	capacity int
}

// Tracker maintains bounded per-key outcome history and derives the
// statistics strategy selection feeds on. Keys are strategy kinds and
// backend source ids; the namespaces do not collide.
type Tracker struct {
	mu        sync.RWMutex
	windows   map[string]*window
	capacity  int
	subwindow int
	baselines map[string]Baseline
}

// NewTracker creates a tracker with the given window capacity and
// stability sub-window size.
func NewTracker(capacity, subwindow int) *Tracker {
	if capacity <= 0 {
		capacity = 20
	}
	if subwindow <= 0 || subwindow > capacity {
		subwindow = 5
	}
	return &Tracker{
		windows:   make(map[string]*window),
		capacity:  capacity,
		subwindow: subwindow,
		baselines: defaultBaselines,
	}
}

// windowFor returns the window for a key, creating it on first use.
func (t *Tracker) windowFor(key string) *window {
	t.mu.RLock()
	w, ok := t.windows[key]
	t.mu.RUnlock()
	if ok {
		return w
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok = t.windows[key]; ok {
		return w
	}
	w = &window{capacity: t.capacity}
	t.windows[key] = w
	return w
}

// RecordOutcome appends an outcome to the key's window, evicting the
// oldest entry when the window is full.
func (t *Tracker) RecordOutcome(key string, outcome models.Outcome) {
	w := t.windowFor(key)

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.outcomes) >= w.capacity {
		// Evict oldest; shift keeps the slice bounded at capacity
		copy(w.outcomes, w.outcomes[1:])
		w.outcomes = w.outcomes[:len(w.outcomes)-1]
	}
	w.outcomes = append(w.outcomes, outcome)
}

// Stats returns the derived statistics for a key. An empty window yields
// the key's seeded baseline so untried strategies stay selectable.
func (t *Tracker) Stats(key string) Stats {
	w := t.windowFor(key)

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.outcomes) == 0 {
		b, ok := t.baselines[key]
		if !ok {
			b = genericBaseline
		}
		return Stats{
			SuccessRate: b.SuccessRate,
			AvgDuration: b.AvgDuration,
			AvgQuality:  b.AvgQuality,
			Stability:   b.Stability,
		}
	}

	var successes int
	var totalDuration time.Duration
	var totalQuality float64
	for _, o := range w.outcomes {
		if o.Success {
			successes++
		}
		totalDuration += o.Duration
		totalQuality += o.Quality
	}

	n := len(w.outcomes)
	return Stats{
		SuccessRate: float64(successes) / float64(n),
		AvgDuration: totalDuration / time.Duration(n),
		AvgQuality:  totalQuality / float64(n),
		Stability:   stability(w.outcomes, t.subwindow),
		SampleCount: n,
	}
}

// Reset clears all recorded history.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows = make(map[string]*window)
}

// stability measures consistency of success over consecutive sub-windows:
// max(0, 1 - stdev(sub-window success rates)). A strategy with a high but
// wildly varying success rate scores lower than a dependable one.
func stability(outcomes []models.Outcome, subwindow int) float64 {
	var rates []float64
	for i := 0; i+subwindow <= len(outcomes); i += subwindow {
		var successes int
		for _, o := range outcomes[i : i+subwindow] {
			if o.Success {
				successes++
			}
		}
		rates = append(rates, float64(successes)/float64(subwindow))
	}

	if len(rates) < 2 {
		return 1.0
	}

	var mean float64
	for _, r := range rates {
		mean += r
	}
	mean /= float64(len(rates))

	var variance float64
	for _, r := range rates {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rates))

	return math.Max(0, 1-math.Sqrt(variance))
}

// trackerSnapshot is the serialized form of tracker history.
type trackerSnapshot struct {
	Windows map[string][]models.Outcome `json:"windows"`
}

// Snapshot serializes the current history so callers can persist tracker
// state across restarts. The engine mandates no storage; this is the
// external persistence hook.
func (t *Tracker) Snapshot() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := trackerSnapshot{Windows: make(map[string][]models.Outcome, len(t.windows))}
	for key, w := range t.windows {
		w.mu.Lock()
		outcomes := make([]models.Outcome, len(w.outcomes))
		copy(outcomes, w.outcomes)
		w.mu.Unlock()
		snap.Windows[key] = outcomes
	}

	data, err := gojson.Marshal(snap)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize tracker state")
	}
	return data, nil
}

// Restore replaces the tracker history with a previously serialized
// snapshot, truncating any window larger than the configured capacity to
// its most recent entries.
func (t *Tracker) Restore(data []byte) error {
	var snap trackerSnapshot
	if err := gojson.Unmarshal(data, &snap); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to deserialize tracker state")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.windows = make(map[string]*window, len(snap.Windows))
	for key, outcomes := range snap.Windows {
		if len(outcomes) > t.capacity {
			outcomes = outcomes[len(outcomes)-t.capacity:]
		}
		w := &window{capacity: t.capacity}
		w.outcomes = append(w.outcomes, outcomes...)
		t.windows[key] = w
	}
	return nil
}
