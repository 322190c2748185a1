package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/harvester/pkg/models"
)

func outcome(success bool, dur time.Duration, quality float64) models.Outcome {
	return models.Outcome{
		Success:     success,
		Duration:    dur,
		Quality:     quality,
		RecordCount: 10,
		Timestamp:   time.Now(),
	}
}

func TestTrackerSeededBaseline(t *testing.T) {
	tr := NewTracker(20, 5)

	stats := tr.Stats(string(models.StrategyAPIOnly))
	assert.Equal(t, 0, stats.SampleCount)
	assert.Greater(t, stats.SuccessRate, 0.0, "empty window must not score zero")

	// unknown keys get the generic baseline
	generic := tr.Stats("never-seen")
	assert.Equal(t, 0, generic.SampleCount)
	assert.Greater(t, generic.SuccessRate, 0.0)
}

func TestTrackerDerivedStats(t *testing.T) {
	tr := NewTracker(20, 5)
	key := string(models.StrategyHybrid)

	tr.RecordOutcome(key, outcome(true, 10*time.Second, 0.8))
	tr.RecordOutcome(key, outcome(true, 20*time.Second, 0.6))
	tr.RecordOutcome(key, outcome(false, 30*time.Second, 0.0))

	stats := tr.Stats(key)
	assert.Equal(t, 3, stats.SampleCount)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
	assert.Equal(t, 20*time.Second, stats.AvgDuration)
	assert.InDelta(t, (0.8+0.6)/3.0, stats.AvgQuality, 1e-9)
}

func TestTrackerWindowBound(t *testing.T) {
	tr := NewTracker(20, 5)
	key := string(models.StrategyBrowserFirst)

	// 30 failures followed by 20 successes: only the last 20 survive
	for i := 0; i < 30; i++ {
		tr.RecordOutcome(key, outcome(false, time.Second, 0))
	}
	for i := 0; i < 20; i++ {
		tr.RecordOutcome(key, outcome(true, time.Second, 0.9))
	}

	stats := tr.Stats(key)
	assert.Equal(t, 20, stats.SampleCount)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.InDelta(t, 0.9, stats.AvgQuality, 1e-9)
}

func TestTrackerStability(t *testing.T) {
	tr := NewTracker(20, 5)

	// perfectly consistent outcomes across sub-windows
	steady := "steady"
	for i := 0; i < 20; i++ {
		tr.RecordOutcome(steady, outcome(true, time.Second, 0.8))
	}
	assert.InDelta(t, 1.0, tr.Stats(steady).Stability, 1e-9)

	// alternating sub-windows of all-success and all-failure
	volatile := "volatile"
	for i := 0; i < 20; i++ {
		tr.RecordOutcome(volatile, outcome((i/5)%2 == 0, time.Second, 0.8))
	}
	assert.Less(t, tr.Stats(volatile).Stability, tr.Stats(steady).Stability)

	// fewer than two full sub-windows: stability defaults to 1
	sparse := "sparse"
	for i := 0; i < 7; i++ {
		tr.RecordOutcome(sparse, outcome(i%2 == 0, time.Second, 0.5))
	}
	assert.InDelta(t, 1.0, tr.Stats(sparse).Stability, 1e-9)
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(20, 5)
	key := string(models.StrategyAPIFirst)

	for i := 0; i < 5; i++ {
		tr.RecordOutcome(key, outcome(false, time.Second, 0))
	}
	require.Equal(t, 5, tr.Stats(key).SampleCount)

	tr.Reset()
	stats := tr.Stats(key)
	assert.Equal(t, 0, stats.SampleCount)
	assert.Greater(t, stats.SuccessRate, 0.0, "reset returns to seeded baseline")
}

func TestTrackerSnapshotRestore(t *testing.T) {
	tr := NewTracker(20, 5)
	key := string(models.StrategyBrowserOnly)
	for i := 0; i < 8; i++ {
		tr.RecordOutcome(key, outcome(i%2 == 0, 3*time.Second, 0.7))
	}

	data, err := tr.Snapshot()
	require.NoError(t, err)

	restored := NewTracker(20, 5)
	require.NoError(t, restored.Restore(data))

	assert.Equal(t, tr.Stats(key), restored.Stats(key))
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker(20, 5)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", g%3)
			for i := 0; i < 100; i++ {
				tr.RecordOutcome(key, outcome(i%2 == 0, time.Second, 0.5))
				_ = tr.Stats(key)
			}
		}(g)
	}
	wg.Wait()

	for g := 0; g < 3; g++ {
		stats := tr.Stats(fmt.Sprintf("key-%d", g))
		assert.Equal(t, 20, stats.SampleCount)
	}
}
