package base

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/errors"
	"github.com/quarrylabs/harvester/pkg/models"
)

func newInitializedCollector(t *testing.T, mutate func(*config.Config)) *BaseCollector {
	t.Helper()
	cfg := config.Default()
	cfg.Reliability.RetryAttempts = 0
	cfg.Reliability.CircuitBreaker = false
	if mutate != nil {
		mutate(cfg)
	}

	bc := NewBaseCollector("api", "test")
	require.NoError(t, bc.Initialize(context.Background(), cfg))
	t.Cleanup(func() { _ = bc.Close(context.Background()) })
	return bc
}

func TestGuardSuccess(t *testing.T) {
	bc := newInitializedCollector(t, nil)

	req := &models.AcquisitionRequest{SearchTerm: "go"}
	result := bc.Guard(context.Background(), req, func(ctx context.Context) ([]models.RawRecord, error) {
		return []models.RawRecord{{"title": "Engineer", "company": "Acme"}}, nil
	})

	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, "api", result.SourceID)
	assert.Len(t, result.Records, 1)
	assert.Empty(t, result.Error)
}

func TestGuardFoldsErrorIntoResult(t *testing.T) {
	bc := newInitializedCollector(t, nil)

	req := &models.AcquisitionRequest{SearchTerm: "go"}
	result := bc.Guard(context.Background(), req, func(ctx context.Context) ([]models.RawRecord, error) {
		return nil, errors.New(errors.ErrorTypeConnection, "connection refused")
	})

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connection refused")
}

func TestGuardRecoversPanic(t *testing.T) {
	bc := newInitializedCollector(t, nil)

	req := &models.AcquisitionRequest{SearchTerm: "go"}
	result := bc.Guard(context.Background(), req, func(ctx context.Context) ([]models.RawRecord, error) {
		panic("selector exploded")
	})

	require.NotNil(t, result, "panics must never cross the collector boundary")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "panic")
	assert.Contains(t, result.Error, "selector exploded")
}

func TestGuardConvertsDeadlineToTimeout(t *testing.T) {
	bc := newInitializedCollector(t, func(cfg *config.Config) {
		cfg.Timeouts.Collector = 20 * time.Millisecond
	})

	req := &models.AcquisitionRequest{SearchTerm: "go"}
	result := bc.Guard(context.Background(), req, func(ctx context.Context) ([]models.RawRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "timeout", result.Error)
}

func TestGuardRetriesRetryableErrors(t *testing.T) {
	bc := newInitializedCollector(t, func(cfg *config.Config) {
		cfg.Reliability.RetryAttempts = 3
		cfg.Reliability.RetryDelay = time.Millisecond
	})

	attempts := 0
	req := &models.AcquisitionRequest{SearchTerm: "go"}
	result := bc.Guard(context.Background(), req, func(ctx context.Context) ([]models.RawRecord, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New(errors.ErrorTypeRateLimit, "throttled")
		}
		return []models.RawRecord{{"title": "Engineer", "company": "Acme"}}, nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, attempts)
}

func TestGuardDoesNotRetryPermanentErrors(t *testing.T) {
	bc := newInitializedCollector(t, func(cfg *config.Config) {
		cfg.Reliability.RetryAttempts = 3
		cfg.Reliability.RetryDelay = time.Millisecond
	})

	attempts := 0
	req := &models.AcquisitionRequest{SearchTerm: "go"}
	result := bc.Guard(context.Background(), req, func(ctx context.Context) ([]models.RawRecord, error) {
		attempts++
		return nil, errors.New(errors.ErrorTypeAuthentication, "bad credentials")
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, attempts)
}

func TestMetricsCounters(t *testing.T) {
	bc := newInitializedCollector(t, nil)
	req := &models.AcquisitionRequest{SearchTerm: "go"}

	bc.Guard(context.Background(), req, func(ctx context.Context) ([]models.RawRecord, error) {
		return nil, nil
	})
	bc.Guard(context.Background(), req, func(ctx context.Context) ([]models.RawRecord, error) {
		return nil, errors.New(errors.ErrorTypeConnection, "down")
	})

	m := bc.Metrics()
	assert.Equal(t, int64(2), m["collects"])
	assert.Equal(t, int64(1), m["failures"])
	assert.Equal(t, "api", m["source"])
}

func TestCloseIsIdempotent(t *testing.T) {
	bc := newInitializedCollector(t, nil)
	require.NoError(t, bc.Close(context.Background()))
	require.NoError(t, bc.Close(context.Background()))
	assert.Error(t, bc.Health(context.Background()))
}
