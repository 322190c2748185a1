package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withObservedLogger(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := globalLogger
	globalLogger = zap.New(core)
	t.Cleanup(func() { globalLogger = prev })
	return logs
}

func TestWithContextFields(t *testing.T) {
	logs := withObservedLogger(t)

	ctx := context.WithValue(context.Background(), RunIDKey, "run-1")
	ctx = context.WithValue(ctx, SourceKey, "api")
	ctx = context.WithValue(ctx, StrategyKey, "hybrid")

	WithContext(ctx).Info("collector finished")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "api", fields["source"])
	assert.Equal(t, "hybrid", fields["strategy"])
}

func TestWithContextMissingValues(t *testing.T) {
	logs := withObservedLogger(t)

	WithContext(context.Background()).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].ContextMap(), "absent context values add no fields")
}
