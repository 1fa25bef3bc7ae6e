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

func TestInit_InvalidLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestWithContext_AddsRunFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Get()
	Set(zap.New(core))
	t.Cleanup(func() { Set(prev) })

	ctx := ContextWithRunID(context.Background(), "run-1")
	ctx = ContextWithStage(ctx, "sync")
	ctx = ContextWithDataset(ctx, "clinical__diagnosis")

	WithContext(ctx).Info("downloaded")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "sync", fields["stage"])
	assert.Equal(t, "clinical__diagnosis", fields["dataset"])
}

func TestGet_DefaultsWhenUnset(t *testing.T) {
	prev := Get()
	Set(nil)
	t.Cleanup(func() { Set(prev) })

	assert.NotNil(t, Get())
}
