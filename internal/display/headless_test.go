package display

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

func TestHeadless_AnswersSteps(t *testing.T) {
	ctx := context.Background()

	always := NewHeadless(HeadlessConfig{Accuracy: 1, Seed: 7}, nil)
	step := experiment.ResponseCapture("cat", "gato", time.Hour)
	require.NoError(t, always.Present(ctx, step))
	resp, ok := step.Response()
	require.True(t, ok)
	assert.True(t, resp.Correct)
	assert.Equal(t, "gato", resp.Given)

	never := NewHeadless(HeadlessConfig{Accuracy: 0, Seed: 7}, nil)
	step = experiment.ResponseCapture("cat", "gato", time.Hour)
	require.NoError(t, never.Present(ctx, step))
	resp, _ = step.Response()
	assert.False(t, resp.Correct)

	check := experiment.Checkpoint("Ready?")
	require.NoError(t, never.Present(ctx, check))
	resp, _ = check.Response()
	assert.True(t, resp.Correct)

	stats := never.Stats()
	assert.Equal(t, 1, stats.Wrong)
	assert.Equal(t, 1, stats.Steps[experiment.StepCheckpoint])
}

func TestHeadless_RespectsContext(t *testing.T) {
	h := NewHeadless(HeadlessConfig{TimeScale: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Present(ctx, experiment.Rest(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeadless_Alert(t *testing.T) {
	h := NewHeadless(HeadlessConfig{}, nil)
	require.NoError(t, h.Alert(context.Background(), "Headset disconnected"))
	assert.Equal(t, []string{"Headset disconnected"}, h.Stats().Alerts)
}
