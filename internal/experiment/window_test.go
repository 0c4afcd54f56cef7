package experiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// ingestSpread makes every stimulus step deliver one entry inside and one
// outside a 100ms delay window.
func ingestSpread(h *harness) {
	h.renderer.acc = nil
	h.renderer.onStep = func(_ context.Context, step *Step) error {
		if step.Kind != StepStimulus {
			return nil
		}
		h.acc.Ingest([]sensor.Entry{
			{Marker: step.Marker, RelativeTimestamp: 50, Channels: []float64{1, 2}},
			{Marker: step.Marker, RelativeTimestamp: 150, Channels: []float64{3, 4}},
		})
		return nil
	}
}

func TestTrialRunner_ScoresOnlyDelayWindow(t *testing.T) {
	settings := oneRound()
	settings.DelayTime = 100 * time.Millisecond
	h := newHarness(t, settings, 0.5)
	ingestSpread(h)
	h.addItem(PoolQuiz, LearningItem{Prompt: "X", Answer: "x", PresentationCount: 5, LastConfidence: 0.8})

	require.NoError(t, h.run(context.Background(), h.sched.MainLoop()))

	require.Len(t, h.classifier.predicted, 1)
	require.Len(t, h.classifier.predicted[0], 1)
	assert.InDelta(t, 50, h.classifier.predicted[0][0].RelativeTimestamp, 1e-9)
	assert.Equal(t, []int{1}, h.filter.windows)

	scored := h.sink.kinds(TrialKindScored)
	require.Len(t, scored, 1)
	assert.Equal(t, 1, scored[0].Samples)
}

func TestTraining_TrainsOnWholeDisplayWindow(t *testing.T) {
	settings := fastSettings()
	settings.DelayTime = 100 * time.Millisecond
	h := newHarness(t, settings)
	ingestSpread(h)
	blocks, err := PartitionBlocks([]string{"yes"}, []string{"no"}, 1, 1, h.rng)
	require.NoError(t, err)

	require.NoError(t, h.run(context.Background(), h.sched.Training(blocks)))

	require.Len(t, h.classifier.trained, 2)
	for _, trial := range h.classifier.trained {
		assert.Len(t, trial, 2)
	}
	assert.Equal(t, []int{2, 2}, h.filter.windows)
	assert.Zero(t, h.classifier.predictCalls())
}

func TestArtifact_LoggedWithSentinel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := newHarness(t, oneRound(), 0.5)
	h.sched.logger = NewLogger(zap.New(core))
	h.filter.flag = true
	h.addItem(PoolQuiz, LearningItem{Prompt: "X", Answer: "x", SourceIndex: 2})

	require.NoError(t, h.run(context.Background(), h.sched.MainLoop()))

	entries := logs.FilterMessage("motion artifact detected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(PhaseTest), fields["phase"])
	require.Contains(t, fields, "error")
	assert.Contains(t, fields["error"], ErrArtifactDetected.Error())

	var logged error
	for _, f := range entries[0].Context {
		if f.Key == "error" {
			logged, _ = f.Interface.(error)
		}
	}
	assert.True(t, errors.Is(logged, ErrArtifactDetected))
}
