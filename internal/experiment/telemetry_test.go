package experiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/bioadapt/internal/telemetry"
)

func TestMetrics_ScoredTrialCounted(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	metrics, err := NewMetrics(tel.Meter(InstrumentationName))
	require.NoError(t, err)

	h := newHarness(t, oneRound(), 0.5)
	h.sched.metrics = metrics
	h.classifier.confidence = []float64{0.3}
	h.addItem(PoolQuiz, LearningItem{Prompt: "X", Answer: "x", PresentationCount: 5, LastConfidence: 0.8})

	require.NoError(t, h.run(context.Background(), h.sched.MainLoop()))

	ctx := context.Background()
	trials, ok := tel.Int64Sum(ctx, "bioadapt.trial.total")
	require.True(t, ok)
	assert.Equal(t, int64(1), trials)

	_, ok = tel.Int64Sum(ctx, "bioadapt.classifier.unavailable.total")
	assert.False(t, ok, "no unavailable trials were recorded")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTrial(context.Background(), "correct")
		m.RecordArtifact(context.Background(), PhaseTraining)
	})
}
