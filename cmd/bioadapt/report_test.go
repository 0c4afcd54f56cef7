package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
	"github.com/fyrsmithlabs/bioadapt/internal/runstore"
)

func sampleSummary() experiment.SessionSummary {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return experiment.SessionSummary{
		SessionID:       "s-1",
		Subject:         "ana",
		Experiment:      "pilot",
		Phase:           experiment.PhaseComplete,
		RoundsCompleted: 12,
		ScoredTrials:    9,
		Promotions:      3,
		StartedAt:       start,
		FinishedAt:      start.Add(95 * time.Second),
	}
}

func TestWriteSessions_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSessions(&buf, "table", []experiment.SessionSummary{sampleSummary()}))

	out := buf.String()
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "s-1")
	assert.Contains(t, out, "ana")
	assert.Contains(t, out, "2026-03-02 10:00")
}

func TestWriteSessions_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSessions(&buf, "table", nil))
	assert.Equal(t, "No sessions recorded.\n", buf.String())
}

func TestWriteReport_Formats(t *testing.T) {
	conf := 0.82
	correct := true
	r := runstore.Report{
		Summary: sampleSummary(),
		Totals:  runstore.Totals{Scored: 9, Correct: 7, Promoted: 3, MeanConfidence: 0.61},
		Trials: []experiment.TrialRecord{{
			SessionID:  "s-1",
			Kind:       experiment.TrialKindScored,
			Round:      4,
			Stimulus:   "cat",
			Confidence: &conf,
			Correct:    &correct,
			From:       experiment.PoolQuiz,
			To:         experiment.PoolDone,
		}},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeReport(&buf, "table", r))
		out := buf.String()
		assert.Contains(t, out, "Duration:")
		assert.Contains(t, out, "1m35s")
		assert.Contains(t, out, "9 (7 correct)")
		assert.Contains(t, out, "0.820")
		assert.Contains(t, out, "cat")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeReport(&buf, "json", r))
		var decoded runstore.Report
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "s-1", decoded.Summary.SessionID)
		require.Len(t, decoded.Trials, 1)
		assert.InDelta(t, 0.82, *decoded.Trials[0].Confidence, 1e-9)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeReport(&buf, "yaml", r))
		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Contains(t, decoded, "totals")
	})
}

func TestOptionalFormatting(t *testing.T) {
	assert.Equal(t, "-", optBool(nil))
	assert.Equal(t, "-", optFloat(nil))
	assert.Equal(t, "-", dash(""))
	v := 0.5
	assert.Equal(t, "0.500", optFloat(&v))
}
