package runstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestStore_TrialsInOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	for i, kind := range []experiment.TrialKind{
		experiment.TrialKindTraining,
		experiment.TrialKindScored,
		experiment.TrialKindRestudy,
	} {
		require.NoError(t, s.RecordTrial(ctx, experiment.TrialRecord{
			SessionID: "a",
			Kind:      kind,
			Round:     i,
			At:        base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.RecordTrial(ctx, experiment.TrialRecord{SessionID: "b", At: base}))

	trials, err := s.Trials(ctx, "a")
	require.NoError(t, err)
	require.Len(t, trials, 3)
	assert.Equal(t, experiment.TrialKindTraining, trials[0].Kind)
	assert.Equal(t, experiment.TrialKindRestudy, trials[2].Kind)

	other, err := s.Trials(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestStore_Sessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordSession(ctx, experiment.SessionSummary{SessionID: "old", StartedAt: base}))
	require.NoError(t, s.RecordSession(ctx, experiment.SessionSummary{
		SessionID: "new",
		StartedAt: base.Add(time.Hour),
		Phase:     experiment.PhaseComplete,
		Pools:     experiment.PoolSizes{Quiz: 1, Done: 2},
	}))

	all, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "new", all[0].SessionID)

	got, err := s.Session(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, experiment.PhaseComplete, got.Phase)
	assert.Equal(t, 3, got.Pools.Total())

	_, err = s.Session(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RejectsMissingSessionID(t *testing.T) {
	s := openTestStore(t)
	require.Error(t, s.RecordTrial(context.Background(), experiment.TrialRecord{}))
	require.Error(t, s.RecordSession(context.Background(), experiment.SessionSummary{}))
}

func TestStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Config{Path: dir}, nil)
	require.NoError(t, err)
	require.NoError(t, s.RecordSession(ctx, experiment.SessionSummary{SessionID: "x"}))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir}, nil)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Session(ctx, "x")
	require.NoError(t, err)

	_, err = Open(Config{}, nil)
	require.Error(t, err)
}

func TestStore_Load(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now()

	records := []experiment.TrialRecord{
		{SessionID: "r", Kind: experiment.TrialKindScored, Correct: ptr(true), Confidence: ptr(0.2), To: experiment.PoolDone, At: at},
		{SessionID: "r", Kind: experiment.TrialKindScored, Correct: ptr(false), Confidence: ptr(0.6), To: experiment.PoolStudy, At: at.Add(time.Second)},
		{SessionID: "r", Kind: experiment.TrialKindScored, Correct: ptr(true), Artifact: true, To: experiment.PoolQuiz, At: at.Add(2 * time.Second)},
		{SessionID: "r", Kind: experiment.TrialKindRestudy, At: at.Add(3 * time.Second)},
		{SessionID: "r", Kind: experiment.TrialKindTraining, Artifact: true, At: at.Add(4 * time.Second)},
	}
	for _, rec := range records {
		require.NoError(t, s.RecordTrial(ctx, rec))
	}
	require.NoError(t, s.RecordSession(ctx, experiment.SessionSummary{SessionID: "r"}))

	r, err := s.Load(ctx, "r", false)
	require.NoError(t, err)
	assert.Empty(t, r.Trials)
	assert.Equal(t, 3, r.Totals.Scored)
	assert.Equal(t, 2, r.Totals.Correct)
	assert.Equal(t, 1, r.Totals.Promoted)
	assert.Equal(t, 1, r.Totals.Restudied)
	assert.Equal(t, 1, r.Totals.Training)
	assert.Equal(t, 2, r.Totals.Artifacts)
	assert.InDelta(t, 0.4, r.Totals.MeanConfidence, 1e-9)

	r, err = s.Load(ctx, "r", true)
	require.NoError(t, err)
	assert.Len(t, r.Trials, 5)

	_, err = s.Load(ctx, "nope", false)
	require.ErrorIs(t, err, ErrNotFound)
}
