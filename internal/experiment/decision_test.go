package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/bioadapt/internal/pool"
)

func TestDecide(t *testing.T) {
	params := DecisionParams{PromotionThreshold: 0.4, WarmupPresentations: 4}

	tests := []struct {
		name         string
		count        int
		last         float64
		confidence   float64
		wantJudged   bool
		wantJudge    Judge
		wantLastConf float64
	}{
		{"first presentation records", 1, 0, 0.7, false, JudgeRetain, 0.7},
		{"third presentation records", 3, 0.9, 0.1, false, JudgeRetain, 0.1},
		{"large drop promotes", 5, 0.8, 0.3, true, JudgePromote, 0.8},
		{"small drop retains", 4, 0.7, 0.35, true, JudgeRetain, 0.35},
		{"rise retains", 4, 0.2, 0.9, true, JudgeRetain, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.count, tt.last, tt.confidence, params)
			assert.Equal(t, tt.wantJudged, d.Judged)
			if tt.wantJudged {
				assert.Equal(t, tt.wantJudge, d.Judge)
			}
			assert.InDelta(t, tt.wantLastConf, d.LastConfidence, 1e-9)
		})
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name    string
		noWrite bool
		correct bool
		judge   Judge
		want    PoolName
	}{
		{"incorrect always studies", false, false, JudgePromote, PoolStudy},
		{"correct promote is done", false, true, JudgePromote, PoolDone},
		{"correct retain is quiz", false, true, JudgeRetain, PoolQuiz},
		{"artifact correct is quiz", true, true, JudgePromote, PoolQuiz},
		{"artifact incorrect studies", true, false, JudgePromote, PoolStudy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.noWrite, tt.correct, tt.judge))
		})
	}
}

func TestSelectPool(t *testing.T) {
	all := PoolSizes{Study: 1, Quiz: 1, Done: 1}

	tests := []struct {
		name  string
		r     float64
		sizes PoolSizes
		want  PoolName
	}{
		{"low draw prefers study", 0.2, all, PoolStudy},
		{"cutoff goes to quiz", 0.39, all, PoolQuiz},
		{"middle draw prefers quiz", 0.5, all, PoolQuiz},
		{"high draw prefers done", 0.995, all, PoolDone},
		{"empty study falls to quiz", 0.1, PoolSizes{Quiz: 2, Done: 1}, PoolQuiz},
		{"empty study and quiz falls to done", 0.1, PoolSizes{Done: 1}, PoolDone},
		{"empty quiz falls to study", 0.5, PoolSizes{Study: 1, Done: 1}, PoolStudy},
		{"empty done falls to quiz", 0.999, PoolSizes{Study: 1, Quiz: 1}, PoolQuiz},
		{"empty done and quiz falls to study", 0.999, PoolSizes{Study: 3}, PoolStudy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectPool(tt.r, tt.sizes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectPool_AllEmpty(t *testing.T) {
	_, err := SelectPool(0.5, PoolSizes{})
	require.ErrorIs(t, err, pool.ErrEmptyPool)
}

func TestTrialState_Transitions(t *testing.T) {
	assert.True(t, TrialRest.CanTransitionTo(TrialFixation))
	assert.True(t, TrialStimulus.CanTransitionTo(TrialResponse))
	assert.False(t, TrialRest.CanTransitionTo(TrialResponse))
	assert.False(t, TrialTerminal.CanTransitionTo(TrialRest))
}
