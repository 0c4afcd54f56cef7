package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

func oneRound() Settings {
	s := fastSettings()
	s.NumRounds = 1
	return s
}

func (h *harness) addItem(name PoolName, item LearningItem) *LearningItem {
	it := item
	h.sched.pools.Get(name).Add(&it)
	return &it
}

func TestNewScheduler_Validation(t *testing.T) {
	_, err := NewScheduler(fastSettings(), Dependencies{})
	require.ErrorIs(t, err, ErrMissingDependency)

	bad := fastSettings()
	bad.BlockSize = 0
	_, err = NewScheduler(bad, Dependencies{
		Marker:      &fakeMarker{},
		Accumulator: sensor.NewAccumulator(),
		Classifier:  &fakeClassifier{},
	})
	require.ErrorIs(t, err, ErrInvalidSettings)
}

func TestNewScheduler_JudgeStartsAtPromote(t *testing.T) {
	h := newHarness(t, fastSettings())
	assert.Equal(t, JudgePromote, h.sched.Judge())
	assert.Equal(t, "test-session", h.sched.SessionID())
}

func TestMainLoop_LowDrawRestudies(t *testing.T) {
	h := newHarness(t, oneRound(), 0.2)
	a := h.addItem(PoolStudy, LearningItem{Prompt: "A", Answer: "a", SourceIndex: 0})
	h.addItem(PoolStudy, LearningItem{Prompt: "B", Answer: "b", SourceIndex: 1})
	h.addItem(PoolStudy, LearningItem{Prompt: "C", Answer: "c", SourceIndex: 2})

	require.NoError(t, h.run(context.Background(), h.sched.MainLoop()))

	assert.Equal(t, PoolSizes{Study: 2, Quiz: 1}, h.sched.Pools().Sizes())
	quiz := h.sched.Pools().Quiz.Snapshot()
	require.Len(t, quiz, 1)
	assert.Equal(t, a.Prompt, quiz[0].Prompt)
	assert.Equal(t, 0, h.classifier.predictCalls())
	assert.Empty(t, h.renderer.kinds(StepResponse))

	texts := h.renderer.kinds(StepText)
	require.Len(t, texts, 1)
	assert.Equal(t, "A\na", texts[0].Text)
	assert.Contains(t, h.events(), restudyEventCode)
	assert.Len(t, h.sink.kinds(TrialKindRestudy), 1)
}

func TestMainLoop_ScoredTrialPromotes(t *testing.T) {
	h := newHarness(t, oneRound(), 0.5)
	h.classifier.confidence = []float64{0.3}
	h.addItem(PoolQuiz, LearningItem{Prompt: "X", Answer: "x", PresentationCount: 5, LastConfidence: 0.8})

	require.NoError(t, h.run(context.Background(), h.sched.MainLoop()))

	done := h.sched.Pools().Done.Snapshot()
	require.Len(t, done, 1)
	assert.Equal(t, 6, done[0].PresentationCount)
	assert.InDelta(t, 0.8, done[0].LastConfidence, 1e-9)
	assert.Equal(t, JudgePromote, h.sched.Judge())
	assert.Equal(t, 1, h.classifier.predictCalls())

	snap := h.sched.Snapshot()
	assert.Equal(t, 1, snap.ScoredTrials)
	assert.Equal(t, 1, snap.Promotions)
	assert.Equal(t, 0, snap.InFlight)
	require.NotNil(t, snap.LastConfidence)
	assert.InDelta(t, 0.3, *snap.LastConfidence, 1e-9)

	scored := h.sink.kinds(TrialKindScored)
	require.Len(t, scored, 1)
	assert.Equal(t, PoolQuiz, scored[0].From)
	assert.Equal(t, PoolDone, scored[0].To)
	assert.Equal(t, "promote", scored[0].Judge)
	assert.Equal(t, "test-session", scored[0].SessionID)

	assert.Equal(t, []int{1, sensor.NoMarker}, h.marker.markers)
	assert.Contains(t, h.events(), "Trial: 0")
}

func TestMainLoop_ArtifactOverridesClassifier(t *testing.T) {
	for _, tt := range []struct {
		name    string
		correct bool
		want    PoolName
	}{
		{"correct stays in quiz", true, PoolQuiz},
		{"incorrect goes to study", false, PoolStudy},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, oneRound(), 0.5)
			h.filter.flag = true
			h.renderer.correct = func(*Step) bool { return tt.correct }
			h.addItem(PoolQuiz, LearningItem{Prompt: "X", Answer: "x", PresentationCount: 5, LastConfidence: 0.8})

			require.NoError(t, h.run(context.Background(), h.sched.MainLoop()))

			assert.Equal(t, 1, h.sched.Pools().Sizes().Of(tt.want))
			assert.Equal(t, 0, h.classifier.predictCalls())
			assert.Equal(t, JudgePromote, h.sched.Judge())
			assert.Contains(t, h.events(), ArtifactEvent)

			snap := h.sched.Snapshot()
			assert.Equal(t, 1, snap.ArtifactTrials)
			assert.Equal(t, 1, snap.MainArtifacts)
		})
	}
}

func TestMainLoop_JudgePersistsAcrossTrials(t *testing.T) {
	settings := fastSettings()
	settings.NumRounds = 2
	h := newHarness(t, settings, 0.5, 0.5)
	h.classifier.confidence = []float64{0.5}
	h.addItem(PoolQuiz, LearningItem{Prompt: "X", Answer: "x", PresentationCount: 4, LastConfidence: 0.5})
	h.addItem(PoolQuiz, LearningItem{Prompt: "W", Answer: "w"})

	require.NoError(t, h.run(context.Background(), h.sched.MainLoop()))

	assert.Equal(t, JudgeRetain, h.sched.Judge())
	assert.Equal(t, PoolSizes{Quiz: 2}, h.sched.Pools().Sizes())

	scored := h.sink.kinds(TrialKindScored)
	require.Len(t, scored, 2)
	assert.Equal(t, "X", scored[0].Stimulus)
	assert.True(t, scored[0].Judged)
	assert.Equal(t, "W", scored[1].Stimulus)
	assert.False(t, scored[1].Judged)
	assert.Equal(t, PoolQuiz, scored[1].To)
}

func TestMainLoop_WarmupUsesInitialJudge(t *testing.T) {
	h := newHarness(t, oneRound(), 0.5)
	h.addItem(PoolQuiz, LearningItem{Prompt: "W", Answer: "w"})

	require.NoError(t, h.run(context.Background(), h.sched.MainLoop()))

	done := h.sched.Pools().Done.Snapshot()
	require.Len(t, done, 1)
	assert.Equal(t, 1, done[0].PresentationCount)
	assert.InDelta(t, 0.5, done[0].LastConfidence, 1e-9)
}

func TestMainLoop_ClassifierUnavailable(t *testing.T) {
	h := newHarness(t, oneRound(), 0.5)
	h.classifier.predictErr = errors.New("untrained")
	h.sched.c.judge = JudgeRetain
	h.addItem(PoolQuiz, LearningItem{Prompt: "X", Answer: "x", PresentationCount: 5, LastConfidence: 0.8})

	require.NoError(t, h.run(context.Background(), h.sched.MainLoop()))

	quiz := h.sched.Pools().Quiz.Snapshot()
	require.Len(t, quiz, 1)
	assert.InDelta(t, 0.8, quiz[0].LastConfidence, 1e-9)
	assert.Equal(t, JudgeRetain, h.sched.Judge())

	snap := h.sched.Snapshot()
	assert.Equal(t, 1, snap.ClassifierMisses)
	assert.Nil(t, snap.LastConfidence)

	scored := h.sink.kinds(TrialKindScored)
	require.Len(t, scored, 1)
	assert.Nil(t, scored[0].Confidence)
}

func TestMainLoop_InstructionAfterArtifactLimit(t *testing.T) {
	for _, tt := range []struct {
		rounds int
		want   int
	}{
		{rounds: 10, want: 0},
		{rounds: 11, want: 1},
	} {
		settings := fastSettings()
		settings.NumRounds = tt.rounds
		h := newHarness(t, settings)
		h.filter.flag = true
		h.addItem(PoolQuiz, LearningItem{Prompt: "X", Answer: "x"})

		require.NoError(t, h.run(context.Background(), h.sched.MainLoop()))

		instructions := h.renderer.kinds(StepInstruction)
		assert.Len(t, instructions, tt.want, "rounds=%d", tt.rounds)
		if tt.want > 0 {
			assert.Equal(t, MotionInstruction, instructions[0].Text)
			assert.Equal(t, 0, h.sched.Snapshot().MainArtifacts)
		} else {
			assert.Equal(t, tt.rounds, h.sched.Snapshot().MainArtifacts)
		}
	}
}

func TestMainLoop_DisconnectRestoresItem(t *testing.T) {
	h := newHarness(t, oneRound(), 0.5)
	h.addItem(PoolQuiz, LearningItem{Prompt: "X", Answer: "x", PresentationCount: 2, LastConfidence: 0.6})

	var stepper *Stepper
	h.renderer.onStep = func(ctx context.Context, step *Step) error {
		if step.Kind != StepStimulus {
			return nil
		}
		stepper.Interrupt()
		<-ctx.Done()
		return ctx.Err()
	}
	stepper = NewStepper(h.renderer, newFakeHealth())

	err := stepper.Run(context.Background(), h.sched.MainLoop())
	require.ErrorIs(t, err, ErrSensorDisconnected)
	assert.Equal(t, []string{DisconnectAlert}, h.renderer.alerts)

	sizes := h.sched.Pools().Sizes()
	assert.Equal(t, 1, sizes.Total())
	quiz := h.sched.Pools().Quiz.Snapshot()
	require.Len(t, quiz, 1)
	assert.Equal(t, 2, quiz[0].PresentationCount)
	assert.InDelta(t, 0.6, quiz[0].LastConfidence, 1e-9)

	assert.Equal(t, 0, h.classifier.predictCalls())
	assert.Equal(t, 0, h.sched.Snapshot().InFlight)
	assert.Empty(t, h.sink.kinds(TrialKindScored))
	assert.Equal(t, sensor.NoMarker, h.acc.Armed())

	summary := h.sched.Close(context.Background(), err)
	assert.Equal(t, PhaseAborted, summary.Phase)
	assert.Equal(t, ErrSensorDisconnected.Error(), summary.AbortReason)
}

func TestTrialRunner_AbortBeforeStart(t *testing.T) {
	h := newHarness(t, oneRound())
	item := &LearningItem{Prompt: "X", Answer: "x"}
	h.sched.inFlight = 1
	tr := h.sched.Trial(item, PoolQuiz, 0)

	tr.Abort()
	_, err := tr.Next(context.Background())
	require.ErrorIs(t, err, ErrSequenceAborted)
	assert.Equal(t, 1, h.sched.Pools().Quiz.Count())

	tr.Abort()
	assert.Equal(t, 1, h.sched.Pools().Quiz.Count())
}

func sessionStimuli() Stimuli {
	return Stimuli{
		Presentation: []string{"Welcome"},
		Items: []LearningItem{
			{Prompt: "dog", Answer: "perro", SourceIndex: 0},
			{Prompt: "cat", Answer: "gato", SourceIndex: 1},
		},
		Class1: []string{"yes"},
		Class2: []string{"no"},
	}
}

func TestSession_FullRun(t *testing.T) {
	settings := fastSettings()
	settings.NumRounds = 4
	settings.LogExperiment = true
	settings.SaveTrialData = true
	settings.ExperimentName = "pilot"
	h := newHarness(t, settings)

	ctx := context.Background()
	seq, err := h.sched.Session(ctx, sessionStimuli())
	require.NoError(t, err)
	require.NoError(t, h.run(ctx, seq))

	summary := h.sched.Close(ctx, nil)
	assert.Equal(t, PhaseComplete, summary.Phase)
	assert.Equal(t, 2, summary.Pools.Total())
	assert.Equal(t, 4, summary.ScoredTrials)
	assert.Equal(t, "pilot", summary.Experiment)
	assert.Empty(t, summary.AbortReason)

	var checkpoints []string
	for _, s := range h.renderer.kinds(StepCheckpoint) {
		checkpoints = append(checkpoints, s.Text)
	}
	assert.Equal(t, []string{
		ReadyForTraining,
		StartTraining,
		ReadyForNextBlock,
		ReadyForNextBlock,
		StartStudy,
		StartTest,
	}, checkpoints)

	events := h.events()
	assert.Contains(t, events, "Experiment: pilot")
	assert.Contains(t, events, "Current Class: 1, Block Number: 0")
	assert.Contains(t, events, "Current Class: 2, Block Number: 1")
	assert.Contains(t, events, TrainingConcluded)

	assert.Len(t, h.classifier.trained, 2)
	assert.Equal(t, 2, h.recorder.training)
	assert.Equal(t, 4, h.recorder.trials)
	assert.Len(t, h.sink.kinds(TrialKindSeed), 2)
	assert.Len(t, h.sink.kinds(TrialKindTraining), 2)
	require.Len(t, h.sink.sessions, 1)
}

func TestSession_Preconditions(t *testing.T) {
	h := newHarness(t, fastSettings())
	_, err := h.sched.Session(context.Background(), Stimuli{Class1: []string{"a"}, Class2: []string{"b"}})
	require.ErrorIs(t, err, ErrNoItems)

	stimuli := sessionStimuli()
	stimuli.Class2 = nil
	_, err = h.sched.Session(context.Background(), stimuli)
	require.ErrorIs(t, err, ErrInsufficientStimuli)
}

func TestMainLoop_PoolsConserveItems(t *testing.T) {
	settings := fastSettings()
	settings.NumRounds = 40
	settings.WarmupPresentations = 1
	draws := make([]float64, 0, settings.NumRounds)
	for i := 0; i < settings.NumRounds; i++ {
		draws = append(draws, []float64{0.1, 0.5, 0.995, 0.7}[i%4])
	}
	h := newHarness(t, settings, draws...)
	h.classifier.confidence = []float64{0.9, 0.2, 0.8, 0.1, 0.7}
	h.addItem(PoolStudy, LearningItem{Prompt: "A", Answer: "a", SourceIndex: 0})
	h.addItem(PoolStudy, LearningItem{Prompt: "B", Answer: "b", SourceIndex: 1})
	h.addItem(PoolQuiz, LearningItem{Prompt: "C", Answer: "c", SourceIndex: 2})

	answers := 0
	h.renderer.correct = func(*Step) bool {
		answers++
		return answers%3 != 0
	}
	h.renderer.onStep = func(_ context.Context, _ *Step) error {
		snap := h.sched.Snapshot()
		assert.Equal(t, 3, snap.Pools.Total()+snap.InFlight, "round %d", snap.Round)
		return nil
	}

	require.NoError(t, h.run(context.Background(), h.sched.MainLoop()))
	assert.Equal(t, 3, h.sched.Pools().Sizes().Total())
	assert.Equal(t, 0, h.sched.Snapshot().InFlight)
}

func TestSession_DisconnectDuringTrainingEndsSession(t *testing.T) {
	h := newHarness(t, fastSettings())

	var stepper *Stepper
	h.renderer.onStep = func(ctx context.Context, step *Step) error {
		if step.Kind != StepStimulus || step.Marker != 1 {
			return nil
		}
		stepper.Interrupt()
		<-ctx.Done()
		return ctx.Err()
	}
	stepper = NewStepper(h.renderer, newFakeHealth())

	ctx := context.Background()
	seq, err := h.sched.Session(ctx, sessionStimuli())
	require.NoError(t, err)
	err = stepper.Run(ctx, seq)
	require.ErrorIs(t, err, ErrSensorDisconnected)

	for _, s := range h.renderer.kinds(StepCheckpoint) {
		assert.NotEqual(t, StartStudy, s.Text)
		assert.NotEqual(t, StartTest, s.Text)
	}
	snap := h.sched.Snapshot()
	assert.Equal(t, 0, snap.Pools.Total())
	assert.Equal(t, 2, snap.Unseeded)

	summary := h.sched.Close(ctx, err)
	assert.Equal(t, PhaseAborted, summary.Phase)
	assert.Empty(t, h.sink.kinds(TrialKindScored))
}
