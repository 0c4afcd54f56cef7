package experiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionBlocks(t *testing.T) {
	blocks, err := PartitionBlocks(
		[]string{"a", "b", "c", "d", "e"},
		[]string{"w", "x", "y", "z"},
		2, 2, &scriptedRandom{},
	)
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	assert.Equal(t, []string{"a", "b"}, blocks[0].Snapshot())
	assert.Equal(t, []string{"w", "x"}, blocks[1].Snapshot())
	assert.Equal(t, []string{"c", "d"}, blocks[2].Snapshot())
	assert.Equal(t, []string{"y", "z"}, blocks[3].Snapshot())
}

func TestPartitionBlocks_Insufficient(t *testing.T) {
	_, err := PartitionBlocks([]string{"a", "b"}, []string{"w"}, 1, 2, &scriptedRandom{})
	require.ErrorIs(t, err, ErrInsufficientStimuli)
}

func TestClassOfBlock(t *testing.T) {
	assert.Equal(t, 1, ClassOfBlock(0))
	assert.Equal(t, 2, ClassOfBlock(1))
	assert.Equal(t, 1, ClassOfBlock(4))
}

func TestTraining_DisplaysAreMarkedWithClass(t *testing.T) {
	h := newHarness(t, fastSettings())
	blocks, err := PartitionBlocks([]string{"yes"}, []string{"no"}, 1, 1, h.rng)
	require.NoError(t, err)

	require.NoError(t, h.run(context.Background(), h.sched.Training(blocks)))

	stimuli := h.renderer.kinds(StepStimulus)
	require.Len(t, stimuli, 2)
	assert.Equal(t, "yes", stimuli[0].Text)
	assert.Equal(t, 1, stimuli[0].Marker)
	assert.Equal(t, "no", stimuli[1].Text)
	assert.Equal(t, 2, stimuli[1].Marker)

	var spoken []string
	for _, s := range h.renderer.kinds(StepText) {
		spoken = append(spoken, s.Text)
	}
	assert.Equal(t, []string{"yes*", "no*"}, spoken)

	require.Len(t, h.classifier.trained, 2)
	assert.Equal(t, 1, h.classifier.trained[0][0].Marker)
	assert.Equal(t, 2, h.classifier.trained[1][0].Marker)

	records := h.sink.kinds(TrialKindTraining)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Marker)
	assert.Equal(t, 1, records[1].Block)
}

func TestTraining_ArtifactCounters(t *testing.T) {
	settings := fastSettings()
	settings.BlockSize = 2
	settings.TrainingArtifactLimit = 1
	settings.ClassArtifactLimit = 1
	settings.NumRounds = 0
	h := newHarness(t, settings)
	h.filter.flag = true

	stimuli := sessionStimuli()
	stimuli.Class1 = []string{"a", "b"}
	stimuli.Class2 = []string{"c", "d"}

	ctx := context.Background()
	seq, err := h.sched.Session(ctx, stimuli)
	require.NoError(t, err)
	require.NoError(t, h.run(ctx, seq))

	assert.Empty(t, h.classifier.trained)

	var motion, warnings int
	for _, s := range h.renderer.kinds(StepInstruction) {
		switch s.Text {
		case MotionInstruction:
			motion++
		case TrainingDataWarning:
			warnings++
		}
	}
	assert.Equal(t, 2, motion)
	assert.Equal(t, 1, warnings)

	snap := h.sched.Snapshot()
	assert.Equal(t, map[int]int{1: 2, 2: 2}, snap.ClassArtifacts)
	assert.Equal(t, 0, snap.TrainingArtifacts)

	var artifacts int
	for _, e := range h.events() {
		if e == ArtifactEvent {
			artifacts++
		}
	}
	assert.Equal(t, 4, artifacts)
	assert.Contains(t, h.events(), TrainingDataWarning)
}

func TestTraining_AbortResetsMarker(t *testing.T) {
	h := newHarness(t, fastSettings())
	blocks, err := PartitionBlocks([]string{"yes"}, []string{"no"}, 1, 1, h.rng)
	require.NoError(t, err)

	var stepper *Stepper
	h.renderer.onStep = func(ctx context.Context, step *Step) error {
		if step.Kind != StepStimulus {
			return nil
		}
		stepper.Interrupt()
		<-ctx.Done()
		return ctx.Err()
	}
	stepper = NewStepper(h.renderer, nil)

	err = stepper.Run(context.Background(), h.sched.Training(blocks))
	require.ErrorIs(t, err, ErrSensorDisconnected)
	assert.Empty(t, h.classifier.trained)
	assert.Equal(t, 0, h.acc.Armed())
	assert.Equal(t, 0, h.marker.markers[len(h.marker.markers)-1])
}
