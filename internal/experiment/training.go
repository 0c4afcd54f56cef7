package experiment

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/bioadapt/internal/pool"
	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// PartitionBlocks splits the two class lists into 2*numBlocks label pools.
// Even blocks hold class-one labels, odd blocks class-two labels, blockSize
// each, taken in list order.
func PartitionBlocks(class1, class2 []string, numBlocks, blockSize int, rng pool.Source) ([]*pool.RandomPool[string], error) {
	need := numBlocks * blockSize
	if len(class1) < need || len(class2) < need {
		return nil, fmt.Errorf("%w: need %d per class, have %d and %d",
			ErrInsufficientStimuli, need, len(class1), len(class2))
	}

	blocks := make([]*pool.RandomPool[string], 0, 2*numBlocks)
	for b := 0; b < numBlocks; b++ {
		one := pool.New[string](rng)
		two := pool.New[string](rng)
		for j := b * blockSize; j < (b+1)*blockSize; j++ {
			one.Add(class1[j])
			two.Add(class2[j])
		}
		blocks = append(blocks, one, two)
	}
	return blocks, nil
}

// ClassOfBlock returns the class (1 or 2) of block j.
func ClassOfBlock(j int) int {
	return j%2 + 1
}

type trainingState int

const (
	trainReady trainingState = iota
	trainRest
	trainFixation
	trainDisplay
	trainSpeak
	trainCheck
)

// TrainingBlockRunner presents the calibration blocks. Each label goes
// through rest, fixation, a marker-tagged display whose samples train the
// classifier, and a speak prompt.
type TrainingBlockRunner struct {
	s        *Scheduler
	blocks   []*pool.RandomPool[string]
	block    int
	state    trainingState
	label    string
	artifact bool
	trials   int
	finished bool
	aborted  bool
}

// Training returns a runner over blocks.
func (s *Scheduler) Training(blocks []*pool.RandomPool[string]) *TrainingBlockRunner {
	return &TrainingBlockRunner{s: s, blocks: blocks}
}

// Next implements Sequence.
func (r *TrainingBlockRunner) Next(ctx context.Context) (*Step, error) {
	s := r.s
	set := s.settings
	for {
		if r.aborted {
			return nil, ErrSequenceAborted
		}

		switch r.state {
		case trainReady:
			if r.block >= len(r.blocks) {
				if !r.finished {
					r.finished = true
					s.deps.Recorder.Event(TrainingConcluded)
				}
				return nil, ErrSequenceDone
			}
			s.deps.Recorder.Event(fmt.Sprintf("Current Class: %d, Block Number: %d", ClassOfBlock(r.block), r.block))
			r.state = trainRest
			return Checkpoint(ReadyForNextBlock), nil

		case trainRest:
			label, err := r.blocks[r.block].RemoveRandom()
			if err != nil {
				r.block++
				r.state = trainReady
				continue
			}
			r.label = label
			r.artifact = false
			r.state = trainFixation
			return Rest(set.BlinkTime), nil

		case trainFixation:
			r.state = trainDisplay
			return Fixation(set.FixationTime), nil

		case trainDisplay:
			class := ClassOfBlock(r.block)
			s.deps.Recorder.Event(r.label)
			r.state = trainSpeak
			return Stimulus(r.label, "", set.DisplayTime, 0, class).
				OnDeploy(func() {
					s.deps.Accumulator.Arm(class)
					s.deps.Marker.SetMarker(class)
				}).
				OnFinish(r.train), nil

		case trainSpeak:
			r.state = trainCheck
			return Text(r.label+"*", set.SpeakTime), nil

		case trainCheck:
			r.state = trainRest
			if step := r.check(ctx); step != nil {
				return step, nil
			}
		}
	}
}

// train runs when a label display ends. The whole display window is used.
func (r *TrainingBlockRunner) train(ctx context.Context) error {
	s := r.s
	class := ClassOfBlock(r.block)

	s.deps.Marker.SetMarker(sensor.NoMarker)
	s.deps.Accumulator.Disarm()
	entries := s.deps.Accumulator.Drain()
	r.trials++

	rec := TrialRecord{
		Kind:     TrialKindTraining,
		Round:    r.trials - 1,
		Block:    r.block,
		Stimulus: r.label,
		Marker:   class,
		Samples:  len(entries),
	}

	if s.deps.Filter.HasMotionArtifact(entries) {
		r.artifact = true
		rec.Artifact = true
		s.deps.Recorder.Event(ArtifactEvent)
		s.metrics.RecordTraining(ctx, class, true)
		s.record(ctx, rec)
		return nil
	}

	if s.settings.SaveTrialData {
		if err := s.deps.Recorder.TrainingSamples(entries); err != nil {
			s.logger.Error(ctx, "writing training samples failed", err)
		}
	}
	if err := s.deps.Classifier.Train(ctx, entries); err != nil {
		s.logger.Error(ctx, "training trial rejected", err)
	}
	s.logger.TrainingTrial(ctx, class, r.block, r.label, false)
	s.metrics.RecordTraining(ctx, class, false)
	s.record(ctx, rec)
	return nil
}

// check updates the artifact counters after the speak prompt and returns the
// corrective instruction when the rolling counter overflows.
func (r *TrainingBlockRunner) check(ctx context.Context) *Step {
	if !r.artifact {
		return nil
	}
	s := r.s
	class := ClassOfBlock(r.block)

	s.mu.Lock()
	s.c.classArtifacts[class]++
	s.c.trainingArtifacts++
	rolling := s.c.trainingArtifacts
	instruct := rolling > s.settings.TrainingArtifactLimit
	if instruct {
		s.c.trainingArtifacts = 0
	}
	s.mu.Unlock()

	err := fmt.Errorf("%w: class %d block %d", ErrArtifactDetected, class, r.block)
	s.logger.ArtifactDetected(ctx, PhaseTraining, err, class, 0, rolling)
	s.metrics.RecordArtifact(ctx, PhaseTraining)
	if !instruct {
		return nil
	}
	s.logger.InstructionIssued(ctx, PhaseTraining, s.settings.TrainingArtifactLimit+1)
	s.metrics.RecordInstruction(ctx, PhaseTraining)
	return Instruction(MotionInstruction, s.settings.InstructionTime)
}

// Abort implements Sequence.
func (r *TrainingBlockRunner) Abort() {
	if r.aborted {
		return
	}
	r.aborted = true
	r.s.deps.Marker.SetMarker(sensor.NoMarker)
	r.s.deps.Accumulator.Disarm()
	r.s.deps.Accumulator.Drain()
}
