package experiment

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// Trial outcomes reported to metrics.
const (
	outcomeArtifact    = "artifact"
	outcomeUnavailable = "unavailable"
	outcomeWarmup      = "warmup"
	outcomePromote     = "promote"
	outcomeRetain      = "retain"
)

// TrialRunner drives one scored presentation of an item:
// rest, fixation, marker-tagged stimulus with masked delay, response capture,
// then routing to a pool. The stimulus step's finish hook scores the
// captured samples before the response is asked for.
type TrialRunner struct {
	s      *Scheduler
	item   *LearningItem
	origin PoolName
	round  int

	state    TrialState
	snapshot itemSnapshot
	response *Step

	noWrite     bool
	unavailable bool
	confidence  *float64
	decision    Decision
	samples     int

	committed bool
	aborted   bool
	span      trace.Span
}

// Trial returns a runner for item, drawn from origin, in the given round.
// An aborted runner puts the item back into origin unchanged.
func (s *Scheduler) Trial(item *LearningItem, origin PoolName, round int) *TrialRunner {
	return &TrialRunner{
		s:        s,
		item:     item,
		origin:   origin,
		round:    round,
		state:    TrialRest,
		snapshot: snapshotOf(item),
	}
}

// State returns the step the runner produces next.
func (t *TrialRunner) State() TrialState { return t.state }

func (t *TrialRunner) advance(to TrialState) error {
	if !t.state.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.state, to)
	}
	t.state = to
	return nil
}

// Next implements Sequence.
func (t *TrialRunner) Next(ctx context.Context) (*Step, error) {
	if t.aborted {
		return nil, ErrSequenceAborted
	}
	set := t.s.settings

	switch t.state {
	case TrialRest:
		_, t.span = StartTrialSpan(ctx, "experiment.trial", t.s.sessionID, t.item.Marker())
		t.s.logger.TrialStarted(ctx, t.round, t.item, t.origin)
		t.s.deps.Recorder.Event(scoredTrialEventCode)
		t.s.deps.Recorder.Event(t.item.Prompt)
		t.s.deps.Recorder.Event(t.item.Answer)
		if err := t.advance(TrialFixation); err != nil {
			return nil, err
		}
		return Rest(set.BlinkTime), nil

	case TrialFixation:
		if err := t.advance(TrialStimulus); err != nil {
			return nil, err
		}
		return Fixation(set.FixationTime), nil

	case TrialStimulus:
		t.s.deps.Recorder.Event(fmt.Sprintf("Trial: %d", t.round))
		t.item.PresentationCount++
		marker := t.item.Marker()
		step := Stimulus(t.item.Prompt, t.item.Answer, set.DisplayTime, set.DelayTime, marker).
			OnDeploy(func() {
				t.s.deps.Accumulator.Arm(marker)
				t.s.deps.Marker.SetMarker(marker)
			}).
			OnFinish(t.score)
		if err := t.advance(TrialResponse); err != nil {
			return nil, err
		}
		return step, nil

	case TrialResponse:
		t.response = ResponseCapture(t.item.Prompt, t.item.Answer, set.FeedbackTime)
		if err := t.advance(TrialFinishing); err != nil {
			return nil, err
		}
		return t.response, nil

	case TrialFinishing:
		if err := t.advance(TrialTerminal); err != nil {
			return nil, err
		}
		if step := t.finish(ctx); step != nil {
			return step, nil
		}
		return nil, ErrSequenceDone
	}

	return nil, ErrSequenceDone
}

// score runs when the stimulus and its delay have been shown.
func (t *TrialRunner) score(ctx context.Context) error {
	s := t.s
	if t.span != nil {
		ctx = trace.ContextWithSpan(ctx, t.span)
	}

	s.deps.Marker.SetMarker(sensor.NoMarker)
	s.deps.Accumulator.Disarm()
	window := sensor.Window(s.deps.Accumulator.Drain(), s.settings.DelayTime)
	t.samples = len(window)

	if s.deps.Filter.HasMotionArtifact(window) {
		t.noWrite = true
		s.mu.Lock()
		s.c.mainArtifacts++
		rolling := s.c.mainArtifacts
		s.mu.Unlock()

		s.deps.Recorder.Event(ArtifactEvent)
		err := fmt.Errorf("%w: marker %d", ErrArtifactDetected, t.item.Marker())
		if t.span != nil {
			t.span.RecordError(err)
		}
		s.logger.ArtifactDetected(ctx, PhaseTest, err, t.item.Marker(), len(window), rolling)
		s.metrics.RecordArtifact(ctx, PhaseTest)
		return nil
	}

	if s.settings.SaveTrialData {
		if err := s.deps.Recorder.TrialSamples(window, t.item.SourceIndex); err != nil {
			s.logger.Error(ctx, "writing trial samples failed", err)
		}
	}

	confidence, err := s.deps.Classifier.Predict(ctx, window)
	if err != nil {
		t.unavailable = true
		s.mu.Lock()
		s.c.classifierMisses++
		s.mu.Unlock()
		s.logger.ClassifierUnavailable(ctx, t.item, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err))
		s.metrics.RecordClassifierUnavailable(ctx)
		return nil
	}

	t.confidence = &confidence
	d := Decide(t.item.PresentationCount, t.item.LastConfidence, confidence, s.settings.decision())
	t.item.LastConfidence = d.LastConfidence
	t.decision = d

	s.mu.Lock()
	if d.Judged {
		s.c.judge = d.Judge
	}
	c := confidence
	s.c.lastConfidence = &c
	s.mu.Unlock()

	s.logger.Decided(ctx, t.item, confidence, d)
	s.metrics.RecordConfidence(ctx, confidence)
	return nil
}

// finish routes the item and returns the corrective instruction when the
// artifact counter overflowed.
func (t *TrialRunner) finish(ctx context.Context) *Step {
	s := t.s
	span := t.span
	t.span = nil
	if span != nil {
		ctx = trace.ContextWithSpan(ctx, span)
		defer span.End()
	}

	resp, ok := t.response.Response()
	correct := ok && resp.Correct

	s.mu.Lock()
	judge := s.c.judge
	s.mu.Unlock()

	to := Route(t.noWrite, correct, judge)
	s.release(to, t.item)
	t.committed = true

	outcome := t.outcome()
	s.mu.Lock()
	s.c.scored++
	if t.noWrite {
		s.c.artifactTrials++
	}
	if to == PoolDone {
		s.c.promotions++
	}
	instruct := s.c.mainArtifacts > s.settings.MainArtifactLimit
	if instruct {
		s.c.mainArtifacts = 0
	}
	s.mu.Unlock()

	s.logger.ItemRouted(ctx, t.item, t.origin, to, correct)
	s.metrics.RecordTrial(ctx, outcome)
	s.metrics.RecordRouted(ctx, t.origin, to)
	if to == PoolDone {
		s.metrics.RecordPromotion(ctx, t.item.PresentationCount)
	}
	if span != nil {
		span.SetStatus(codes.Ok, outcome)
	}

	rec := TrialRecord{
		Kind:              TrialKindScored,
		Round:             t.round,
		SourceIndex:       t.item.SourceIndex,
		Stimulus:          t.item.Prompt,
		Marker:            t.item.Marker(),
		Samples:           t.samples,
		Artifact:          t.noWrite,
		Confidence:        t.confidence,
		Judged:            t.decision.Judged,
		Correct:           &correct,
		From:              t.origin,
		To:                to,
		PresentationCount: t.item.PresentationCount,
	}
	if t.decision.Judged {
		rec.Judge = t.decision.Judge.String()
	}
	s.record(ctx, rec)

	if !instruct {
		return nil
	}
	s.logger.InstructionIssued(ctx, PhaseTest, s.settings.MainArtifactLimit+1)
	s.metrics.RecordInstruction(ctx, PhaseTest)
	return Instruction(MotionInstruction, s.settings.InstructionTime)
}

func (t *TrialRunner) outcome() string {
	switch {
	case t.noWrite:
		return outcomeArtifact
	case t.unavailable:
		return outcomeUnavailable
	case !t.decision.Judged:
		return outcomeWarmup
	case t.decision.Judge == JudgePromote:
		return outcomePromote
	default:
		return outcomeRetain
	}
}

// Abort implements Sequence. An uncommitted item is restored to its
// pre-trial state and returned to its origin pool.
func (t *TrialRunner) Abort() {
	if t.aborted {
		return
	}
	t.aborted = true

	s := t.s
	s.deps.Marker.SetMarker(sensor.NoMarker)
	s.deps.Accumulator.Disarm()
	s.deps.Accumulator.Drain()

	if !t.committed {
		t.snapshot.restore(t.item)
		s.release(t.origin, t.item)
		t.committed = true
		s.logger.ItemRestored(context.Background(), t.item, t.origin)
	}
	if t.span != nil {
		t.span.SetStatus(codes.Error, "aborted")
		t.span.End()
		t.span = nil
	}
}
