package experiment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// scriptedRandom returns queued draws; IntN always picks the first element.
type scriptedRandom struct {
	floats []float64
}

func (r *scriptedRandom) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRandom) IntN(int) int { return 0 }

type fakeMarker struct {
	mu      sync.Mutex
	markers []int
}

func (m *fakeMarker) SetMarker(v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = append(m.markers, v)
}

type fakeClassifier struct {
	mu         sync.Mutex
	confidence []float64
	predictErr error
	trainErr   error
	trained    [][]sensor.Entry
	predicted  [][]sensor.Entry
	predicts   int
}

func (c *fakeClassifier) Train(_ context.Context, trial []sensor.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trained = append(c.trained, trial)
	return c.trainErr
}

func (c *fakeClassifier) Predict(_ context.Context, trial []sensor.Entry) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.predicts++
	c.predicted = append(c.predicted, trial)
	if c.predictErr != nil {
		return 0, c.predictErr
	}
	if len(c.confidence) == 0 {
		return 0.5, nil
	}
	v := c.confidence[0]
	if len(c.confidence) > 1 {
		c.confidence = c.confidence[1:]
	}
	return v, nil
}

func (c *fakeClassifier) predictCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.predicts
}

type fakeFilter struct {
	flag    bool
	calls   int
	windows []int
}

func (f *fakeFilter) HasMotionArtifact(entries []sensor.Entry) bool {
	f.calls++
	f.windows = append(f.windows, len(entries))
	return f.flag
}

type fakeRecorder struct {
	mu       sync.Mutex
	events   []string
	trials   int
	training int
}

func (r *fakeRecorder) Event(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, line)
}

func (r *fakeRecorder) TrialSamples([]sensor.Entry, int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trials++
	return nil
}

func (r *fakeRecorder) TrainingSamples([]sensor.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.training++
	return nil
}

type fakeSink struct {
	mu       sync.Mutex
	trials   []TrialRecord
	sessions []SessionSummary
}

func (s *fakeSink) RecordTrial(_ context.Context, rec TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trials = append(s.trials, rec)
	return nil
}

func (s *fakeSink) RecordSession(_ context.Context, summary SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, summary)
	return nil
}

func (s *fakeSink) kinds(kind TrialKind) []TrialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TrialRecord
	for _, rec := range s.trials {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

// fakeRenderer shows steps instantly. Stimulus steps feed one tagged entry
// into acc; response steps are answered by correct.
type fakeRenderer struct {
	acc     *sensor.Accumulator
	correct func(step *Step) bool
	onStep  func(ctx context.Context, step *Step) error

	steps  []*Step
	alerts []string
}

func (r *fakeRenderer) Present(ctx context.Context, step *Step) error {
	r.steps = append(r.steps, step)
	if r.onStep != nil {
		if err := r.onStep(ctx, step); err != nil {
			return err
		}
	}
	switch step.Kind {
	case StepStimulus:
		if r.acc != nil {
			r.acc.Ingest([]sensor.Entry{{
				Marker:            step.Marker,
				RelativeTimestamp: 0,
				Channels:          []float64{1, 2, 3},
			}})
		}
	case StepResponse:
		ok := true
		if r.correct != nil {
			ok = r.correct(step)
		}
		step.Respond(step.Answer, ok)
	case StepCheckpoint:
		step.Respond("", true)
	}
	return nil
}

func (r *fakeRenderer) Alert(_ context.Context, message string) error {
	r.alerts = append(r.alerts, message)
	return nil
}

func (r *fakeRenderer) kinds(kind StepKind) []*Step {
	var out []*Step
	for _, s := range r.steps {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type fakeHealth struct {
	up atomic.Bool
}

func newFakeHealth() *fakeHealth {
	h := &fakeHealth{}
	h.up.Store(true)
	return h
}

func (h *fakeHealth) Connected() bool { return h.up.Load() }

// harness bundles a scheduler with its fakes.
type harness struct {
	sched      *Scheduler
	acc        *sensor.Accumulator
	marker     *fakeMarker
	classifier *fakeClassifier
	filter     *fakeFilter
	recorder   *fakeRecorder
	sink       *fakeSink
	renderer   *fakeRenderer
	rng        *scriptedRandom
}

func fastSettings() Settings {
	s := DefaultSettings()
	s.PresentationTime = 0
	s.DisplayTime = 0
	s.DelayTime = 0
	s.RestTime = 0
	s.BlinkTime = 0
	s.FixationTime = 0
	s.FeedbackTime = 0
	s.SpeakTime = 0
	s.InstructionTime = 0
	return s
}

func newHarness(t *testing.T, settings Settings, draws ...float64) *harness {
	h := &harness{
		acc:        sensor.NewAccumulator(),
		marker:     &fakeMarker{},
		classifier: &fakeClassifier{},
		filter:     &fakeFilter{},
		recorder:   &fakeRecorder{},
		sink:       &fakeSink{},
		rng:        &scriptedRandom{floats: draws},
	}
	h.renderer = &fakeRenderer{acc: h.acc}
	sched, err := NewScheduler(settings, Dependencies{
		Marker:      h.marker,
		Accumulator: h.acc,
		Classifier:  h.classifier,
		Filter:      h.filter,
		Recorder:    h.recorder,
		Sink:        h.sink,
	}, WithRandom(h.rng), WithSessionID("test-session"))
	require.NoError(t, err)
	h.sched = sched
	return h
}

func (h *harness) run(ctx context.Context, seq Sequence) error {
	return NewStepper(h.renderer, nil).Run(ctx, seq)
}

func (h *harness) events() []string {
	h.recorder.mu.Lock()
	defer h.recorder.mu.Unlock()
	return append([]string(nil), h.recorder.events...)
}
