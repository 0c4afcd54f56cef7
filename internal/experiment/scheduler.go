package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bioadapt/internal/pool"
	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// Checkpoint and instruction texts.
const (
	ReadyForTraining     = "Ready for Training Study Phase"
	StartTraining        = "Start Training EEG Recording"
	StartStudy           = "Start Study Phase"
	StartTest            = "Start Test Phase"
	ReadyForNextBlock    = "Ready for next block"
	MotionInstruction    = "Please keep face movements to a minimum"
	TrainingDataWarning  = "Warning: too many motion artifacts during training"
	ArtifactEvent        = "Motion Artifact Detected"
	TrainingConcluded    = "Training Phase Concluded."
	restudyEventCode     = "5"
	scoredTrialEventCode = "7"
)

// Random is the session's source of randomness. *rand.Rand satisfies it.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// Dependencies are the collaborators a Scheduler drives.
type Dependencies struct {
	// Marker tags the sensor stream. Required.
	Marker MarkerSetter
	// Accumulator collects the samples of the stimulus on screen. Required.
	Accumulator *sensor.Accumulator
	// Classifier is trained in calibration and scores test trials. Required.
	Classifier Classifier
	// Filter flags motion artifacts. Nil never flags.
	Filter ArtifactFilter
	// Recorder writes the event and sample logs. Nil discards.
	Recorder Recorder
	// Sink receives trial records. Nil discards.
	Sink TrialSink
}

// Stimuli are the input lists of a session.
type Stimuli struct {
	Presentation []string
	Items        []LearningItem
	Class1       []string
	Class2       []string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger.
func WithLogger(l *Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithMetrics sets custom metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithRandom replaces the seeded generator.
func WithRandom(r Random) Option {
	return func(s *Scheduler) {
		s.rng = r
	}
}

// WithSessionID fixes the session id.
func WithSessionID(id string) Option {
	return func(s *Scheduler) {
		s.sessionID = id
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

type nopFilter struct{}

func (nopFilter) HasMotionArtifact([]sensor.Entry) bool { return false }

// counters is the free-running session state.
type counters struct {
	judge             Judge
	mainArtifacts     int
	trainingArtifacts int
	classArtifacts    map[int]int
	rounds            int
	scored            int
	promotions        int
	artifactTrials    int
	classifierMisses  int
	lastConfidence    *float64
}

// Scheduler owns the item pools and session state of one experiment run and
// builds the step sequences that drive it.
type Scheduler struct {
	settings  Settings
	deps      Dependencies
	rng       Random
	logger    *Logger
	metrics   *Metrics
	sessionID string
	now       func() time.Time
	startedAt time.Time

	// mu guards pools, intake, phase, inFlight and c. Sequences mutate them
	// from the stepper goroutine; Snapshot reads them from anywhere.
	mu       sync.Mutex
	pools    *Pools
	intake   *pool.RandomPool[*LearningItem]
	phase    Phase
	inFlight int
	c        counters
}

// NewScheduler creates a scheduler. The session judge starts at PROMOTE.
func NewScheduler(settings Settings, deps Dependencies, opts ...Option) (*Scheduler, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.Marker == nil || deps.Accumulator == nil || deps.Classifier == nil {
		return nil, fmt.Errorf("%w: marker, accumulator and classifier are required", ErrMissingDependency)
	}
	if deps.Filter == nil {
		deps.Filter = nopFilter{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Sink == nil {
		deps.Sink = nopSink{}
	}

	metrics, _ := NewMetrics(nil)
	s := &Scheduler{
		settings: settings,
		deps:     deps,
		logger:   NewLogger(nil),
		metrics:  metrics,
		now:      time.Now,
		phase:    PhaseIdle,
		c: counters{
			judge:          JudgePromote,
			classArtifacts: map[int]int{1: 0, 2: 0},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := settings.Seed
		if seed == 0 {
			seed = uint64(s.now().UnixNano())
		}
		s.rng = rand.New(rand.NewPCG(seed, seed^0x5deece66d))
	}
	if s.sessionID == "" {
		s.sessionID = uuid.NewString()
	}
	s.logger = s.logger.With(zap.String("session_id", s.sessionID))
	s.pools = NewPools(s.rng)
	s.intake = pool.New[*LearningItem](s.rng)
	return s, nil
}

// SessionID returns the session id.
func (s *Scheduler) SessionID() string { return s.sessionID }

// Settings returns the session settings.
func (s *Scheduler) Settings() Settings { return s.settings }

// Pools returns the item pools. Callers must not mutate them while a
// sequence is running.
func (s *Scheduler) Pools() *Pools { return s.pools }

// Judge returns the session judge.
func (s *Scheduler) Judge() Judge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.judge
}

// Session validates stimuli and returns the sequence of a whole session:
// intro, presentation list, calibration, study seeding and the test loop.
func (s *Scheduler) Session(ctx context.Context, stimuli Stimuli) (Sequence, error) {
	if len(stimuli.Items) == 0 {
		return nil, ErrNoItems
	}
	blocks, err := PartitionBlocks(stimuli.Class1, stimuli.Class2, s.settings.NumBlocks, s.settings.BlockSize, s.rng)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i := range stimuli.Items {
		item := stimuli.Items[i]
		s.intake.Add(&item)
	}
	s.startedAt = s.now()
	s.mu.Unlock()

	s.logger.SessionStarted(ctx, s.sessionID, len(stimuli.Items), s.settings.NumRounds)
	if s.settings.LogExperiment {
		for _, line := range settingsLines(s.settings) {
			s.deps.Recorder.Event(line)
		}
	}

	return Chain(
		s.enter(PhaseIntro, func(context.Context) (Sequence, error) {
			return Steps(Checkpoint(ReadyForTraining)), nil
		}),
		s.enter(PhasePresentation, func(context.Context) (Sequence, error) {
			steps := make([]*Step, 0, 2*len(stimuli.Presentation)+1)
			for _, p := range stimuli.Presentation {
				steps = append(steps, Text(p, s.settings.PresentationTime), Rest(s.settings.RestTime))
			}
			steps = append(steps, Checkpoint(StartTraining))
			return Steps(steps...), nil
		}),
		s.enter(PhaseTraining, func(context.Context) (Sequence, error) {
			return s.Training(blocks), nil
		}),
		s.trainingWarning,
		s.enter(PhaseStudy, func(context.Context) (Sequence, error) {
			return Chain(Fixed(Checkpoint(StartStudy)), func(context.Context) (Sequence, error) {
				return &seedSequence{s: s}, nil
			}), nil
		}),
		s.enter(PhaseTest, func(context.Context) (Sequence, error) {
			return Chain(Fixed(Checkpoint(StartTest)), func(context.Context) (Sequence, error) {
				return s.MainLoop(), nil
			}), nil
		}),
		s.enter(PhaseComplete, func(context.Context) (Sequence, error) {
			return nil, nil
		}),
	), nil
}

// enter wraps seg so the session phase changes when the chain reaches it.
func (s *Scheduler) enter(phase Phase, seg Segment) Segment {
	return func(ctx context.Context) (Sequence, error) {
		s.mu.Lock()
		s.phase = phase
		s.mu.Unlock()
		s.logger.PhaseStarted(ctx, phase)
		return seg(ctx)
	}
}

func (s *Scheduler) trainingWarning(ctx context.Context) (Sequence, error) {
	s.mu.Lock()
	one, two := s.c.classArtifacts[1], s.c.classArtifacts[2]
	s.mu.Unlock()

	limit := s.settings.ClassArtifactLimit
	if one <= limit && two <= limit {
		return nil, nil
	}
	s.logger.InstructionIssued(ctx, PhaseTraining, one+two)
	s.deps.Recorder.Event(TrainingDataWarning)
	return Steps(Instruction(TrainingDataWarning, s.settings.InstructionTime)), nil
}

// MainLoop returns the test-phase sequence of NumRounds weighted draws.
func (s *Scheduler) MainLoop() Sequence {
	return &mainLoop{s: s}
}

type mainLoop struct {
	s       *Scheduler
	round   int
	current Sequence
	aborted bool
}

func (m *mainLoop) Next(ctx context.Context) (*Step, error) {
	for {
		if m.aborted {
			return nil, ErrSequenceAborted
		}
		if m.current != nil {
			step, err := m.current.Next(ctx)
			if !errors.Is(err, ErrSequenceDone) {
				return step, err
			}
			m.current = nil
			m.s.roundFinished(m.round)
		}
		if m.round >= m.s.settings.NumRounds {
			return nil, ErrSequenceDone
		}

		name, item, err := m.s.draw(m.s.rng.Float64())
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", m.round, err)
		}
		index := m.round
		m.round++
		if name == PoolStudy {
			m.current = m.s.restudy(ctx, index, item)
		} else {
			m.current = m.s.Trial(item, name, index)
		}
	}
}

func (m *mainLoop) Abort() {
	if m.aborted {
		return
	}
	m.aborted = true
	if m.current != nil {
		m.current.Abort()
	}
}

// draw picks a pool for r and removes a random item from it. Items drawn for
// a scored trial count as in flight until released.
func (s *Scheduler) draw(r float64) (PoolName, *LearningItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := SelectPool(r, s.pools.Sizes())
	if err != nil {
		return "", nil, err
	}
	item, err := s.pools.Get(name).RemoveRandom()
	if err != nil {
		return "", nil, err
	}
	if name != PoolStudy {
		s.inFlight++
	}
	return name, item, nil
}

// release puts an in-flight item into a pool.
func (s *Scheduler) release(to PoolName, item *LearningItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools.Get(to).Add(item)
	if s.inFlight > 0 {
		s.inFlight--
	}
}

func (s *Scheduler) roundFinished(round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.rounds = round
}

// restudy moves a study item straight to quiz and re-presents it. It is not
// a scored trial.
func (s *Scheduler) restudy(ctx context.Context, round int, item *LearningItem) Sequence {
	s.mu.Lock()
	s.pools.Quiz.Add(item)
	s.mu.Unlock()

	s.deps.Recorder.Event(restudyEventCode)
	s.deps.Recorder.Event(item.Prompt + `\n` + item.Answer)
	s.metrics.RecordRouted(ctx, PoolStudy, PoolQuiz)
	s.record(ctx, TrialRecord{
		Kind:              TrialKindRestudy,
		Round:             round,
		SourceIndex:       item.SourceIndex,
		Stimulus:          item.Prompt,
		From:              PoolStudy,
		To:                PoolQuiz,
		PresentationCount: item.PresentationCount,
	})

	return Steps(
		Rest(s.settings.BlinkTime),
		Text(item.Prompt+"\n"+item.Answer, s.settings.PresentationTime),
	)
}

// seedSequence shows every input item once as prompt and answer and adds it
// to quiz.
type seedSequence struct {
	s       *Scheduler
	item    *LearningItem
	pending *Step
	aborted bool
}

func (q *seedSequence) Next(ctx context.Context) (*Step, error) {
	if q.aborted {
		return nil, ErrSequenceAborted
	}
	if q.pending != nil {
		step := q.pending
		q.pending = nil
		return step, nil
	}

	q.s.mu.Lock()
	item, err := q.s.intake.RemoveRandom()
	q.s.mu.Unlock()
	if errors.Is(err, pool.ErrEmptyPool) {
		return nil, ErrSequenceDone
	}
	if err != nil {
		return nil, err
	}

	q.item = item
	q.pending = Rest(q.s.settings.RestTime).OnFinish(func(ctx context.Context) error {
		q.s.mu.Lock()
		q.s.pools.Quiz.Add(item)
		q.s.mu.Unlock()
		q.item = nil
		q.s.record(ctx, TrialRecord{
			Kind:        TrialKindSeed,
			SourceIndex: item.SourceIndex,
			Stimulus:    item.Prompt,
			To:          PoolQuiz,
		})
		return nil
	})
	return Text(item.Prompt+"\n"+item.Answer, q.s.settings.PresentationTime), nil
}

func (q *seedSequence) Abort() {
	if q.aborted {
		return
	}
	q.aborted = true
	if q.item != nil {
		q.s.mu.Lock()
		q.s.intake.Add(q.item)
		q.s.mu.Unlock()
		q.item = nil
	}
}

// record stamps and forwards a trial record. Sink failures are logged.
func (s *Scheduler) record(ctx context.Context, rec TrialRecord) {
	rec.SessionID = s.sessionID
	if rec.At.IsZero() {
		rec.At = s.now()
	}
	if err := s.deps.Sink.RecordTrial(ctx, rec); err != nil {
		s.logger.Error(ctx, "recording trial failed", err)
	}
}

// Close finalises the session. runErr is the stepper's result; any error
// marks the session aborted.
func (s *Scheduler) Close(ctx context.Context, runErr error) SessionSummary {
	s.mu.Lock()
	if runErr != nil {
		s.phase = PhaseAborted
	}
	summary := SessionSummary{
		SessionID:         s.sessionID,
		Subject:           s.settings.SubjectName,
		Experiment:        s.settings.ExperimentName,
		Phase:             s.phase,
		RoundsCompleted:   s.c.rounds,
		Pools:             s.pools.Sizes(),
		ScoredTrials:      s.c.scored,
		Promotions:        s.c.promotions,
		ArtifactTrials:    s.c.artifactTrials,
		ClassifierMisses:  s.c.classifierMisses,
		TrainingArtifacts: map[int]int{1: s.c.classArtifacts[1], 2: s.c.classArtifacts[2]},
		StartedAt:         s.startedAt,
		FinishedAt:        s.now(),
	}
	s.mu.Unlock()

	if runErr != nil {
		summary.AbortReason = runErr.Error()
	}
	if err := s.deps.Sink.RecordSession(ctx, summary); err != nil {
		s.logger.Error(ctx, "recording session failed", err)
	}
	s.logger.SessionCompleted(ctx, summary)
	return summary
}

// Snapshot is a point-in-time view of the session for monitoring.
type Snapshot struct {
	SessionID         string      `json:"session_id"`
	Phase             Phase       `json:"phase"`
	Round             int         `json:"round"`
	NumRounds         int         `json:"num_rounds"`
	Pools             PoolSizes   `json:"pools"`
	Unseeded          int         `json:"unseeded"`
	InFlight          int         `json:"in_flight"`
	Judge             string      `json:"judge"`
	MainArtifacts     int         `json:"main_artifacts"`
	MainArtifactLimit int         `json:"main_artifact_limit"`
	TrainingArtifacts int         `json:"training_artifacts"`
	ClassArtifacts    map[int]int `json:"class_artifacts"`
	ScoredTrials      int         `json:"scored_trials"`
	Promotions        int         `json:"promotions"`
	ArtifactTrials    int         `json:"artifact_trials"`
	ClassifierMisses  int         `json:"classifier_misses"`
	LastConfidence    *float64    `json:"last_confidence,omitempty"`
}

// Snapshot returns the current session state. It is safe to call from any
// goroutine.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:         s.sessionID,
		Phase:             s.phase,
		Round:             s.c.rounds,
		NumRounds:         s.settings.NumRounds,
		Pools:             s.pools.Sizes(),
		Unseeded:          s.intake.Count(),
		InFlight:          s.inFlight,
		Judge:             s.c.judge.String(),
		MainArtifacts:     s.c.mainArtifacts,
		MainArtifactLimit: s.settings.MainArtifactLimit,
		TrainingArtifacts: s.c.trainingArtifacts,
		ClassArtifacts:    map[int]int{1: s.c.classArtifacts[1], 2: s.c.classArtifacts[2]},
		ScoredTrials:      s.c.scored,
		Promotions:        s.c.promotions,
		ArtifactTrials:    s.c.artifactTrials,
		ClassifierMisses:  s.c.classifierMisses,
	}
	if s.c.lastConfidence != nil {
		v := *s.c.lastConfidence
		snap.LastConfidence = &v
	}
	return snap
}

// settingsLines renders the settings header of the event log.
func settingsLines(s Settings) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "Experiment: %s\n", s.ExperimentName)
	fmt.Fprintf(&b, "Subject: %s\n", s.SubjectName)
	fmt.Fprintf(&b, "PresentationTime: %d\n", s.PresentationTime.Milliseconds())
	fmt.Fprintf(&b, "DisplayTime: %d\n", s.DisplayTime.Milliseconds())
	fmt.Fprintf(&b, "DelayTime: %d\n", s.DelayTime.Milliseconds())
	fmt.Fprintf(&b, "RestTime: %d\n", s.RestTime.Milliseconds())
	fmt.Fprintf(&b, "BlinkTime: %d\n", s.BlinkTime.Milliseconds())
	fmt.Fprintf(&b, "FixationTime: %d\n", s.FixationTime.Milliseconds())
	fmt.Fprintf(&b, "FeedbackTime: %d\n", s.FeedbackTime.Milliseconds())
	fmt.Fprintf(&b, "SpeakTime: %d\n", s.SpeakTime.Milliseconds())
	fmt.Fprintf(&b, "InstructionTime: %d\n", s.InstructionTime.Milliseconds())
	fmt.Fprintf(&b, "BlockSize: %d\n", s.BlockSize)
	fmt.Fprintf(&b, "NumBlocks: %d\n", s.NumBlocks)
	fmt.Fprintf(&b, "NumRounds: %d", s.NumRounds)
	return strings.Split(b.String(), "\n")
}
