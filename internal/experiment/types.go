package experiment

import (
	"time"

	"github.com/fyrsmithlabs/bioadapt/internal/pool"
)

// LearningItem is one prompt/answer unit moving between pools.
type LearningItem struct {
	Prompt      string `json:"prompt"`
	Answer      string `json:"answer"`
	SourceIndex int    `json:"source_index"`
	// PresentationCount counts scored presentations.
	PresentationCount int `json:"presentation_count"`
	// LastConfidence is the reference confidence for the decision rule.
	LastConfidence float64 `json:"last_confidence"`
}

// Marker returns the stimulus marker for the item. Marker 0 is reserved for
// "no stimulus".
func (i *LearningItem) Marker() int {
	return i.SourceIndex + 1
}

// itemSnapshot holds the mutable fields of an item so an aborted trial can
// put it back untouched.
type itemSnapshot struct {
	presentationCount int
	lastConfidence    float64
}

func snapshotOf(i *LearningItem) itemSnapshot {
	return itemSnapshot{presentationCount: i.PresentationCount, lastConfidence: i.LastConfidence}
}

func (s itemSnapshot) restore(i *LearningItem) {
	i.PresentationCount = s.presentationCount
	i.LastConfidence = s.lastConfidence
}

// PoolName identifies one of the three item pools.
type PoolName string

const (
	PoolStudy PoolName = "study"
	PoolQuiz  PoolName = "quiz"
	PoolDone  PoolName = "done"
)

// Judge is the promotion verdict of the decision rule.
type Judge int

const (
	JudgeRetain Judge = iota
	JudgePromote
)

func (j Judge) String() string {
	if j == JudgePromote {
		return "promote"
	}
	return "retain"
}

// Pools holds the three item pools of a session.
type Pools struct {
	Study *pool.RandomPool[*LearningItem]
	Quiz  *pool.RandomPool[*LearningItem]
	Done  *pool.RandomPool[*LearningItem]
}

// NewPools creates empty pools drawing from rng.
func NewPools(rng pool.Source) *Pools {
	return &Pools{
		Study: pool.New[*LearningItem](rng),
		Quiz:  pool.New[*LearningItem](rng),
		Done:  pool.New[*LearningItem](rng),
	}
}

// Get returns the named pool.
func (p *Pools) Get(name PoolName) *pool.RandomPool[*LearningItem] {
	switch name {
	case PoolStudy:
		return p.Study
	case PoolQuiz:
		return p.Quiz
	case PoolDone:
		return p.Done
	}
	return nil
}

// Sizes returns the current pool sizes.
func (p *Pools) Sizes() PoolSizes {
	return PoolSizes{Study: p.Study.Count(), Quiz: p.Quiz.Count(), Done: p.Done.Count()}
}

// PoolSizes is a point-in-time count of every pool.
type PoolSizes struct {
	Study int `json:"study"`
	Quiz  int `json:"quiz"`
	Done  int `json:"done"`
}

// Of returns the size of the named pool.
func (s PoolSizes) Of(name PoolName) int {
	switch name {
	case PoolStudy:
		return s.Study
	case PoolQuiz:
		return s.Quiz
	case PoolDone:
		return s.Done
	}
	return 0
}

// Total returns the number of items across all pools.
func (s PoolSizes) Total() int {
	return s.Study + s.Quiz + s.Done
}

// TrialState is a TrialRunner state.
type TrialState string

const (
	TrialRest      TrialState = "rest"
	TrialFixation  TrialState = "fixation"
	TrialStimulus  TrialState = "stimulus"
	TrialResponse  TrialState = "response"
	TrialFinishing TrialState = "finishing"
	TrialTerminal  TrialState = "terminal"
)

// ValidTrialTransitions defines the only allowed trial progression.
var ValidTrialTransitions = map[TrialState][]TrialState{
	TrialRest:      {TrialFixation},
	TrialFixation:  {TrialStimulus},
	TrialStimulus:  {TrialResponse},
	TrialResponse:  {TrialFinishing},
	TrialFinishing: {TrialTerminal},
	TrialTerminal:  {},
}

// CanTransitionTo checks if a transition from s to target is valid.
func (s TrialState) CanTransitionTo(target TrialState) bool {
	for _, t := range ValidTrialTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Phase is the session phase shown on the monitor.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseIntro        Phase = "intro"
	PhasePresentation Phase = "presentation"
	PhaseTraining     Phase = "training"
	PhaseStudy        Phase = "study"
	PhaseTest         Phase = "test"
	PhaseComplete     Phase = "complete"
	PhaseAborted      Phase = "aborted"
)

// TrialKind labels a recorded trial.
type TrialKind string

const (
	TrialKindScored   TrialKind = "scored"
	TrialKindRestudy  TrialKind = "restudy"
	TrialKindTraining TrialKind = "training"
	TrialKindSeed     TrialKind = "seed"
)

// TrialRecord describes one finished trial.
type TrialRecord struct {
	SessionID         string    `json:"session_id" yaml:"session_id"`
	Kind              TrialKind `json:"kind" yaml:"kind"`
	Round             int       `json:"round" yaml:"round"`
	Block             int       `json:"block,omitempty" yaml:"block,omitempty"`
	SourceIndex       int       `json:"source_index" yaml:"source_index"`
	Stimulus          string    `json:"stimulus" yaml:"stimulus"`
	Marker            int       `json:"marker" yaml:"marker"`
	Samples           int       `json:"samples" yaml:"samples"`
	Artifact          bool      `json:"artifact" yaml:"artifact"`
	Confidence        *float64  `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Judge             string    `json:"judge,omitempty" yaml:"judge,omitempty"`
	Judged            bool      `json:"judged" yaml:"judged"`
	Correct           *bool     `json:"correct,omitempty" yaml:"correct,omitempty"`
	From              PoolName  `json:"from,omitempty" yaml:"from,omitempty"`
	To                PoolName  `json:"to,omitempty" yaml:"to,omitempty"`
	PresentationCount int       `json:"presentation_count" yaml:"presentation_count"`
	At                time.Time `json:"at" yaml:"at"`
}

// SessionSummary describes a finished or aborted session.
type SessionSummary struct {
	SessionID         string      `json:"session_id" yaml:"session_id"`
	Subject           string      `json:"subject" yaml:"subject"`
	Experiment        string      `json:"experiment" yaml:"experiment"`
	Phase             Phase       `json:"phase" yaml:"phase"`
	RoundsCompleted   int         `json:"rounds_completed" yaml:"rounds_completed"`
	Pools             PoolSizes   `json:"pools" yaml:"pools"`
	ScoredTrials      int         `json:"scored_trials" yaml:"scored_trials"`
	Promotions        int         `json:"promotions" yaml:"promotions"`
	ArtifactTrials    int         `json:"artifact_trials" yaml:"artifact_trials"`
	ClassifierMisses  int         `json:"classifier_misses" yaml:"classifier_misses"`
	TrainingArtifacts map[int]int `json:"training_artifacts" yaml:"training_artifacts"`
	AbortReason       string      `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`
	StartedAt         time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt        time.Time   `json:"finished_at" yaml:"finished_at"`
}
