package experiment

import (
	"fmt"
	"time"
)

// Settings holds the timing and scheduling parameters of a session.
type Settings struct {
	SubjectName    string
	ExperimentName string

	PresentationTime time.Duration
	DisplayTime      time.Duration
	DelayTime        time.Duration
	RestTime         time.Duration
	BlinkTime        time.Duration
	FixationTime     time.Duration
	FeedbackTime     time.Duration
	SpeakTime        time.Duration
	InstructionTime  time.Duration

	BlockSize int
	NumBlocks int
	NumRounds int

	SaveTrialData bool
	LogExperiment bool

	// Seed fixes the session's random draws. Zero seeds from the clock.
	Seed uint64

	PromotionThreshold    float64
	WarmupPresentations   int
	MainArtifactLimit     int
	TrainingArtifactLimit int
	ClassArtifactLimit    int
}

// DefaultSettings returns the stock protocol: 500ms phases, 1.5s
// instructions, one block of one label per class.
func DefaultSettings() Settings {
	return Settings{
		PresentationTime:      500 * time.Millisecond,
		DisplayTime:           500 * time.Millisecond,
		DelayTime:             500 * time.Millisecond,
		RestTime:              500 * time.Millisecond,
		BlinkTime:             500 * time.Millisecond,
		FixationTime:          500 * time.Millisecond,
		FeedbackTime:          500 * time.Millisecond,
		SpeakTime:             500 * time.Millisecond,
		InstructionTime:       1500 * time.Millisecond,
		BlockSize:             1,
		NumBlocks:             1,
		NumRounds:             100,
		PromotionThreshold:    0.4,
		WarmupPresentations:   4,
		MainArtifactLimit:     10,
		TrainingArtifactLimit: 12,
		ClassArtifactLimit:    24,
	}
}

// Validate checks the settings a session cannot run without.
func (s Settings) Validate() error {
	if s.BlockSize < 1 {
		return fmt.Errorf("%w: block size must be at least 1", ErrInvalidSettings)
	}
	if s.NumBlocks < 1 {
		return fmt.Errorf("%w: number of blocks must be at least 1", ErrInvalidSettings)
	}
	if s.NumRounds < 0 {
		return fmt.Errorf("%w: number of rounds cannot be negative", ErrInvalidSettings)
	}
	if s.PromotionThreshold < 0 {
		return fmt.Errorf("%w: promotion threshold cannot be negative", ErrInvalidSettings)
	}
	for name, d := range map[string]time.Duration{
		"presentation_time": s.PresentationTime,
		"display_time":      s.DisplayTime,
		"delay_time":        s.DelayTime,
		"rest_time":         s.RestTime,
		"blink_time":        s.BlinkTime,
		"fixation_time":     s.FixationTime,
		"feedback_time":     s.FeedbackTime,
		"speak_time":        s.SpeakTime,
		"instruction_time":  s.InstructionTime,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s cannot be negative", ErrInvalidSettings, name)
		}
	}
	return nil
}

func (s Settings) decision() DecisionParams {
	return DecisionParams{
		PromotionThreshold:  s.PromotionThreshold,
		WarmupPresentations: s.WarmupPresentations,
	}
}
