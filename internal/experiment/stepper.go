package experiment

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DisconnectAlert is shown when the headset connection drops.
const DisconnectAlert = "Lost connection to headset!"

// Stepper drives a Sequence against a Renderer on the calling goroutine.
type Stepper struct {
	renderer Renderer
	health   HealthChecker
	logger   *Logger

	mu          sync.Mutex
	cancelStep  context.CancelFunc
	interrupted bool
	presented   int
}

// StepperOption configures a Stepper.
type StepperOption func(*Stepper)

// WithStepperLogger sets the logger.
func WithStepperLogger(l *Logger) StepperOption {
	return func(s *Stepper) {
		s.logger = l
	}
}

// NewStepper creates a stepper. health may be nil when no headset is used.
func NewStepper(renderer Renderer, health HealthChecker, opts ...StepperOption) *Stepper {
	s := &Stepper{renderer: renderer, health: health, logger: NewLogger(nil)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interrupt cancels the step being presented and makes Run treat the session
// as disconnected. Wire it to the headset's disconnect callback.
func (s *Stepper) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupted = true
	if s.cancelStep != nil {
		s.cancelStep()
	}
}

// Presented returns how many steps were shown.
func (s *Stepper) Presented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

func (s *Stepper) lost() bool {
	s.mu.Lock()
	interrupted := s.interrupted
	s.mu.Unlock()
	return interrupted || (s.health != nil && !s.health.Connected())
}

// Run presents every step of seq. Before each step it checks ctx and the
// headset connection; after each step it runs the finish hook. A dropped
// connection aborts seq, raises an alert and returns ErrSensorDisconnected.
// A step that was cut short by the drop does not run its finish hook.
func (s *Stepper) Run(ctx context.Context, seq Sequence) error {
	for {
		if err := ctx.Err(); err != nil {
			seq.Abort()
			return err
		}
		if s.lost() {
			return s.disconnect(ctx, seq)
		}

		step, err := seq.Next(ctx)
		if errors.Is(err, ErrSequenceDone) {
			return nil
		}
		if err != nil {
			seq.Abort()
			return err
		}

		step.Deploy()
		if err := s.present(ctx, step); err != nil {
			if s.lost() {
				return s.disconnect(ctx, seq)
			}
			seq.Abort()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("presenting %s step: %w", step.Kind, err)
		}
		if s.lost() {
			return s.disconnect(ctx, seq)
		}

		if err := step.Finish(ctx); err != nil {
			seq.Abort()
			return fmt.Errorf("finishing %s step: %w", step.Kind, err)
		}
	}
}

func (s *Stepper) present(ctx context.Context, step *Step) error {
	stepCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelStep = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancelStep = nil
		s.presented++
		s.mu.Unlock()
		cancel()
	}()
	return s.renderer.Present(stepCtx, step)
}

func (s *Stepper) disconnect(ctx context.Context, seq Sequence) error {
	seq.Abort()
	s.logger.SessionAborted(ctx, ErrSensorDisconnected.Error())
	if err := s.renderer.Alert(context.WithoutCancel(ctx), DisconnectAlert); err != nil {
		s.logger.Error(ctx, "alert failed", err)
	}
	return ErrSensorDisconnected
}
