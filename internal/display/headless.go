package display

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

// HeadlessConfig configures a Headless renderer.
type HeadlessConfig struct {
	// Accuracy is the probability that a response is marked correct.
	Accuracy float64
	// TimeScale multiplies every step duration. Zero presents instantly.
	TimeScale float64
	// Seed fixes the answer draws. Zero seeds from the clock.
	Seed uint64
}

// Headless presents steps without a screen.
type Headless struct {
	cfg    HeadlessConfig
	logger *zap.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	counts  map[experiment.StepKind]int
	alerts  []string
	correct int
	wrong   int
}

// NewHeadless creates a headless renderer.
func NewHeadless(cfg HeadlessConfig, logger *zap.Logger) *Headless {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Headless{
		cfg:    cfg,
		logger: logger.Named("display"),
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
		counts: make(map[experiment.StepKind]int),
	}
}

// Present implements experiment.Renderer.
func (h *Headless) Present(ctx context.Context, step *experiment.Step) error {
	if d := time.Duration(float64(step.Total()) * h.cfg.TimeScale); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[step.Kind]++

	switch step.Kind {
	case experiment.StepCheckpoint:
		step.Respond("", true)
	case experiment.StepResponse:
		if h.rng.Float64() < h.cfg.Accuracy {
			h.correct++
			step.Respond(step.Answer, true)
		} else {
			h.wrong++
			step.Respond("", false)
		}
	}
	return nil
}

// Alert implements experiment.Renderer.
func (h *Headless) Alert(_ context.Context, message string) error {
	h.mu.Lock()
	h.alerts = append(h.alerts, message)
	h.mu.Unlock()
	h.logger.Warn("alert", zap.String("message", message))
	return nil
}

// Stats reports what was presented.
type Stats struct {
	Steps   map[experiment.StepKind]int
	Alerts  []string
	Correct int
	Wrong   int
}

// Stats returns a copy of the presentation counters.
func (h *Headless) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	steps := make(map[experiment.StepKind]int, len(h.counts))
	for k, v := range h.counts {
		steps[k] = v
	}
	return Stats{
		Steps:   steps,
		Alerts:  append([]string(nil), h.alerts...),
		Correct: h.correct,
		Wrong:   h.wrong,
	}
}
