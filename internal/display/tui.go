package display

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

// ErrScreenClosed is returned by Present once the subject screen has exited.
var ErrScreenClosed = errors.New("subject screen closed")

// TUI renders steps on the terminal with bubbletea.
type TUI struct {
	program *tea.Program
	logger  *zap.Logger
	done    chan struct{}

	mu     sync.Mutex
	nextID int
}

// NewTUI creates the subject screen. Call Run to start it.
func NewTUI(title string, numRounds int, logger *zap.Logger, opts ...tea.ProgramOption) *TUI {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &TUI{
		program: tea.NewProgram(NewModel(title, numRounds), opts...),
		logger:  logger.Named("display"),
		done:    make(chan struct{}),
	}
}

// Run drives the screen until the subject quits or ctx is cancelled.
func (t *TUI) Run(ctx context.Context) error {
	defer close(t.done)

	stop := context.AfterFunc(ctx, t.program.Quit)
	defer stop()

	if _, err := t.program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// Done is closed once the screen has exited.
func (t *TUI) Done() <-chan struct{} { return t.done }

// Present implements experiment.Renderer.
func (t *TUI) Present(ctx context.Context, step *experiment.Step) error {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.mu.Unlock()

	reply := make(chan result, 1)
	t.program.Send(showMsg{id: id, step: step, reply: reply})

	select {
	case r := <-reply:
		if r.closed {
			return ErrScreenClosed
		}
		if step.WantsResponse() {
			step.Respond(r.given, r.correct)
		}
		return nil
	case <-ctx.Done():
		t.program.Send(cancelMsg{id: id})
		return ctx.Err()
	case <-t.done:
		return ErrScreenClosed
	}
}

// Alert implements experiment.Renderer.
func (t *TUI) Alert(_ context.Context, message string) error {
	t.logger.Warn("alert", zap.String("message", message))
	t.program.Send(alertMsg(message))
	return nil
}

// RecordTrial implements experiment.TrialSink and feeds the progress footer.
func (t *TUI) RecordTrial(_ context.Context, rec experiment.TrialRecord) error {
	t.program.Send(trialMsg(rec))
	return nil
}

// RecordSession implements experiment.TrialSink.
func (t *TUI) RecordSession(_ context.Context, summary experiment.SessionSummary) error {
	t.program.Send(sessionMsg(summary))
	return nil
}
