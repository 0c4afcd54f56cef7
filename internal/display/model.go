package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 2
	historySize     = 30
	mask            = "########"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	stimulusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true).
			Align(lipgloss.Center).
			Padding(2, 4)

	instructionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("226")).
				Bold(true).
				Align(lipgloss.Center).
				Padding(2, 4)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Align(lipgloss.Center).
			Padding(2, 4)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	correctStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	wrongStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// result is what the model reports back to Present.
type result struct {
	given   string
	correct bool
	closed  bool
}

type showMsg struct {
	id    int
	step  *experiment.Step
	reply chan<- result
}

type cancelMsg struct{ id int }

type stepTickMsg struct {
	id    int
	stage int
}

type alertMsg string

type trialMsg experiment.TrialRecord

type sessionMsg experiment.SessionSummary

// current is the step on screen.
type current struct {
	showMsg
	masked   bool
	revealed bool
	feedback *result
}

// Model is the subject screen.
type Model struct {
	title     string
	cur       *current
	alert     string
	quitting  bool
	numRounds int
	scored    int
	round     int
	promoted  int
	summary   *experiment.SessionSummary

	confidenceHistory []float64
	roundProgress     progress.Model
}

// NewModel creates the subject screen model.
func NewModel(title string, numRounds int) Model {
	return Model{
		title:     title,
		numRounds: numRounds,
		roundProgress: progress.New(
			progress.WithGradient("#00ffff", "#ff00ff"),
			progress.WithWidth(40),
		),
		confidenceHistory: make([]float64, 0, historySize),
	}
}

func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func stepTick(id, stage int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return stepTickMsg{id: id, stage: stage}
	})
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// finish replies to Present and clears the screen.
func (m Model) finish(r result) Model {
	m.cur.reply <- r
	m.cur = nil
	return m
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case showMsg:
		m.cur = &current{showMsg: msg}
		m.alert = ""
		if msg.step.WantsResponse() {
			return m, nil
		}
		return m, stepTick(msg.id, 0, msg.step.Duration)

	case stepTickMsg:
		if m.cur == nil || m.cur.id != msg.id {
			return m, nil
		}
		step := m.cur.step
		switch {
		case step.Kind == experiment.StepStimulus && msg.stage == 0 && step.Delay > 0:
			m.cur.masked = true
			return m, stepTick(msg.id, 1, step.Delay)
		case step.Kind == experiment.StepResponse:
			if m.cur.feedback == nil {
				return m, nil
			}
			return m.finish(*m.cur.feedback), nil
		default:
			return m.finish(result{}), nil
		}

	case cancelMsg:
		if m.cur != nil && m.cur.id == msg.id {
			m.cur = nil
		}
		return m, nil

	case alertMsg:
		m.alert = string(msg)
		return m, nil

	case trialMsg:
		rec := experiment.TrialRecord(msg)
		if rec.Kind == experiment.TrialKindScored || rec.Kind == experiment.TrialKindRestudy {
			m.round = rec.Round + 1
		}
		if rec.Kind == experiment.TrialKindScored {
			m.scored++
			if rec.To == experiment.PoolDone {
				m.promoted++
			}
			if rec.Confidence != nil {
				m.confidenceHistory = appendToHistory(m.confidenceHistory, *rec.Confidence)
			}
		}
		return m, nil

	case sessionMsg:
		summary := experiment.SessionSummary(msg)
		m.summary = &summary
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.quitting = true
		if m.cur != nil {
			m = m.finish(result{closed: true})
		}
		return m, tea.Quit
	}
	if m.cur == nil {
		return m, nil
	}

	confirm := key == " " || key == "space" || key == "enter"
	switch m.cur.step.Kind {
	case experiment.StepCheckpoint:
		if confirm {
			return m.finish(result{correct: true}), nil
		}
	case experiment.StepResponse:
		if m.cur.feedback != nil {
			return m, nil
		}
		switch {
		case confirm:
			m.cur.revealed = true
		case key == "y" || key == "n":
			r := result{correct: key == "y"}
			if r.correct {
				r.given = m.cur.step.Answer
			}
			m.cur.revealed = true
			m.cur.feedback = &r
			return m, stepTick(m.cur.id, 1, m.cur.step.Duration)
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(" "+m.title+" ") + "\n\n")
	b.WriteString(m.renderBody() + "\n")
	b.WriteString(m.renderFooter())
	return containerStyle.Render(b.String())
}

func (m Model) renderBody() string {
	if m.alert != "" {
		return alertStyle.Render(m.alert)
	}
	if m.cur == nil {
		if m.summary != nil {
			return instructionStyle.Render(fmt.Sprintf("Session %s\n%d rounds", m.summary.Phase, m.summary.RoundsCompleted))
		}
		return stimulusStyle.Render(" ")
	}

	step := m.cur.step
	switch step.Kind {
	case experiment.StepRest:
		return stimulusStyle.Render(" ")
	case experiment.StepFixation:
		return stimulusStyle.Render("+")
	case experiment.StepStimulus:
		if m.cur.masked {
			return stimulusStyle.Render(mask)
		}
		return stimulusStyle.Render(step.Text)
	case experiment.StepInstruction:
		return instructionStyle.Render(step.Text)
	case experiment.StepCheckpoint:
		return stimulusStyle.Render(step.Text) + "\n" + dimStyle.Render("[space] continue")
	case experiment.StepResponse:
		body := stimulusStyle.Render(step.Text + "\n?")
		if m.cur.revealed {
			body = stimulusStyle.Render(step.Text + "\n" + step.Answer)
		}
		switch {
		case m.cur.feedback == nil:
			return body + "\n" + dimStyle.Render("[space] reveal  [y] correct  [n] incorrect")
		case m.cur.feedback.correct:
			return body + "\n" + correctStyle.Render("✓ correct")
		default:
			return body + "\n" + wrongStyle.Render("✗ incorrect")
		}
	default:
		return stimulusStyle.Render(step.Text)
	}
}

func (m Model) renderFooter() string {
	ratio := 0.0
	if m.numRounds > 0 {
		ratio = float64(m.round) / float64(m.numRounds)
		if ratio > 1 {
			ratio = 1
		}
	}
	line := dimStyle.Render("round ") + m.roundProgress.ViewAs(ratio) +
		dimStyle.Render(fmt.Sprintf(" %d/%d  scored %d  mastered %d", m.round, m.numRounds, m.scored, m.promoted))

	spark := dimStyle.Render("no confidence yet")
	if len(m.confidenceHistory) > 0 {
		s := sparkline.New(sparklineWidth, sparklineHeight)
		for _, v := range m.confidenceHistory {
			s.Push(v)
		}
		spark = sparklineStyle.Render(s.View())
	}
	return line + "\n" + dimStyle.Render("confidence ") + spark + "\n" + dimStyle.Render("[ctrl+c] abort")
}
