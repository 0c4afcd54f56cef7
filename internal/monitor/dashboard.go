package monitor

import (
	"context"
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
	sparklineHeight = 3
	historySize     = 30
)

// Model is the operator dashboard. It polls a monitor server.
type Model struct {
	url        string
	interval   time.Duration
	client     *Client
	started    time.Time
	lastUpdate time.Time
	snapshot   experiment.Snapshot
	err        error
	quitting   bool

	confidenceHistory []float64
	doneHistory       []float64

	roundProgress progress.Model
	doneProgress  progress.Model
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling the monitor at url every interval.
func NewModel(url string, interval time.Duration) Model {
	return Model{
		url:      url,
		interval: interval,
		client:   NewClient(url),
		started:  time.Now(),
		roundProgress: progress.New(
			progress.WithGradient("#00ffff", "#ff00ff"),
			progress.WithWidth(40),
		),
		doneProgress: progress.New(
			progress.WithGradient("#00ff00", "#ffff00"),
			progress.WithWidth(40),
		),
		confidenceHistory: make([]float64, 0, historySize),
		doneHistory:       make([]float64, 0, historySize),
	}
}

// phaseBadge returns a colored badge for the session phase.
func phaseBadge(phase experiment.Phase) string {
	switch phase {
	case experiment.PhaseAborted:
		return errorStyle.Render("✗ ABORTED")
	case experiment.PhaseComplete:
		return healthyStyle.Render("✓ COMPLETE")
	case experiment.PhaseIdle, "":
		return dimStyle.Render("· IDLE")
	default:
		return healthyStyle.Render("● " + strings.ToUpper(string(phase)))
	}
}

// artifactBadge warns as the rolling artifact count nears the instruction
// limit.
func artifactBadge(rolling, limit int) string {
	if limit <= 0 || rolling*2 < limit {
		return healthyStyle.Render("[✓]")
	} else if rolling < limit {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time
type snapshotMsg experiment.Snapshot
type errMsg error

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchSnapshot(m.client),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshot(client *Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		snap, err := client.Session(ctx)
		if err != nil {
			return errMsg(err)
		}
		return snapshotMsg(snap)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchSnapshot(m.client)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchSnapshot(m.client),
		)

	case snapshotMsg:
		snap := experiment.Snapshot(msg)
		// Only new scored trials extend the history.
		if snap.ScoredTrials != m.snapshot.ScoredTrials && snap.LastConfidence != nil {
			m.confidenceHistory = appendToHistory(m.confidenceHistory, *snap.LastConfidence)
		}
		m.doneHistory = appendToHistory(m.doneHistory, float64(snap.Pools.Done))
		m.snapshot = snap
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render("bioadapt Session Monitor")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot reach the monitor server") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.url) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Start the session with monitor.enabled: true") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

func (m Model) renderDashboard() string {
	s := m.snapshot
	var content string

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}

	header := headerStyle.Render(" bioadapt Monitor ")
	headerLine := fmt.Sprintf("%s   %s   %s   %s",
		phaseBadge(s.Phase),
		dimStyle.Render("Watching:"),
		valueStyle.Render(FormatDuration(time.Since(m.started))),
		dimStyle.Render(lastUpdateStr))

	content += header + "\n"
	content += headerLine + "\n"
	content += dimStyle.Render("  session "+s.SessionID) + "\n"

	content += "\n" + sectionStyle.Render("┃ Progress") + "\n"
	roundRatio := 0.0
	if s.NumRounds > 0 {
		roundRatio = float64(s.Round) / float64(s.NumRounds)
		if roundRatio > 1 {
			roundRatio = 1
		}
	}
	content += labelStyle.Render("  Rounds: ") +
		m.roundProgress.ViewAs(roundRatio) +
		" " + dimStyle.Render(FormatRounds(s.Round, s.NumRounds)) + "\n"

	total := s.Pools.Total() + s.InFlight + s.Unseeded
	doneRatio := 0.0
	if total > 0 {
		doneRatio = float64(s.Pools.Done) / float64(total)
	}
	content += labelStyle.Render("  Mastered: ") +
		m.doneProgress.ViewAs(doneRatio) +
		" " + dimStyle.Render(FormatPercentage(doneRatio)) + "\n"

	content += "\n" + sectionStyle.Render("┃ Pools") + "\n"
	content += labelStyle.Render("  study ") + valueStyle.Render(fmt.Sprintf("%-4d", s.Pools.Study)) +
		labelStyle.Render("  quiz ") + valueStyle.Render(fmt.Sprintf("%-4d", s.Pools.Quiz)) +
		labelStyle.Render("  done ") + valueStyle.Render(fmt.Sprintf("%-4d", s.Pools.Done)) +
		"   " + createSparkline(m.doneHistory) + "\n"
	if s.Unseeded > 0 || s.InFlight > 0 {
		content += dimStyle.Render(fmt.Sprintf("  unseeded %d  in flight %d", s.Unseeded, s.InFlight)) + "\n"
	}

	content += "\n" + sectionStyle.Render("┃ Classifier") + "\n"
	content += labelStyle.Render("  Confidence: ") +
		valueStyle.Render(FormatConfidence(s.LastConfidence)) +
		labelStyle.Render("  Judge: ") + valueStyle.Render(s.Judge) +
		"   " + createSparkline(m.confidenceHistory) + "\n"
	content += labelStyle.Render("  Scored: ") + valueStyle.Render(fmt.Sprint(s.ScoredTrials)) +
		labelStyle.Render("  Promoted: ") + valueStyle.Render(fmt.Sprint(s.Promotions)) +
		labelStyle.Render("  Unavailable: ") + valueStyle.Render(fmt.Sprint(s.ClassifierMisses)) + "\n"

	content += "\n" + sectionStyle.Render("┃ Motion Artifacts") + "\n"
	content += labelStyle.Render("  Test: ") + valueStyle.Render(fmt.Sprint(s.ArtifactTrials)) +
		labelStyle.Render("  rolling ") + valueStyle.Render(fmt.Sprint(s.MainArtifacts)) +
		" " + artifactBadge(s.MainArtifacts, s.MainArtifactLimit) + "\n"
	content += labelStyle.Render("  Training: ") +
		dimStyle.Render("class 1=") + valueStyle.Render(fmt.Sprint(s.ClassArtifacts[1])) +
		dimStyle.Render("  class 2=") + valueStyle.Render(fmt.Sprint(s.ClassArtifacts[2])) + "\n"

	content += footerStyle.Render("[q] quit  [r] refresh") + "\n"
	return containerStyle.Render(content)
}
