// Package tui holds the minimal bubbletea status/progress surfaces
// spec.md keeps out of scope for the full UI but that still gate CLI
// startup (spec.md §6's `--server --tui` / `--discover` modes): a backend
// readiness wait screen and a discovered-server list.
//
// Grounded on the teacher's internal/supercollider/startup_progress.go
// (progress bar driven by a tea.Tick animation plus a readiness channel)
// and internal/project/selector.go (a list-with-cursor bubbletea model),
// generalized from SuperCollider-specific OSC readiness detection and
// local project discovery to backend.Backend.Status() polling and
// discovery.Browser results respectively.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schollz/imbolc/internal/backend"
)

type tickMsg float64
type statusMsg backend.ServerStatus

// StartupWaitModel shows a progress animation while polling be for
// StatusRunning, the same shape as the teacher's SuperCollider splash but
// backed by the AudioBackend contract instead of a hardcoded OSC listener.
type StartupWaitModel struct {
	progress progress.Model
	width    int
	height   int
	be       backend.Backend
	ready    bool
	timeout  time.Duration
	elapsed  time.Duration
}

// NewStartupWaitModel returns a model that polls be every 100ms, up to
// timeout, for StatusRunning.
func NewStartupWaitModel(be backend.Backend, timeout time.Duration) StartupWaitModel {
	p := progress.New(progress.WithDefaultGradient())
	p.Width = 50
	return StartupWaitModel{progress: p, be: be, timeout: timeout}
}

func (m StartupWaitModel) Init() tea.Cmd {
	return tea.Batch(m.pollStatus(), m.tick())
}

func (m StartupWaitModel) pollStatus() tea.Cmd {
	return func() tea.Msg {
		return statusMsg(m.be.Status())
	}
}

func (m StartupWaitModel) tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg(0)
	})
}

func (m StartupWaitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 10
		return m, nil

	case statusMsg:
		if backend.ServerStatus(msg) == backend.StatusRunning {
			m.ready = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.elapsed += 100 * time.Millisecond
		if m.elapsed >= m.timeout {
			return m, tea.Quit
		}
		frac := float64(m.elapsed) / float64(m.timeout)
		cmd := m.progress.SetPercent(frac)
		return m, tea.Batch(cmd, m.tick(), m.pollStatus())

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m StartupWaitModel) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Align(lipgloss.Center)
	stage := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Align(lipgloss.Center)

	label := "Waiting for audio backend..."
	if m.ready {
		label = "Audio backend ready ✓"
	}

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title.Render("Starting Imbolc"),
		"",
		m.progress.View(),
		"",
		stage.Render(label),
	)
	return lipgloss.NewStyle().Width(m.width).Height(m.height).
		Align(lipgloss.Center).AlignVertical(lipgloss.Center).Render(content)
}

// Ready reports whether the backend reached StatusRunning before timeout.
func (m StartupWaitModel) Ready() bool { return m.ready }

// RunStartupWait blocks until be reports StatusRunning or timeout elapses,
// returning whether it became ready.
func RunStartupWait(be backend.Backend, timeout time.Duration) bool {
	p := tea.NewProgram(NewStartupWaitModel(be, timeout), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return false
	}
	m, ok := final.(StartupWaitModel)
	return ok && m.Ready()
}
