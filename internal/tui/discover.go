package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schollz/imbolc/internal/discovery"
)

// DiscoverListModel lists servers found via a discovery.Browser and lets
// the user pick one, mirroring the teacher's project/selector.go list-
// with-cursor interaction generalized from local save files to network
// endpoints (spec.md §4.8 Discovery: "the core treats discovered
// endpoints identically to user-supplied addresses", so selecting one
// here produces the same Endpoint a `--connect` flag would).
type DiscoverListModel struct {
	browser  discovery.Browser
	entries  []discovery.Endpoint
	cursor   int
	loaded   bool
	selected *discovery.Endpoint
	width    int
}

type discoveredMsg []discovery.Endpoint

// NewDiscoverListModel returns a model that browses b on Init.
func NewDiscoverListModel(b discovery.Browser) DiscoverListModel {
	return DiscoverListModel{browser: b}
}

func (m DiscoverListModel) Init() tea.Cmd {
	return func() tea.Msg {
		entries, _ := m.browser.Browse()
		return discoveredMsg(entries)
	}
}

func (m DiscoverListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case discoveredMsg:
		m.entries = msg
		m.loaded = true
		return m, nil

	case tea.KeyMsg:
		if !m.loaded {
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.entries) > 0 {
				m.selected = &m.entries[m.cursor]
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m DiscoverListModel) View() string {
	if !m.loaded {
		return lipgloss.NewStyle().Padding(1).Render("Browsing for Imbolc servers...")
	}

	title := lipgloss.NewStyle().Bold(true).Render("Discovered servers")
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	if len(m.entries) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("  none found\n"))
	}
	for i, e := range m.entries {
		style := lipgloss.NewStyle().Padding(0, 1)
		if i == m.cursor {
			style = style.Background(lipgloss.Color("7")).Foreground(lipgloss.Color("0"))
		}
		b.WriteString(style.Render(fmt.Sprintf("%-20s %s", e.Name, e.Addr)))
		b.WriteString("\n")
	}
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("↑/↓: navigate • enter: select • q: quit"))
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// Selected returns the chosen endpoint, if any.
func (m DiscoverListModel) Selected() *discovery.Endpoint { return m.selected }

// RunDiscoverList runs the list and returns the user's chosen Endpoint, or
// false if none was selected.
func RunDiscoverList(b discovery.Browser) (discovery.Endpoint, bool) {
	p := tea.NewProgram(NewDiscoverListModel(b), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return discovery.Endpoint{}, false
	}
	m, ok := final.(DiscoverListModel)
	if !ok || m.Selected() == nil {
		return discovery.Endpoint{}, false
	}
	return *m.Selected(), true
}
