package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/backend"
	"github.com/schollz/imbolc/internal/discovery"
	"github.com/schollz/imbolc/internal/mockbackend"
)

func TestStartupWaitModelQuitsOnceBackendReportsRunning(t *testing.T) {
	be := mockbackend.New()
	m := NewStartupWaitModel(be, 5*time.Second)

	next, cmd := m.Update(statusMsg(backend.StatusRunning))
	model := next.(StartupWaitModel)
	assert.True(t, model.Ready())
	assert.NotNil(t, cmd) // tea.Quit
}

func TestStartupWaitModelQuitsAfterTimeoutElapses(t *testing.T) {
	be := mockbackend.New()
	m := NewStartupWaitModel(be, 100*time.Millisecond)

	next, cmd := m.Update(tickMsg(0))
	model := next.(StartupWaitModel)
	assert.False(t, model.Ready())
	assert.NotNil(t, cmd)
	_ = cmd()
}

func TestDiscoverListModelNavigatesAndSelects(t *testing.T) {
	reg := discovery.NewLoopbackRegistry([]discovery.Endpoint{
		{Name: "a", Addr: "10.0.0.1:9999"},
		{Name: "b", Addr: "10.0.0.2:9999"},
	})
	m := NewDiscoverListModel(reg)

	entries, err := reg.Browse()
	assert.NoError(t, err)
	next, _ := m.Update(discoveredMsg(entries))
	model := next.(DiscoverListModel)
	assert.True(t, model.loaded)

	next, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model = next.(DiscoverListModel)
	assert.Equal(t, 1, model.cursor)

	next, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = next.(DiscoverListModel)
	assert.NotNil(t, model.Selected())
	assert.Equal(t, entries[model.cursor].Name, model.Selected().Name)
	assert.NotNil(t, cmd)
}

func TestDiscoverListModelIgnoresKeysBeforeLoaded(t *testing.T) {
	reg := discovery.NewLoopbackRegistry(nil)
	m := NewDiscoverListModel(reg)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model := next.(DiscoverListModel)
	assert.Nil(t, model.Selected())
	assert.Nil(t, cmd)
}
