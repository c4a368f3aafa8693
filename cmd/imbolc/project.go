package main

import (
	"os"
	"path/filepath"

	"github.com/schollz/imbolc/internal/config"
	"github.com/schollz/imbolc/internal/persistence"
	"github.com/schollz/imbolc/internal/session"
)

// defaultProjectPath returns spec.md §6's "OS config dir" default project
// location.
func defaultProjectPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "imbolc", "project.imbolc"), nil
}

// newProjectState returns a fresh session with cfg.DefaultBusCount buses
// and cfg.LookaheadMs/SampleRate mirrored into Settings, matching what
// internal/config documents as the project-creation-time snapshot of
// startup configuration (spec.md §9 Config objects).
func newProjectState(cfg config.Config, sampleRate int) *session.State {
	st := session.NewState()
	st.Session.Settings.DefaultBusCount = int(cfg.DefaultBusCount)
	st.Session.Settings.LookaheadMs = int(cfg.LookaheadMs)
	st.Session.Settings.SampleRate = sampleRate
	for i := 1; i < int(cfg.DefaultBusCount); i++ {
		st.Session.Mixer.AddBus("Bus")
	}
	return st
}

// loadOrCreateProject loads path if it exists, otherwise returns a fresh
// project seeded from cfg.
func loadOrCreateProject(path string, cfg config.Config, sampleRate int) (*session.State, error) {
	if _, err := os.Stat(path); err == nil {
		return persistence.Load(path)
	}
	return newProjectState(cfg, sampleRate), nil
}
