package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/imbolc/internal/config"
	"github.com/schollz/imbolc/internal/persistence"
	"github.com/schollz/imbolc/internal/tui"
)

// runLocal implements spec.md §6's default (no-flag) mode: boot the audio
// backend and run until interrupted. The teacher's full interactive tracker
// UI (internal/views, internal/model) is not part of this tree — see
// DESIGN.md's final-adaptation-pass note — so "run the UI locally" here means the startup-wait screen followed by a
// blocking run loop that autosaves on interrupt, same lifecycle a UI-driven
// run would have around the audio plane.
func runLocal(cfg config.Config, projectPath string) int {
	st, err := loadOrCreateProject(projectPath, cfg, sampleRate)
	if err != nil {
		log.Printf("imbolc: loading project: %v", err)
		return 1
	}

	plane, err := startAudioPlane(st)
	if err != nil {
		log.Printf("imbolc: %v", err)
		return 2
	}
	defer plane.Stop()

	if !tui.RunStartupWait(plane.Backend, 15*time.Second) {
		log.Printf("imbolc: audio backend never reported ready")
		return 2
	}

	autosaver := persistence.NewAutoSaver(projectPath)
	defer autosaver.Stop()
	autosaver.Trigger(plane.Runtime.State)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	if err := persistence.Save(projectPath, plane.Runtime.State); err != nil {
		log.Printf("imbolc: final save failed: %v", err)
	}
	return 0
}
