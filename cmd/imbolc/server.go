package main

import (
	"fmt"
	"log"
	"time"

	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/config"
	"github.com/schollz/imbolc/internal/netmsg"
	"github.com/schollz/imbolc/internal/netserver"
	"github.com/schollz/imbolc/internal/persistence"
	"github.com/schollz/imbolc/internal/scheduler"
	"github.com/schollz/imbolc/internal/tui"
)

// runHeadlessServer implements spec.md §6's `--server` (and, with withTUI,
// `--server --tui`) modes: boot the audio backend, accept network clients,
// optionally show the local startup-wait screen.
func runHeadlessServer(cfg config.Config, projectPath string, withTUI bool) int {
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

	if withTUI {
		if !tui.RunStartupWait(plane.Backend, 15*time.Second) {
			log.Printf("imbolc: audio backend never reported ready")
			return 2
		}
	}

	srv := netserver.New(plane.Runtime)
	// The server already calls plane.Runtime.Dispatch itself; OnAction only
	// needs to replicate the action onto the scheduler's independent event
	// log so its own projection stays in lockstep (spec.md §8 invariant 7).
	srv.OnAction = func(a actions.DomainAction) { plane.Log.PushAction(a) }

	meteringDone := make(chan struct{})
	go forwardMetering(srv, plane.Scheduler, meteringDone)
	defer close(meteringDone)

	autosaver := persistence.NewAutoSaver(projectPath)
	defer autosaver.Stop()

	addr := fmt.Sprintf(":%d", cfg.NetworkPort)
	log.Printf("imbolc: serving on %s", addr)
	if err := srv.Serve(addr); err != nil {
		log.Printf("imbolc: %v", err)
		return 3
	}
	return 0
}

// forwardMetering relays scheduler.Feedback playhead/BPM updates to every
// connected client as netmsg.Metering, until done is closed.
func forwardMetering(srv *netserver.Server, sched *scheduler.Scheduler, done <-chan struct{}) {
	var m netmsg.Metering
	for {
		select {
		case <-done:
			return
		case f := <-sched.Feedback():
			switch f.Kind {
			case scheduler.FeedbackPlayheadPosition:
				m.Playhead = f.Tick
			case scheduler.FeedbackBpmUpdate:
				m.Bpm = f.Bpm
			case scheduler.FeedbackPeaks:
				m.PeakL = float32(f.PeakL)
				m.PeakR = float32(f.PeakR)
			default:
				continue
			}
			srv.PublishMetering(m)
		}
	}
}
