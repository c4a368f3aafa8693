package main

import (
	"context"
	"fmt"

	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/dispatch"
	"github.com/schollz/imbolc/internal/eventlog"
	"github.com/schollz/imbolc/internal/reducer"
	"github.com/schollz/imbolc/internal/scbackend"
	"github.com/schollz/imbolc/internal/scheduler"
	"github.com/schollz/imbolc/internal/session"
	"github.com/schollz/imbolc/internal/supercollider"
)

// sampleRate and bufferSize match the teacher's own SuperCollider boot
// assumptions (internal/supercollider's embedded .scd targets a 48kHz
// server; scsynth's default block size is 1024 frames).
const (
	sampleRate  = 48000
	bufferSize  = 1024
	scsynthPort = 57110
)

// audioPlane bundles everything runLocal/runHeadlessServer need to keep the
// dispatcher's authoritative state and the audio thread's own projection
// (spec.md §8 invariant 7) in lockstep: a dispatch.Runtime, a scheduler
// ticking its own session.State copy fed from the same eventlog.Log, and
// the scsynth-backed backend.Backend both share.
type audioPlane struct {
	Backend   *scbackend.Backend
	Runtime   *dispatch.Runtime
	Scheduler *scheduler.Scheduler
	Log       *eventlog.Log
	Bridge    *eventlog.Bridge

	cancel context.CancelFunc
}

// startAudioPlane boots scsynth (via internal/supercollider, the same
// sclang-launch-and-poll helper the teacher's main.go drives), wraps it in
// an OSC backend, and wires dispatch.Runtime + internal/scheduler against
// st.
func startAudioPlane(st *session.State) (*audioPlane, error) {
	if err := supercollider.StartSuperCollider(); err != nil {
		return nil, fmt.Errorf("imbolc: starting audio backend: %w", err)
	}

	be := scbackend.New("127.0.0.1", scsynthPort)
	be.MarkRunning()

	log := eventlog.New()
	bridge := eventlog.NewBridge()
	sched := scheduler.New(be, log, bridge, sampleRate, bufferSize)
	sched.LoadState(st)
	log.PushCue(eventlog.CueRebuildRouting, 0)
	log.PushCue(eventlog.CueRebuildBusProcessing, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	return &audioPlane{
		Backend:   be,
		Runtime:   dispatch.NewFromState(st),
		Scheduler: sched,
		Log:       log,
		Bridge:    bridge,
		cancel:    cancel,
	}, nil
}

// Dispatch applies a to the authoritative runtime and pushes it onto the
// event log, so the scheduler's independent projection re-reduces the same
// action on its own state copy — the two-projection model spec.md §8
// invariant 7 describes.
func (p *audioPlane) Dispatch(a actions.DomainAction) reducer.Result {
	res := p.Runtime.Dispatch(a)
	p.Log.PushAction(a)
	return res
}

// Stop tears down the scheduler goroutine and, if this process started it,
// the scsynth process.
func (p *audioPlane) Stop() {
	p.cancel()
	supercollider.Cleanup()
}
