package midiio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/schollz/imbolc/internal/ids"
)

const (
	noteOnStatus  = 0x90
	noteOffStatus = 0x80
)

// Route binds one instrument to a MIDI output device and channel.
type Route struct {
	Device  string
	Channel uint8 // 0-indexed, 0-15
}

type openFunc func(name string) (OutputDevice, error)

type noteState struct {
	cancel context.CancelFunc
}

// Router mirrors scheduled notes to outboard MIDI gear alongside scsynth,
// the timestamped-event consumer contract spec.md §4.6 names for
// internal/midiio. One Router per Scheduler; not a package-level
// singleton, so independent Schedulers (tests included) never share
// routing or note-tracking state.
type Router struct {
	mu     sync.Mutex
	open   openFunc
	routes map[ids.InstrumentId]Route
	ports  map[string]OutputDevice
	notes  map[ids.InstrumentId]map[int]*noteState
}

// New returns a Router that opens hardware devices on demand via
// OpenHardwareDevice.
func New() *Router {
	return newRouter(func(name string) (OutputDevice, error) { return OpenHardwareDevice(name) })
}

func newRouter(open openFunc) *Router {
	return &Router{
		open:   open,
		routes: make(map[ids.InstrumentId]Route),
		ports:  make(map[string]OutputDevice),
		notes:  make(map[ids.InstrumentId]map[int]*noteState),
	}
}

// ParseRoute parses a project config line of the form "midi NAME CHANNEL"
// (1-indexed channel) into a device name and a 0-indexed channel, the same
// grammar the teacher's midiplayer.Parse accepted.
func ParseRoute(line string) (device string, channel uint8, err error) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) < 3 {
		return "", 0, fmt.Errorf("midiio: invalid route line %q, expected 'midi NAME CHANNEL'", line)
	}
	if parts[0] != "midi" {
		return "", 0, fmt.Errorf("midiio: route line must start with 'midi', got %q", parts[0])
	}
	n, convErr := strconv.Atoi(parts[2])
	if convErr != nil {
		return "", 0, fmt.Errorf("midiio: invalid channel %q: %w", parts[2], convErr)
	}
	n--
	if n < 0 || n > 15 {
		return "", 0, fmt.Errorf("midiio: channel must be 1-16, got %d", n+1)
	}
	return parts[1], uint8(n), nil
}

// Configure binds instrument to a device/channel, opening the device if it
// isn't already open.
func (r *Router) Configure(instrument ids.InstrumentId, device string, channel uint8) error {
	if channel > 15 {
		return fmt.Errorf("midiio: channel must be 0-15, got %d", channel)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ports[device]; !ok {
		out, err := r.open(device)
		if err != nil {
			return err
		}
		r.ports[device] = out
	}
	r.routes[instrument] = Route{Device: device, Channel: channel}
	return nil
}

// Unconfigure stops instrument's sounding notes and removes its route.
func (r *Router) Unconfigure(instrument ids.InstrumentId) {
	r.StopAll(instrument)
	r.mu.Lock()
	delete(r.routes, instrument)
	r.mu.Unlock()
}

// NoteOn sends a note-on for instrument and schedules its matching note-off
// after duration elapses. A note already sounding at the same pitch is cut
// immediately and retriggered, mirroring the teacher's midiplayer.NoteOn
// overlap rule. Instruments with no configured route are silently ignored
// — MIDI output is optional per instrument.
func (r *Router) NoteOn(instrument ids.InstrumentId, pitch, velocity int, duration time.Duration) error {
	r.mu.Lock()
	route, routed := r.routes[instrument]
	if !routed {
		r.mu.Unlock()
		return nil
	}
	out := r.ports[route.Device]

	perInst, ok := r.notes[instrument]
	if !ok {
		perInst = make(map[int]*noteState)
		r.notes[instrument] = perInst
	}
	if existing, ok := perInst[pitch]; ok {
		existing.cancel()
		_ = out.Send(noteOffStatus|route.Channel, uint8(pitch), 0)
	}
	r.mu.Unlock()

	if err := out.Send(noteOnStatus|route.Channel, uint8(pitch), uint8(velocity)); err != nil {
		return fmt.Errorf("midiio: note on: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.notes[instrument][pitch] = &noteState{cancel: cancel}
	r.mu.Unlock()

	go r.awaitNoteOff(ctx, instrument, pitch, duration)
	return nil
}

func (r *Router) awaitNoteOff(ctx context.Context, instrument ids.InstrumentId, pitch int, duration time.Duration) {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	r.mu.Lock()
	route, routed := r.routes[instrument]
	if perInst, ok := r.notes[instrument]; ok {
		delete(perInst, pitch)
	}
	var out OutputDevice
	if routed {
		out = r.ports[route.Device]
	}
	r.mu.Unlock()

	if routed && out != nil {
		_ = out.Send(noteOffStatus|route.Channel, uint8(pitch), 0)
	}
}

// StopAll immediately sends note-off for every note currently sounding on
// instrument's route and cancels their pending note-off timers.
func (r *Router) StopAll(instrument ids.InstrumentId) {
	r.mu.Lock()
	route, routed := r.routes[instrument]
	perInst := r.notes[instrument]
	var out OutputDevice
	if routed {
		out = r.ports[route.Device]
	}
	pitches := make([]int, 0, len(perInst))
	for pitch, ns := range perInst {
		ns.cancel()
		pitches = append(pitches, pitch)
	}
	r.notes[instrument] = make(map[int]*noteState)
	r.mu.Unlock()

	if !routed || out == nil {
		return
	}
	for _, pitch := range pitches {
		_ = out.Send(noteOffStatus|route.Channel, uint8(pitch), 0)
	}
}

// Devices lists the MIDI output ports currently visible to the system.
func (r *Router) Devices() []string { return ListDevices() }

// Close closes every device this Router opened.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, out := range r.ports {
		if err := out.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.ports, name)
	}
	return firstErr
}
