// Package midiio adapts hardware MIDI output to Imbolc's timestamped note
// I/O consumer contract (spec.md §4.6): the scheduler mirrors
// ScheduledEvents to outboard MIDI gear the same way it mirrors them to
// scsynth over OSC, through the Router below.
//
// Grounded on the teacher's internal/midiconnector (gomidi/v2 + rtmididrv
// device lookup/open/close and per-device notesOn bookkeeping) and
// internal/midiplayer (note-on/off with cancellable duration timers),
// generalized from the teacher's config-line `midi NAME CHANNEL` parsing
// and package-level global registry to an ids.InstrumentId-keyed Router a
// Scheduler holds as a field instead of a process-wide singleton, so
// multiple Schedulers (e.g. under test) don't share device state. The
// underlying OS MIDI handles remain a genuine process-wide resource
// (mirroring the teacher's devicesOpen map) and stay package-level here.
package midiio

import (
	"fmt"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// OutputDevice is the minimal contract Router needs from a MIDI output.
// HardwareDevice implements it over gomidi/v2; tests substitute a fake.
type OutputDevice interface {
	Send(status, data1, data2 uint8) error
	Close() error
}

var (
	mu          sync.Mutex
	openDevices = map[string]drivers.Out{}
)

// ListDevices returns the names of every MIDI output port currently visible
// to the system. Enumeration UI itself is out of scope for the core
// (spec.md §1), but a consumer still needs to resolve a configured name to
// a live port.
func ListDevices() []string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

// resolveName matches a short or partial device name against the live
// enumeration: truncate to the first three words, then try exact, prefix,
// and substring matches in that order (teacher's filterName).
func resolveName(name string) (string, error) {
	words := strings.Fields(name)
	if len(words) > 3 {
		words = words[:3]
	}
	truncated := strings.Join(words, " ")

	names := ListDevices()
	for _, n := range names {
		if strings.EqualFold(n, truncated) {
			return n, nil
		}
	}
	for _, n := range names {
		if strings.HasPrefix(strings.ToLower(n), strings.ToLower(truncated)) {
			return n, nil
		}
	}
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), strings.ToLower(truncated)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("midiio: no device matching %q", name)
}

// HardwareDevice is a real MIDI output port opened via gomidi/v2's rtmidi
// driver, shared process-wide by resolved name since the OS port handle is
// itself a singleton resource.
type HardwareDevice struct {
	name string
}

// OpenHardwareDevice resolves name against the live port enumeration and
// opens (or reuses) its shared output handle.
func OpenHardwareDevice(name string) (*HardwareDevice, error) {
	resolved, err := resolveName(name)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := openDevices[resolved]; !ok {
		out, err := midi.FindOutPort(resolved)
		if err != nil {
			return nil, fmt.Errorf("midiio: find port %q: %w", resolved, err)
		}
		if err := out.Open(); err != nil {
			return nil, fmt.Errorf("midiio: open port %q: %w", resolved, err)
		}
		openDevices[resolved] = out
	}
	return &HardwareDevice{name: resolved}, nil
}

func (d *HardwareDevice) Send(status, data1, data2 uint8) error {
	mu.Lock()
	out, ok := openDevices[d.name]
	mu.Unlock()
	if !ok {
		return fmt.Errorf("midiio: device %q not open", d.name)
	}
	return out.Send([]byte{status, data1, data2})
}

func (d *HardwareDevice) Close() error {
	mu.Lock()
	defer mu.Unlock()
	out, ok := openDevices[d.name]
	if !ok {
		return nil
	}
	err := out.Close()
	delete(openDevices, d.name)
	return err
}

// CloseAll closes every currently open hardware device, for process
// shutdown (mirrors the teacher's midiconnector.Close).
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for name, out := range openDevices {
		out.Close()
		delete(openDevices, name)
	}
}
