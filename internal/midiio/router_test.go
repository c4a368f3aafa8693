package midiio

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type sentMessage struct {
	status, data1, data2 uint8
}

type fakeDevice struct {
	mu     sync.Mutex
	sent   []sentMessage
	closed bool
}

func (f *fakeDevice) Send(status, data1, data2 uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{status, data1, data2})
	return nil
}

func (f *fakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDevice) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func newTestRouter(devices map[string]*fakeDevice) *Router {
	return newRouter(func(name string) (OutputDevice, error) {
		return devices[name], nil
	})
}

func TestParseRouteConvertsOneIndexedChannel(t *testing.T) {
	device, channel, err := ParseRoute("midi synthA 5")
	assert.NoError(t, err)
	assert.Equal(t, "synthA", device)
	assert.Equal(t, uint8(4), channel)
}

func TestParseRouteRejectsMalformedLines(t *testing.T) {
	_, _, err := ParseRoute("midi synthA")
	assert.Error(t, err)

	_, _, err = ParseRoute("osc synthA 5")
	assert.Error(t, err)

	_, _, err = ParseRoute("midi synthA 17")
	assert.Error(t, err)
}

func TestConfigureOpensDeviceOnceAndRoutesNoteOn(t *testing.T) {
	dev := &fakeDevice{}
	r := newTestRouter(map[string]*fakeDevice{"synthA": dev})

	assert.NoError(t, r.Configure(1, "synthA", 0))
	assert.NoError(t, r.NoteOn(1, 60, 100, time.Hour))

	msgs := dev.messages()
	assert.Len(t, msgs, 1)
	assert.Equal(t, uint8(0x90), msgs[0].status)
	assert.Equal(t, uint8(60), msgs[0].data1)
	assert.Equal(t, uint8(100), msgs[0].data2)
}

func TestNoteOnIgnoredForUnroutedInstrument(t *testing.T) {
	r := newTestRouter(map[string]*fakeDevice{})
	assert.NoError(t, r.NoteOn(99, 60, 100, time.Hour))
}

func TestNoteOnRetriggerSendsImmediateNoteOffThenNewNoteOn(t *testing.T) {
	dev := &fakeDevice{}
	r := newTestRouter(map[string]*fakeDevice{"synthA": dev})
	assert.NoError(t, r.Configure(1, "synthA", 2))

	assert.NoError(t, r.NoteOn(1, 60, 100, time.Hour))
	assert.NoError(t, r.NoteOn(1, 60, 90, time.Hour))

	msgs := dev.messages()
	assert.Len(t, msgs, 3)
	assert.Equal(t, uint8(0x82), msgs[1].status, "retrigger must send an immediate note-off on the same channel first")
	assert.Equal(t, uint8(0x92), msgs[2].status)
}

func TestNoteOnSchedulesNoteOffAfterDuration(t *testing.T) {
	dev := &fakeDevice{}
	r := newTestRouter(map[string]*fakeDevice{"synthA": dev})
	assert.NoError(t, r.Configure(1, "synthA", 0))

	assert.NoError(t, r.NoteOn(1, 60, 100, 10*time.Millisecond))

	assert.Eventually(t, func() bool {
		msgs := dev.messages()
		return len(msgs) == 2 && msgs[1].status == 0x80
	}, time.Second, 5*time.Millisecond)
}

func TestStopAllCancelsPendingNoteOffsAndSendsImmediateOnes(t *testing.T) {
	dev := &fakeDevice{}
	r := newTestRouter(map[string]*fakeDevice{"synthA": dev})
	assert.NoError(t, r.Configure(1, "synthA", 0))

	assert.NoError(t, r.NoteOn(1, 60, 100, time.Hour))
	assert.NoError(t, r.NoteOn(1, 64, 100, time.Hour))
	r.StopAll(1)

	msgs := dev.messages()
	assert.Len(t, msgs, 4) // two note-ons, two note-offs from StopAll

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, dev.messages(), 4, "cancelled note-off timers must not fire a duplicate note-off")
}

func TestUnconfigureStopsNotesAndDropsRoute(t *testing.T) {
	dev := &fakeDevice{}
	r := newTestRouter(map[string]*fakeDevice{"synthA": dev})
	assert.NoError(t, r.Configure(1, "synthA", 0))
	assert.NoError(t, r.NoteOn(1, 60, 100, time.Hour))

	r.Unconfigure(1)
	assert.NoError(t, r.NoteOn(1, 60, 100, time.Hour), "instrument is no longer routed, NoteOn is a no-op")
	assert.Len(t, dev.messages(), 2, "only the original note-on and StopAll's note-off, no further traffic")
}

func TestCloseClosesEveryOpenedDevice(t *testing.T) {
	devA := &fakeDevice{}
	devB := &fakeDevice{}
	r := newTestRouter(map[string]*fakeDevice{"a": devA, "b": devB})
	assert.NoError(t, r.Configure(1, "a", 0))
	assert.NoError(t, r.Configure(2, "b", 0))

	assert.NoError(t, r.Close())
	assert.True(t, devA.closed)
	assert.True(t, devB.closed)
}
