package netclient

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/netmsg"
	"github.com/schollz/imbolc/internal/session"
)

// fakeServer accepts one connection, reads a Hello, and replies with a
// caller-supplied Welcome so netclient.Dial can be tested in isolation from
// internal/netserver.
func fakeServer(t *testing.T, reply netmsg.ServerMessage) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var hello netmsg.ClientMessage
		if err := netmsg.ReadFrame(conn, &hello); err != nil {
			return
		}
		netmsg.WriteFrame(conn, reply)
		// Keep the connection open so the reader goroutine doesn't
		// immediately see EOF mid-test.
		drain := make([]byte, 4)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.Read(drain)
	}()
	return ln.Addr().String()
}

func TestDialStoresWelcomeStateAndToken(t *testing.T) {
	addr := fakeServer(t, netmsg.ServerMessage{
		Kind: netmsg.ServerWelcome,
		Welcome: &netmsg.WelcomePayload{
			State:        netmsg.NetworkState{Session: &session.SessionState{}, Instruments: session.NewInstrumentState()},
			Privilege:    netmsg.Privileged,
			SessionToken: "tok-123",
		},
	})

	c, err := Dial(addr, HelloOptions{ClientName: "tester"})
	assert.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "tok-123", c.SessionToken())
	assert.Equal(t, netmsg.Privileged, c.Privilege())
}

func TestApplyPatchDiscardsStaleSeq(t *testing.T) {
	c := &Client{state: netmsg.NetworkState{
		Session:     &session.SessionState{PianoRoll: session.NewPianoRoll()},
		Instruments: session.NewInstrumentState(),
	}}

	c.applyPatch(&netmsg.StatePatchUpdate{Seq: 5, PianoRoll: &session.PianoRoll{BPM: 140}})
	assert.Equal(t, float64(140), c.State().Session.PianoRoll.BPM)

	c.applyPatch(&netmsg.StatePatchUpdate{Seq: 5, PianoRoll: &session.PianoRoll{BPM: 90}})
	assert.Equal(t, float64(140), c.State().Session.PianoRoll.BPM, "stale/duplicate seq must not overwrite newer state")

	c.applyPatch(&netmsg.StatePatchUpdate{Seq: 6, PianoRoll: &session.PianoRoll{BPM: 90}})
	assert.Equal(t, float64(90), c.State().Session.PianoRoll.BPM)
}

func TestApplyPatchMergesInstrumentPatchWithoutTouchingOthers(t *testing.T) {
	instState := session.NewInstrumentState()
	a := session.NewInstrument(instState.NextID(), "a", session.Source{Kind: session.SourceOscillator})
	instState.Add(a)

	c := &Client{state: netmsg.NetworkState{
		Session:     &session.SessionState{},
		Instruments: instState,
	}}

	updated := a.Clone()
	updated.Name = "renamed"
	c.applyPatch(&netmsg.StatePatchUpdate{
		Seq:         1,
		Instruments: map[ids.InstrumentId]netmsg.InstrumentPatch{a.ID: {Instrument: updated}},
	})

	assert.Equal(t, "renamed", c.State().Instruments.Instruments[a.ID].Name)
	assert.Len(t, c.State().Instruments.Instruments, 1)
}

func TestApplyPatchStructuralInstrumentsReplacesWholeCollection(t *testing.T) {
	instState := session.NewInstrumentState()
	instState.Add(session.NewInstrument(instState.NextID(), "old", session.Source{Kind: session.SourceOscillator}))

	c := &Client{state: netmsg.NetworkState{Session: &session.SessionState{}, Instruments: instState}}

	fresh := session.NewInstrumentState()
	fresh.Add(session.NewInstrument(fresh.NextID(), "new", session.Source{Kind: session.SourceOscillator}))
	c.applyPatch(&netmsg.StatePatchUpdate{Seq: 1, StructuralInstruments: fresh})

	assert.Len(t, c.State().Instruments.Instruments, 1)
	for _, inst := range c.State().Instruments.Instruments {
		assert.Equal(t, "new", inst.Name)
	}
}
