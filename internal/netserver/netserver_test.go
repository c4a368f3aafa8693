package netserver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/dispatch"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/netclient"
	"github.com/schollz/imbolc/internal/netmsg"
	"github.com/schollz/imbolc/internal/session"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	runtime := dispatch.New()
	srv := New(runtime)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	addr := ln.Addr().String()

	go srv.ServeListener(ln)
	t.Cleanup(srv.Stop)
	return srv, addr
}

func TestHelloHandshakeReturnsWelcomeWithSessionToken(t *testing.T) {
	_, addr := startServer(t)

	c, err := netclient.Dial(addr, netclient.HelloOptions{ClientName: "alice"})
	assert.NoError(t, err)
	defer c.Close()

	assert.NotEmpty(t, c.SessionToken())
	assert.Equal(t, netmsg.Normal, c.Privilege())
}

func TestClientClaimingInstrumentCanEditItOthersCannot(t *testing.T) {
	srv, addr := startServer(t)
	srv.runtime.Dispatch(actions.DomainAction{Kind: actions.InstrumentAdd, Source: session.Source{Kind: session.SourceOscillator}})
	instID := srv.lastAddedInstrument()

	owner, err := netclient.Dial(addr, netclient.HelloOptions{ClientName: "owner", RequestedInstruments: []ids.InstrumentId{instID}})
	assert.NoError(t, err)
	defer owner.Close()

	other, err := netclient.Dial(addr, netclient.HelloOptions{ClientName: "other"})
	assert.NoError(t, err)
	defer other.Close()

	time.Sleep(20 * time.Millisecond) // let admit() settle before dispatching

	assert.NoError(t, owner.SendAction(actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: instID, Float: 0.5}))

	denied := make(chan struct{}, 1)
	other.OnMessage = func(msg netmsg.ServerMessage) {
		if msg.Kind == netmsg.ServerOwnershipDenied {
			denied <- struct{}{}
		}
	}
	assert.NoError(t, other.SendAction(actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: instID, Float: 0.9}))

	select {
	case <-denied:
	case <-time.After(2 * time.Second):
		t.Fatal("expected OwnershipDenied for non-owning client")
	}
}

func TestSinglePrivilegedClientAtATime(t *testing.T) {
	_, addr := startServer(t)

	first, err := netclient.Dial(addr, netclient.HelloOptions{ClientName: "first", RequestedPrivilege: netmsg.Privileged})
	assert.NoError(t, err)
	defer first.Close()
	assert.Equal(t, netmsg.Privileged, first.Privilege())

	second, err := netclient.Dial(addr, netclient.HelloOptions{ClientName: "second", RequestedPrivilege: netmsg.Privileged})
	assert.NoError(t, err)
	defer second.Close()
	assert.Equal(t, netmsg.Normal, second.Privilege())

	denied := make(chan struct{}, 1)
	second.OnMessage = func(msg netmsg.ServerMessage) {
		if msg.Kind == netmsg.ServerPrivilegeDenied {
			denied <- struct{}{}
		}
	}
	assert.NoError(t, second.RequestPrivilege())
	select {
	case <-denied:
	case <-time.After(2 * time.Second):
		t.Fatal("expected PrivilegeDenied for second requester")
	}
}

func TestOnActionFiresWithEveryDispatchedAction(t *testing.T) {
	srv, addr := startServer(t)

	seen := make(chan actions.DomainAction, 1)
	srv.OnAction = func(a actions.DomainAction) { seen <- a }

	c, err := netclient.Dial(addr, netclient.HelloOptions{ClientName: "watcher"})
	assert.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.SendAction(actions.DomainAction{Kind: actions.InstrumentAdd, Source: session.Source{Kind: session.SourceOscillator}}))

	select {
	case a := <-seen:
		assert.Equal(t, actions.InstrumentAdd, a.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected OnAction to fire for the dispatched action")
	}
}

func TestPatchBroadcastCarriesOnlyDirtySubsystem(t *testing.T) {
	srv, addr := startServer(t)
	srv.runtime.Dispatch(actions.DomainAction{Kind: actions.InstrumentAdd, Source: session.Source{Kind: session.SourceOscillator}})
	instID := srv.lastAddedInstrument()

	c, err := netclient.Dial(addr, netclient.HelloOptions{ClientName: "watcher", RequestedInstruments: []ids.InstrumentId{instID}})
	assert.NoError(t, err)
	defer c.Close()

	patched := make(chan *netmsg.StatePatchUpdate, 4)
	c.OnMessage = func(msg netmsg.ServerMessage) {
		if msg.Kind == netmsg.ServerStatePatchUpdate {
			patched <- msg.Patch
		}
	}

	assert.NoError(t, c.SendAction(actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: instID, Float: 0.42}))

	select {
	case p := <-patched:
		assert.Nil(t, p.Mixer)
		assert.Nil(t, p.PianoRoll)
		assert.Nil(t, p.Arrangement)
		assert.Len(t, p.Instruments, 1)
		assert.Contains(t, p.Instruments, instID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a patch broadcast")
	}
}
