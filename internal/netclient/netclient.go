// Package netclient is the LAN counterpart to internal/netserver: it dials
// a host, performs the Hello/Welcome handshake, keeps a local NetworkState
// projection up to date from StatePatchUpdate/FullStateSync frames, and
// lets the caller submit DomainActions (spec.md §4.8).
//
// Grounded on rustyguts-bken's client package (client/transport.go's
// single-reader-goroutine-plus-callback shape for an always-on control
// connection) adapted to Imbolc's patch-application model instead of a
// chat event stream.
package netclient

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/netmsg"
	"github.com/schollz/imbolc/internal/session"
)

// dialTimeout bounds the initial TCP connect + handshake.
const dialTimeout = 5 * time.Second

// Client is a connected network client's local view of the authoritative
// session: NetworkState kept current from server patches, plus the
// identity (ClientId, SessionToken, PrivilegeLevel) the Welcome handshake
// assigned it.
type Client struct {
	conn         net.Conn
	writeMu      sync.Mutex
	stateMu      sync.Mutex
	state        netmsg.NetworkState
	privilege    netmsg.PrivilegeLevel
	sessionToken string
	lastSeq      uint64

	// OnMessage, if set, is invoked (on the reader goroutine) with every
	// ServerMessage after any NetworkState projection update has already
	// been applied, so a UI can react to ownership/privilege/metering
	// events without polling.
	OnMessage func(netmsg.ServerMessage)

	closeOnce sync.Once
	done      chan struct{}
}

// HelloOptions configures the initial handshake.
type HelloOptions struct {
	ClientName           string
	RequestedInstruments []ids.InstrumentId
	RequestedPrivilege   netmsg.PrivilegeLevel
	SessionToken         string // non-empty to attempt a reconnect
}

// Dial connects to addr, performs the Hello/Welcome handshake, and starts
// the background reader goroutine. The returned Client is ready for
// SendAction/RequestPrivilege calls.
func Dial(addr string, opts HelloOptions) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("netclient: dial %s: %w", addr, err)
	}

	c := &Client{conn: conn, done: make(chan struct{})}

	hello := netmsg.ClientMessage{
		Kind:                 netmsg.ClientHello,
		ClientName:           opts.ClientName,
		RequestedInstruments: opts.RequestedInstruments,
		RequestedPrivilege:   opts.RequestedPrivilege,
		SessionToken:         opts.SessionToken,
	}
	conn.SetDeadline(time.Now().Add(dialTimeout))
	if err := netmsg.WriteFrame(conn, hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("netclient: send hello: %w", err)
	}

	var reply netmsg.ServerMessage
	if err := netmsg.ReadFrame(conn, &reply); err != nil {
		conn.Close()
		return nil, fmt.Errorf("netclient: read welcome: %w", err)
	}
	if reply.Kind == netmsg.ServerReconnectFailed {
		// Server rejected the token; it still owes us a fresh Welcome
		// without a second Hello, matching netserver's admit() fallthrough.
		if err := netmsg.ReadFrame(conn, &reply); err != nil {
			conn.Close()
			return nil, fmt.Errorf("netclient: read welcome after failed reconnect: %w", err)
		}
	}
	conn.SetDeadline(time.Time{})

	switch reply.Kind {
	case netmsg.ServerWelcome:
		c.state = reply.Welcome.State
		c.privilege = reply.Welcome.Privilege
		c.sessionToken = reply.Welcome.SessionToken
	case netmsg.ServerReconnectSuccessful:
		// Full sync follows immediately on the same stream.
		var syncMsg netmsg.ServerMessage
		if err := netmsg.ReadFrame(conn, &syncMsg); err != nil || syncMsg.Kind != netmsg.ServerFullStateSync {
			conn.Close()
			return nil, fmt.Errorf("netclient: expected full sync after reconnect")
		}
		c.state = *syncMsg.FullSync
		c.sessionToken = opts.SessionToken
	default:
		conn.Close()
		return nil, fmt.Errorf("netclient: unexpected handshake reply kind %v", reply.Kind)
	}

	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var msg netmsg.ServerMessage
		if err := netmsg.ReadFrame(c.conn, &msg); err != nil {
			return
		}
		switch msg.Kind {
		case netmsg.ServerStatePatchUpdate:
			c.applyPatch(msg.Patch)
		case netmsg.ServerFullStateSync:
			c.stateMu.Lock()
			c.state = *msg.FullSync
			c.stateMu.Unlock()
		case netmsg.ServerPrivilegeGranted:
			c.stateMu.Lock()
			c.privilege = netmsg.Privileged
			c.stateMu.Unlock()
		case netmsg.ServerPrivilegeRevoked:
			c.stateMu.Lock()
			c.privilege = netmsg.Normal
			c.stateMu.Unlock()
		}
		if c.OnMessage != nil {
			c.OnMessage(msg)
		}
	}
}

// applyPatch merges a StatePatchUpdate into the local NetworkState
// projection, discarding patches at or behind the last seq seen (spec.md
// §4.8's monotonic seq rule).
func (c *Client) applyPatch(p *netmsg.StatePatchUpdate) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if p.Seq <= c.lastSeq {
		return
	}
	c.lastSeq = p.Seq

	if p.Session != nil {
		c.state.Session = p.Session
	}
	if p.PianoRoll != nil {
		c.state.Session.PianoRoll = p.PianoRoll
	}
	if p.Arrangement != nil {
		c.state.Session.Arrangement = p.Arrangement
	}
	if p.Automation != nil {
		c.state.Session.Automation = p.Automation
	}
	if p.Mixer != nil {
		c.state.Session.Mixer = p.Mixer
	}
	if p.StructuralInstruments != nil {
		c.state.Instruments = p.StructuralInstruments
	} else if len(p.Instruments) > 0 {
		if c.state.Instruments == nil {
			c.state.Instruments = session.NewInstrumentState()
		}
		for id, patch := range p.Instruments {
			if _, existed := c.state.Instruments.Instruments[id]; !existed {
				c.state.Instruments.Order = append(c.state.Instruments.Order, id)
			}
			c.state.Instruments.Instruments[id] = patch.Instrument
		}
	}
	if p.PrivilegedClient != nil {
		if !p.PrivilegedClient.Changed {
			// absent: no change, nothing to do
		} else if p.PrivilegedClient.Cleared {
			c.state.PrivilegedClient = nil
		} else {
			c.state.PrivilegedClient = &netmsg.PrivilegedClientInfo{ClientID: p.PrivilegedClient.ClientID}
		}
	}
}

// State returns a snapshot of the current NetworkState projection. The
// returned value shares structure with the client's internal state and
// must be treated as read-only by the caller.
func (c *Client) State() netmsg.NetworkState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Privilege returns the client's current privilege level.
func (c *Client) Privilege() netmsg.PrivilegeLevel {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.privilege
}

// SessionToken returns the token to present on reconnect.
func (c *Client) SessionToken() string {
	return c.sessionToken
}

// SendAction submits a DomainAction to the server.
func (c *Client) SendAction(a actions.DomainAction) error {
	return c.send(netmsg.ClientMessage{Kind: netmsg.ClientAction, Action: a})
}

// RequestPrivilege asks the server to grant this client the Privileged
// level.
func (c *Client) RequestPrivilege() error {
	return c.send(netmsg.ClientMessage{Kind: netmsg.ClientRequestPrivilege})
}

// Ping round-trips liveness with the server.
func (c *Client) Ping() error {
	return c.send(netmsg.ClientMessage{Kind: netmsg.ClientPing})
}

func (c *Client) send(msg netmsg.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return netmsg.WriteFrame(c.conn, msg)
}

// Close sends Goodbye and closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.send(netmsg.ClientMessage{Kind: netmsg.ClientGoodbye})
		err = c.conn.Close()
	})
	<-c.done
	return err
}
