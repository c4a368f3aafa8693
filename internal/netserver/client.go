package netserver

import (
	"net"
	"time"

	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/netmsg"
)

// frameWriteTimeout is spec.md §5's 10ms per-frame write timeout; a client
// whose socket can't keep up times out rather than blocking the writer
// thread.
const frameWriteTimeout = 10 * time.Millisecond

// stallThreshold is how many consecutive write timeouts mark a client
// stalled and trigger suspension, preserving its ownership/privilege for
// reconnect (spec.md §4.8).
const stallThreshold = 5

// clientConn is one connected client: its socket, its dedicated writer
// goroutine and outbox, and the identity/session bookkeeping the server
// needs to validate and route its messages.
type clientConn struct {
	id           ids.ClientId
	name         string
	conn         net.Conn
	out          *outbox
	privilege    netmsg.PrivilegeLevel
	sessionToken string
	owned        map[ids.InstrumentId]bool
	stalled      int
	done         chan struct{}
}

func newClientConn(id ids.ClientId, name string, conn net.Conn, privilege netmsg.PrivilegeLevel, token string) *clientConn {
	return &clientConn{
		id:           id,
		name:         name,
		conn:         conn,
		out:          newOutbox(),
		privilege:    privilege,
		sessionToken: token,
		owned:        make(map[ids.InstrumentId]bool),
		done:         make(chan struct{}),
	}
}

// writeLoop drains the outbox and writes frames to the socket, applying the
// 10ms per-frame timeout. It returns (and signals done) once the client is
// judged stalled or the outbox is closed.
func (c *clientConn) writeLoop(onStalled func()) {
	defer close(c.done)
	for {
		frame, kind, ok := c.out.pop()
		if !ok {
			return
		}
		c.conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
		_, err := c.conn.Write(frame)
		if err != nil {
			if kind == frameControl {
				c.out.requeueControl(frame)
			}
			c.stalled++
			if c.stalled >= stallThreshold {
				if onStalled != nil {
					onStalled()
				}
				return
			}
			continue
		}
		c.stalled = 0
	}
}
