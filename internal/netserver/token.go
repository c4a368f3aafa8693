package netserver

import (
	"time"

	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/netmsg"
)

// reconnectWindow is spec.md §5's 60s grace period: the server retains a
// disconnected client's ownership and privilege this long before freeing
// them.
const reconnectWindow = 60 * time.Second

// suspendedSession is what a SessionToken resolves to while its owner is
// disconnected: enough to restore ownership and privilege on reconnect, or
// to free them cleanly once the token expires.
type suspendedSession struct {
	clientID    ids.ClientId
	name        string
	privilege   netmsg.PrivilegeLevel
	instruments []ids.InstrumentId
	timer       *time.Timer
}
