// Package netserver mirrors the dispatcher's authoritative state to any
// number of LAN clients over TCP (spec.md §4.8): length-prefixed frames,
// dirty-tracked patch broadcasts at ~30 Hz, per-instrument ownership and a
// single privileged client, slow-client isolation, and session-token
// reconnection.
//
// Grounded on rustyguts-bken's server package (server/room.go's
// mutex-protected client map and ownership bookkeeping, server/client.go's
// per-connection reader/writer split) adapted from its ephemeral chat-room
// model to Imbolc's authoritative session.State mirror, and on the
// teacher's internal/dispatch for the single-writer "validate, dispatch,
// accumulate dirty flags" step this package drives on every ClientAction.
package netserver

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/dispatch"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/netmsg"
	"github.com/schollz/imbolc/internal/reducer"
)

// broadcastInterval is spec.md §4.8's ~30Hz patch coalescing cadence.
const broadcastInterval = time.Second / 30

// fullSyncInterval heals drift even when nothing is dirty.
const fullSyncInterval = 30 * time.Second

// dirtyInstrumentFallbackRatio: once more than one instrument, and more than
// half of all instruments, are dirty in one tick, send the full
// InstrumentState instead of a per-id map.
const dirtyInstrumentFallbackRatio = 0.5

// Server owns the authoritative dispatch.Runtime and every connected
// client's ownership, privilege, and outbox.
type Server struct {
	mu sync.Mutex

	runtime *dispatch.Runtime
	clients map[ids.ClientId]*clientConn
	nextID  int

	ownership  map[ids.InstrumentId]netmsg.OwnerInfo
	privileged *ids.ClientId

	dirty dirtyFlags
	seq   uint64

	tokens map[string]*suspendedSession

	listener net.Listener
	stopCh   chan struct{}
	wg       sync.WaitGroup

	// OnEffects, if set, is called (with the server's lock held, right after
	// OnAction) with every successful dispatch's reducer.Result, so a caller
	// can forward the effect stream to internal/scheduler the same way the
	// local UI does.
	OnEffects func(reducer.Result)

	// OnAction, if set, is called (with the server's lock held, in dispatch
	// order, before OnEffects) with every successfully-dispatched DomainAction, so a
	// caller can push it onto the audio thread's eventlog.Log the same way
	// a local UI dispatch does, keeping the scheduler's own state
	// projection in sync with the runtime's authoritative one (spec.md §8
	// invariant 7).
	OnAction func(actions.DomainAction)
}

// New returns a Server over an already-constructed dispatch.Runtime.
func New(runtime *dispatch.Runtime) *Server {
	return &Server{
		runtime:   runtime,
		clients:   make(map[ids.ClientId]*clientConn),
		ownership: make(map[ids.InstrumentId]netmsg.OwnerInfo),
		dirty:     newDirtyFlags(),
		tokens:    make(map[string]*suspendedSession),
		stopCh:    make(chan struct{}),
	}
}

// Serve listens on addr and accepts clients until Stop is called.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("netserver: listen %s: %w", addr, err)
	}
	return s.ServeListener(ln)
}

// ServeListener accepts clients on an already-bound listener until Stop is
// called; split out from Serve so tests can bind an ephemeral port and
// discover its address before accepting connections.
func (s *Server) ServeListener(ln net.Listener) error {
	s.listener = ln

	s.wg.Add(1)
	go s.broadcastLoop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("netserver: accept: %w", err)
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Stop closes the listener and every connected client, and waits for the
// broadcaster and all per-client goroutines to exit.
func (s *Server) Stop() {
	close(s.stopCh)
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	for _, c := range s.clients {
		c.conn.Close()
		c.out.close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	var hello netmsg.ClientMessage
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := netmsg.ReadFrame(conn, &hello); err != nil || hello.Kind != netmsg.ClientHello {
		return
	}
	conn.SetReadDeadline(time.Time{})

	client := s.admit(conn, hello)
	if client == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		client.writeLoop(func() { s.suspend(client) })
	}()

	for {
		var msg netmsg.ClientMessage
		if err := netmsg.ReadFrame(conn, &msg); err != nil {
			s.suspend(client)
			return
		}
		s.handleClientMessage(client, msg)
	}
}

// admit resolves a Hello into a live clientConn: either a reconnect
// restoring a suspended session's ownership/privilege, or a fresh client
// claiming its requested instruments.
func (s *Server) admit(conn net.Conn, hello netmsg.ClientMessage) *clientConn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hello.SessionToken != "" {
		if susp, ok := s.tokens[hello.SessionToken]; ok {
			susp.timer.Stop()
			delete(s.tokens, hello.SessionToken)

			s.nextID++
			newID := ids.ClientId(s.nextID)
			client := newClientConn(newID, hello.ClientName, conn, susp.privilege, hello.SessionToken)
			for _, inst := range susp.instruments {
				s.ownership[inst] = netmsg.OwnerInfo{ClientID: newID, Name: hello.ClientName}
				client.owned[inst] = true
			}
			if susp.privilege == netmsg.Privileged {
				s.privileged = &newID
			}
			s.clients[newID] = client
			client.out.pushControl(s.encodeReconnectSuccessful())
			client.out.pushControl(s.encodeFullSync())
			return client
		}
		conn.Write(mustEncode(netmsg.ServerMessage{Kind: netmsg.ServerReconnectFailed}))
	}

	s.nextID++
	newID := ids.ClientId(s.nextID)
	privilege := netmsg.Normal
	if hello.RequestedPrivilege == netmsg.Privileged && s.privileged == nil {
		s.privileged = &newID
		privilege = netmsg.Privileged
	}
	token := uuid.New().String()
	client := newClientConn(newID, hello.ClientName, conn, privilege, token)
	for _, inst := range hello.RequestedInstruments {
		if _, taken := s.ownership[inst]; !taken {
			s.ownership[inst] = netmsg.OwnerInfo{ClientID: newID, Name: hello.ClientName}
			client.owned[inst] = true
		}
	}
	s.clients[newID] = client
	client.out.pushControl(s.encodeWelcome(client))
	return client
}

func (s *Server) handleClientMessage(client *clientConn, msg netmsg.ClientMessage) {
	switch msg.Kind {
	case netmsg.ClientAction:
		s.handleAction(client, msg.Action)
	case netmsg.ClientRequestPrivilege:
		s.handlePrivilegeRequest(client)
	case netmsg.ClientGoodbye:
		s.suspend(client)
	case netmsg.ClientPing:
		client.out.pushControl(mustEncode(netmsg.ServerMessage{Kind: netmsg.ServerPong}))
	}
}

func (s *Server) handleAction(client *clientConn, a actions.DomainAction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isPrivileged(a.Kind) && client.privilege != netmsg.Privileged {
		client.out.pushControl(mustEncode(netmsg.ServerMessage{Kind: netmsg.ServerPrivilegeDenied}))
		return
	}
	if isInstrumentScoped(a.Kind) {
		owner, ok := s.ownership[a.Instrument]
		if ok && owner.ClientID != client.id {
			client.out.pushControl(mustEncode(netmsg.ServerMessage{
				Kind: netmsg.ServerOwnershipDenied, Instrument: a.Instrument,
			}))
			return
		}
	}

	res := s.runtime.Dispatch(a)
	markDirty(&s.dirty, a)
	if a.Kind == actions.InstrumentAdd {
		// The reducer assigns the new id; claim it for the requester so a
		// freshly created instrument isn't immediately editable by anyone.
		if ownable := s.lastAddedInstrument(); ownable != 0 {
			s.ownership[ownable] = netmsg.OwnerInfo{ClientID: client.id, Name: client.name}
			client.owned[ownable] = true
		}
	}
	if s.OnAction != nil {
		s.OnAction(a)
	}
	if s.OnEffects != nil {
		s.OnEffects(res)
	}
}

// lastAddedInstrument returns the highest InstrumentId known to the
// runtime, i.e. the one InstrumentAdd just created (ids are monotonically
// assigned and never reused).
func (s *Server) lastAddedInstrument() ids.InstrumentId {
	var max ids.InstrumentId
	for _, id := range s.runtime.State.Instruments.Order {
		if id > max {
			max = id
		}
	}
	return max
}

func (s *Server) handlePrivilegeRequest(client *clientConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.privileged == nil {
		s.privileged = &client.id
		client.privilege = netmsg.Privileged
		client.out.pushControl(mustEncode(netmsg.ServerMessage{Kind: netmsg.ServerPrivilegeGranted}))
		return
	}
	client.out.pushControl(mustEncode(netmsg.ServerMessage{Kind: netmsg.ServerPrivilegeDenied}))
}

// suspend disconnects client while retaining its ownership and privilege
// for reconnectWindow, per spec.md §5.
func (s *Server) suspend(client *clientConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, stillConnected := s.clients[client.id]; !stillConnected {
		return
	}
	delete(s.clients, client.id)
	client.conn.Close()
	client.out.close()

	owned := make([]ids.InstrumentId, 0, len(client.owned))
	for inst := range client.owned {
		owned = append(owned, inst)
	}
	susp := &suspendedSession{
		clientID:    client.id,
		name:        client.name,
		privilege:   client.privilege,
		instruments: owned,
	}
	susp.timer = time.AfterFunc(reconnectWindow, func() { s.expireSession(client.sessionToken) })
	s.tokens[client.sessionToken] = susp
}

// expireSession frees a suspended client's ownership/privilege once its
// reconnect window lapses without a matching Hello.
func (s *Server) expireSession(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	susp, ok := s.tokens[token]
	if !ok {
		return
	}
	delete(s.tokens, token)
	for _, inst := range susp.instruments {
		if owner, ok := s.ownership[inst]; ok && owner.ClientID == susp.clientID {
			delete(s.ownership, inst)
		}
	}
	if s.privileged != nil && *s.privileged == susp.clientID {
		s.privileged = nil
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()
	fullSyncTicker := time.NewTicker(fullSyncInterval)
	defer fullSyncTicker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-fullSyncTicker.C:
			s.broadcastFullSync()
		case <-ticker.C:
			s.broadcastPatch()
		}
	}
}

func (s *Server) broadcastPatch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty.any() || len(s.clients) == 0 {
		s.dirty.clear()
		return
	}

	s.seq++
	patch := &netmsg.StatePatchUpdate{Seq: s.seq}
	if s.dirty.session {
		patch.Session = s.runtime.State.Session
	}
	if s.dirty.pianoRoll {
		patch.PianoRoll = s.runtime.State.Session.PianoRoll
	}
	if s.dirty.arrangement {
		patch.Arrangement = s.runtime.State.Session.Arrangement
	}
	if s.dirty.automation {
		patch.Automation = s.runtime.State.Session.Automation
	}
	if s.dirty.mixer {
		patch.Mixer = s.runtime.State.Session.Mixer
	}
	if s.dirty.instrumentsStructural || (len(s.dirty.instruments) > 1 &&
		float64(len(s.dirty.instruments)) > float64(len(s.runtime.State.Instruments.Instruments))*dirtyInstrumentFallbackRatio) {
		patch.StructuralInstruments = s.runtime.State.Instruments
	} else if len(s.dirty.instruments) > 0 {
		patch.Instruments = make(map[ids.InstrumentId]netmsg.InstrumentPatch, len(s.dirty.instruments))
		for id := range s.dirty.instruments {
			if inst, ok := s.runtime.State.Instruments.Instruments[id]; ok {
				patch.Instruments[id] = netmsg.InstrumentPatch{Instrument: inst}
			}
		}
	}

	frame := mustEncode(netmsg.ServerMessage{Kind: netmsg.ServerStatePatchUpdate, Patch: patch})
	for _, c := range s.clients {
		c.out.pushPatch(frame)
	}
	s.dirty.clear()
}

func (s *Server) broadcastFullSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return
	}
	frame := s.encodeFullSync()
	for _, c := range s.clients {
		c.out.pushFullSync(frame)
	}
	s.dirty.clear()
}

// PublishMetering fans out transport/level feedback to every connected
// client, dropped in favor of the latest if a client falls behind.
func (s *Server) PublishMetering(m netmsg.Metering) {
	frame := mustEncode(netmsg.ServerMessage{Kind: netmsg.ServerMetering, Metering: &m})
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.out.pushMetering(frame)
	}
}

func (s *Server) networkStateLocked() netmsg.NetworkState {
	ns := netmsg.NetworkState{
		Session:     s.runtime.State.Session,
		Instruments: s.runtime.State.Instruments,
		Ownership:   make(map[ids.InstrumentId]netmsg.OwnerInfo, len(s.ownership)),
	}
	for id, o := range s.ownership {
		ns.Ownership[id] = o
	}
	if s.privileged != nil {
		if c, ok := s.clients[*s.privileged]; ok {
			ns.PrivilegedClient = &netmsg.PrivilegedClientInfo{ClientID: c.id, Name: c.name}
		}
	}
	return ns
}

func (s *Server) encodeWelcome(client *clientConn) []byte {
	return mustEncode(netmsg.ServerMessage{
		Kind: netmsg.ServerWelcome,
		Welcome: &netmsg.WelcomePayload{
			State:        s.networkStateLocked(),
			Privilege:    client.privilege,
			SessionToken: client.sessionToken,
		},
	})
}

func (s *Server) encodeFullSync() []byte {
	ns := s.networkStateLocked()
	return mustEncode(netmsg.ServerMessage{Kind: netmsg.ServerFullStateSync, FullSync: &ns})
}

func (s *Server) encodeReconnectSuccessful() []byte {
	return mustEncode(netmsg.ServerMessage{Kind: netmsg.ServerReconnectSuccessful})
}

func mustEncode(msg netmsg.ServerMessage) []byte {
	var buf bytes.Buffer
	if err := netmsg.WriteFrame(&buf, msg); err != nil {
		log.Printf("imbolc: netserver: encode %v: %v", msg.Kind, err)
		return nil
	}
	return buf.Bytes()
}
