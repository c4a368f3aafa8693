// Package netmsg defines the wire protocol between the dispatch (main)
// thread's network server and LAN clients (spec.md §4.8): the
// ClientMessage/ServerMessage discriminated unions, the NetworkState
// projection, and the length-prefixed binary codec.
//
// Grounded on the teacher's internal/storage jsoniter usage generalized
// from a single flat struct to a tagged union, and on the framing style of
// rustyguts-bken's server/protocol.go (one envelope struct carrying a
// string/int discriminator plus every union field as `omitempty`) adapted
// to Imbolc's richer payload set and a real length-prefixed frame instead
// of a bare newline-delimited stream.
package netmsg

import (
	"encoding/binary"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxFrameBytes bounds a single frame's payload so a corrupt or hostile
// length prefix can never trigger an unbounded allocation.
const MaxFrameBytes = 16 << 20

// PrivilegeLevel gates transport, project save/load, and bus management
// actions to at most one client at a time (spec.md §4.8).
type PrivilegeLevel int

const (
	Normal PrivilegeLevel = iota
	Privileged
)

// OwnerInfo names the client that currently owns an instrument for edit
// purposes.
type OwnerInfo struct {
	ClientID ids.ClientId `json:"client_id"`
	Name     string       `json:"name"`
}

// InstrumentPatch is the per-instrument delta sent in a StatePatchUpdate: a
// full snapshot of the one instrument that changed. Coarser than a
// field-level diff (spec.md's example shows a nested `filter.cutoff`
// patch), but it keeps the wire format a plain session.Instrument the
// client already knows how to decode, and still satisfies the "only the
// dirtied instrument's bytes travel" requirement — see DESIGN.md for this
// open-question decision.
type InstrumentPatch struct {
	Instrument *session.Instrument `json:"instrument"`
}

// NetworkState is the projection mirrored to clients: authoritative session
// and instrument state, plus ownership and privilege, excluding undo
// history, MIDI connection state, and local audio feedback (spec.md §4.8).
type NetworkState struct {
	Session          *session.SessionState              `json:"session"`
	Instruments      *session.InstrumentState            `json:"instruments"`
	Ownership        map[ids.InstrumentId]OwnerInfo       `json:"ownership"`
	PrivilegedClient *PrivilegedClientInfo                `json:"privileged_client,omitempty"`
}

// PrivilegedClientInfo names the single privileged client, if any.
type PrivilegedClientInfo struct {
	ClientID ids.ClientId `json:"client_id"`
	Name     string       `json:"name"`
}

// PrivilegedClientUpdate represents spec.md's `Option<Option<ClientId>>`:
// Changed=false means the field is absent from this patch (no change);
// Changed=true + Cleared=true means privilege was revoked with no new
// holder; Changed=true + Cleared=false means ClientID is the new holder.
type PrivilegedClientUpdate struct {
	Changed  bool         `json:"changed"`
	Cleared  bool         `json:"cleared"`
	ClientID ids.ClientId `json:"client_id,omitempty"`
}

// ClientKind tags the ClientMessage union.
type ClientKind int

const (
	ClientHello ClientKind = iota
	ClientAction
	ClientRequestPrivilege
	ClientGoodbye
	ClientPing
)

// ClientMessage is everything a client can send.
type ClientMessage struct {
	Kind ClientKind `json:"kind"`

	ClientName          string              `json:"client_name,omitempty"`
	RequestedInstruments []ids.InstrumentId `json:"requested_instruments,omitempty"`
	RequestedPrivilege   PrivilegeLevel      `json:"requested_privilege,omitempty"`
	SessionToken         string              `json:"session_token,omitempty"`

	Action actions.DomainAction `json:"action,omitempty"`
}

// ServerKind tags the ServerMessage union.
type ServerKind int

const (
	ServerWelcome ServerKind = iota
	ServerStatePatchUpdate
	ServerFullStateSync
	ServerMetering
	ServerOwnershipUpdate
	ServerPrivilegeGranted
	ServerPrivilegeDenied
	ServerPrivilegeRevoked
	ServerReconnectSuccessful
	ServerReconnectFailed
	ServerOwnershipDenied
	ServerShutdown
	ServerPong
)

// StatePatchUpdate carries only the subsystems whose dirty flag was set
// since the last broadcast (spec.md §4.8's dirty-tracking rules).
type StatePatchUpdate struct {
	Seq                 uint64                                `json:"seq"`
	Session             *session.SessionState                 `json:"session,omitempty"`
	PianoRoll           *session.PianoRoll                     `json:"piano_roll,omitempty"`
	Arrangement         *session.Arrangement                   `json:"arrangement,omitempty"`
	Automation          *session.Automation                    `json:"automation,omitempty"`
	Mixer               *session.Mixer                          `json:"mixer,omitempty"`
	Instruments         map[ids.InstrumentId]InstrumentPatch    `json:"instruments,omitempty"`
	StructuralInstruments *session.InstrumentState              `json:"structural_instruments,omitempty"`
	PrivilegedClient    *PrivilegedClientUpdate                 `json:"privileged_client,omitempty"`
}

// Metering carries the transport/level feedback clients render without
// touching NetworkState.
type Metering struct {
	Playhead int     `json:"playhead"`
	Bpm      float64 `json:"bpm"`
	PeakL    float32 `json:"peak_l"`
	PeakR    float32 `json:"peak_r"`
}

// ServerMessage is everything the server can send.
type ServerMessage struct {
	Kind ServerKind `json:"kind"`

	Welcome      *WelcomePayload    `json:"welcome,omitempty"`
	Patch        *StatePatchUpdate  `json:"patch,omitempty"`
	FullSync     *NetworkState      `json:"full_sync,omitempty"`
	Metering     *Metering          `json:"metering,omitempty"`
	Ownership    map[ids.InstrumentId]OwnerInfo `json:"ownership,omitempty"`
	Instrument   ids.InstrumentId   `json:"instrument,omitempty"`
	Reason       string             `json:"reason,omitempty"`
}

// WelcomePayload is the server's handshake reply.
type WelcomePayload struct {
	State        NetworkState   `json:"state"`
	Privilege    PrivilegeLevel `json:"privilege"`
	SessionToken string         `json:"session_token"`
}

// WriteFrame encodes v (a ClientMessage or ServerMessage) as a
// length-prefixed frame: [u32 big-endian length][jsoniter payload]. JSON is
// the wire payload in both debug and production builds — the "binary
// codec" spec.md allows is this fixed frame header plus a schema-less
// payload, not a hand-rolled field-by-field binary encoding (see
// DESIGN.md).
func WriteFrame(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("netmsg: marshal: %w", err)
	}
	if len(payload) > MaxFrameBytes {
		return fmt.Errorf("netmsg: payload %d bytes exceeds max frame size", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("netmsg: write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("netmsg: write payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame and unmarshals it into v.
func ReadFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameBytes {
		return fmt.Errorf("netmsg: frame of %d bytes exceeds max frame size", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("netmsg: read payload: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("netmsg: unmarshal: %w", err)
	}
	return nil
}
