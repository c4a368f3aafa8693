// Package eventlog implements the command-bridge transport surfaces between
// the dispatch (main) thread and the audio thread (spec.md §4.7): the
// shared, order-preserving event log plus the bounded priority/normal
// command channels.
//
// Grounded on the teacher's context.Context-cancellable goroutine +
// buffered-channel pattern in internal/model.Model.PlayArpeggio (one
// producer goroutine, one consumer select loop, FIFO delivery), generalized
// from one ad hoc arpeggio channel into the three named transport surfaces
// spec.md requires.
package eventlog

import (
	"sync"

	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/ids"
)

// StructuralKind tags a per-frame structural cue riding alongside domain
// actions in the event log.
type StructuralKind int

const (
	CueNone StructuralKind = iota
	CueAddInstrumentRouting
	CueDeleteInstrumentRouting
	CueRebuildRoutingForInstrument
	CueRebuildBusProcessing
	CueRebuildInstruments
	CueRebuildRouting
)

// LogEntry is one entry in the shared event log: either a DomainAction or a
// structural cue, tagged with a strictly increasing sequence number so the
// audio thread can assert FIFO delivery (spec.md §4.7 ordering guarantees).
type LogEntry struct {
	Seq        uint64
	Action     actions.DomainAction
	HasAction  bool
	Cue        StructuralKind
	Instrument ids.InstrumentId // meaningful only for per-instrument cues
}

// Log is the single-producer (dispatch thread), single-consumer (audio
// thread) retained queue. Despite spec.md calling it "in practice SPSC," it
// guards its slice with a mutex rather than a true lock-free ring buffer:
// Go has no portable lock-free MPSC/SPSC queue in the standard library, and
// the teacher's own concurrency primitives are mutex-guarded maps/slices
// (Model.arpeggioMutex), not hand-rolled lock-free structures — this
// follows that precedent rather than inventing one.
type Log struct {
	mu      sync.Mutex
	entries []LogEntry
	nextSeq uint64
}

// New returns an empty Log.
func New() *Log {
	return &Log{}
}

// PushAction appends a as the next log entry, owned exclusively by the
// dispatch thread per spec.md §4.7 ("The log is owned by the main thread").
func (l *Log) PushAction(a actions.DomainAction) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := l.nextSeq
	l.nextSeq++
	l.entries = append(l.entries, LogEntry{Seq: seq, Action: a, HasAction: true})
	return seq
}

// PushCue appends a structural cue (e.g. RebuildBusProcessing) produced
// alongside or instead of a domain action.
func (l *Log) PushCue(kind StructuralKind, instrument ids.InstrumentId) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := l.nextSeq
	l.nextSeq++
	l.entries = append(l.entries, LogEntry{Seq: seq, Cue: kind, Instrument: instrument})
	return seq
}

// DrainBudget removes and returns up to maxEntries entries from the front of
// the log, the audio thread's per-iteration combined budget (spec.md §4.6
// step 4: "up to N commands and up to T microseconds").
func (l *Log) DrainBudget(maxEntries int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	n := maxEntries
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := append([]LogEntry(nil), l.entries[:n]...)
	l.entries = l.entries[n:]
	return out
}

// Len reports the number of entries still waiting to be drained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// PriorityCommandKind enumerates the latency-critical priority channel's
// payload kinds (spec.md §4.7).
type PriorityCommandKind int

const (
	PrioritySpawnVoice PriorityCommandKind = iota
	PriorityReleaseVoice
	PriorityPlayDrumHit
	PrioritySetFilterParam
	PrioritySetEffectParam
	PrioritySetLfoParam
	PrioritySetBusEffectParam
	PrioritySetLayerGroupEffectParam
	PriorityStop
)

// PriorityCommand is one entry on the bounded priority channel (see
// priorityChannelCapacity). Fields are flat and tagged by Kind, same shape as
// actions.DomainAction.
type PriorityCommand struct {
	Kind       PriorityCommandKind
	Instrument ids.InstrumentId
	Bus        ids.BusId
	Group      ids.GroupId
	Effect     ids.EffectId
	Param      ids.ParamIndex
	Pitch      int
	Velocity   int
	DrumPad    int
	Value      float64
}

// NormalCommandKind enumerates the bulk/structural normal channel's payload
// kinds.
type NormalCommandKind int

const (
	NormalUpdateMixerParams NormalCommandKind = iota
	NormalUpdatePianoRoll
	NormalUpdateAutomation
	NormalLoadSample
	NormalRebuildRouting
	NormalRebuildBusProcessing
	NormalRebuildInstruments
)

// NormalCommand is one entry on the bounded normal command channel.
type NormalCommand struct {
	Kind       NormalCommandKind
	Instrument ids.InstrumentId
	Path       string // NormalLoadSample
}

// priorityChannelCapacity is large but bounded: spec.md describes the
// priority channel as "bounded, for latency-critical work" without a cap on
// the event log itself (the log has no cap; only the command channels do).
const (
	priorityChannelCapacity = 4096
	normalChannelCapacity   = 1024
)

// Bridge owns the two bounded command channels connecting the dispatch
// thread to the audio thread.
type Bridge struct {
	Priority chan PriorityCommand
	Normal   chan NormalCommand
}

// NewBridge returns a Bridge with spec.md's described channel shapes.
func NewBridge() *Bridge {
	return &Bridge{
		Priority: make(chan PriorityCommand, priorityChannelCapacity),
		Normal:   make(chan NormalCommand, normalChannelCapacity),
	}
}

// SendPriority enqueues a priority command. The dispatch thread never drops
// entries per spec.md ("the audio thread never drops entries; it
// postpones"); a full priority channel blocks the caller rather than drop,
// matching that "never drop, only postpone" contract at the producer side.
func (b *Bridge) SendPriority(c PriorityCommand) {
	b.Priority <- c
}

// SendNormal enqueues a normal command, blocking if the bounded channel is
// full (same "postpone, never drop" contract).
func (b *Bridge) SendNormal(c NormalCommand) {
	b.Normal <- c
}

// DrainPriority drains every currently-queued priority command
// non-blockingly (spec.md §4.6 step 2: "no cap" within what's already
// queued).
func (b *Bridge) DrainPriority() []PriorityCommand {
	var out []PriorityCommand
	for {
		select {
		case c := <-b.Priority:
			out = append(out, c)
		default:
			return out
		}
	}
}

// DrainNormalBudget drains up to maxEntries normal commands non-blockingly,
// the audio thread's combined per-iteration budget (spec.md §4.6 step 3).
func (b *Bridge) DrainNormalBudget(maxEntries int) []NormalCommand {
	var out []NormalCommand
	for i := 0; i < maxEntries; i++ {
		select {
		case c := <-b.Normal:
			out = append(out, c)
		default:
			return out
		}
	}
	return out
}
