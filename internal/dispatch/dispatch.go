// Package dispatch is the runtime around the pure reducer: it owns the
// authoritative session.State, takes undo snapshots of the scope the
// reducer names, coalesces consecutive same-key actions within a 500 ms
// window, and drives the project lifecycle state machine. Grounded on the
// teacher's Model.PushUndoState/UndoHistory/CanUndo (internal/model),
// generalized from a flat per-field history stack to scoped
// session.State snapshots keyed by actions.UndoScope.
package dispatch

import (
	"time"

	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/reducer"
	"github.com/schollz/imbolc/internal/session"
)

// CoalesceWindow is spec.md §4.1's 500ms coalescing window.
const CoalesceWindow = 500 * time.Millisecond

// Phase is the project lifecycle state machine spec.md §4.1 names:
// Fresh -> Loading -> Ready -> Dirty -> (Saving -> Ready) | (Closing -> Exit).
type Phase int

const (
	PhaseFresh Phase = iota
	PhaseLoading
	PhaseReady
	PhaseDirty
	PhaseSaving
	PhaseClosing
	PhaseExit
)

// undoEntry is one snapshot on the undo stack: either a whole-state clone
// (UndoFull), a session-only clone (UndoSession), or a single instrument's
// clone (UndoSingleInstrument) paired with its id.
type undoEntry struct {
	scope      actions.UndoScope
	instrument ids.InstrumentId
	fullBefore *session.State
	sessBefore *session.SessionState
	instBefore *session.InstrumentState
	key        actions.CoalesceKey
	at         time.Time
}

// Runtime wraps reducer.Reduce with undo history, coalescing, and phase
// tracking. It is not safe for concurrent use; the dispatch goroutine owns
// it exclusively, per spec.md §5's single-writer model.
type Runtime struct {
	State *session.State
	Phase Phase

	undoStack []undoEntry
	redoStack []undoEntry
}

// New returns a Runtime over a fresh, empty session in PhaseFresh.
func New() *Runtime {
	return &Runtime{State: session.NewState(), Phase: PhaseFresh}
}

// NewFromState returns a Runtime wrapping an already-loaded state, as
// internal/persistence does after a successful load (PhaseReady).
func NewFromState(st *session.State) *Runtime {
	return &Runtime{State: st, Phase: PhaseReady}
}

func (r *Runtime) snapshot(scope actions.UndoScope, instrument ids.InstrumentId) undoEntry {
	e := undoEntry{scope: scope, instrument: instrument, at: time.Now()}
	switch scope {
	case actions.UndoFull:
		e.fullBefore = r.State.Clone()
	case actions.UndoSession:
		e.sessBefore = r.State.Session.Clone()
	case actions.UndoSingleInstrument:
		e.instBefore = r.State.Instruments.CloneOne(instrument)
	}
	return e
}

func (e undoEntry) restore(st *session.State) {
	switch e.scope {
	case actions.UndoFull:
		*st = *e.fullBefore
	case actions.UndoSession:
		st.Session = e.sessBefore
	case actions.UndoSingleInstrument:
		st.Instruments.RestoreOne(e.instBefore)
	}
}

// Dispatch applies a DomainAction: it snapshots the scope Reduce names
// (before mutation), applies Reduce, and — unless the action coalesces into
// the top of the undo stack — pushes a new undo entry. Every dispatch whose
// result records undo history (any scope but UndoNone) clears the redo
// stack; UndoNone results leave it untouched (spec.md §8's undo/redo
// round-trip law only promises redo immediately after an undo, not across
// new edits).
func (r *Runtime) Dispatch(a actions.DomainAction) reducer.Result {
	// Reduce mutates state in place, so the snapshot must be taken first,
	// using the scope predictedScope knows the action kind will produce.
	scope, instrument := predictedScope(a)
	entry := r.snapshot(scope, instrument)

	res := reducer.Reduce(r.State, a)

	if res.UndoScope == actions.UndoNone {
		return res
	}

	if top := r.topUndo(); top != nil && r.coalesces(*top, entry, res.CoalesceKey) {
		// Same key/scope within the window: keep the existing (older)
		// snapshot, drop this one, so undo rewinds past the whole sweep.
	} else {
		entry.key = res.CoalesceKey
		r.undoStack = append(r.undoStack, entry)
	}
	r.redoStack = nil
	if r.Phase == PhaseReady {
		r.Phase = PhaseDirty
	}
	return res
}

func (r *Runtime) topUndo() *undoEntry {
	if len(r.undoStack) == 0 {
		return nil
	}
	return &r.undoStack[len(r.undoStack)-1]
}

func (r *Runtime) coalesces(top undoEntry, next undoEntry, key actions.CoalesceKey) bool {
	if top.scope != next.scope {
		return false
	}
	if top.key != key {
		return false
	}
	return next.at.Sub(top.at) <= CoalesceWindow
}

// predictedScope mirrors reducer.Reduce's own per-kind scope assignment so
// the snapshot can be taken before mutation. Kept in lockstep with the
// switch in reducer.Reduce; a mismatch only widens the undo snapshot (safe)
// or narrows it (caught by the reducer tests that exercise undo/redo).
func predictedScope(a actions.DomainAction) (actions.UndoScope, ids.InstrumentId) {
	switch a.Kind {
	case actions.InstrumentAdd, actions.InstrumentRemove:
		return actions.UndoFull, 0
	case actions.InstrumentRename, actions.InstrumentSetLevel, actions.InstrumentSetPan,
		actions.InstrumentSetMute, actions.InstrumentSetSolo, actions.InstrumentSetOutput,
		actions.InstrumentSetSend, actions.InstrumentAdjustFilterCutoff, actions.InstrumentSetFilterCutoff,
		actions.InstrumentSetFilterResonance, actions.InstrumentSetFilterKind, actions.InstrumentAddProcessingStage,
		actions.InstrumentRemoveProcessingStage, actions.InstrumentMoveStage, actions.InstrumentToggleEq,
		actions.InstrumentSetEqBand, actions.InstrumentSetEffectParam, actions.InstrumentSetEffectEnabled,
		actions.InstrumentSetLfo, actions.InstrumentSetEnvelope, actions.InstrumentSetVoiceCap,
		actions.InstrumentSetStealStrategy, actions.InstrumentSetSampler, actions.InstrumentSetDrumStep,
		actions.InstrumentSetDrumStepsCount, actions.VstSetParam:
		return actions.UndoSingleInstrument, a.Instrument
	case actions.BusRemove:
		return actions.UndoFull, 0
	case actions.TransportPlay, actions.TransportStop, actions.TransportSeek,
		actions.ClickSetEnabled, actions.ClickSetVolume, actions.UndoAction, actions.RedoAction,
		actions.ProjectNew, actions.ProjectLoad, actions.ProjectSave, actions.ProjectConfirmClose:
		return actions.UndoNone, 0
	default:
		return actions.UndoSession, 0
	}
}

// CanUndo reports whether an undo entry is available.
func (r *Runtime) CanUndo() bool { return len(r.undoStack) > 0 }

// CanRedo reports whether a redo entry is available.
func (r *Runtime) CanRedo() bool { return len(r.redoStack) > 0 }

// Undo pops the most recent undo entry, restores it, and pushes a redo
// entry captured from the pre-restore state so Redo can reverse it.
func (r *Runtime) Undo() bool {
	if len(r.undoStack) == 0 {
		return false
	}
	entry := r.undoStack[len(r.undoStack)-1]
	r.undoStack = r.undoStack[:len(r.undoStack)-1]

	redo := r.snapshot(entry.scope, entry.instrument)
	entry.restore(r.State)
	r.redoStack = append(r.redoStack, redo)
	return true
}

// Redo pops the most recent redo entry, restores it, and pushes the
// corresponding undo entry back.
func (r *Runtime) Redo() bool {
	if len(r.redoStack) == 0 {
		return false
	}
	entry := r.redoStack[len(r.redoStack)-1]
	r.redoStack = r.redoStack[:len(r.redoStack)-1]

	undo := r.snapshot(entry.scope, entry.instrument)
	entry.restore(r.State)
	r.undoStack = append(r.undoStack, undo)
	return true
}

// MarkSaved transitions Dirty -> Ready after a successful save, per spec.md
// §4.1's project lifecycle state machine.
func (r *Runtime) MarkSaved() {
	if r.Phase == PhaseDirty || r.Phase == PhaseSaving {
		r.Phase = PhaseReady
	}
}
