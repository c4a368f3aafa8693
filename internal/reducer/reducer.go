// Package reducer implements the dispatch reducer: Reduce applies a
// DomainAction to the given state in place, performs no I/O, and returns the
// change's effects, status and undo scope. Grounded on the teacher's
// model.go action-handling switch (internal/model, the large per-key-press
// mutation dispatch) generalized into one explicit reduce step that reports
// what changed alongside the mutation.
package reducer

import (
	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/audiofx"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/session"
)

// StatusLevel mirrors spec.md §7's Info/Warning/Error status levels.
type StatusLevel int

const (
	Info StatusLevel = iota
	Warning
	Error
)

// StatusEvent is a one-line, leveled, auto-dismissing status message.
type StatusEvent struct {
	Level   StatusLevel
	Message string
}

// Result is everything a single reduce call produces besides the new state.
type Result struct {
	Effects    []audiofx.Effect
	Status     []StatusEvent
	UndoScope  actions.UndoScope
	CoalesceKey actions.CoalesceKey
}

func rejected(reason string) Result {
	return Result{Status: []StatusEvent{{Level: Error, Message: "rejected: " + reason}}, UndoScope: actions.UndoNone}
}

func ignored(reason string) Result {
	return Result{Status: []StatusEvent{{Level: Warning, Message: "ignored: " + reason}}, UndoScope: actions.UndoNone}
}

func okSingle(id ids.InstrumentId, effects ...audiofx.Effect) Result {
	return Result{
		Effects:     effects,
		UndoScope:   actions.UndoSingleInstrument,
		CoalesceKey: actions.CoalesceKey{Instrument: id},
	}
}

func okSession(effects ...audiofx.Effect) Result {
	return Result{
		Effects:     effects,
		UndoScope:   actions.UndoSession,
		CoalesceKey: actions.CoalesceKey{Session: true},
	}
}

func okFull(effects ...audiofx.Effect) Result {
	return Result{Effects: effects, UndoScope: actions.UndoFull}
}

func okNone(effects ...audiofx.Effect) Result {
	return Result{Effects: effects, UndoScope: actions.UndoNone}
}

// Reduce applies a DomainAction to state in place (the caller is responsible
// for taking the undo snapshot named by the returned UndoScope *before*
// calling Reduce; Reduce itself never clones for undo purposes, only for
// invariant repair where the session package's sub-clones are used
// internally).
//
// Reduce is total: every Kind in actions.Kind is handled in the switch
// below; an unrecognized Kind value (e.g. from a newer wire version) falls
// through to the default case and is rejected without mutating state,
// satisfying spec.md §4.1's totality contract.
func Reduce(state *session.State, a actions.DomainAction) Result {
	var res Result
	switch a.Kind {
	case actions.InstrumentAdd:
		res = reduceInstrumentAdd(state, a)
	case actions.InstrumentRemove:
		res = reduceInstrumentRemove(state, a)
	case actions.InstrumentRename:
		res = reduceInstrumentRename(state, a)
	case actions.InstrumentSetLevel:
		res = reduceInstrumentSetLevel(state, a)
	case actions.InstrumentSetPan:
		res = reduceInstrumentSetPan(state, a)
	case actions.InstrumentSetMute:
		res = reduceInstrumentSetMute(state, a)
	case actions.InstrumentSetSolo:
		res = reduceInstrumentSetSolo(state, a)
	case actions.InstrumentSetOutput:
		res = reduceInstrumentSetOutput(state, a)
	case actions.InstrumentSetSend:
		res = reduceInstrumentSetSend(state, a)
	case actions.InstrumentAdjustFilterCutoff:
		res = reduceInstrumentAdjustFilterCutoff(state, a)
	case actions.InstrumentSetFilterCutoff:
		res = reduceInstrumentSetFilterCutoff(state, a)
	case actions.InstrumentSetFilterResonance:
		res = reduceInstrumentSetFilterResonance(state, a)
	case actions.InstrumentSetFilterKind:
		res = reduceInstrumentSetFilterKind(state, a)
	case actions.InstrumentAddProcessingStage:
		res = reduceInstrumentAddProcessingStage(state, a)
	case actions.InstrumentRemoveProcessingStage:
		res = reduceInstrumentRemoveProcessingStage(state, a)
	case actions.InstrumentMoveStage:
		res = reduceInstrumentMoveStage(state, a)
	case actions.InstrumentToggleEq:
		res = reduceInstrumentToggleEq(state, a)
	case actions.InstrumentSetEqBand:
		res = reduceInstrumentSetEqBand(state, a)
	case actions.InstrumentSetEffectParam:
		res = reduceInstrumentSetEffectParam(state, a)
	case actions.InstrumentSetEffectEnabled:
		res = reduceInstrumentSetEffectEnabled(state, a)
	case actions.InstrumentSetLfo:
		res = reduceInstrumentSetLfo(state, a)
	case actions.InstrumentSetEnvelope:
		res = reduceInstrumentSetEnvelope(state, a)
	case actions.InstrumentSetVoiceCap:
		res = reduceInstrumentSetVoiceCap(state, a)
	case actions.InstrumentSetStealStrategy:
		res = reduceInstrumentSetStealStrategy(state, a)
	case actions.InstrumentSetSampler:
		res = reduceInstrumentSetSampler(state, a)
	case actions.InstrumentSetDrumStep:
		res = reduceInstrumentSetDrumStep(state, a)
	case actions.InstrumentSetDrumStepsCount:
		res = reduceInstrumentSetDrumStepsCount(state, a)

	case actions.BusAdd:
		res = reduceBusAdd(state, a)
	case actions.BusRemove:
		res = reduceBusRemove(state, a)
	case actions.BusSetLevel:
		res = reduceBusSetLevel(state, a)
	case actions.BusSetMute:
		res = reduceBusSetMute(state, a)
	case actions.BusSetSolo:
		res = reduceBusSetSolo(state, a)
	case actions.BusAddEffect:
		res = reduceBusAddEffect(state, a)
	case actions.BusRemoveEffect:
		res = reduceBusRemoveEffect(state, a)
	case actions.BusSetEffectParam:
		res = reduceBusSetEffectParam(state, a)
	case actions.GroupAdd:
		res = reduceGroupAdd(state, a)
	case actions.GroupRemove:
		res = reduceGroupRemove(state, a)
	case actions.GroupSetMembers:
		res = reduceGroupSetMembers(state, a)
	case actions.GroupSetEffectParam:
		res = reduceGroupSetEffectParam(state, a)

	case actions.NoteAdd:
		res = reduceNoteAdd(state, a)
	case actions.NoteRemove:
		res = reduceNoteRemove(state, a)
	case actions.TransportPlay:
		res = reduceTransportPlay(state, a)
	case actions.TransportStop:
		res = reduceTransportStop(state, a)
	case actions.TransportSeek:
		res = reduceTransportSeek(state, a)
	case actions.TransportSetLoop:
		res = reduceTransportSetLoop(state, a)
	case actions.TransportSetBPM:
		res = reduceTransportSetBPM(state, a)
	case actions.TransportSetTimeSignature:
		res = reduceTransportSetTimeSignature(state, a)
	case actions.TransportSetSnap:
		res = reduceTransportSetSnap(state, a)
	case actions.TransportSetKeyScale:
		res = reduceTransportSetKeyScale(state, a)

	case actions.AutomationAddLane:
		res = reduceAutomationAddLane(state, a)
	case actions.AutomationRemoveLane:
		res = reduceAutomationRemoveLane(state, a)
	case actions.AutomationSetPoint:
		res = reduceAutomationSetPoint(state, a)
	case actions.AutomationRemovePoint:
		res = reduceAutomationRemovePoint(state, a)
	case actions.AutomationSetCurve:
		res = reduceAutomationSetCurve(state, a)

	case actions.ArrangementAddClip:
		res = reduceArrangementAddClip(state, a)
	case actions.ArrangementAddPlacement:
		res = reduceArrangementAddPlacement(state, a)
	case actions.ArrangementRemovePlacement:
		res = reduceArrangementRemovePlacement(state, a)
	case actions.ArrangementSetMode:
		res = reduceArrangementSetMode(state, a)

	case actions.VstRegister:
		res = reduceVstRegister(state, a)
	case actions.VstSetParam:
		res = reduceVstSetParam(state, a)
	case actions.SynthDefRegister:
		res = reduceSynthDefRegister(state, a)

	case actions.ClickSetEnabled, actions.ClickSetVolume:
		// Clicks are scheduler-local runtime toggles with no session
		// representation to mutate; they pass straight through.
		res = okNone(audiofx.Rebuild(audiofx.UpdatePianoRoll))

	case actions.UndoAction, actions.RedoAction:
		// Undo/redo is applied by the dispatch runtime directly against its
		// history stack, not by Reduce; reaching here means the runtime
		// mis-dispatched it.
		res = ignored("undo/redo is not a reducer action")

	case actions.ProjectNew, actions.ProjectLoad, actions.ProjectSave, actions.ProjectConfirmClose:
		// Project lifecycle transitions are owned by internal/persistence
		// and the dispatch runtime's state machine (Fresh/Loading/Ready/
		// Dirty/Saving/Closing); Reduce only handles in-session mutations.
		res = okNone()

	default:
		res = Result{Status: []StatusEvent{{Level: Warning, Message: "unrecognized action"}}, UndoScope: actions.UndoNone}
	}

	if res.UndoScope != actions.UndoNone {
		state.EnforceInvariants()
	}
	return res
}
