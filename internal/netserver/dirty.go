package netserver

import (
	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/ids"
)

// dirtyFlags accumulates which subsystems changed since the last broadcast
// (spec.md §4.8). The broadcaster drains it once per tick.
type dirtyFlags struct {
	session               bool
	pianoRoll             bool
	arrangement           bool
	automation            bool
	mixer                 bool
	instrumentsStructural bool
	instruments           map[ids.InstrumentId]bool
}

func newDirtyFlags() dirtyFlags {
	return dirtyFlags{instruments: make(map[ids.InstrumentId]bool)}
}

func (d *dirtyFlags) clear() {
	*d = newDirtyFlags()
}

func (d *dirtyFlags) any() bool {
	return d.session || d.pianoRoll || d.arrangement || d.automation || d.mixer ||
		d.instrumentsStructural || len(d.instruments) > 0
}

// markDirty records which subsystem a just-applied action touched, grouped
// the same way actions.go groups the Kind enum.
func markDirty(d *dirtyFlags, a actions.DomainAction) {
	switch a.Kind {
	case actions.InstrumentAdd, actions.InstrumentRemove:
		d.instrumentsStructural = true
	case actions.InstrumentRename, actions.InstrumentSetLevel, actions.InstrumentSetPan,
		actions.InstrumentSetMute, actions.InstrumentSetSolo, actions.InstrumentSetOutput,
		actions.InstrumentSetSend, actions.InstrumentAdjustFilterCutoff, actions.InstrumentSetFilterCutoff,
		actions.InstrumentSetFilterResonance, actions.InstrumentSetFilterKind, actions.InstrumentAddProcessingStage,
		actions.InstrumentRemoveProcessingStage, actions.InstrumentMoveStage, actions.InstrumentToggleEq,
		actions.InstrumentSetEqBand, actions.InstrumentSetEffectParam, actions.InstrumentSetEffectEnabled,
		actions.InstrumentSetLfo, actions.InstrumentSetEnvelope, actions.InstrumentSetVoiceCap,
		actions.InstrumentSetStealStrategy, actions.InstrumentSetSampler, actions.InstrumentSetDrumStep,
		actions.InstrumentSetDrumStepsCount, actions.VstSetParam:
		d.instruments[a.Instrument] = true

	case actions.BusAdd, actions.BusRemove, actions.BusSetLevel, actions.BusSetMute, actions.BusSetSolo,
		actions.BusAddEffect, actions.BusRemoveEffect, actions.BusSetEffectParam,
		actions.GroupAdd, actions.GroupRemove, actions.GroupSetMembers, actions.GroupSetEffectParam:
		d.mixer = true

	case actions.NoteAdd, actions.NoteRemove, actions.TransportPlay, actions.TransportStop,
		actions.TransportSeek, actions.TransportSetLoop, actions.TransportSetBPM,
		actions.TransportSetTimeSignature, actions.TransportSetSnap, actions.TransportSetKeyScale:
		d.pianoRoll = true

	case actions.AutomationAddLane, actions.AutomationRemoveLane, actions.AutomationSetPoint,
		actions.AutomationRemovePoint, actions.AutomationSetCurve:
		d.automation = true

	case actions.ArrangementAddClip, actions.ArrangementAddPlacement, actions.ArrangementRemovePlacement,
		actions.ArrangementSetMode:
		d.arrangement = true

	case actions.VstRegister, actions.SynthDefRegister, actions.ClickSetEnabled, actions.ClickSetVolume:
		d.session = true

	case actions.UndoAction, actions.RedoAction:
		// Undo/redo can touch any scope depending on what it restores; the
		// cheapest correct answer is to resync everything.
		d.session = true
		d.pianoRoll = true
		d.arrangement = true
		d.automation = true
		d.mixer = true
		d.instrumentsStructural = true
	}
}

// isInstrumentScoped reports whether a requires the dispatching client to
// own a.Instrument (spec.md §4.8's ownership rule). Creation and registry
// actions are not instrument-scoped: nothing exists yet to own.
func isInstrumentScoped(kind actions.Kind) bool {
	switch kind {
	case actions.InstrumentRename, actions.InstrumentSetLevel, actions.InstrumentSetPan,
		actions.InstrumentSetMute, actions.InstrumentSetSolo, actions.InstrumentSetOutput,
		actions.InstrumentSetSend, actions.InstrumentAdjustFilterCutoff, actions.InstrumentSetFilterCutoff,
		actions.InstrumentSetFilterResonance, actions.InstrumentSetFilterKind, actions.InstrumentAddProcessingStage,
		actions.InstrumentRemoveProcessingStage, actions.InstrumentMoveStage, actions.InstrumentToggleEq,
		actions.InstrumentSetEqBand, actions.InstrumentSetEffectParam, actions.InstrumentSetEffectEnabled,
		actions.InstrumentSetLfo, actions.InstrumentSetEnvelope, actions.InstrumentSetVoiceCap,
		actions.InstrumentSetStealStrategy, actions.InstrumentSetSampler, actions.InstrumentSetDrumStep,
		actions.InstrumentSetDrumStepsCount, actions.InstrumentRemove, actions.VstSetParam,
		actions.NoteAdd, actions.NoteRemove:
		return true
	}
	return false
}

// isPrivileged reports whether a requires the Privileged level (transport,
// project save/load, bus management — spec.md §4.8).
func isPrivileged(kind actions.Kind) bool {
	switch kind {
	case actions.TransportPlay, actions.TransportStop, actions.TransportSeek, actions.TransportSetLoop,
		actions.TransportSetBPM, actions.TransportSetTimeSignature, actions.TransportSetSnap,
		actions.TransportSetKeyScale, actions.ProjectNew, actions.ProjectLoad, actions.ProjectSave,
		actions.ProjectConfirmClose, actions.BusAdd, actions.BusRemove, actions.BusSetLevel,
		actions.BusSetMute, actions.BusSetSolo, actions.BusAddEffect, actions.BusRemoveEffect,
		actions.BusSetEffectParam, actions.GroupAdd, actions.GroupRemove, actions.GroupSetMembers,
		actions.GroupSetEffectParam:
		return true
	}
	return false
}
