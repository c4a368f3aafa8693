package reducer

import (
	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/audiofx"
	"github.com/schollz/imbolc/internal/session"
)

func reduceNoteAdd(state *session.State, a actions.DomainAction) Result {
	if !state.Instruments.Exists(a.Instrument) {
		return ignored("no such instrument")
	}
	track := state.Session.PianoRoll.TrackFor(a.Instrument)
	track.InsertNote(a.Note)
	return okSession(audiofx.Rebuild(audiofx.UpdatePianoRoll))
}

func reduceNoteRemove(state *session.State, a actions.DomainAction) Result {
	if !state.Instruments.Exists(a.Instrument) {
		return ignored("no such instrument")
	}
	track := state.Session.PianoRoll.TrackFor(a.Instrument)
	if !track.RemoveNote(a.Tick, a.Note.Pitch) {
		return ignored("no note at tick/pitch")
	}
	return okSession(audiofx.Rebuild(audiofx.UpdatePianoRoll))
}

func reduceTransportPlay(state *session.State, a actions.DomainAction) Result {
	state.Session.PianoRoll.Playing = true
	return Result{UndoScope: actions.UndoNone}
}

func reduceTransportStop(state *session.State, a actions.DomainAction) Result {
	state.Session.PianoRoll.Playing = false
	for i := range state.Session.Automation.Lanes {
		state.Session.Automation.Lanes[i].ResetCursor()
	}
	return Result{UndoScope: actions.UndoNone}
}

func reduceTransportSeek(state *session.State, a actions.DomainAction) Result {
	state.Session.PianoRoll.Playhead = a.Tick
	for i := range state.Session.Automation.Lanes {
		state.Session.Automation.Lanes[i].ResetCursor()
	}
	return Result{UndoScope: actions.UndoNone}
}

func reduceTransportSetLoop(state *session.State, a actions.DomainAction) Result {
	pr := state.Session.PianoRoll
	pr.LoopStart = a.Int
	pr.LoopEnd = a.Tick
	pr.Looping = a.Bool
	pr.ValidateLoop()
	return okSession(audiofx.Rebuild(audiofx.UpdatePianoRoll))
}

func reduceTransportSetBPM(state *session.State, a actions.DomainAction) Result {
	if a.Float <= 0 {
		return rejected("bpm must be positive")
	}
	state.Session.PianoRoll.BPM = a.Float
	return okSession(audiofx.Rebuild(audiofx.UpdatePianoRoll))
}

func reduceTransportSetTimeSignature(state *session.State, a actions.DomainAction) Result {
	if !session.ValidDenominators[a.TimeSignature.Denominator] {
		return rejected("invalid time signature denominator")
	}
	state.Session.PianoRoll.TimeSignature = a.TimeSignature
	state.Session.PianoRoll.ValidateTimeSignature()
	return okSession(audiofx.Rebuild(audiofx.UpdatePianoRoll))
}

func reduceTransportSetSnap(state *session.State, a actions.DomainAction) Result {
	if a.Int < 1 {
		return rejected("snap must be positive")
	}
	state.Session.PianoRoll.Snap = a.Int
	return okSession()
}

func reduceTransportSetKeyScale(state *session.State, a actions.DomainAction) Result {
	state.Session.PianoRoll.Key = a.Int
	state.Session.PianoRoll.Scale = session.ScaleName(a.Name)
	return okSession()
}
