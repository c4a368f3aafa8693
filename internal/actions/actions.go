// Package actions defines the closed, serializable DomainAction union the
// dispatch reducer consumes, plus the outer UI-level Action the UI runtime
// handles directly (navigation, layer push/pop, quit, save) without ever
// forwarding it to the reducer. Grounded on the teacher's input.Action enum
// (internal/input), generalized from a tracker's cursor-move/edit actions to
// Imbolc's instrument/mixer/piano-roll/automation/bus/arrangement mutations.
package actions

import (
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/session"
)

// UndoScope tells the dispatch runtime how much of state to snapshot before
// applying an action.
type UndoScope int

const (
	UndoNone UndoScope = iota
	UndoSingleInstrument
	UndoSession
	UndoFull
)

// CoalesceKey groups consecutive undoable actions that should share one
// undo entry when they land within the coalescing window.
type CoalesceKey struct {
	Session    bool
	Instrument ids.InstrumentId
}

// Kind tags the DomainAction union.
type Kind int

const (
	// Instrument CRUD and parameter adjust.
	InstrumentAdd Kind = iota
	InstrumentRemove
	InstrumentRename
	InstrumentSetLevel
	InstrumentSetPan
	InstrumentSetMute
	InstrumentSetSolo
	InstrumentSetOutput
	InstrumentSetSend
	InstrumentAdjustFilterCutoff
	InstrumentSetFilterCutoff
	InstrumentSetFilterResonance
	InstrumentSetFilterKind
	InstrumentAddProcessingStage
	InstrumentRemoveProcessingStage
	InstrumentMoveStage
	InstrumentToggleEq
	InstrumentSetEqBand
	InstrumentSetEffectParam
	InstrumentSetEffectEnabled
	InstrumentSetLfo
	InstrumentSetEnvelope
	InstrumentSetVoiceCap
	InstrumentSetStealStrategy
	InstrumentSetSampler
	InstrumentSetDrumStep
	InstrumentSetDrumStepsCount

	// Mixer / bus management.
	BusAdd
	BusRemove
	BusSetLevel
	BusSetMute
	BusSetSolo
	BusAddEffect
	BusRemoveEffect
	BusSetEffectParam
	GroupAdd
	GroupRemove
	GroupSetMembers
	GroupSetEffectParam

	// Piano-roll edits.
	NoteAdd
	NoteRemove
	TransportPlay
	TransportStop
	TransportSeek
	TransportSetLoop
	TransportSetBPM
	TransportSetTimeSignature
	TransportSetSnap
	TransportSetKeyScale

	// Automation edits.
	AutomationAddLane
	AutomationRemoveLane
	AutomationSetPoint
	AutomationRemovePoint
	AutomationSetCurve

	// Arrangement edits.
	ArrangementAddClip
	ArrangementAddPlacement
	ArrangementRemovePlacement
	ArrangementSetMode

	// VST parameter sets and registry.
	VstRegister
	VstSetParam
	SynthDefRegister

	// Clicks (metronome) and transport-adjacent toggles.
	ClickSetEnabled
	ClickSetVolume

	// Undo/redo and lifecycle.
	UndoAction
	RedoAction
	ProjectNew
	ProjectLoad
	ProjectSave
	ProjectConfirmClose
)

// DomainAction is the closed union the reducer accepts. Only the fields
// relevant to Kind are meaningful for a given value.
type DomainAction struct {
	Kind Kind

	Instrument ids.InstrumentId
	Bus        ids.BusId
	Group      ids.GroupId
	Effect     ids.EffectId
	Param      ids.ParamIndex
	Lane       ids.AutomationLaneId
	Clip       ids.ClipId
	Placement  ids.PlacementId

	Name   string
	Float  float64
	Delta  float64
	Int    int
	Bool   bool
	Tick   int

	Source         session.Source
	Output         session.Output
	FilterKind     session.FilterKind
	StageKind      session.StageKind
	EffectType     session.EffectType
	EqBandIndex    int // 0=Low,1=Mid,2=High
	EqBand         session.EqBand
	Lfo            session.Lfo
	Envelope       session.Envelope
	StealStrategy  session.StealStrategy
	Sampler        session.SamplerConfig
	Note           session.Note
	TimeSignature  session.TimeSignature
	Target         session.AutomationTarget
	Curve          session.CurveKind
	Members        []ids.InstrumentId
	PlaybackMode   session.PlaybackMode
	DrumPad        int
	DrumStep       int
	ProjectPath    string
}

// OuterKind tags the outer UI-level Action the UI runtime handles without
// forwarding to the reducer.
type OuterKind int

const (
	Navigate OuterKind = iota
	LayerPush
	LayerPop
	Quit
	SaveRequest
)

// Outer is the UI-level action: navigation, layer stack, quit, save trigger.
type Outer struct {
	Kind   OuterKind
	Target string
}
