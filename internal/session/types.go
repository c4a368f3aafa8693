// Package session holds the authoritative data model: SessionState and
// InstrumentState, the two sub-values that are serialized, mirrored to
// network clients, and reduced by internal/reducer. Nothing in this package
// performs I/O; it is pure data plus small pure helpers (value_at, flatten,
// invariant checks).
package session

import "github.com/schollz/imbolc/internal/ids"

// SourceKind tags the union of instrument sound sources.
type SourceKind int

const (
	SourceOscillator SourceKind = iota
	SourceSampler
	SourceDrumKit
	SourceAudioInput
	SourceBusInput
	SourceCustomSynth
	SourceVstPlugin
)

// OscillatorShape enumerates the built-in oscillator waveforms.
type OscillatorShape int

const (
	OscSine OscillatorShape = iota
	OscSaw
	OscSquare
	OscTriangle
	OscNoise
)

// Source is the tagged union carried by Instrument.Source. Only the field
// matching Kind is meaningful; accessors below enforce this.
type Source struct {
	Kind            SourceKind
	Oscillator      OscillatorShape
	CustomSynthDef  ids.CustomSynthDefId
	VstPlugin       ids.VstPluginId
	InputBus        ids.BusId
}

// TapPoint names where a send taps an instrument's signal.
type TapPoint int

const (
	PreInsert TapPoint = iota
	PostInsert
)

// Send is a level-controlled tap from an instrument to a mixer bus.
type Send struct {
	Level    float64
	TapPoint TapPoint
}

// Output names an instrument's or bus's destination.
type OutputKind int

const (
	OutputMaster OutputKind = iota
	OutputBus
)

type Output struct {
	Kind OutputKind
	Bus  ids.BusId
}

// FilterKind enumerates supported filter types.
type FilterKind int

const (
	FilterLowpass FilterKind = iota
	FilterHighpass
	FilterBandpass
	FilterNotch
)

type FilterParamKind int

const (
	FilterParamCutoff FilterParamKind = iota
	FilterParamResonance
)

type FilterConfig struct {
	Kind      FilterKind
	Cutoff    float64 // 0..1 normalized, sent unscaled as the filter synth's cutoff control
	Resonance float64 // 0..1
}

type EqBand struct {
	Frequency float64
	Gain      float64
	Q         float64
}

type EqConfig struct {
	Low  EqBand
	Mid  EqBand
	High EqBand
}

// EffectType enumerates built-in and external effect kinds.
type EffectType int

const (
	EffectReverb EffectType = iota
	EffectDelay
	EffectChorus
	EffectComb
	EffectDistortion
	EffectCompressor
	EffectCustomVst
)

// EffectParam is one named, bounded parameter of an EffectSlot, addressed
// externally by its ParamIndex (its position in Params) rather than by name.
type EffectParam struct {
	Name    string
	Value   float64
	Min     float64
	Max     float64
	Default float64
}

// EffectSlot is one stage of an instrument's or bus's effect chain.
type EffectSlot struct {
	ID            ids.EffectId
	Kind          EffectType
	Params        []EffectParam
	Enabled       bool
	VstStatePath  string // empty unless Kind == EffectCustomVst and state was saved
	VstHasState   bool
	VstParamState map[ids.ParamIndex]float64 // optional per-parameter VST raw values
}

// Param returns the slot's parameter at idx, and whether idx was in range.
func (e *EffectSlot) Param(idx ids.ParamIndex) (EffectParam, bool) {
	if idx < 0 || int(idx) >= len(e.Params) {
		return EffectParam{}, false
	}
	return e.Params[idx], true
}

// SetParam clamps value into [min,max] and stores it, returning the clamped
// value. Returns false if idx is out of range.
func (e *EffectSlot) SetParam(idx ids.ParamIndex, value float64) (float64, bool) {
	if idx < 0 || int(idx) >= len(e.Params) {
		return 0, false
	}
	p := &e.Params[idx]
	if value < p.Min {
		value = p.Min
	}
	if value > p.Max {
		value = p.Max
	}
	p.Value = value
	return value, true
}

// StageKind tags the union of processing-chain stages.
type StageKind int

const (
	StageFilter StageKind = iota
	StageEq
	StageEffect
)

// ProcessingStage is one element of Instrument.ProcessingChain.
type ProcessingStage struct {
	Kind   StageKind
	Filter FilterConfig
	Eq     EqConfig
	Effect EffectSlot
}

// LfoTarget names what an LFO modulates.
type LfoTarget int

const (
	LfoTargetNone LfoTarget = iota
	LfoTargetFilterCutoff
	LfoTargetPitch
	LfoTargetPan
	LfoTargetLevel
)

type LfoParamKind int

const (
	LfoParamRate LfoParamKind = iota
	LfoParamDepth
)

type Lfo struct {
	Enabled bool
	Target  LfoTarget
	Rate    float64 // Hz
	Depth   float64 // 0..1
}

type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// MixerBlock is the per-instrument/bus level/pan/mute/solo block.
type MixerBlock struct {
	Level float64
	Pan   float64
	Mute  bool
	Solo  bool
}

// SamplerConfig is present only when Source.Kind == SourceSampler.
type SamplerConfig struct {
	FilePath   string
	StartFrame int
	EndFrame   int
	LoopStart  int
	LoopEnd    int
	Looping    bool
	RootPitch  int
}

// DrumSequencer is present only when Source.Kind == SourceDrumKit.
type DrumSequencerStep struct {
	Active   bool
	Velocity int
}

type DrumSequencer struct {
	Steps      [][]DrumSequencerStep // [padIndex][stepIndex]
	StepsCount int
	PadFiles   []string
}
