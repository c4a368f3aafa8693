// Package audiofx is the flat stream of effects the reducer emits for the
// audio thread to apply. It is data, not behavior: the coalescing rules in
// Coalesce are the only logic here, mirroring the teacher's plain
// struct-per-message OSC builders in internal/supercollider generalized into
// a typed Go union instead of raw string commands.
package audiofx

import "github.com/schollz/imbolc/internal/ids"

// Kind tags the union of audio effects a single reducer step can emit.
type Kind int

const (
	RebuildInstruments Kind = iota
	RebuildSession
	RebuildRouting
	RebuildRoutingForInstrument
	AddInstrumentRouting
	DeleteInstrumentRouting
	RebuildBusProcessing
	UpdateMixerParams
	UpdatePianoRoll
	UpdateAutomation
	SetFilterParam
	SetEffectParam
	SetLfoParam
	SetBusEffectParam
	SetLayerGroupEffectParam
)

// FilterParamKind mirrors session.FilterParamKind without importing the
// session package, keeping audiofx a leaf dependency for internal/backend
// and internal/scheduler.
type FilterParamKind int

const (
	FilterParamCutoff FilterParamKind = iota
	FilterParamResonance
)

// LfoParamKind mirrors session.LfoParamKind.
type LfoParamKind int

const (
	LfoParamRate LfoParamKind = iota
	LfoParamDepth
)

// Effect is one flat, typed entry in the stream. Only the fields relevant to
// Kind are populated; zero value for the rest.
type Effect struct {
	Kind Kind

	Instrument ids.InstrumentId
	Bus        ids.BusId
	Group      ids.GroupId
	Effect     ids.EffectId
	Param      ids.ParamIndex

	FilterParam FilterParamKind
	LfoParam    LfoParamKind
	Value       float64
}

func Rebuild(kind Kind) Effect { return Effect{Kind: kind} }

func ForInstrument(kind Kind, id ids.InstrumentId) Effect {
	return Effect{Kind: kind, Instrument: id}
}

func SetFilter(id ids.InstrumentId, p FilterParamKind, v float64) Effect {
	return Effect{Kind: SetFilterParam, Instrument: id, FilterParam: p, Value: v}
}

func SetLfo(id ids.InstrumentId, p LfoParamKind, v float64) Effect {
	return Effect{Kind: SetLfoParam, Instrument: id, LfoParam: p, Value: v}
}

func SetEffect(id ids.InstrumentId, effect ids.EffectId, param ids.ParamIndex, v float64) Effect {
	return Effect{Kind: SetEffectParam, Instrument: id, Effect: effect, Param: param, Value: v}
}

func SetBusEffect(bus ids.BusId, effect ids.EffectId, param ids.ParamIndex, v float64) Effect {
	return Effect{Kind: SetBusEffectParam, Bus: bus, Effect: effect, Param: param, Value: v}
}

func SetGroupEffect(group ids.GroupId, effect ids.EffectId, param ids.ParamIndex, v float64) Effect {
	return Effect{Kind: SetLayerGroupEffectParam, Group: group, Effect: effect, Param: param, Value: v}
}

// targetKey identifies "the same target" for dedup/coalescing purposes:
// same kind plus whatever addressing fields that kind uses.
type targetKey struct {
	kind        Kind
	instrument  ids.InstrumentId
	bus         ids.BusId
	group       ids.GroupId
	effect      ids.EffectId
	param       ids.ParamIndex
	filterParam FilterParamKind
	lfoParam    LfoParamKind
}

func key(e Effect) targetKey {
	return targetKey{
		kind: e.Kind, instrument: e.Instrument, bus: e.Bus, group: e.Group,
		effect: e.Effect, param: e.Param, filterParam: e.FilterParam, lfoParam: e.LfoParam,
	}
}

const escalateAfterDistinctInstruments = 4

// Coalesce applies spec.md §4.2's between-frame reduction rules to a raw
// stream of effects accumulated over one scheduler frame:
//
//   - Multiple SetXParam effects for the same target collapse to the latest
//     value.
//   - UpdateMixerParams dedups to a single entry.
//   - RebuildRoutingForInstrument escalates to RebuildInstruments once more
//     than escalateAfterDistinctInstruments distinct ids appear in the frame.
//   - Any Rebuild* subsumes targeted params for the same scope: a
//     RebuildInstruments drops all per-instrument targeted params,
//     RebuildRoutingForInstrument(id) drops targeted params for id,
//     RebuildBusProcessing drops bus/group effect params.
func Coalesce(stream []Effect) []Effect {
	targeted := map[targetKey]Effect{}
	var order []targetKey
	structural := map[Kind]bool{}
	rebuildInstruments := map[ids.InstrumentId]bool{}
	var otherOrder []Effect

	isTargetedParam := func(k Kind) bool {
		switch k {
		case SetFilterParam, SetEffectParam, SetLfoParam, SetBusEffectParam, SetLayerGroupEffectParam:
			return true
		}
		return false
	}

	for _, e := range stream {
		switch e.Kind {
		case UpdateMixerParams, RebuildSession, RebuildRouting, RebuildBusProcessing, UpdatePianoRoll, UpdateAutomation:
			structural[e.Kind] = true
		case RebuildInstruments:
			structural[RebuildInstruments] = true
		case RebuildRoutingForInstrument:
			rebuildInstruments[e.Instrument] = true
		case AddInstrumentRouting, DeleteInstrumentRouting:
			otherOrder = append(otherOrder, e)
		default:
			if isTargetedParam(e.Kind) {
				k := key(e)
				if _, seen := targeted[k]; !seen {
					order = append(order, k)
				}
				targeted[k] = e
			} else {
				otherOrder = append(otherOrder, e)
			}
		}
	}

	if len(rebuildInstruments) > escalateAfterDistinctInstruments {
		structural[RebuildInstruments] = true
		rebuildInstruments = nil
	}

	var out []Effect
	if structural[RebuildInstruments] {
		out = append(out, Effect{Kind: RebuildInstruments})
		delete(structural, RebuildInstruments)
		rebuildInstruments = nil
		// RebuildInstruments subsumes all per-instrument targeted params.
		filtered := order[:0]
		for _, k := range order {
			if k.kind == SetFilterParam || k.kind == SetEffectParam || k.kind == SetLfoParam {
				continue
			}
			filtered = append(filtered, k)
		}
		order = filtered
	}
	for id := range rebuildInstruments {
		out = append(out, Effect{Kind: RebuildRoutingForInstrument, Instrument: id})
		filtered := order[:0]
		for _, k := range order {
			if (k.kind == SetFilterParam || k.kind == SetEffectParam || k.kind == SetLfoParam) && k.instrument == id {
				continue
			}
			filtered = append(filtered, k)
		}
		order = filtered
	}
	if structural[RebuildBusProcessing] {
		out = append(out, Effect{Kind: RebuildBusProcessing})
		filtered := order[:0]
		for _, k := range order {
			if k.kind == SetBusEffectParam || k.kind == SetLayerGroupEffectParam {
				continue
			}
			filtered = append(filtered, k)
		}
		order = filtered
	}
	for kind := range structural {
		switch kind {
		case RebuildInstruments, RebuildBusProcessing:
			continue
		}
		out = append(out, Effect{Kind: kind})
	}
	out = append(out, otherOrder...)
	for _, k := range order {
		out = append(out, targeted[k])
	}
	return out
}
