package reducer

import (
	"fmt"

	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/audiofx"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/session"
)

func reduceInstrumentAdd(state *session.State, a actions.DomainAction) Result {
	id := state.Instruments.NextID()
	name := a.Name
	if name == "" {
		name = fmt.Sprintf("Instrument %d", int(id))
	}
	inst := session.NewInstrument(id, name, a.Source)
	state.Instruments.Add(inst)
	effects := []audiofx.Effect{{Kind: audiofx.AddInstrumentRouting, Instrument: id}}
	if a.Source.Kind == session.SourceCustomSynth || a.Source.Kind == session.SourceVstPlugin {
		effects = append(effects, audiofx.ForInstrument(audiofx.RebuildRoutingForInstrument, id))
	}
	return okFull(effects...)
}

func reduceInstrumentRemove(state *session.State, a actions.DomainAction) Result {
	if !state.Instruments.Exists(a.Instrument) {
		return ignored("no such instrument")
	}
	id := a.Instrument
	state.Instruments.Remove(id)
	state.Session.PianoRoll.Tracks[id] = nil
	delete(state.Session.PianoRoll.Tracks, id)
	state.Session.Automation.RemoveLanesTargetingInstrument(id)
	state.Session.Arrangement.RemovePlacementsFor(id)
	return okFull(audiofx.ForInstrument(audiofx.DeleteInstrumentRouting, id))
}

func withInstrument(state *session.State, id ids.InstrumentId, f func(*session.Instrument) Result) Result {
	inst, ok := state.Instruments.Instruments[id]
	if !ok {
		return ignored("no such instrument")
	}
	return f(inst)
}

func reduceInstrumentRename(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		inst.Name = a.Name
		return okSingle(a.Instrument)
	})
}

func reduceInstrumentSetLevel(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		inst.Mixer.Level = a.Float
		return okSingle(a.Instrument, audiofx.Rebuild(audiofx.UpdateMixerParams))
	})
}

func reduceInstrumentSetPan(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		inst.Mixer.Pan = a.Float
		return okSingle(a.Instrument, audiofx.Rebuild(audiofx.UpdateMixerParams))
	})
}

func reduceInstrumentSetMute(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		inst.Mixer.Mute = a.Bool
		return okSingle(a.Instrument, audiofx.Rebuild(audiofx.UpdateMixerParams))
	})
}

func reduceInstrumentSetSolo(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		inst.Mixer.Solo = a.Bool
		return okSingle(a.Instrument, audiofx.Rebuild(audiofx.UpdateMixerParams))
	})
}

func reduceInstrumentSetOutput(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		if a.Output.Kind == session.OutputBus {
			if _, ok := state.Session.Mixer.BusByID(a.Output.Bus); !ok {
				return ignored("no such bus")
			}
		}
		inst.Output = a.Output
		return okSingle(a.Instrument, audiofx.ForInstrument(audiofx.RebuildRoutingForInstrument, a.Instrument))
	})
}

func reduceInstrumentSetSend(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		if _, ok := state.Session.Mixer.BusByID(a.Bus); !ok {
			return ignored("no such bus")
		}
		if a.Float <= 0 {
			delete(inst.Sends, a.Bus)
		} else {
			tap := session.PostInsert
			if a.Bool {
				tap = session.PreInsert
			}
			inst.Sends[a.Bus] = session.Send{Level: a.Float, TapPoint: tap}
		}
		return okSingle(a.Instrument, audiofx.Rebuild(audiofx.RebuildBusProcessing))
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func findFilterStage(inst *session.Instrument) (*session.ProcessingStage, bool) {
	for i := range inst.ProcessingChain {
		if inst.ProcessingChain[i].Kind == session.StageFilter {
			return &inst.ProcessingChain[i], true
		}
	}
	return nil, false
}

func reduceInstrumentAdjustFilterCutoff(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		stage, ok := findFilterStage(inst)
		if !ok {
			return ignored("instrument has no filter stage")
		}
		stage.Filter.Cutoff = clamp(stage.Filter.Cutoff+a.Delta, 0, 1)
		return okSingle(a.Instrument, audiofx.SetFilter(a.Instrument, audiofx.FilterParamCutoff, stage.Filter.Cutoff))
	})
}

func reduceInstrumentSetFilterCutoff(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		stage, ok := findFilterStage(inst)
		if !ok {
			return ignored("instrument has no filter stage")
		}
		stage.Filter.Cutoff = clamp(a.Float, 0, 1)
		return okSingle(a.Instrument, audiofx.SetFilter(a.Instrument, audiofx.FilterParamCutoff, stage.Filter.Cutoff))
	})
}

func reduceInstrumentSetFilterResonance(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		stage, ok := findFilterStage(inst)
		if !ok {
			return ignored("instrument has no filter stage")
		}
		stage.Filter.Resonance = clamp(a.Float, 0, 1)
		return okSingle(a.Instrument, audiofx.SetFilter(a.Instrument, audiofx.FilterParamResonance, stage.Filter.Resonance))
	})
}

func reduceInstrumentSetFilterKind(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		stage, ok := findFilterStage(inst)
		if !ok {
			return ignored("instrument has no filter stage")
		}
		stage.Filter.Kind = a.FilterKind
		return okSingle(a.Instrument, audiofx.ForInstrument(audiofx.RebuildRoutingForInstrument, a.Instrument))
	})
}

// reduceInstrumentAddProcessingStage implements spec.md §7's "ActionRejected
// when pre-conditions violate invariants": adding a second Eq stage is
// rejected outright (ToggleEq, not Add, is the path that removes one).
func reduceInstrumentAddProcessingStage(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		if a.StageKind == session.StageEq && inst.EqStageCount() >= 1 {
			return rejected("instrument already has an EQ stage")
		}
		stage := session.ProcessingStage{Kind: a.StageKind}
		switch a.StageKind {
		case session.StageFilter:
			stage.Filter = session.FilterConfig{Kind: a.FilterKind}
		case session.StageEq:
			stage.Eq = session.EqConfig{}
		case session.StageEffect:
			stage.Effect = session.EffectSlot{ID: inst.NextEffectID(), Kind: a.EffectType, Enabled: true}
		}
		inst.ProcessingChain = append(inst.ProcessingChain, stage)
		return okSingle(a.Instrument, audiofx.ForInstrument(audiofx.RebuildRoutingForInstrument, a.Instrument))
	})
}

func reduceInstrumentRemoveProcessingStage(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		if a.Int < 0 || a.Int >= len(inst.ProcessingChain) {
			return ignored("no such processing stage")
		}
		inst.ProcessingChain = append(inst.ProcessingChain[:a.Int], inst.ProcessingChain[a.Int+1:]...)
		return okSingle(a.Instrument, audiofx.ForInstrument(audiofx.RebuildRoutingForInstrument, a.Instrument))
	})
}

// reduceInstrumentMoveStage reorders the processing chain; spec.md §4.1
// names this as the canonical trigger for RebuildRoutingForInstrument.
func reduceInstrumentMoveStage(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		from, to := a.Int, int(a.Param)
		n := len(inst.ProcessingChain)
		if from < 0 || from >= n || to < 0 || to >= n {
			return ignored("stage index out of range")
		}
		stage := inst.ProcessingChain[from]
		inst.ProcessingChain = append(inst.ProcessingChain[:from], inst.ProcessingChain[from+1:]...)
		inst.ProcessingChain = append(inst.ProcessingChain[:to], append([]session.ProcessingStage{stage}, inst.ProcessingChain[to:]...)...)
		return okSingle(a.Instrument, audiofx.ForInstrument(audiofx.RebuildRoutingForInstrument, a.Instrument))
	})
}

// reduceInstrumentToggleEq implements spec.md §4.1's note: "the reducer
// instead treats ToggleEq as remove" when a chain already has one EQ stage;
// otherwise it appends a fresh one.
func reduceInstrumentToggleEq(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		for i, stage := range inst.ProcessingChain {
			if stage.Kind == session.StageEq {
				inst.ProcessingChain = append(inst.ProcessingChain[:i], inst.ProcessingChain[i+1:]...)
				return okSingle(a.Instrument, audiofx.ForInstrument(audiofx.RebuildRoutingForInstrument, a.Instrument))
			}
		}
		inst.ProcessingChain = append(inst.ProcessingChain, session.ProcessingStage{Kind: session.StageEq})
		return okSingle(a.Instrument, audiofx.ForInstrument(audiofx.RebuildRoutingForInstrument, a.Instrument))
	})
}

func reduceInstrumentSetEqBand(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		for i := range inst.ProcessingChain {
			stage := &inst.ProcessingChain[i]
			if stage.Kind != session.StageEq {
				continue
			}
			switch a.EqBandIndex {
			case 0:
				stage.Eq.Low = a.EqBand
			case 1:
				stage.Eq.Mid = a.EqBand
			case 2:
				stage.Eq.High = a.EqBand
			default:
				return ignored("invalid eq band index")
			}
			return okSingle(a.Instrument, audiofx.ForInstrument(audiofx.RebuildRoutingForInstrument, a.Instrument))
		}
		return ignored("instrument has no eq stage")
	})
}

func reduceInstrumentSetEffectParam(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		slot, ok := inst.EffectByID(a.Effect)
		if !ok {
			return ignored("no such effect")
		}
		clamped, ok := slot.SetParam(a.Param, a.Float)
		if !ok {
			return ignored("no such effect param")
		}
		return okSingle(a.Instrument, audiofx.SetEffect(a.Instrument, a.Effect, a.Param, clamped))
	})
}

func reduceInstrumentSetEffectEnabled(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		slot, ok := inst.EffectByID(a.Effect)
		if !ok {
			return ignored("no such effect")
		}
		slot.Enabled = a.Bool
		return okSingle(a.Instrument, audiofx.ForInstrument(audiofx.RebuildRoutingForInstrument, a.Instrument))
	})
}

func reduceInstrumentSetLfo(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		inst.Lfo = a.Lfo
		inst.HasLfo = a.Lfo.Enabled
		return okSingle(a.Instrument, audiofx.SetLfo(a.Instrument, audiofx.LfoParamRate, a.Lfo.Rate),
			audiofx.SetLfo(a.Instrument, audiofx.LfoParamDepth, a.Lfo.Depth))
	})
}

func reduceInstrumentSetEnvelope(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		inst.Envelope = a.Envelope
		inst.HasEnvelope = true
		return okSingle(a.Instrument)
	})
}

func reduceInstrumentSetVoiceCap(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		cap := a.Int
		if cap < 1 {
			cap = 1
		}
		if cap > 64 {
			cap = 64
		}
		inst.VoiceCap = cap
		return okSingle(a.Instrument)
	})
}

func reduceInstrumentSetStealStrategy(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		inst.StealStrategy = a.StealStrategy
		return okSingle(a.Instrument)
	})
}

func reduceInstrumentSetSampler(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		if !inst.SetSampler(a.Sampler) {
			return rejected("instrument source is not a sampler")
		}
		return okSingle(a.Instrument, audiofx.ForInstrument(audiofx.RebuildRoutingForInstrument, a.Instrument))
	})
}

func reduceInstrumentSetDrumStep(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		drums, ok := inst.DrumSequencer()
		if !ok {
			return rejected("instrument source is not a drum kit")
		}
		if a.DrumPad < 0 || a.DrumPad >= len(drums.Steps) || a.DrumStep < 0 || a.DrumStep >= drums.StepsCount {
			return ignored("pad/step out of range")
		}
		drums.Steps[a.DrumPad][a.DrumStep] = session.DrumSequencerStep{Active: a.Bool, Velocity: a.Int}
		return okSingle(a.Instrument, audiofx.Rebuild(audiofx.UpdatePianoRoll))
	})
}

func reduceInstrumentSetDrumStepsCount(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		drums, ok := inst.DrumSequencer()
		if !ok {
			return rejected("instrument source is not a drum kit")
		}
		n := a.Int
		if n < 1 {
			n = 1
		}
		drums.StepsCount = n
		for i := range drums.Steps {
			if len(drums.Steps[i]) < n {
				drums.Steps[i] = append(drums.Steps[i], make([]session.DrumSequencerStep, n-len(drums.Steps[i]))...)
			} else {
				drums.Steps[i] = drums.Steps[i][:n]
			}
		}
		return okSingle(a.Instrument, audiofx.Rebuild(audiofx.UpdatePianoRoll))
	})
}
