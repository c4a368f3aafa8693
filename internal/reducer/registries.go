package reducer

import (
	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/audiofx"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/session"
)

func reduceVstRegister(state *session.State, a actions.DomainAction) Result {
	id := state.Session.VstPlugins.Register(a.ProjectPath, a.Name, nil)
	_ = id
	return okSession()
}

func reduceVstSetParam(state *session.State, a actions.DomainAction) Result {
	return withInstrument(state, a.Instrument, func(inst *session.Instrument) Result {
		slot, ok := inst.EffectByID(a.Effect)
		if !ok || slot.Kind != session.EffectCustomVst {
			return ignored("no such vst effect")
		}
		clamped, ok := slot.SetParam(a.Param, a.Float)
		if !ok {
			if slot.VstParamState == nil {
				slot.VstParamState = make(map[ids.ParamIndex]float64)
			}
			slot.VstParamState[a.Param] = a.Float
			clamped = a.Float
		}
		return okSingle(a.Instrument, audiofx.SetEffect(a.Instrument, a.Effect, a.Param, clamped))
	})
}

func reduceSynthDefRegister(state *session.State, a actions.DomainAction) Result {
	state.Session.SynthDefs.Register(a.Name, nil)
	return okSession()
}
