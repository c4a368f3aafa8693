package reducer

import (
	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/audiofx"
	"github.com/schollz/imbolc/internal/session"
)

// validateTarget enforces referential integrity for a new/changed
// automation target at action time, rather than waiting for the post-action
// invariant pass, so a bad target is rejected instead of silently dropped.
func validateTarget(state *session.State, t session.AutomationTarget) bool {
	switch t.Kind {
	case session.TargetFilterCutoff:
		return state.Instruments.Exists(t.Instrument)
	case session.TargetEffectParam:
		inst, ok := state.Instruments.Instruments[t.Instrument]
		if !ok {
			return false
		}
		_, ok = inst.EffectByID(t.Effect)
		return ok
	case session.TargetBusLevel:
		_, ok := state.Session.Mixer.BusByID(t.Bus)
		return ok
	case session.TargetBpm:
		return true
	}
	return false
}

func reduceAutomationAddLane(state *session.State, a actions.DomainAction) Result {
	if !validateTarget(state, a.Target) {
		return rejected("automation target does not exist")
	}
	state.Session.Automation.AddLane(a.Target, a.Curve)
	return okSession(audiofx.Rebuild(audiofx.UpdateAutomation))
}

func reduceAutomationRemoveLane(state *session.State, a actions.DomainAction) Result {
	if !state.Session.Automation.RemoveLane(a.Lane) {
		return ignored("no such automation lane")
	}
	return okSession(audiofx.Rebuild(audiofx.UpdateAutomation))
}

func reduceAutomationSetPoint(state *session.State, a actions.DomainAction) Result {
	lane, ok := state.Session.Automation.LaneByID(a.Lane)
	if !ok {
		return ignored("no such automation lane")
	}
	lane.InsertPoint(session.AutomationPoint{Tick: a.Tick, Value: a.Float})
	return okSession(audiofx.Rebuild(audiofx.UpdateAutomation))
}

func reduceAutomationRemovePoint(state *session.State, a actions.DomainAction) Result {
	lane, ok := state.Session.Automation.LaneByID(a.Lane)
	if !ok {
		return ignored("no such automation lane")
	}
	for i, p := range lane.Points {
		if p.Tick == a.Tick {
			lane.Points = append(lane.Points[:i], lane.Points[i+1:]...)
			return okSession(audiofx.Rebuild(audiofx.UpdateAutomation))
		}
	}
	return ignored("no point at tick")
}

func reduceAutomationSetCurve(state *session.State, a actions.DomainAction) Result {
	lane, ok := state.Session.Automation.LaneByID(a.Lane)
	if !ok {
		return ignored("no such automation lane")
	}
	lane.Curve = a.Curve
	return okSession(audiofx.Rebuild(audiofx.UpdateAutomation))
}
