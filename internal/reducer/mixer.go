package reducer

import (
	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/audiofx"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/session"
)

func reduceBusAdd(state *session.State, a actions.DomainAction) Result {
	name := a.Name
	if name == "" {
		name = "Bus"
	}
	if _, ok := state.Session.Mixer.AddBus(name); !ok {
		return rejected("bus count already at maximum")
	}
	return okSession(audiofx.Rebuild(audiofx.RebuildBusProcessing))
}

// reduceBusRemove implements spec.md §3's "Deleting a bus" invariant:
// every instrument routed to or sending to the bus is reset to Master /
// has the send dropped, and automation lanes targeting it are removed,
// before the bus itself is removed from the mixer.
func reduceBusRemove(state *session.State, a actions.DomainAction) Result {
	if _, ok := state.Session.Mixer.BusByID(a.Bus); !ok {
		return ignored("no such bus")
	}
	if !state.Session.Mixer.RemoveBus(a.Bus) {
		return rejected("cannot remove the last bus")
	}
	for _, inst := range state.Instruments.Instruments {
		if inst.Output.Kind == session.OutputBus && inst.Output.Bus == a.Bus {
			inst.Output = session.Output{Kind: session.OutputMaster}
		}
		delete(inst.Sends, a.Bus)
	}
	state.Session.Automation.RemoveLanesTargetingBus(a.Bus)
	return okFull(audiofx.Rebuild(audiofx.RebuildBusProcessing))
}

func reduceBusSetLevel(state *session.State, a actions.DomainAction) Result {
	bus, ok := state.Session.Mixer.BusByID(a.Bus)
	if !ok {
		return ignored("no such bus")
	}
	bus.Level = a.Float
	return okSession(audiofx.Rebuild(audiofx.UpdateMixerParams))
}

func reduceBusSetMute(state *session.State, a actions.DomainAction) Result {
	bus, ok := state.Session.Mixer.BusByID(a.Bus)
	if !ok {
		return ignored("no such bus")
	}
	bus.Mute = a.Bool
	return okSession(audiofx.Rebuild(audiofx.UpdateMixerParams))
}

func reduceBusSetSolo(state *session.State, a actions.DomainAction) Result {
	bus, ok := state.Session.Mixer.BusByID(a.Bus)
	if !ok {
		return ignored("no such bus")
	}
	bus.Solo = a.Bool
	return okSession(audiofx.Rebuild(audiofx.UpdateMixerParams))
}

func reduceBusAddEffect(state *session.State, a actions.DomainAction) Result {
	bus, ok := state.Session.Mixer.BusByID(a.Bus)
	if !ok {
		return ignored("no such bus")
	}
	bus.Effects = append(bus.Effects, session.EffectSlot{ID: state.Session.Mixer.NextEffectID(), Kind: a.EffectType, Enabled: true})
	return okSession(audiofx.Rebuild(audiofx.RebuildBusProcessing))
}

func reduceBusRemoveEffect(state *session.State, a actions.DomainAction) Result {
	bus, ok := state.Session.Mixer.BusByID(a.Bus)
	if !ok {
		return ignored("no such bus")
	}
	for i, e := range bus.Effects {
		if e.ID == a.Effect {
			bus.Effects = append(bus.Effects[:i], bus.Effects[i+1:]...)
			return okSession(audiofx.Rebuild(audiofx.RebuildBusProcessing))
		}
	}
	return ignored("no such effect on bus")
}

func reduceBusSetEffectParam(state *session.State, a actions.DomainAction) Result {
	bus, ok := state.Session.Mixer.BusByID(a.Bus)
	if !ok {
		return ignored("no such bus")
	}
	for i := range bus.Effects {
		if bus.Effects[i].ID == a.Effect {
			clamped, ok := bus.Effects[i].SetParam(a.Param, a.Float)
			if !ok {
				return ignored("no such effect param")
			}
			return okSession(audiofx.SetBusEffect(a.Bus, a.Effect, a.Param, clamped))
		}
	}
	return ignored("no such effect on bus")
}

func reduceGroupAdd(state *session.State, a actions.DomainAction) Result {
	state.Session.Mixer.AddGroup(a.Name)
	return okSession(audiofx.Rebuild(audiofx.RebuildBusProcessing))
}

func reduceGroupRemove(state *session.State, a actions.DomainAction) Result {
	mixer := state.Session.Mixer
	for i, g := range mixer.LayerGroups {
		if g.ID == a.Group {
			mixer.LayerGroups = append(mixer.LayerGroups[:i], mixer.LayerGroups[i+1:]...)
			return okSession(audiofx.Rebuild(audiofx.RebuildBusProcessing))
		}
	}
	return ignored("no such group")
}

func reduceGroupSetMembers(state *session.State, a actions.DomainAction) Result {
	group, ok := state.Session.Mixer.GroupByID(a.Group)
	if !ok {
		return ignored("no such group")
	}
	valid := make([]ids.InstrumentId, 0, len(a.Members))
	for _, id := range a.Members {
		if state.Instruments.Exists(id) {
			valid = append(valid, id)
		}
	}
	group.Members = valid
	return okSession(audiofx.Rebuild(audiofx.RebuildBusProcessing))
}

func reduceGroupSetEffectParam(state *session.State, a actions.DomainAction) Result {
	group, ok := state.Session.Mixer.GroupByID(a.Group)
	if !ok {
		return ignored("no such group")
	}
	for i := range group.Effects {
		if group.Effects[i].ID == a.Effect {
			clamped, ok := group.Effects[i].SetParam(a.Param, a.Float)
			if !ok {
				return ignored("no such effect param")
			}
			return okSession(audiofx.SetGroupEffect(a.Group, a.Effect, a.Param, clamped))
		}
	}
	return ignored("no such effect on group")
}
