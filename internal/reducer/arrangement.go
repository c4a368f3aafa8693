package reducer

import (
	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/audiofx"
	"github.com/schollz/imbolc/internal/session"
)

func reduceArrangementAddClip(state *session.State, a actions.DomainAction) Result {
	if !state.Instruments.Exists(a.Instrument) {
		return ignored("no such instrument")
	}
	state.Session.Arrangement.AddClip(a.Name, a.Instrument, a.Int, nil)
	return okSession()
}

// reduceArrangementAddPlacement implements spec.md §8 scenario 3's bus-add
// pattern in the arrangement domain: a placement is rejected if it
// references a clip that doesn't exist, per spec.md §3's Arrangement
// invariant.
func reduceArrangementAddPlacement(state *session.State, a actions.DomainAction) Result {
	if !state.Instruments.Exists(a.Instrument) {
		return ignored("no such instrument")
	}
	if _, ok := state.Session.Arrangement.AddPlacement(a.Clip, a.Instrument, a.Tick); !ok {
		return rejected("no such clip")
	}
	return okSession(audiofx.Rebuild(audiofx.UpdatePianoRoll))
}

func reduceArrangementRemovePlacement(state *session.State, a actions.DomainAction) Result {
	placements := state.Session.Arrangement.Placements
	for i, p := range placements {
		if p.ID == a.Placement {
			state.Session.Arrangement.Placements = append(placements[:i], placements[i+1:]...)
			return okSession(audiofx.Rebuild(audiofx.UpdatePianoRoll))
		}
	}
	return ignored("no such placement")
}

func reduceArrangementSetMode(state *session.State, a actions.DomainAction) Result {
	state.Session.Arrangement.Mode = a.PlaybackMode
	return okSession(audiofx.Rebuild(audiofx.UpdatePianoRoll))
}
