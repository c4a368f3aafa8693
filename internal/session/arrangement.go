package session

import (
	"sort"

	"github.com/schollz/imbolc/internal/ids"
)

// PlaybackMode selects whether the scheduler loops the piano roll or plays
// the flattened arrangement linearly.
type PlaybackMode int

const (
	ModePattern PlaybackMode = iota
	ModeSong
)

// Clip is a reusable, named sequence of notes for one instrument.
type Clip struct {
	ID         ids.ClipId
	Name       string
	Instrument ids.InstrumentId
	LengthTick int
	Notes      []Note
}

// ClipPlacement places a clip at an absolute tick in the arrangement,
// optionally overriding its length (for a trimmed repeat).
type ClipPlacement struct {
	ID             ids.PlacementId
	ClipID         ids.ClipId
	Instrument     ids.InstrumentId
	StartTick      int
	LengthOverride int // 0 means "use the clip's own length"
}

// Arrangement is the session's song-mode timeline: a clip library and the
// placements of those clips.
type Arrangement struct {
	Clips        []Clip
	Placements   []ClipPlacement
	Mode         PlaybackMode
	clipCounter  *ids.Counter
	placeCounter *ids.Counter
}

// NewArrangement returns an empty Arrangement in Pattern mode.
func NewArrangement() *Arrangement {
	return &Arrangement{
		clipCounter:  ids.NewCounter(1),
		placeCounter: ids.NewCounter(1),
	}
}

// ResetCounters recomputes clip/placement id counters after deserialization.
func (a *Arrangement) ResetCounters() {
	maxClip, maxPlace := 0, 0
	for _, c := range a.Clips {
		if int(c.ID) > maxClip {
			maxClip = int(c.ID)
		}
	}
	for _, p := range a.Placements {
		if int(p.ID) > maxPlace {
			maxPlace = int(p.ID)
		}
	}
	a.clipCounter.Reset(maxClip)
	a.placeCounter.Reset(maxPlace)
}

// AddClip appends a clip, returning its id.
func (a *Arrangement) AddClip(name string, instrument ids.InstrumentId, lengthTick int, notes []Note) ids.ClipId {
	id := ids.ClipId(a.clipCounter.Next())
	a.Clips = append(a.Clips, Clip{ID: id, Name: name, Instrument: instrument, LengthTick: lengthTick, Notes: notes})
	return id
}

// ClipByID returns a pointer to the clip with the given id, if any.
func (a *Arrangement) ClipByID(id ids.ClipId) (*Clip, bool) {
	for i := range a.Clips {
		if a.Clips[i].ID == id {
			return &a.Clips[i], true
		}
	}
	return nil, false
}

// AddPlacement places clipID at startTick for instrument, returning the new
// placement's id. Fails if clipID doesn't exist.
func (a *Arrangement) AddPlacement(clipID ids.ClipId, instrument ids.InstrumentId, startTick int) (ids.PlacementId, bool) {
	if _, ok := a.ClipByID(clipID); !ok {
		return 0, false
	}
	id := ids.PlacementId(a.placeCounter.Next())
	a.Placements = append(a.Placements, ClipPlacement{ID: id, ClipID: clipID, Instrument: instrument, StartTick: startTick})
	return id, true
}

// effectiveLength returns a placement's sounding length: its override if
// set, else its clip's own length.
func (a *Arrangement) effectiveLength(p ClipPlacement) int {
	if p.LengthOverride > 0 {
		return p.LengthOverride
	}
	if clip, ok := a.ClipByID(p.ClipID); ok {
		return clip.LengthTick
	}
	return 0
}

// FlattenToNotes emits, for each placement, its clip's notes translated by
// StartTick and clamped to the effective length, grouped by instrument
// (spec.md §3, Arrangement / §8 scenario 4).
func (a *Arrangement) FlattenToNotes() map[ids.InstrumentId][]Note {
	out := make(map[ids.InstrumentId][]Note)
	for _, p := range a.Placements {
		clip, ok := a.ClipByID(p.ClipID)
		if !ok {
			continue
		}
		length := a.effectiveLength(p)
		for _, n := range clip.Notes {
			if n.Tick >= length {
				continue
			}
			translated := n
			translated.Tick = n.Tick + p.StartTick
			if translated.Tick+translated.Duration > p.StartTick+length {
				translated.Duration = p.StartTick + length - translated.Tick
			}
			out[p.Instrument] = append(out[p.Instrument], translated)
		}
	}
	for inst := range out {
		sort.Slice(out[inst], func(i, j int) bool {
			if out[inst][i].Tick != out[inst][j].Tick {
				return out[inst][i].Tick < out[inst][j].Tick
			}
			return out[inst][i].Pitch < out[inst][j].Pitch
		})
	}
	return out
}

// Length returns the arrangement's total length in ticks: the furthest
// extent of start_tick + effective_length across all placements.
func (a *Arrangement) Length() int {
	max := 0
	for _, p := range a.Placements {
		end := p.StartTick + a.effectiveLength(p)
		if end > max {
			max = end
		}
	}
	return max
}

// RemovePlacementsFor removes every placement referencing instrument,
// called when an instrument is deleted.
func (a *Arrangement) RemovePlacementsFor(instrument ids.InstrumentId) {
	kept := a.Placements[:0]
	for _, p := range a.Placements {
		if p.Instrument == instrument {
			continue
		}
		kept = append(kept, p)
	}
	a.Placements = kept
}

// Clone deep-copies the arrangement.
func (a *Arrangement) Clone() *Arrangement {
	clone := &Arrangement{
		Mode:         a.Mode,
		clipCounter:  ids.NewCounter(a.clipCounter.Peek()),
		placeCounter: ids.NewCounter(a.placeCounter.Peek()),
	}
	clone.Clips = make([]Clip, len(a.Clips))
	for i, c := range a.Clips {
		clone.Clips[i] = c
		clone.Clips[i].Notes = append([]Note(nil), c.Notes...)
	}
	clone.Placements = append([]ClipPlacement(nil), a.Placements...)
	return clone
}
