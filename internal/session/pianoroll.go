package session

import (
	"sort"

	"github.com/schollz/imbolc/internal/ids"
)

// Note is one event in a Track, grounded on the teacher's phrase-row column
// model (ColNote/ColPitch/ColDeltaTime/ColGate) generalized to absolute
// ticks instead of row-relative delta time.
type Note struct {
	Tick        int
	Duration    int
	Pitch       int     // 0..127
	Velocity    int     // 0..127
	Probability float64 // 0..1
}

// Track is one instrument's sequence of notes, kept sorted by (tick, pitch)
// per spec.md invariant 5 / §8 testable property 3.
type Track struct {
	Notes []Note
}

// InsertNote inserts n maintaining sort order by (tick, pitch).
func (t *Track) InsertNote(n Note) {
	i := sort.Search(len(t.Notes), func(i int) bool {
		if t.Notes[i].Tick != n.Tick {
			return t.Notes[i].Tick > n.Tick
		}
		return t.Notes[i].Pitch >= n.Pitch
	})
	t.Notes = append(t.Notes, Note{})
	copy(t.Notes[i+1:], t.Notes[i:])
	t.Notes[i] = n
}

// RemoveNote removes the first note exactly matching tick and pitch.
func (t *Track) RemoveNote(tick, pitch int) bool {
	for i, n := range t.Notes {
		if n.Tick == tick && n.Pitch == pitch {
			t.Notes = append(t.Notes[:i], t.Notes[i+1:]...)
			return true
		}
	}
	return false
}

// NotesInRange returns notes with Tick in [from, to), the window the audio
// thread scheduler consumes each tick (spec.md §4.6 scheduling model).
func (t *Track) NotesInRange(from, to int) []Note {
	lo := sort.Search(len(t.Notes), func(i int) bool { return t.Notes[i].Tick >= from })
	var out []Note
	for i := lo; i < len(t.Notes) && t.Notes[i].Tick < to; i++ {
		out = append(out, t.Notes[i])
	}
	return out
}

// TimeSignature is the transport's beat grouping.
type TimeSignature struct {
	Numerator   int
	Denominator int // must be one of {1,2,4,8,16,32}
}

// ValidDenominators enumerates allowed time signature denominators
// (spec.md §3 invariant 4, §8 testable property 6).
var ValidDenominators = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true, 32: true}

// ScaleName is a string alias kept for readability; validated against
// internal/music's scale table by the reducer.
type ScaleName string

// PianoRoll maps each instrument to its note track, plus global transport
// state. Grounded on the teacher's per-track BPM/transport fields in
// types.SaveData.
type PianoRoll struct {
	Tracks        map[ids.InstrumentId]*Track
	Playing       bool
	Playhead      int
	LoopStart     int
	LoopEnd       int
	Looping       bool
	BPM           float64
	TimeSignature TimeSignature
	Snap          int
	Key           int // 0..11
	Scale         ScaleName
}

// NewPianoRoll returns a PianoRoll with sane defaults (120 BPM, 4/4, snap to
// a 16th note).
func NewPianoRoll() *PianoRoll {
	return &PianoRoll{
		Tracks:        make(map[ids.InstrumentId]*Track),
		BPM:           120,
		TimeSignature: TimeSignature{Numerator: 4, Denominator: 4},
		Snap:          1,
		Scale:         "chromatic",
		LoopEnd:       1920 * 4,
	}
}

// TrackFor returns (creating if necessary) the track for an instrument.
func (p *PianoRoll) TrackFor(id ids.InstrumentId) *Track {
	t, ok := p.Tracks[id]
	if !ok {
		t = &Track{}
		p.Tracks[id] = t
	}
	return t
}

// Clone deep-copies the piano roll.
func (p *PianoRoll) Clone() *PianoRoll {
	clone := *p
	clone.Tracks = make(map[ids.InstrumentId]*Track, len(p.Tracks))
	for id, t := range p.Tracks {
		clone.Tracks[id] = &Track{Notes: append([]Note(nil), t.Notes...)}
	}
	return &clone
}
