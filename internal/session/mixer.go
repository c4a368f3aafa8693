package session

import "github.com/schollz/imbolc/internal/ids"

// MixerBus is one mixer destination: a named bus with level/mute/solo, an
// effect chain, and an optional EQ.
type MixerBus struct {
	ID      ids.BusId
	Name    string
	Level   float64
	Mute    bool
	Solo    bool
	Effects []EffectSlot
	Eq      *EqConfig
}

// LayerGroup is a named sub-mixer for a set of instruments: same shape as a
// MixerBus plus membership.
type LayerGroup struct {
	ID      ids.GroupId
	Name    string
	Level   float64
	Mute    bool
	Solo    bool
	Effects []EffectSlot
	Eq      *EqConfig
	Members []ids.InstrumentId
}

// Mixer is the session's bus graph: a dynamic set of buses (1..32) plus
// layer groups and the master strip.
type Mixer struct {
	Buses         []MixerBus
	LayerGroups   []LayerGroup
	MasterLevel   float64
	MasterMute    bool
	busCounter    *ids.Counter
	groupCounter  *ids.Counter
	effectCounter *ids.Counter // owns EffectId allocation for bus/group effect chains
}

// MinBuses and MaxBuses bound the dynamic bus count (spec.md §3, Mixer and
// §8 testable property 5).
const (
	MinBuses = 1
	MaxBuses = 32
)

// NewMixer returns a Mixer with a single default bus and master at unity.
func NewMixer() *Mixer {
	m := &Mixer{
		MasterLevel:   1.0,
		busCounter:    ids.NewCounter(1),
		groupCounter:  ids.NewCounter(1),
		effectCounter: ids.NewCounter(1),
	}
	firstID := ids.BusId(m.busCounter.Next())
	m.Buses = append(m.Buses, MixerBus{ID: firstID, Name: "Bus 1", Level: 1.0})
	return m
}

// ResetCounters recomputes bus/group/effect id counters after
// deserialization.
func (m *Mixer) ResetCounters() {
	maxBus, maxGroup, maxEffect := 0, 0, 0
	for _, b := range m.Buses {
		if int(b.ID) > maxBus {
			maxBus = int(b.ID)
		}
		for _, e := range b.Effects {
			if int(e.ID) > maxEffect {
				maxEffect = int(e.ID)
			}
		}
	}
	for _, g := range m.LayerGroups {
		if int(g.ID) > maxGroup {
			maxGroup = int(g.ID)
		}
		for _, e := range g.Effects {
			if int(e.ID) > maxEffect {
				maxEffect = int(e.ID)
			}
		}
	}
	m.busCounter.Reset(maxBus)
	m.groupCounter.Reset(maxGroup)
	m.effectCounter.Reset(maxEffect)
}

// BusByID returns a pointer to the bus with the given id, if any.
func (m *Mixer) BusByID(id ids.BusId) (*MixerBus, bool) {
	for i := range m.Buses {
		if m.Buses[i].ID == id {
			return &m.Buses[i], true
		}
	}
	return nil, false
}

// GroupByID returns a pointer to the layer group with the given id, if any.
func (m *Mixer) GroupByID(id ids.GroupId) (*LayerGroup, bool) {
	for i := range m.LayerGroups {
		if m.LayerGroups[i].ID == id {
			return &m.LayerGroups[i], true
		}
	}
	return nil, false
}

// NextEffectID allocates a new, never-reused EffectId for any bus's or
// group's effect chain (spec.md §3: effect monotonic counters live on their
// owning collection — the Mixer owns every bus and group effect chain).
func (m *Mixer) NextEffectID() ids.EffectId {
	return ids.EffectId(m.effectCounter.Next())
}

// AddBus appends a new bus, failing if that would exceed MaxBuses.
func (m *Mixer) AddBus(name string) (ids.BusId, bool) {
	if len(m.Buses) >= MaxBuses {
		return 0, false
	}
	id := ids.BusId(m.busCounter.Next())
	m.Buses = append(m.Buses, MixerBus{ID: id, Name: name, Level: 1.0})
	return id, true
}

// AddGroup appends a new layer group and returns its allocated id.
func (m *Mixer) AddGroup(name string) ids.GroupId {
	id := ids.GroupId(m.groupCounter.Next())
	m.LayerGroups = append(m.LayerGroups, LayerGroup{ID: id, Name: name, Level: 1.0})
	return id
}

// RemoveBus deletes a bus, failing if that would leave fewer than MinBuses.
// Callers (the reducer) are responsible for resetting instrument
// outputs/sends/automation referencing the removed bus, per spec.md §3's
// "Deleting a bus" invariant.
func (m *Mixer) RemoveBus(id ids.BusId) bool {
	if len(m.Buses) <= MinBuses {
		return false
	}
	for i, b := range m.Buses {
		if b.ID == id {
			m.Buses = append(m.Buses[:i], m.Buses[i+1:]...)
			return true
		}
	}
	return false
}

// Clone deep-copies the mixer.
func (m *Mixer) Clone() *Mixer {
	clone := &Mixer{
		MasterLevel:   m.MasterLevel,
		MasterMute:    m.MasterMute,
		busCounter:    ids.NewCounter(m.busCounter.Peek()),
		groupCounter:  ids.NewCounter(m.groupCounter.Peek()),
		effectCounter: ids.NewCounter(m.effectCounter.Peek()),
	}
	clone.Buses = make([]MixerBus, len(m.Buses))
	for i, b := range m.Buses {
		clone.Buses[i] = b
		clone.Buses[i].Effects = append([]EffectSlot(nil), b.Effects...)
		if b.Eq != nil {
			eq := *b.Eq
			clone.Buses[i].Eq = &eq
		}
	}
	clone.LayerGroups = make([]LayerGroup, len(m.LayerGroups))
	for i, g := range m.LayerGroups {
		clone.LayerGroups[i] = g
		clone.LayerGroups[i].Effects = append([]EffectSlot(nil), g.Effects...)
		clone.LayerGroups[i].Members = append([]ids.InstrumentId(nil), g.Members...)
		if g.Eq != nil {
			eq := *g.Eq
			clone.LayerGroups[i].Eq = &eq
		}
	}
	return clone
}
