// Package ids defines the newtype integer identifiers shared across the
// session model, the reducer, and the network layer. Every cross-referenced
// entity in Imbolc is addressed by one of these instead of a raw int so the
// compiler catches an InstrumentId handed to a function expecting a BusId.
package ids

import "fmt"

// InstrumentId identifies an instrument within InstrumentState.
type InstrumentId int

// EffectId identifies an effect slot within a processing chain or mixer bus.
type EffectId int

// BusId identifies a mixer bus. Valid bus ids are >= 1; 0 is reserved to mean
// "no bus" / Master in wire and storage formats.
type BusId int

// CustomSynthDefId identifies an entry in the CustomSynthDefRegistry.
type CustomSynthDefId int

// VstPluginId identifies an entry in the VstPluginRegistry.
type VstPluginId int

// ClipId identifies an arrangement clip.
type ClipId int

// PlacementId identifies an arrangement clip placement.
type PlacementId int

// AutomationLaneId identifies an automation lane.
type AutomationLaneId int

// ParamIndex addresses a parameter within an EffectSlot's ordered parameter
// list. Never a raw integer so effect params can't be confused with bus ids.
type ParamIndex int

// GroupId identifies a layer group (a named sub-mixer for a set of
// instruments).
type GroupId int

// ClientId identifies a connected network client.
type ClientId int

// VoiceId identifies a runtime voice instance within a voice pool.
type VoiceId int

// NewBusId constructs a BusId, enforcing the "ids are constructed only from
// values >= 1" invariant (spec.md §3, Identifiers).
func NewBusId(v int) (BusId, error) {
	if v < 1 {
		return 0, fmt.Errorf("bus id must be >= 1, got %d", v)
	}
	return BusId(v), nil
}

// Counter is a monotonic id allocator, one per owning collection, so ids are
// never reused within a session. Serialization recomputes counters as
// max(existing)+1 on load via Reset.
type Counter struct {
	next int
}

// NewCounter returns a Counter that yields the given id on its next call.
func NewCounter(startAt int) *Counter {
	if startAt < 1 {
		startAt = 1
	}
	return &Counter{next: startAt}
}

// Next returns the next id and advances the counter.
func (c *Counter) Next() int {
	v := c.next
	c.next++
	return v
}

// Peek returns the id Next() would return without advancing.
func (c *Counter) Peek() int {
	return c.next
}

// Reset recomputes the counter as max(existing)+1, per spec.md's load-time
// recomputation rule.
func (c *Counter) Reset(existingMax int) {
	if existingMax+1 > c.next {
		c.next = existingMax + 1
	}
}
