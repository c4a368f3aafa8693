package session

import (
	"math"
	"sort"

	"github.com/schollz/imbolc/internal/ids"
)

// CurveKind enumerates interpolation curves between automation points.
type CurveKind int

const (
	CurveStep CurveKind = iota
	CurveLinear
	CurveExponential
	CurveLogarithmic
)

// AutomationTargetKind tags the union of things an automation lane can
// drive.
type AutomationTargetKind int

const (
	TargetFilterCutoff AutomationTargetKind = iota
	TargetEffectParam
	TargetBusLevel
	TargetBpm
)

// AutomationTarget is a tagged reference to a modulatable parameter.
type AutomationTarget struct {
	Kind       AutomationTargetKind
	Instrument ids.InstrumentId // FilterCutoff, EffectParam
	Effect     ids.EffectId     // EffectParam
	Param      ids.ParamIndex   // EffectParam
	Bus        ids.BusId        // BusLevel
}

// AutomationPoint is one (tick, value) node in a lane.
type AutomationPoint struct {
	Tick  int
	Value float64
}

// AutomationLane is an ordered-by-tick sequence of points driving one
// target, with a rolling playback cursor for sublinear lookup during
// sequential playback.
type AutomationLane struct {
	ID     ids.AutomationLaneId
	Target AutomationTarget
	Curve  CurveKind
	Points []AutomationPoint

	cursor int // monotonic rolling index, reset by ResetCursor
}

// InsertPoint inserts p maintaining tick order, replacing an existing point
// at the same tick.
func (l *AutomationLane) InsertPoint(p AutomationPoint) {
	i := sort.Search(len(l.Points), func(i int) bool { return l.Points[i].Tick >= p.Tick })
	if i < len(l.Points) && l.Points[i].Tick == p.Tick {
		l.Points[i] = p
		return
	}
	l.Points = append(l.Points, AutomationPoint{})
	copy(l.Points[i+1:], l.Points[i:])
	l.Points[i] = p
}

// ResetCursor rewinds the rolling playback cursor, called on transport
// seek/stop so the next ValueAt scan starts from the beginning again.
func (l *AutomationLane) ResetCursor() {
	l.cursor = 0
}

// ValueAt returns the lane's interpolated value at tick, using binary search
// by default. If useCursor is true and tick is monotonically non-decreasing
// across calls, the lane's rolling cursor short-circuits the search to O(1)
// amortized for sequential playback (spec.md §3, "sublinear lookup with
// optional monotonic rolling cursor").
func (l *AutomationLane) ValueAt(tick int, useCursor bool) float64 {
	if len(l.Points) == 0 {
		return 0
	}
	if len(l.Points) == 1 {
		return l.Points[0].Value
	}

	idx := l.searchIndex(tick, useCursor)

	if idx <= 0 {
		return l.Points[0].Value
	}
	if idx >= len(l.Points) {
		return l.Points[len(l.Points)-1].Value
	}

	a := l.Points[idx-1]
	b := l.Points[idx]
	if useCursor {
		l.cursor = idx - 1
	}
	if tick <= a.Tick {
		return a.Value
	}
	if tick >= b.Tick {
		return b.Value
	}
	t := float64(tick-a.Tick) / float64(b.Tick-a.Tick)
	return interpolate(l.Curve, a.Value, b.Value, t)
}

// searchIndex returns the index of the first point with Tick > tick,
// starting from the rolling cursor when useCursor is set and the cursor is
// still valid for a forward scan, else falling back to binary search.
func (l *AutomationLane) searchIndex(tick int, useCursor bool) int {
	if useCursor && l.cursor >= 0 && l.cursor < len(l.Points) && l.Points[l.cursor].Tick <= tick {
		i := l.cursor
		for i < len(l.Points) && l.Points[i].Tick <= tick {
			i++
		}
		return i
	}
	return sort.Search(len(l.Points), func(i int) bool { return l.Points[i].Tick > tick })
}

func interpolate(curve CurveKind, a, b, t float64) float64 {
	switch curve {
	case CurveStep:
		return a
	case CurveExponential:
		if a <= 0 || b <= 0 {
			return a + (b-a)*t
		}
		return a * math.Pow(b/a, t)
	case CurveLogarithmic:
		tt := math.Log(1+9*t) / math.Log(10)
		return a + (b-a)*tt
	default: // CurveLinear
		return a + (b-a)*t
	}
}

// Automation is the session's set of automation lanes.
type Automation struct {
	Lanes     []AutomationLane
	counter   *ids.Counter
}

// NewAutomation returns an empty Automation.
func NewAutomation() *Automation {
	return &Automation{counter: ids.NewCounter(1)}
}

// ResetCounter recomputes the lane id counter after deserialization.
func (a *Automation) ResetCounter() {
	max := 0
	for _, l := range a.Lanes {
		if int(l.ID) > max {
			max = int(l.ID)
		}
	}
	a.counter.Reset(max)
}

// AddLane appends a new lane and returns its id.
func (a *Automation) AddLane(target AutomationTarget, curve CurveKind) ids.AutomationLaneId {
	id := ids.AutomationLaneId(a.counter.Next())
	a.Lanes = append(a.Lanes, AutomationLane{ID: id, Target: target, Curve: curve})
	return id
}

// LaneByID returns a pointer to the lane with the given id, if any.
func (a *Automation) LaneByID(id ids.AutomationLaneId) (*AutomationLane, bool) {
	for i := range a.Lanes {
		if a.Lanes[i].ID == id {
			return &a.Lanes[i], true
		}
	}
	return nil, false
}

// RemoveLane deletes a lane by id.
func (a *Automation) RemoveLane(id ids.AutomationLaneId) bool {
	for i, l := range a.Lanes {
		if l.ID == id {
			a.Lanes = append(a.Lanes[:i], a.Lanes[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveLanesTargetingBus removes every lane whose target names bus id,
// called when a bus is deleted (spec.md §3, "removes automation lanes
// targeting it").
func (a *Automation) RemoveLanesTargetingBus(bus ids.BusId) {
	kept := a.Lanes[:0]
	for _, l := range a.Lanes {
		if l.Target.Kind == TargetBusLevel && l.Target.Bus == bus {
			continue
		}
		kept = append(kept, l)
	}
	a.Lanes = kept
}

// RemoveLanesTargetingInstrument removes every lane referencing instrument,
// called when an instrument is deleted.
func (a *Automation) RemoveLanesTargetingInstrument(inst ids.InstrumentId) {
	kept := a.Lanes[:0]
	for _, l := range a.Lanes {
		switch l.Target.Kind {
		case TargetFilterCutoff, TargetEffectParam:
			if l.Target.Instrument == inst {
				continue
			}
		}
		kept = append(kept, l)
	}
	a.Lanes = kept
}

// Clone deep-copies the automation lanes.
func (a *Automation) Clone() *Automation {
	clone := &Automation{counter: ids.NewCounter(a.counter.Peek())}
	clone.Lanes = make([]AutomationLane, len(a.Lanes))
	for i, l := range a.Lanes {
		clone.Lanes[i] = AutomationLane{
			ID:     l.ID,
			Target: l.Target,
			Curve:  l.Curve,
			Points: append([]AutomationPoint(nil), l.Points...),
		}
	}
	return clone
}
