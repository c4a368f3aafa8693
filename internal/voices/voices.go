// Package voices implements the per-instrument voice allocator (spec.md
// §4.4): bounded pools, a configurable stealing strategy, control-bus
// lifecycle, and same-pitch retrigger re-gating.
//
// Grounded on the teacher's arpeggiator/"active notes" bookkeeping in
// internal/modulation (a fixed-size slice of currently-sounding notes,
// scanned linearly to find-or-evict), generalized from "one global active
// note list per track" into "one bounded pool per instrument with a
// configurable eviction scorer."
package voices

import (
	"time"

	"github.com/schollz/imbolc/internal/backend"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/session"
)

// Voice is a runtime instance of a source synth playing one note.
type Voice struct {
	ID           ids.VoiceId
	Instrument   ids.InstrumentId
	Pitch        int
	Velocity     int
	Node         backend.NodeId
	AudioBus     backend.AudioBusId
	ControlBuses [3]backend.ControlBusId
	SpawnedAt    time.Time
	ReleasedAt   time.Time
	Releasing    bool
}

const safetyNetDuration = 5 * time.Second

// RetriggerFadeMs is the anti-click fade duration (spec.md §4.4) for a
// re-spawn on a stolen or re-gated voice's buses. No timing logic lives in
// this package, and nothing reads this constant: the scheduler spawns and
// re-gates voices without any fade.
const RetriggerFadeMs = 5

// pool holds the voices for one instrument plus its bounded cap and
// stealing strategy, mirroring the instrument's session.StealStrategy /
// VoiceCap fields.
type pool struct {
	cap       int
	strategy  session.StealStrategy
	voices    map[ids.VoiceId]*Voice
	releasing map[ids.VoiceId]*Voice
}

func newPool(capacity int, strategy session.StealStrategy) *pool {
	return &pool{
		cap:       capacity,
		strategy:  strategy,
		voices:    make(map[ids.VoiceId]*Voice),
		releasing: make(map[ids.VoiceId]*Voice),
	}
}

func (p *pool) activeCount() int {
	return len(p.voices) + len(p.releasing)
}

// Allocator owns every instrument's voice pool and the control-bus pool
// they draw from. It is audio-thread-owned only (spec.md §6: "Voice pool,
// bus pool, node registry: exclusively audio-thread owned") — callers must
// not share an Allocator across goroutines without external synchronization.
type Allocator struct {
	backend backend.Backend

	pools     map[ids.InstrumentId]*pool
	voiceSeq  *ids.Counter
	freeBuses []backend.ControlBusId

	now func() time.Time
}

// New returns an empty Allocator. now defaults to time.Now; tests may
// override it via WithClock for deterministic safety-net timing.
func New(be backend.Backend) *Allocator {
	return &Allocator{
		backend:  be,
		pools:    make(map[ids.InstrumentId]*pool),
		voiceSeq: ids.NewCounter(1),
		now:      time.Now,
	}
}

// WithClock overrides the allocator's time source, for tests exercising the
// safety-net reclaim without sleeping.
func (a *Allocator) WithClock(now func() time.Time) {
	a.now = now
}

func (a *Allocator) poolFor(inst *session.Instrument) *pool {
	p, ok := a.pools[inst.ID]
	if !ok {
		cap := inst.VoiceCap
		if cap <= 0 {
			cap = 16
		}
		p = newPool(cap, inst.StealStrategy)
		a.pools[inst.ID] = p
	}
	p.cap = inst.VoiceCap
	p.strategy = inst.StealStrategy
	return p
}

func (a *Allocator) allocControlBus() (backend.ControlBusId, error) {
	if n := len(a.freeBuses); n > 0 {
		id := a.freeBuses[n-1]
		a.freeBuses = a.freeBuses[:n-1]
		return id, nil
	}
	return a.backend.AllocControlBus()
}

func (a *Allocator) releaseControlBus(id backend.ControlBusId) {
	a.freeBuses = append(a.freeBuses, id)
}

// Allocate finds or creates a voice for (instrument, pitch), stealing if the
// instrument's pool is full. Returns the voice and whether an existing voice
// was re-gated (same-pitch retrigger) instead of a new one being spawned.
func (a *Allocator) Allocate(inst *session.Instrument, pitch, velocity int) (*Voice, bool, error) {
	p := a.poolFor(inst)

	for _, v := range p.voices {
		if v.Pitch == pitch && !v.Releasing {
			v.Velocity = velocity
			v.SpawnedAt = a.now()
			if err := a.backend.SetParam(v.Node, "gate", 0); err != nil {
				return nil, false, err
			}
			if err := a.backend.SetParam(v.Node, "gate", 1); err != nil {
				return nil, false, err
			}
			return v, true, nil
		}
	}

	if p.activeCount() >= p.cap {
		if err := a.steal(p); err != nil {
			return nil, false, err
		}
	}

	audioBus, err := a.backend.AllocAudioBus(1)
	if err != nil {
		return nil, false, err
	}
	var controlBuses [3]backend.ControlBusId
	for i := range controlBuses {
		cb, err := a.allocControlBus()
		if err != nil {
			return nil, false, err
		}
		controlBuses[i] = cb
	}

	v := &Voice{
		ID:           ids.VoiceId(a.voiceSeq.Next()),
		Instrument:   inst.ID,
		Pitch:        pitch,
		Velocity:     velocity,
		AudioBus:     audioBus,
		ControlBuses: controlBuses,
		SpawnedAt:    a.now(),
	}
	p.voices[v.ID] = v
	return v, false, nil
}

// AttachNode records the node id the caller created for a freshly-allocated
// voice (the scheduler builds the /s_new bundle itself, since voice
// allocation and node spawning may be pipelined across a bundle send).
func (a *Allocator) AttachNode(v *Voice, node backend.NodeId) {
	v.Node = node
}

// steal picks a victim per the pool's configured strategy and frees it
// immediately (no fade-out wait; the re-spawn on the reclaimed buses
// carries no anti-click fade either).
func (a *Allocator) steal(p *pool) error {
	victim := selectVictim(p)
	if victim == nil {
		return nil
	}
	return a.forceFree(p, victim)
}

// selectVictim picks the steal victim: released voices first (oldest release
// time wins among those); otherwise the lowest-velocity voice under
// StealLowestVelocity and the oldest-spawned voice under every other
// strategy.
func selectVictim(p *pool) *Voice {
	var best *Voice
	for _, v := range p.releasing {
		if best == nil || v.ReleasedAt.Before(best.ReleasedAt) {
			best = v
		}
	}
	if best != nil {
		return best
	}

	switch p.strategy {
	case session.StealLowestVelocity:
		for _, v := range p.voices {
			if best == nil || v.Velocity < best.Velocity {
				best = v
			}
		}
	case session.StealFurthestFromLastNote:
		// Without a reference pitch at steal time, fall back to oldest;
		// only AllocateNear, which takes a reference pitch, steals by
		// pitch distance (the scheduler calls Allocate).
		fallthrough
	case session.StealOldest:
		fallthrough
	default:
		for _, v := range p.voices {
			if best == nil || v.SpawnedAt.Before(best.SpawnedAt) {
				best = v
			}
		}
	}
	return best
}

// AllocateNear behaves like Allocate but, under FurthestFromLastNote,
// steals the voice whose pitch is furthest from refPitch among released-none
// candidates.
func (a *Allocator) AllocateNear(inst *session.Instrument, pitch, velocity, refPitch int) (*Voice, bool, error) {
	p := a.poolFor(inst)
	if p.strategy == session.StealFurthestFromLastNote && p.activeCount() >= p.cap {
		if len(p.releasing) == 0 {
			if victim := furthestFrom(p, refPitch); victim != nil {
				if err := a.forceFree(p, victim); err != nil {
					return nil, false, err
				}
			}
		}
	}
	return a.Allocate(inst, pitch, velocity)
}

func furthestFrom(p *pool, refPitch int) *Voice {
	var best *Voice
	bestDist := -1
	for _, v := range p.voices {
		d := v.Pitch - refPitch
		if d < 0 {
			d = -d
		}
		if d > bestDist {
			bestDist = d
			best = v
		}
	}
	return best
}

func (a *Allocator) forceFree(p *pool, v *Voice) error {
	delete(p.voices, v.ID)
	delete(p.releasing, v.ID)
	if v.Node != 0 {
		if err := a.backend.FreeNode(v.Node); err != nil {
			return err
		}
	}
	if err := a.backend.FreeAudioBus(v.AudioBus); err != nil {
		return err
	}
	for _, cb := range v.ControlBuses {
		a.releaseControlBus(cb)
	}
	return nil
}

// Release sends gate=0 and moves the voice into the releasing set; its
// buses are returned to the pool once NotifyNodeEnd (or the safety net)
// reclaims it.
func (a *Allocator) Release(instrument ids.InstrumentId, pitch int) error {
	p, ok := a.pools[instrument]
	if !ok {
		return nil
	}
	for id, v := range p.voices {
		if v.Pitch != pitch || v.Releasing {
			continue
		}
		if err := a.backend.SetParam(v.Node, "gate", 0); err != nil {
			return err
		}
		v.Releasing = true
		v.ReleasedAt = a.now()
		delete(p.voices, id)
		p.releasing[id] = v
		return nil
	}
	return nil
}

// NotifyNodeEnd handles a backend /n_end notification: if the node belongs
// to a releasing voice, its buses are returned to the pool.
func (a *Allocator) NotifyNodeEnd(node backend.NodeId) {
	for _, p := range a.pools {
		for id, v := range p.releasing {
			if v.Node == node {
				delete(p.releasing, id)
				_ = a.backend.FreeAudioBus(v.AudioBus)
				for _, cb := range v.ControlBuses {
					a.releaseControlBus(cb)
				}
				return
			}
		}
	}
}

// ReclaimStale frees any releasing voice older than the 5s safety-net
// threshold whose /n_end notification was dropped, returning the ids freed.
func (a *Allocator) ReclaimStale() []ids.VoiceId {
	var freed []ids.VoiceId
	now := a.now()
	for _, p := range a.pools {
		for id, v := range p.releasing {
			if now.Sub(v.ReleasedAt) >= safetyNetDuration {
				delete(p.releasing, id)
				_ = a.backend.FreeAudioBus(v.AudioBus)
				for _, cb := range v.ControlBuses {
					a.releaseControlBus(cb)
				}
				freed = append(freed, id)
			}
		}
	}
	return freed
}

// ActiveCount returns the number of sounding-or-releasing voices for inst,
// the quantity spec.md §8's voice-conservation property checks.
func (a *Allocator) ActiveCount(inst ids.InstrumentId) int {
	p, ok := a.pools[inst]
	if !ok {
		return 0
	}
	return p.activeCount()
}

// ControlBusPoolSize returns the number of free control buses sitting in the
// allocator's pool, used by the voice-conservation test property (spec.md
// §8 scenario/property 8: "after N spawn/release pairs... the control-bus
// pool returns to its initial size").
func (a *Allocator) ControlBusPoolSize() int {
	return len(a.freeBuses)
}

// FlushInstrument force-frees every voice (active or releasing) belonging to
// inst, used by delete_instrument_routing and the Stop priority command.
func (a *Allocator) FlushInstrument(inst ids.InstrumentId) error {
	p, ok := a.pools[inst]
	if !ok {
		return nil
	}
	for _, v := range p.voices {
		if err := a.forceFree(p, v); err != nil {
			return err
		}
	}
	for _, v := range p.releasing {
		if err := a.forceFree(p, v); err != nil {
			return err
		}
	}
	return nil
}
