// Package scheduler implements the audio thread (spec.md §4.6): a dedicated
// goroutine that owns the backend, voice allocator, routing builder, and a
// local session.State projection, ticks a playhead, schedules note-accurate
// events with lookahead, and publishes feedback for the UI.
//
// Grounded on the teacher's playback-tick loop in internal/audio (a
// ticker-driven goroutine advancing a row cursor and firing note-on/off OSC
// messages) and its context-cancellable goroutine idiom
// (internal/model.Model.PlayArpeggio), generalized from a single fixed-rate
// row player into the full tick/lookahead/backend-reconnect scheduling
// model spec.md §4.6 describes.
package scheduler

import (
	"context"
	"math/rand"
	"time"

	"github.com/schollz/imbolc/internal/audiofx"
	"github.com/schollz/imbolc/internal/backend"
	"github.com/schollz/imbolc/internal/eventlog"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/reducer"
	"github.com/schollz/imbolc/internal/routing"
	"github.com/schollz/imbolc/internal/session"
	"github.com/schollz/imbolc/internal/voices"
)

// TicksPerBeat is constant per project, per spec.md §4.6 ("e.g., 960").
const TicksPerBeat = 960

// TickInterval is the scheduler's loop cadence (spec.md §4.6: "~2 kHz, 0.5ms").
const TickInterval = 500 * time.Microsecond

// NormalCommandBudgetCount and NormalCommandBudgetTime bound how much of the
// normal channel + event log the audio thread drains per iteration (spec.md
// §4.6 step 3/4: "up to N commands and up to T microseconds").
const (
	NormalCommandBudgetCount = 32
	NormalCommandBudgetTime  = 100 * time.Microsecond
)

// statusPingInterval and disconnectThreshold implement spec.md §4.6's
// server lifecycle liveness check.
const (
	statusPingInterval = 5 * time.Second
	disconnectThreshold = 2 * time.Second
)

// HumanizeJitter is the ±20ms random offset applied to notes that request
// humanization (spec.md §4.6 scheduling model).
const HumanizeJitter = 20 * time.Millisecond

// FeedbackKind tags the union of AudioFeedback messages (spec.md §6).
type FeedbackKind int

const (
	FeedbackPlayheadPosition FeedbackKind = iota
	FeedbackBpmUpdate
	FeedbackPeaks
	FeedbackSpectrum
	FeedbackLufsUpdate
	FeedbackServerStatus
	FeedbackRenderComplete
	FeedbackVoiceEnd
)

// Feedback is one flat, tagged AudioFeedback message.
type Feedback struct {
	Kind         FeedbackKind
	Tick         int
	Bpm          float64
	PeakL        float64
	PeakR        float64
	Spectrum     [7]float64
	LufsMomentary float64
	LufsShort     float64
	LufsIntegrated float64
	Status       backend.ServerStatus
	RenderPath   string
	Instrument   ids.InstrumentId
	Voice        ids.VoiceId
}

// feedbackBufferSize bounds the feedback channel; publication drops the
// oldest pending entry rather than block the audio thread, the same
// "supersede rather than block the hot path" policy spec.md §5 describes
// for the monitor channel (triple-buffered in spirit; Go's runtime gives us
// no lock-free primitive simpler than a small drop-oldest channel, so this
// approximates it rather than hand-rolling atomics for structs).
const feedbackBufferSize = 256

// ScheduledEvent is one event instance emitted by the timeline tick, ready
// for the backend to receive via a timetagged bundle.
type ScheduledEvent struct {
	Instrument ids.InstrumentId
	Pitch      int
	Velocity   int
	OffsetSecs float64
	NoteOff    bool
	DrumPad    int
	IsDrumHit  bool
}

// Scheduler is the audio thread. Exactly one goroutine may call Run/Tick;
// it is not safe for concurrent use, per spec.md §5's single-writer model.
type Scheduler struct {
	backend backend.Backend
	voices  *voices.Allocator
	routing *routing.Builder
	log     *eventlog.Log
	bridge  *eventlog.Bridge

	state *session.State

	lookahead time.Duration
	sampleRate int
	bufferSize int

	playing    bool
	playhead   int // ticks
	lastTickAt time.Time

	lastStatusPing time.Time
	lastStatusPong time.Time
	connected      bool

	nodeEndCh <-chan backend.NodeId

	feedback chan Feedback

	nowFunc func() time.Time

	humanizeRng map[ids.InstrumentId]*rand.Rand
}

// New returns a Scheduler over a fresh local projection, ready to drain
// cues from log/bridge and drive be.
func New(be backend.Backend, log *eventlog.Log, bridge *eventlog.Bridge, sampleRate, bufferSize int) *Scheduler {
	return &Scheduler{
		backend:    be,
		voices:     voices.New(be),
		routing:    routing.New(be),
		log:        log,
		bridge:     bridge,
		state:      session.NewState(),
		lookahead:  backend.Lookahead(bufferSize, sampleRate, 0),
		sampleRate: sampleRate,
		bufferSize: bufferSize,
		feedback:    make(chan Feedback, feedbackBufferSize),
		nowFunc:     time.Now,
		humanizeRng: make(map[ids.InstrumentId]*rand.Rand),
	}
}

// Feedback returns the channel the UI thread reads AudioFeedback from.
func (s *Scheduler) Feedback() <-chan Feedback { return s.feedback }

// State exposes the scheduler's local projection, read-only, for tests
// asserting audio-thread/dispatcher consistency (spec.md §8 property 7).
func (s *Scheduler) State() *session.State { return s.state }

// LoadState replaces the scheduler's local projection before Run starts,
// so a loaded or freshly-created project's initial state seeds the audio
// thread the same instant it seeds internal/dispatch.Runtime. Callers must
// follow this with a CueRebuildRouting (and, if instruments already carry
// effect chains, CueRebuildInstruments/CueRebuildBusProcessing) push onto
// the event log so the routing builder and backend catch up to it —
// LoadState itself only swaps the pointer.
func (s *Scheduler) LoadState(st *session.State) { s.state = st }

func (s *Scheduler) publish(f Feedback) {
	select {
	case s.feedback <- f:
	default:
		// drop the oldest pending entry and retry once, so the latest
		// value always wins (spec.md §5: peaks/spectrum/etc. are
		// supersede-not-block on the hot path).
		select {
		case <-s.feedback:
		default:
		}
		select {
		case s.feedback <- f:
		default:
		}
	}
}

// ticksPerSecond computes spec.md §4.6's tick rate from the local
// projection's current BPM.
func (s *Scheduler) ticksPerSecond() float64 {
	bpm := s.state.Session.PianoRoll.BPM
	if bpm <= 0 {
		bpm = 120
	}
	return bpm * TicksPerBeat / 60
}

// Run drives the main loop until ctx is canceled, sleeping to TickInterval
// between iterations (spec.md §4.6 step 8).
func (s *Scheduler) Run(ctx context.Context) {
	s.lastTickAt = s.nowFunc()
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Tick runs exactly one main-loop iteration (spec.md §4.6 steps 2-7): drain
// priority commands, drain normal commands + event log under budget, poll
// node-end notifications, advance the playhead and schedule events,
// publish feedback.
func (s *Scheduler) Tick(now time.Time) []ScheduledEvent {
	s.drainPriority()
	s.drainNormalAndLog()
	s.pollNodeEnd()

	events := s.tickTimeline(now)
	s.checkServerLiveness(now)
	s.publishFeedback()

	s.lastTickAt = now
	return events
}

func (s *Scheduler) drainPriority() {
	for _, c := range s.bridge.DrainPriority() {
		s.applyPriorityCommand(c)
	}
}

func (s *Scheduler) applyPriorityCommand(c eventlog.PriorityCommand) {
	switch c.Kind {
	case eventlog.PriorityStop:
		s.stopAndFlush()
	case eventlog.PrioritySpawnVoice:
		s.spawnVoice(c.Instrument, c.Pitch, c.Velocity, false)
	case eventlog.PriorityReleaseVoice:
		_ = s.voices.Release(c.Instrument, c.Pitch)
	case eventlog.PriorityPlayDrumHit:
		s.spawnVoice(c.Instrument, c.DrumPad, c.Velocity, true)
	case eventlog.PrioritySetFilterParam, eventlog.PrioritySetEffectParam,
		eventlog.PrioritySetLfoParam, eventlog.PrioritySetBusEffectParam,
		eventlog.PrioritySetLayerGroupEffectParam:
		s.applyTargetedParam(c)
	}
}

// applyTargetedParam sends a single /n_set for a targeted param change,
// spec.md §8 scenario 2's "exactly one /n_set, no other backend calls."
func (s *Scheduler) applyTargetedParam(c eventlog.PriorityCommand) {
	var node backend.NodeId
	switch c.Kind {
	case eventlog.PrioritySetFilterParam:
		nodes, ok := s.routing.Registry().Instruments[c.Instrument]
		if !ok {
			return
		}
		for _, n := range nodes.Filter {
			node = n
		}
	case eventlog.PrioritySetEffectParam:
		nodes, ok := s.routing.Registry().Instruments[c.Instrument]
		if !ok {
			return
		}
		node = nodes.Effects[c.Effect]
	case eventlog.PrioritySetBusEffectParam:
		bus, ok := s.state.Session.Mixer.BusByID(c.Bus)
		if !ok {
			return
		}
		node = effectNodeAt(s.routing.Registry().Buses[c.Bus], bus.Effects, c.Effect)
	case eventlog.PrioritySetLayerGroupEffectParam:
		group, ok := s.state.Session.Mixer.GroupByID(c.Group)
		if !ok {
			return
		}
		node = effectNodeAt(s.routing.Registry().Groups[c.Group], group.Effects, c.Effect)
	default:
		return
	}
	if node == 0 {
		return
	}
	_ = s.backend.SetParam(node, paramName(c.Param), float32(c.Value))
}

// effectNodeAt finds the backend node for the effect slot with id effID
// within slots, by position — routing.BusNodes.Effects is built in the same
// order as the bus/group's own Effects slice.
func effectNodeAt(bn *routing.BusNodes, slots []session.EffectSlot, effID ids.EffectId) backend.NodeId {
	if bn == nil {
		return 0
	}
	for i, slot := range slots {
		if slot.ID == effID && i < len(bn.Effects) {
			return bn.Effects[i]
		}
	}
	return 0
}

func paramName(idx ids.ParamIndex) string {
	switch idx {
	case 0:
		return "cutoff"
	case 1:
		return "resonance"
	default:
		return "param"
	}
}

// drainNormalAndLog drains the normal command channel and the event log
// under a combined count+time budget, reducing each log entry against the
// local projection and applying its effects via the routing builder and
// targeted backend calls.
func (s *Scheduler) drainNormalAndLog() {
	deadline := s.nowFunc().Add(NormalCommandBudgetTime)

	for _, c := range s.bridge.DrainNormalBudget(NormalCommandBudgetCount) {
		if s.nowFunc().After(deadline) {
			return
		}
		s.applyNormalCommand(c)
	}

	entries := s.log.DrainBudget(NormalCommandBudgetCount)
	for _, e := range entries {
		if s.nowFunc().After(deadline) {
			break
		}
		if e.HasAction {
			result := reducer.Reduce(s.state, e.Action)
			s.applyEffects(result)
		} else {
			s.applyCue(e.Cue, e.Instrument)
		}
	}
}

// applyNormalCommand handles the bulk/structural normal-channel commands
// (spec.md §4.7) that aren't themselves reduced domain actions — sample
// loads and the coarse Rebuild* requests a client UI can send directly.
func (s *Scheduler) applyNormalCommand(c eventlog.NormalCommand) {
	switch c.Kind {
	case eventlog.NormalRebuildRouting:
		_ = s.routing.FullRebuild(s.state)
	case eventlog.NormalRebuildBusProcessing:
		_ = s.routing.RebuildBusProcessing(s.state)
	case eventlog.NormalRebuildInstruments:
		for _, id := range s.state.Instruments.Order {
			_ = s.routing.RebuildSingleInstrument(s.state, s.state.Instruments.Instruments[id])
		}
	case eventlog.NormalLoadSample:
		_, _ = s.backend.LoadBuffer(c.Path)
	case eventlog.NormalUpdateMixerParams, eventlog.NormalUpdatePianoRoll, eventlog.NormalUpdateAutomation:
		// the corresponding domain action already mutated state via the event
		// log path; these normal-channel variants exist for clients that
		// bypass the reducer for high-frequency UI-local updates and are
		// no-ops against the backend.
	}
}

func (s *Scheduler) applyCue(kind eventlog.StructuralKind, instrument ids.InstrumentId) {
	switch kind {
	case eventlog.CueAddInstrumentRouting:
		if inst, ok := s.state.Instruments.Instruments[instrument]; ok {
			_ = s.routing.AddInstrumentRouting(s.state, inst)
		}
	case eventlog.CueDeleteInstrumentRouting:
		_ = s.routing.DeleteInstrumentRouting(instrument)
		_ = s.voices.FlushInstrument(instrument)
	case eventlog.CueRebuildRoutingForInstrument:
		if inst, ok := s.state.Instruments.Instruments[instrument]; ok {
			_ = s.routing.RebuildSingleInstrument(s.state, inst)
		}
	case eventlog.CueRebuildBusProcessing:
		_ = s.routing.RebuildBusProcessing(s.state)
	case eventlog.CueRebuildInstruments:
		for _, id := range s.state.Instruments.Order {
			_ = s.routing.RebuildSingleInstrument(s.state, s.state.Instruments.Instruments[id])
		}
	case eventlog.CueRebuildRouting:
		_ = s.routing.FullRebuild(s.state)
	}
}

// applyEffects translates reducer.Result's audiofx stream into routing
// builder calls / targeted backend writes. It does not re-implement
// internal/audiofx.Coalesce's escalation rule for routing targets directly;
// callers are expected to have coalesced the stream upstream (the dispatch
// thread, before pushing to the event log), matching spec.md §4.2's
// "the audio thread consumes an already-coalesced stream" design.
func (s *Scheduler) applyEffects(result reducer.Result) {
	var targets []ids.InstrumentId
	for _, eff := range result.Effects {
		switch eff.Kind {
		case audiofx.RebuildInstruments:
			for _, id := range s.state.Instruments.Order {
				_ = s.routing.RebuildSingleInstrument(s.state, s.state.Instruments.Instruments[id])
			}
		case audiofx.RebuildRoutingForInstrument:
			targets = append(targets, eff.Instrument)
		case audiofx.RebuildBusProcessing:
			_ = s.routing.RebuildBusProcessing(s.state)
		case audiofx.RebuildRouting, audiofx.RebuildSession:
			_ = s.routing.FullRebuild(s.state)
		case audiofx.AddInstrumentRouting:
			if inst, ok := s.state.Instruments.Instruments[eff.Instrument]; ok {
				_ = s.routing.AddInstrumentRouting(s.state, inst)
			}
		case audiofx.DeleteInstrumentRouting:
			_ = s.routing.DeleteInstrumentRouting(eff.Instrument)
			_ = s.voices.FlushInstrument(eff.Instrument)
		case audiofx.SetFilterParam:
			s.applyTargetedParam(eventlog.PriorityCommand{Kind: eventlog.PrioritySetFilterParam, Instrument: eff.Instrument, Value: eff.Value})
		case audiofx.SetEffectParam:
			s.applyTargetedParam(eventlog.PriorityCommand{Kind: eventlog.PrioritySetEffectParam, Instrument: eff.Instrument, Effect: eff.Effect, Param: eff.Param, Value: eff.Value})
		case audiofx.SetBusEffectParam:
			s.applyTargetedParam(eventlog.PriorityCommand{Kind: eventlog.PrioritySetBusEffectParam, Bus: eff.Bus, Effect: eff.Effect, Param: eff.Param, Value: eff.Value})
		case audiofx.SetLayerGroupEffectParam:
			s.applyTargetedParam(eventlog.PriorityCommand{Kind: eventlog.PrioritySetLayerGroupEffectParam, Group: eff.Group, Effect: eff.Effect, Param: eff.Param, Value: eff.Value})
		case audiofx.SetLfoParam:
			// No backend write is made for LFO depth/rate changes, and the
			// scheduler has no per-tick LFO evaluation; the new values live
			// only in the state projection.
		case audiofx.UpdateMixerParams, audiofx.UpdatePianoRoll, audiofx.UpdateAutomation:
			// pure state already applied by Reduce; the timeline tick reads
			// piano roll and automation from state directly, and no backend
			// write is made for mixer changes (the routing builder does not
			// send mixer level or pan either).
		}
	}
	if len(targets) > 0 {
		_ = s.routing.ApplyRebuildTargets(s.state, targets)
	}
}

// pollNodeEnd drains /n_end notifications and returns freed voices' buses
// to the pool (spec.md §4.6 step 5).
func (s *Scheduler) pollNodeEnd() {
	if s.nodeEndCh == nil {
		ch, err := s.backend.SubscribeNodeEnd(context.Background())
		if err != nil {
			return
		}
		s.nodeEndCh = ch
	}
	s.drainNodeEndChannel()
	s.voices.ReclaimStale() // buses already returned to the pool by ReclaimStale itself
}

func (s *Scheduler) drainNodeEndChannel() {
	for {
		select {
		case node := <-s.nodeEndCh:
			s.voices.NotifyNodeEnd(node)
		default:
			return
		}
	}
}

// tickTimeline advances the playhead by elapsed ticks and schedules
// piano-roll notes, drum steps, automation updates, and click events in the
// window it crosses (spec.md §4.6 step 6 / scheduling model).
func (s *Scheduler) tickTimeline(now time.Time) []ScheduledEvent {
	if !s.playing {
		return nil
	}
	elapsed := now.Sub(s.lastTickAt)
	if elapsed <= 0 {
		return nil
	}
	secondsPerTick := 1 / s.ticksPerSecond()
	deltaTicks := int(elapsed.Seconds() / secondsPerTick)
	if deltaTicks <= 0 {
		return nil
	}

	oldTick := s.playhead
	newTick := oldTick + deltaTicks

	var events []ScheduledEvent
	events = append(events, s.scheduleNotes(oldTick, newTick, secondsPerTick)...)
	events = append(events, s.scheduleDrumSteps(oldTick, newTick, secondsPerTick)...)
	s.updateAutomation(newTick)

	s.playhead = newTick
	pr := s.state.Session.PianoRoll
	if pr.Looping && pr.LoopEnd > pr.LoopStart && s.playhead >= pr.LoopEnd {
		s.playhead = pr.LoopStart + (s.playhead-pr.LoopEnd)%(pr.LoopEnd-pr.LoopStart)
	}

	for _, ev := range events {
		s.deliverEvent(ev)
	}
	return events
}

// scheduleNotes emits piano-roll (or flattened arrangement) notes whose
// tick falls in [oldTick, newTick), each offset by its tick distance plus
// lookahead, clamped >= 0 (spec.md §4.6 scheduling model).
func (s *Scheduler) scheduleNotes(oldTick, newTick int, secondsPerTick float64) []ScheduledEvent {
	var events []ScheduledEvent
	pr := s.state.Session.PianoRoll
	tracks := pr.Tracks
	if s.state.Session.Arrangement.Mode == session.ModeSong {
		tracks = nil
		for inst, notes := range s.state.Session.Arrangement.FlattenToNotes() {
			t := &session.Track{Notes: notes}
			if tracks == nil {
				tracks = map[ids.InstrumentId]*session.Track{}
			}
			tracks[inst] = t
		}
	}
	for instID, track := range tracks {
		inst, ok := s.state.Instruments.Instruments[instID]
		for _, n := range track.NotesInRange(oldTick, newTick) {
			offset := float64(n.Tick-oldTick)*secondsPerTick + s.lookahead.Seconds()
			if offset < 0 {
				offset = 0
			}
			if ok && inst.Humanize {
				offset += s.humanizeJitterSecs(instID)
				if offset < 0 {
					offset = 0
				}
			}
			events = append(events, ScheduledEvent{Instrument: instID, Pitch: n.Pitch, Velocity: n.Velocity, OffsetSecs: offset})
		}
	}
	return events
}

// humanizeJitterSecs draws a ±20ms offset from a dedicated per-instrument
// RNG (spec.md §4.6: "one RNG per instrument, not global, so replay ... is
// reproducible per-instrument across runs given a fixed seed"), seeded
// deterministically from the instrument id.
func (s *Scheduler) humanizeJitterSecs(inst ids.InstrumentId) float64 {
	rng, ok := s.humanizeRng[inst]
	if !ok {
		rng = rand.New(rand.NewSource(int64(inst)))
		s.humanizeRng[inst] = rng
	}
	return (rng.Float64()*2 - 1) * HumanizeJitter.Seconds()
}

// scheduleDrumSteps emits each drum-grid step crossed in [oldTick, newTick)
// at its exact offset; if the window crosses k>1 steps, all k are emitted,
// none skipped (spec.md §4.6 scheduling model, §8 boundary behavior).
func (s *Scheduler) scheduleDrumSteps(oldTick, newTick int, secondsPerTick float64) []ScheduledEvent {
	var events []ScheduledEvent
	stepTicks := TicksPerBeat / 4 // one 16th note per step
	for id, inst := range s.state.Instruments.Instruments {
		drums, ok := inst.DrumSequencer()
		if !ok || drums.StepsCount == 0 {
			continue
		}
		firstStep := (oldTick + stepTicks - 1) / stepTicks
		for stepAbs := firstStep; stepAbs*stepTicks < newTick; stepAbs++ {
			tick := stepAbs * stepTicks
			stepIdx := (stepAbs % drums.StepsCount + drums.StepsCount) % drums.StepsCount
			for pad, row := range drums.Steps {
				if stepIdx >= len(row) || !row[stepIdx].Active {
					continue
				}
				offset := float64(tick-oldTick)*secondsPerTick + s.lookahead.Seconds()
				if offset < 0 {
					offset = 0
				}
				events = append(events, ScheduledEvent{Instrument: id, DrumPad: pad, Velocity: row[stepIdx].Velocity, IsDrumHit: true, OffsetSecs: offset})
			}
		}
	}
	return events
}

// updateAutomation recomputes every lane's value at newTick; values feed
// targeted param backend writes the same way priority commands do.
func (s *Scheduler) updateAutomation(newTick int) {
	for i := range s.state.Session.Automation.Lanes {
		lane := &s.state.Session.Automation.Lanes[i]
		value := lane.ValueAt(newTick, true)
		s.applyAutomationValue(lane.Target, value)
	}
}

func (s *Scheduler) applyAutomationValue(target session.AutomationTarget, value float64) {
	switch target.Kind {
	case session.TargetFilterCutoff:
		s.applyTargetedParam(eventlog.PriorityCommand{Kind: eventlog.PrioritySetFilterParam, Instrument: target.Instrument, Value: value})
	case session.TargetEffectParam:
		s.applyTargetedParam(eventlog.PriorityCommand{Kind: eventlog.PrioritySetEffectParam, Instrument: target.Instrument, Effect: target.Effect, Param: target.Param, Value: value})
	case session.TargetBusLevel:
		// no backend write is made for bus level: there is no single
		// "bus level" node to address, and RebuildBusProcessing does not
		// send a level either.
	case session.TargetBpm:
		s.state.Session.PianoRoll.BPM = value
	}
}

// deliverEvent allocates/releases a voice for ev and sends its spawn/stop
// bundle through the backend.
func (s *Scheduler) deliverEvent(ev ScheduledEvent) {
	if ev.NoteOff {
		_ = s.voices.Release(ev.Instrument, ev.Pitch)
		return
	}
	if ev.IsDrumHit {
		s.spawnVoice(ev.Instrument, ev.DrumPad, ev.Velocity, true)
		return
	}
	s.spawnVoice(ev.Instrument, ev.Pitch, ev.Velocity, false)
}

func (s *Scheduler) spawnVoice(instrument ids.InstrumentId, pitch, velocity int, isDrum bool) {
	inst, ok := s.state.Instruments.Instruments[instrument]
	if !ok {
		return // ActionIgnored: SpawnVoice against a freed instrument (spec.md §9 open question 2)
	}
	voice, retriggered, err := s.voices.Allocate(inst, pitch, velocity)
	if err != nil || retriggered {
		return
	}
	params := []backend.Param{
		{Name: "pitch", Value: float32(pitch)},
		{Name: "velocity", Value: float32(velocity) / 127},
		{Name: "gate", Value: 1},
	}
	if nodes, ok := s.routing.Registry().Instruments[instrument]; ok && nodes.AudioBus != 0 {
		params = append(params, backend.Param{Name: "out", Value: float32(nodes.AudioBus)})
	}
	node, err := s.backend.CreateSynth(voiceDefName(inst, isDrum), backend.GroupSources, backend.AddToTail, params)
	if err != nil {
		return
	}
	s.voices.AttachNode(voice, node)
}

// voiceDefName picks the per-note synthdef a voice spawns, distinct from
// routing.defNameFor's persistent per-instrument source node: drum pads and
// sampler instruments trigger one-shot voices, oscillator instruments
// retrigger their continuous source via gate instead.
func voiceDefName(inst *session.Instrument, isDrum bool) string {
	if isDrum {
		return "imbolc_drum_hit"
	}
	switch inst.Source.Kind {
	case session.SourceSampler:
		return "imbolc_sampler_voice"
	default:
		return "imbolc_voice"
	}
}

// stopAndFlush implements the Stop priority command: sets playing=false,
// flushes all releasing voices, resets the playhead (spec.md §4.6
// cancellation).
func (s *Scheduler) stopAndFlush() {
	s.playing = false
	s.playhead = 0
	for _, id := range s.state.Instruments.Order {
		_ = s.voices.FlushInstrument(id)
	}
}

// Play sets playing=true, resuming from the current playhead.
func (s *Scheduler) Play() { s.playing = true }

// checkServerLiveness implements spec.md §4.6's 5s ping / 2s disconnect
// threshold and triggers a full_rebuild on reconnect.
func (s *Scheduler) checkServerLiveness(now time.Time) {
	if s.lastStatusPing.IsZero() {
		s.lastStatusPing = now
		s.lastStatusPong = now
		return
	}
	if now.Sub(s.lastStatusPing) >= statusPingInterval {
		s.lastStatusPing = now
		if s.backend.Status() == backend.StatusRunning {
			s.lastStatusPong = now
		}
	}
	wasConnected := s.connected
	s.connected = now.Sub(s.lastStatusPong) < statusPingInterval+disconnectThreshold
	if s.connected && !wasConnected {
		_ = s.routing.FullRebuild(s.state)
	}
}

func (s *Scheduler) publishFeedback() {
	s.publish(Feedback{Kind: FeedbackPlayheadPosition, Tick: s.playhead})
	s.publish(Feedback{Kind: FeedbackBpmUpdate, Bpm: s.state.Session.PianoRoll.BPM})
	s.publish(Feedback{Kind: FeedbackServerStatus, Status: s.backend.Status()})
}
