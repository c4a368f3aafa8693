package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/eventlog"
	"github.com/schollz/imbolc/internal/mockbackend"
	"github.com/schollz/imbolc/internal/session"
)

func newScheduler() (*Scheduler, *mockbackend.Mock) {
	be := mockbackend.New()
	s := New(be, eventlog.New(), eventlog.NewBridge(), 44100, 512)
	return s, be
}

func TestSpawnVoiceOnPriorityCommandCreatesSynth(t *testing.T) {
	s, be := newScheduler()
	inst := session.NewInstrument(s.state.Instruments.NextID(), "saw", session.Source{Kind: session.SourceOscillator})
	s.state.Instruments.Add(inst)

	s.bridge.SendPriority(eventlog.PriorityCommand{Kind: eventlog.PrioritySpawnVoice, Instrument: inst.ID, Pitch: 60, Velocity: 100})
	s.Tick(time.Now())

	assert.Len(t, be.CallsWithOp("create_synth"), 1)
	assert.Equal(t, 1, s.voices.ActiveCount(inst.ID))
}

func TestStopPriorityCommandFlushesVoicesAndResetsPlayhead(t *testing.T) {
	s, be := newScheduler()
	inst := session.NewInstrument(s.state.Instruments.NextID(), "saw", session.Source{Kind: session.SourceOscillator})
	s.state.Instruments.Add(inst)
	s.playhead = 500
	s.playing = true

	s.bridge.SendPriority(eventlog.PriorityCommand{Kind: eventlog.PrioritySpawnVoice, Instrument: inst.ID, Pitch: 60, Velocity: 100})
	s.bridge.SendPriority(eventlog.PriorityCommand{Kind: eventlog.PriorityStop})
	s.Tick(time.Now())

	assert.False(t, s.playing)
	assert.Equal(t, 0, s.playhead)
	assert.Equal(t, 0, s.voices.ActiveCount(inst.ID))
	assert.NotEmpty(t, be.CallsWithOp("free_node"))
}

func TestTargetedFilterParamSendsExactlyOneSetParam(t *testing.T) {
	s, be := newScheduler()
	inst := session.NewInstrument(s.state.Instruments.NextID(), "saw", session.Source{Kind: session.SourceOscillator})
	inst.ProcessingChain = append(inst.ProcessingChain, session.ProcessingStage{
		Kind:   session.StageFilter,
		Filter: session.FilterConfig{Kind: session.FilterLowpass, Cutoff: 0.5},
	})
	s.state.Instruments.Add(inst)
	assert.NoError(t, s.routing.AddInstrumentRouting(s.state, inst))

	be.Calls = nil
	s.bridge.SendPriority(eventlog.PriorityCommand{Kind: eventlog.PrioritySetFilterParam, Instrument: inst.ID, Param: 0, Value: 0.9})
	s.Tick(time.Now())

	assert.Len(t, be.CallsWithOp("set_param"), 1)
}

func TestNoteScheduledWithinTickWindowDeliversVoice(t *testing.T) {
	s, be := newScheduler()
	inst := session.NewInstrument(s.state.Instruments.NextID(), "saw", session.Source{Kind: session.SourceOscillator})
	s.state.Instruments.Add(inst)
	s.state.Session.PianoRoll.BPM = 120
	track := s.state.Session.PianoRoll.TrackFor(inst.ID)
	track.InsertNote(session.Note{Tick: 1, Pitch: 64, Velocity: 100})
	s.playing = true
	s.lastTickAt = time.Now().Add(-time.Second) // force a large elapsed window

	events := s.tickTimeline(time.Now())

	assert.NotEmpty(t, events)
	assert.Len(t, be.CallsWithOp("create_synth"), 1)
}

func TestDrumStepsCrossingMultipleBoundariesEmitEveryStep(t *testing.T) {
	s, _ := newScheduler()
	inst := session.NewInstrument(s.state.Instruments.NextID(), "kit", session.Source{Kind: session.SourceDrumKit})
	s.state.Instruments.Add(inst)
	drums, _ := inst.DrumSequencer()
	drums.StepsCount = 4
	drums.Steps = [][]session.DrumSequencerStep{
		{{Active: true, Velocity: 100}, {Active: true, Velocity: 90}, {Active: true, Velocity: 80}, {Active: true, Velocity: 70}},
	}
	s.state.Session.PianoRoll.BPM = 120

	stepTicks := TicksPerBeat / 4
	events := s.scheduleDrumSteps(0, stepTicks*3+1, 1.0/s.ticksPerSecond())

	assert.Len(t, events, 4) // steps 0, 1, 2, 3 all hit; none skipped
	assert.GreaterOrEqual(t, events[0].OffsetSecs, 0.0) // sanity: offsets are non-negative and ordered
	assert.LessOrEqual(t, events[0].OffsetSecs, events[1].OffsetSecs)
	assert.LessOrEqual(t, events[1].OffsetSecs, events[2].OffsetSecs)
}

func TestHumanizeJitterOnlyAppliesWhenInstrumentOptsIn(t *testing.T) {
	s, _ := newScheduler()
	inst := session.NewInstrument(s.state.Instruments.NextID(), "saw", session.Source{Kind: session.SourceOscillator})
	s.state.Instruments.Add(inst)
	s.state.Session.PianoRoll.BPM = 120
	track := s.state.Session.PianoRoll.TrackFor(inst.ID)
	track.InsertNote(session.Note{Tick: 1, Pitch: 64, Velocity: 100})

	secondsPerTick := 1.0 / s.ticksPerSecond()
	baseline := s.scheduleNotes(0, 2, secondsPerTick)
	assert.Len(t, baseline, 1)
	expected := float64(1)*secondsPerTick + s.lookahead.Seconds()
	assert.InDelta(t, expected, baseline[0].OffsetSecs, 1e-9)

	inst.Humanize = true
	jittered := s.scheduleNotes(0, 2, secondsPerTick)
	assert.Len(t, jittered, 1)
	assert.InDelta(t, expected, jittered[0].OffsetSecs, HumanizeJitter.Seconds()+1e-9)
}

func TestReconnectTriggersFullRebuild(t *testing.T) {
	s, be := newScheduler()
	inst := session.NewInstrument(s.state.Instruments.NextID(), "saw", session.Source{Kind: session.SourceOscillator})
	s.state.Instruments.Add(inst)

	now := time.Now()
	s.checkServerLiveness(now) // establish baseline, not yet connected

	be.Calls = nil
	s.checkServerLiveness(now.Add(1 * time.Millisecond))

	assert.NotEmpty(t, be.CallsWithOp("create_synth")) // reconnect rebuilt every instrument's routing
}
