package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/actions"
)

func TestLogPreservesFIFOOrderAndMonotonicSeq(t *testing.T) {
	l := New()
	s1 := l.PushAction(actions.DomainAction{Kind: actions.InstrumentAdd})
	s2 := l.PushCue(CueRebuildBusProcessing, 0)
	s3 := l.PushAction(actions.DomainAction{Kind: actions.InstrumentRemove})

	assert.Less(t, s1, s2)
	assert.Less(t, s2, s3)

	drained := l.DrainBudget(10)
	assert.Len(t, drained, 3)
	assert.Equal(t, actions.InstrumentAdd, drained[0].Action.Kind)
	assert.Equal(t, CueRebuildBusProcessing, drained[1].Cue)
	assert.Equal(t, actions.InstrumentRemove, drained[2].Action.Kind)
	assert.Equal(t, 0, l.Len())
}

func TestDrainBudgetCapsEntriesLeavingTheRestQueued(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		l.PushAction(actions.DomainAction{Kind: actions.InstrumentAdd})
	}

	first := l.DrainBudget(3)
	assert.Len(t, first, 3)
	assert.Equal(t, 2, l.Len())

	second := l.DrainBudget(10)
	assert.Len(t, second, 2)
	assert.Equal(t, 0, l.Len())
}

func TestBridgeDrainPriorityIsNonBlockingAndExhaustsQueue(t *testing.T) {
	b := NewBridge()
	b.SendPriority(PriorityCommand{Kind: PrioritySpawnVoice, Pitch: 60})
	b.SendPriority(PriorityCommand{Kind: PriorityReleaseVoice, Pitch: 60})

	drained := b.DrainPriority()
	assert.Len(t, drained, 2)
	assert.Equal(t, PrioritySpawnVoice, drained[0].Kind)
	assert.Equal(t, PriorityReleaseVoice, drained[1].Kind)

	assert.Empty(t, b.DrainPriority())
}

func TestBridgeDrainNormalBudgetRespectsCap(t *testing.T) {
	b := NewBridge()
	for i := 0; i < 5; i++ {
		b.SendNormal(NormalCommand{Kind: NormalUpdateMixerParams})
	}

	first := b.DrainNormalBudget(2)
	assert.Len(t, first, 2)

	rest := b.DrainNormalBudget(10)
	assert.Len(t, rest, 3)
}
