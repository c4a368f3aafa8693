package voices

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/mockbackend"
	"github.com/schollz/imbolc/internal/session"
)

func sawInstrument(id int, cap int, strategy session.StealStrategy) *session.Instrument {
	inst := session.NewInstrument(ids.InstrumentId(id), "saw", session.Source{Kind: session.SourceOscillator})
	inst.VoiceCap = cap
	inst.StealStrategy = strategy
	return inst
}

// TestAllocateReleaseNodeEndConservesBuses is spec.md §8 scenario 1: spawn,
// release, deliver /n_end, and check voice/bus accounting returns to
// baseline.
func TestAllocateReleaseNodeEndConservesBuses(t *testing.T) {
	be := mockbackend.New()
	a := New(be)
	inst := sawInstrument(1, 8, session.StealOldest)

	v, retriggered, err := a.Allocate(inst, 60, 100)
	assert.NoError(t, err)
	assert.False(t, retriggered)
	a.AttachNode(v, 2000)

	assert.Equal(t, 1, a.ActiveCount(inst.ID))

	assert.NoError(t, a.Release(inst.ID, 60))
	assert.Equal(t, 1, a.ActiveCount(inst.ID)) // still counted while releasing

	a.NotifyNodeEnd(2000)
	assert.Equal(t, 0, a.ActiveCount(inst.ID))
	assert.Equal(t, 3, a.ControlBusPoolSize())
}

func TestSamePitchRetriggerReGatesInsteadOfSpawning(t *testing.T) {
	be := mockbackend.New()
	a := New(be)
	inst := sawInstrument(1, 8, session.StealOldest)

	v1, _, err := a.Allocate(inst, 60, 100)
	assert.NoError(t, err)
	a.AttachNode(v1, 2000)

	v2, retriggered, err := a.Allocate(inst, 60, 110)
	assert.NoError(t, err)
	assert.True(t, retriggered)
	assert.Equal(t, v1.ID, v2.ID)
	assert.Equal(t, 1, a.ActiveCount(inst.ID))

	gateCalls := be.CallsWithOp("set_param")
	assert.Len(t, gateCalls, 2) // gate=0 then gate=1 on retrigger
}

func TestPoolFullTriggersOldestStealing(t *testing.T) {
	be := mockbackend.New()
	a := New(be)
	inst := sawInstrument(1, 2, session.StealOldest)

	v1, _, err := a.Allocate(inst, 60, 100)
	assert.NoError(t, err)
	a.AttachNode(v1, 2000)

	v2, _, err := a.Allocate(inst, 62, 100)
	assert.NoError(t, err)
	a.AttachNode(v2, 2001)

	assert.Equal(t, 2, a.ActiveCount(inst.ID))

	// A third distinct pitch exceeds the cap of 2: the oldest voice (v1) is
	// stolen and force-freed immediately.
	v3, retriggered, err := a.Allocate(inst, 64, 100)
	assert.NoError(t, err)
	assert.False(t, retriggered)
	a.AttachNode(v3, 2002)

	assert.Equal(t, 2, a.ActiveCount(inst.ID))
	freeCalls := be.CallsWithOp("free_node")
	assert.Len(t, freeCalls, 1)
	assert.Equal(t, v1.Node, freeCalls[0].NodeId)
}

func TestReleasedVoicesAreStolenBeforeActiveOnes(t *testing.T) {
	be := mockbackend.New()
	a := New(be)
	inst := sawInstrument(1, 2, session.StealLowestVelocity)

	v1, _, _ := a.Allocate(inst, 60, 127) // loudest, but will be released
	a.AttachNode(v1, 2000)
	v2, _, _ := a.Allocate(inst, 62, 10) // quietest, but stays active
	a.AttachNode(v2, 2001)

	assert.NoError(t, a.Release(inst.ID, 60))

	v3, _, err := a.Allocate(inst, 64, 50)
	assert.NoError(t, err)
	a.AttachNode(v3, 2002)

	// v1 (released) should have been the steal victim, not v2 (lowest
	// velocity but still active).
	freeCalls := be.CallsWithOp("free_node")
	assert.Len(t, freeCalls, 1)
	assert.Equal(t, v1.Node, freeCalls[0].NodeId)
	assert.Equal(t, 2, a.ActiveCount(inst.ID))
}

func TestReclaimStaleFreesVoicesPastSafetyNet(t *testing.T) {
	be := mockbackend.New()
	a := New(be)
	now := time.Unix(0, 0)
	a.WithClock(func() time.Time { return now })

	inst := sawInstrument(1, 8, session.StealOldest)
	v, _, _ := a.Allocate(inst, 60, 100)
	a.AttachNode(v, 2000)
	assert.NoError(t, a.Release(inst.ID, 60))

	now = now.Add(4 * time.Second)
	assert.Empty(t, a.ReclaimStale())
	assert.Equal(t, 1, a.ActiveCount(inst.ID))

	now = now.Add(2 * time.Second) // total 6s, past the 5s safety net
	freed := a.ReclaimStale()
	assert.Equal(t, []ids.VoiceId{v.ID}, freed)
	assert.Equal(t, 0, a.ActiveCount(inst.ID))
}

func TestFlushInstrumentFreesEveryVoiceRegardlessOfState(t *testing.T) {
	be := mockbackend.New()
	a := New(be)
	inst := sawInstrument(1, 8, session.StealOldest)

	v1, _, _ := a.Allocate(inst, 60, 100)
	a.AttachNode(v1, 2000)
	v2, _, _ := a.Allocate(inst, 62, 100)
	a.AttachNode(v2, 2001)
	assert.NoError(t, a.Release(inst.ID, 62))

	assert.NoError(t, a.FlushInstrument(inst.ID))
	assert.Equal(t, 0, a.ActiveCount(inst.ID))
}
