package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/session"
)

func newRuntimeWithInstrument(t *testing.T) (*Runtime, int) {
	t.Helper()
	rt := New()
	rt.Phase = PhaseReady
	id := rt.State.Instruments.NextID()
	rt.State.Instruments.Add(session.NewInstrument(id, "i", session.Source{Kind: session.SourceOscillator}))
	return rt, int(id)
}

func TestUndoRestoresSingleInstrumentScope(t *testing.T) {
	rt, id := newRuntimeWithInstrument(t)
	instID := rt.State.Instruments.Order[0]

	rt.Dispatch(actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: instID, Float: 0.5})
	assert.Equal(t, 0.5, rt.State.Instruments.Instruments[instID].Mixer.Level)

	assert.True(t, rt.CanUndo())
	assert.True(t, rt.Undo())
	assert.Equal(t, 1.0, rt.State.Instruments.Instruments[instID].Mixer.Level)
	_ = id
}

func TestRedoReappliesUndoneAction(t *testing.T) {
	rt, _ := newRuntimeWithInstrument(t)
	instID := rt.State.Instruments.Order[0]

	rt.Dispatch(actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: instID, Float: 0.25})
	rt.Undo()
	assert.True(t, rt.CanRedo())
	assert.True(t, rt.Redo())
	assert.Equal(t, 0.25, rt.State.Instruments.Instruments[instID].Mixer.Level)
}

func TestNonMutatingActionIsNotUndoable(t *testing.T) {
	rt, _ := newRuntimeWithInstrument(t)
	rt.Dispatch(actions.DomainAction{Kind: actions.TransportPlay})
	assert.False(t, rt.CanUndo())
}

func TestDispatchMovesPhaseFromReadyToDirty(t *testing.T) {
	rt, _ := newRuntimeWithInstrument(t)
	instID := rt.State.Instruments.Order[0]
	assert.Equal(t, PhaseReady, rt.Phase)
	rt.Dispatch(actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: instID, Float: 0.9})
	assert.Equal(t, PhaseDirty, rt.Phase)
}

func TestConsecutiveActionsWithinWindowCoalesceToOneUndoEntry(t *testing.T) {
	rt, _ := newRuntimeWithInstrument(t)
	instID := rt.State.Instruments.Order[0]

	rt.Dispatch(actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: instID, Float: 0.1})
	rt.Dispatch(actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: instID, Float: 0.2})
	rt.Dispatch(actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: instID, Float: 0.3})

	assert.Len(t, rt.undoStack, 1, "a parameter sweep within the coalescing window must share one undo entry")

	rt.Undo()
	assert.Equal(t, 1.0, rt.State.Instruments.Instruments[instID].Mixer.Level, "undoing the coalesced entry must rewind past the whole sweep")
}

func TestDifferentInstrumentsDoNotCoalesce(t *testing.T) {
	rt, _ := newRuntimeWithInstrument(t)
	instA := rt.State.Instruments.Order[0]
	instB := rt.State.Instruments.NextID()
	rt.State.Instruments.Add(session.NewInstrument(instB, "b", session.Source{Kind: session.SourceOscillator}))

	rt.Dispatch(actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: instA, Float: 0.1})
	rt.Dispatch(actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: instB, Float: 0.1})

	assert.Len(t, rt.undoStack, 2)
}
