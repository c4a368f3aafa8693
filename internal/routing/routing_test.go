package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/mockbackend"
	"github.com/schollz/imbolc/internal/session"
)

func freshState() *session.State {
	return session.NewState()
}

func addOscInstrument(t *testing.T, state *session.State) *session.Instrument {
	t.Helper()
	id := state.Instruments.NextID()
	inst := session.NewInstrument(id, "saw", session.Source{Kind: session.SourceOscillator, Oscillator: session.OscSaw})
	state.Instruments.Add(inst)
	return inst
}

func TestAddInstrumentRoutingBuildsSourceAndOutput(t *testing.T) {
	be := mockbackend.New()
	b := New(be)
	state := freshState()
	inst := addOscInstrument(t, state)

	assert.NoError(t, b.AddInstrumentRouting(state, inst))

	nodes := b.Registry().Instruments[inst.ID]
	assert.NotZero(t, nodes.Source)
	assert.NotZero(t, nodes.Output)
	assert.Len(t, be.CallsWithOp("create_synth"), 2) // source + output, no processing chain yet
}

func TestProcessingChainBuildsOneStagePerElement(t *testing.T) {
	be := mockbackend.New()
	b := New(be)
	state := freshState()
	inst := addOscInstrument(t, state)
	inst.ProcessingChain = append(inst.ProcessingChain, session.ProcessingStage{
		Kind:   session.StageFilter,
		Filter: session.FilterConfig{Kind: session.FilterLowpass, Cutoff: 0.5, Resonance: 0.2},
	})

	assert.NoError(t, b.AddInstrumentRouting(state, inst))

	nodes := b.Registry().Instruments[inst.ID]
	assert.Len(t, nodes.ProcessingOrder, 1)
	assert.Contains(t, nodes.Filter, 0)
	assert.Len(t, be.CallsWithOp("create_synth"), 3) // source + filter + output
}

func TestDeleteInstrumentRoutingFreesEveryNode(t *testing.T) {
	be := mockbackend.New()
	b := New(be)
	state := freshState()
	inst := addOscInstrument(t, state)
	assert.NoError(t, b.AddInstrumentRouting(state, inst))

	assert.NoError(t, b.DeleteInstrumentRouting(inst.ID))
	_, stillRegistered := b.Registry().Instruments[inst.ID]
	assert.False(t, stillRegistered)
	assert.Len(t, be.CallsWithOp("free_node"), 2) // source + output
	assert.Len(t, be.CallsWithOp("free_audio_bus"), 1)
}

func TestRebuildSingleInstrumentReusesBusAllocation(t *testing.T) {
	be := mockbackend.New()
	b := New(be)
	state := freshState()
	inst := addOscInstrument(t, state)
	assert.NoError(t, b.AddInstrumentRouting(state, inst))
	firstBus := b.Registry().Instruments[inst.ID].AudioBus

	assert.NoError(t, b.RebuildSingleInstrument(state, inst))
	secondBus := b.Registry().Instruments[inst.ID].AudioBus

	assert.Equal(t, firstBus, secondBus)
	assert.Empty(t, be.CallsWithOp("alloc_audio_bus")[1:]) // only the first AddInstrumentRouting allocated a bus
}

func TestApplyRebuildTargetsEscalatesPastFourDistinctInstruments(t *testing.T) {
	be := mockbackend.New()
	b := New(be)
	state := freshState()
	var instIDs []ids.InstrumentId
	for i := 0; i < 6; i++ {
		inst := addOscInstrument(t, state)
		assert.NoError(t, b.AddInstrumentRouting(state, inst))
		instIDs = append(instIDs, inst.ID)
	}

	be.Calls = nil
	assert.NoError(t, b.ApplyRebuildTargets(state, instIDs[:5])) // 5 distinct > 4, escalates

	// escalation rebuilds every instrument (6), not just the 5 named.
	createCalls := be.CallsWithOp("create_synth")
	assert.Len(t, createCalls, 12) // 6 instruments * (source + output)
}

func TestApplyRebuildTargetsHonorsSmallSetAsIs(t *testing.T) {
	be := mockbackend.New()
	b := New(be)
	state := freshState()
	var instIDs []ids.InstrumentId
	for i := 0; i < 6; i++ {
		inst := addOscInstrument(t, state)
		assert.NoError(t, b.AddInstrumentRouting(state, inst))
		instIDs = append(instIDs, inst.ID)
	}

	be.Calls = nil
	assert.NoError(t, b.ApplyRebuildTargets(state, instIDs[:3])) // 3 distinct <= 4, honored as-is

	createCalls := be.CallsWithOp("create_synth")
	assert.Len(t, createCalls, 6) // 3 instruments * (source + output)
}

func TestSendsTapSourceOutForPreInsert(t *testing.T) {
	be := mockbackend.New()
	b := New(be)
	state := freshState()
	busID, _ := state.Session.Mixer.AddBus("send target")
	inst := addOscInstrument(t, state)
	inst.ProcessingChain = append(inst.ProcessingChain, session.ProcessingStage{
		Kind:   session.StageFilter,
		Filter: session.FilterConfig{Kind: session.FilterLowpass, Cutoff: 0.5},
	})
	inst.Sends = map[ids.BusId]session.Send{busID: {Level: 0.5, TapPoint: session.PreInsert}}

	assert.NoError(t, b.AddInstrumentRouting(state, inst))

	nodes := b.Registry().Instruments[inst.ID]
	assert.Contains(t, nodes.Sends, busID)
	sendCalls := be.CallsWithOp("create_synth")
	var sendParams []float32
	for _, c := range sendCalls {
		if c.DefName == "imbolc_send" {
			for _, p := range c.Params {
				if p.Name == "in" {
					sendParams = append(sendParams, p.Value)
				}
			}
		}
	}
	assert.Len(t, sendParams, 1)
	assert.Equal(t, float32(nodes.AudioBus), sendParams[0]) // pre-insert taps source_out_bus == the instrument's own audio bus (no stages built before it)
}
