package mockbackend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/backend"
)

func TestCreateSynthAllocatesDistinctNodeIds(t *testing.T) {
	m := New()
	a, err := m.CreateSynth("saw", backend.GroupSources, backend.AddToTail, nil)
	assert.NoError(t, err)
	b, err := m.CreateSynth("saw", backend.GroupSources, backend.AddToTail, nil)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSetParamRecordsExactCall(t *testing.T) {
	m := New()
	node, _ := m.CreateSynth("lpf", backend.GroupProcessing, backend.AddToTail, nil)
	m.Calls = nil // only inspect the SetParam call for this scenario
	assert.NoError(t, m.SetParam(node, "cutoff", 0.6))

	calls := m.CallsWithOp("set_param")
	assert.Len(t, calls, 1)
	assert.Equal(t, node, calls[0].NodeId)
	assert.Equal(t, "cutoff", calls[0].Name)
	assert.Equal(t, float32(0.6), calls[0].Value)
}

func TestEmitNodeEndDeliversOnSubscription(t *testing.T) {
	m := New()
	ch, err := m.SubscribeNodeEnd(context.Background())
	assert.NoError(t, err)
	m.EmitNodeEnd(backend.NodeId(42))
	select {
	case id := <-ch:
		assert.Equal(t, backend.NodeId(42), id)
	default:
		t.Fatal("expected node-end notification to be immediately available")
	}
}
