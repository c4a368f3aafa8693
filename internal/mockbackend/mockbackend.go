// Package mockbackend is an in-memory internal/backend.Backend used by
// reducer/scheduler/voice-allocator tests, per spec.md §4.3's "a mock
// implementation exists for tests." It records every call so tests can
// assert exact backend traffic (e.g. spec.md §8 scenario 2's "exactly one
// /n_set, no other backend calls").
package mockbackend

import (
	"context"
	"sync"

	"github.com/schollz/imbolc/internal/backend"
)

// Call is one recorded backend invocation, for tests asserting exact
// traffic shape.
type Call struct {
	Op      string
	NodeId  backend.NodeId
	Name    string
	Value   float32
	Params  []backend.Param
	DefName string
}

// Mock implements backend.Backend entirely in memory.
type Mock struct {
	mu sync.Mutex

	Calls  []Call
	status backend.ServerStatus

	nextNode    int32
	nextAudio   int32
	nextControl int32
	nextBuffer  int32

	Bundles []BundleCall
	nodeEnd chan backend.NodeId
}

// BundleCall records one SendBundle invocation.
type BundleCall struct {
	Messages []backend.Message
	Offset   float64
}

// New returns a Mock in StatusRunning, the common test fixture state.
func New() *Mock {
	return &Mock{status: backend.StatusRunning, nextNode: 1, nextAudio: 2, nodeEnd: make(chan backend.NodeId, 64)}
}

func (m *Mock) record(c Call) {
	m.Calls = append(m.Calls, c)
}

func (m *Mock) CreateSynth(defName string, group backend.Group, addAction backend.AddAction, params []backend.Param) (backend.NodeId, error) {
	m.mu.Lock()
	id := m.nextNode
	m.nextNode++
	m.mu.Unlock()
	m.record(Call{Op: "create_synth", DefName: defName, NodeId: backend.NodeId(id), Params: params})
	return backend.NodeId(id), nil
}

func (m *Mock) FreeNode(id backend.NodeId) error {
	m.record(Call{Op: "free_node", NodeId: id})
	return nil
}

func (m *Mock) SetParam(id backend.NodeId, name string, value float32) error {
	m.record(Call{Op: "set_param", NodeId: id, Name: name, Value: value})
	return nil
}

func (m *Mock) SetParams(id backend.NodeId, params []backend.Param) error {
	m.record(Call{Op: "set_params", NodeId: id, Params: params})
	return nil
}

func (m *Mock) AllocAudioBus(channels int) (backend.AudioBusId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextAudio
	m.nextAudio += int32(channels)
	m.record(Call{Op: "alloc_audio_bus"})
	return backend.AudioBusId(id), nil
}

func (m *Mock) FreeAudioBus(id backend.AudioBusId) error {
	m.record(Call{Op: "free_audio_bus"})
	return nil
}

func (m *Mock) AllocControlBus() (backend.ControlBusId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextControl
	m.nextControl++
	m.record(Call{Op: "alloc_control_bus"})
	return backend.ControlBusId(id), nil
}

func (m *Mock) FreeControlBus(id backend.ControlBusId) error {
	m.record(Call{Op: "free_control_bus"})
	return nil
}

func (m *Mock) LoadBuffer(path string) (backend.BufferId, error) {
	m.mu.Lock()
	id := m.nextBuffer
	m.nextBuffer++
	m.mu.Unlock()
	m.record(Call{Op: "load_buffer", Name: path})
	return backend.BufferId(id), nil
}

func (m *Mock) FreeBuffer(id backend.BufferId) error {
	m.record(Call{Op: "free_buffer"})
	return nil
}

func (m *Mock) SendBundle(msgs []backend.Message, atOffsetSecs float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Bundles = append(m.Bundles, BundleCall{Messages: msgs, Offset: atOffsetSecs})
	return nil
}

func (m *Mock) SubscribeNodeEnd(ctx context.Context) (<-chan backend.NodeId, error) {
	return m.nodeEnd, nil
}

// EmitNodeEnd lets a test simulate scsynth's /n_end notification for id.
func (m *Mock) EmitNodeEnd(id backend.NodeId) {
	m.nodeEnd <- id
}

func (m *Mock) Status() backend.ServerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// CallsWithOp filters recorded calls by op name, the common test assertion
// shape ("exactly one set_param call").
func (m *Mock) CallsWithOp(op string) []Call {
	var out []Call
	for _, c := range m.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}
