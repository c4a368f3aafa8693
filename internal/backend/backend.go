// Package backend defines the AudioBackend contract (spec.md §4.3): the
// abstraction hiding the concrete synthesis engine behind create/free node,
// bus/buffer allocation, timed bundle delivery, and node-end notification.
// internal/scbackend wraps OSC/UDP to scsynth, grounded on the teacher's
// osc.Client usage in internal/model; internal/mockbackend is an in-memory
// fake for reducer/scheduler tests.
package backend

import (
	"context"
	"time"
)

// NodeId, AudioBusId, ControlBusId, and BufferId are opaque handles the
// backend hands back; callers never construct them directly.
type NodeId int32
type AudioBusId int32
type ControlBusId int32
type BufferId int32

// AddAction selects where a new node is inserted relative to a target,
// mirroring scsynth's /s_new addAction argument.
type AddAction int

const (
	AddToHead AddAction = iota
	AddToTail
	AddBefore
	AddAfter
	AddReplace
)

// Group names the five fixed execution-order node groups spec.md §4.3
// names: Sources(100) -> Processing(200) -> BusProcessing(350) ->
// Output(300) -> Record(400). Layer-group effects and outputs execute
// before bus effects so group outputs mix into bus audio before bus
// effects read it.
type Group int32

const (
	GroupSources        Group = 100
	GroupProcessing      Group = 200
	GroupOutput          Group = 300
	GroupBusProcessing   Group = 350
	GroupRecord          Group = 400
)

// ServerStatus is the backend's liveness state, published to the UI via
// AudioFeedback.
type ServerStatus int

const (
	StatusNotRunning ServerStatus = iota
	StatusStarting
	StatusRunning
	StatusFailed
)

func (s ServerStatus) String() string {
	switch s {
	case StatusNotRunning:
		return "not running"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Param is one (name, value) pair in a create_synth/set_params call.
type Param struct {
	Name  string
	Value float32
}

// Message is one backend operation to deliver inside a timed bundle: its
// own address/args, built by the routing builder or voice allocator and
// handed to SendBundle for atomic, lookahead-timed delivery.
type Message struct {
	Address string
	Args    []interface{}
}

// Backend is the AudioBackend contract from spec.md §4.3. Implementations
// must be safe for the audio thread's exclusive single-goroutine use; no
// method is required to be safe for concurrent calls from multiple
// goroutines (the scheduler is the only caller, per spec.md §5's
// single-writer model).
type Backend interface {
	CreateSynth(defName string, group Group, addAction AddAction, params []Param) (NodeId, error)
	FreeNode(id NodeId) error
	SetParam(id NodeId, name string, value float32) error
	SetParams(id NodeId, params []Param) error

	AllocAudioBus(channels int) (AudioBusId, error)
	FreeAudioBus(id AudioBusId) error
	AllocControlBus() (ControlBusId, error)
	FreeControlBus(id ControlBusId) error

	LoadBuffer(path string) (BufferId, error)
	FreeBuffer(id BufferId) error

	// SendBundle delivers msgs atomically at audio_time_now + lookahead +
	// atOffsetSecs (atOffsetSecs must be >= 0; callers clamp).
	SendBundle(msgs []Message, atOffsetSecs float64) error

	// SubscribeNodeEnd returns a channel of NodeIds as /n_end notifications
	// arrive. Closing ctx stops delivery and the channel is closed.
	SubscribeNodeEnd(ctx context.Context) (<-chan NodeId, error)

	Status() ServerStatus
}

// Lookahead computes spec.md §4.3's lookahead window:
// max(bufferSize/sampleRate + jitterMargin, 10ms).
func Lookahead(bufferSize, sampleRate int, jitterMargin time.Duration) time.Duration {
	buffered := time.Duration(float64(bufferSize) / float64(sampleRate) * float64(time.Second))
	lookahead := buffered + jitterMargin
	if lookahead < 10*time.Millisecond {
		return 10 * time.Millisecond
	}
	return lookahead
}
