// Package scbackend implements internal/backend.Backend over OSC/UDP to a
// running scsynth, grounded on the teacher's osc.Client usage in
// internal/model (Model.sendOSCMessage/sendOSCInstrumentMessage) and
// process-lifecycle helpers in internal/supercollider, generalized from a
// single hardcoded /instrument and /sampler address pair into the full
// node/bus/buffer/bundle surface spec.md §4.3 requires.
package scbackend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/schollz/imbolc/internal/backend"
)

// Backend sends scsynth commands over OSC/UDP via github.com/hypebeast/go-osc,
// the same client library the teacher uses for its /instrument and /sampler
// messages (internal/model.Model.oscClient).
type Backend struct {
	mu sync.Mutex

	client *osc.Client
	server *osc.Server

	status backend.ServerStatus

	nextNode    int32
	nextAudio   int32
	nextControl int32
	nextBuffer  int32

	nodeEnd   chan backend.NodeId
	listening bool

	sendTimeout time.Duration
}

const firstDynamicAudioBus = 2 // bus 0/1 are the hardware in/out per scsynth convention

// New returns a Backend configured to talk to scsynth at host:port. It does
// not start listening for /n_end notifications until SubscribeNodeEnd is
// called, mirroring the teacher's lazy osc.NewClient construction
// (Model.go:587) which only fires on first use.
func New(host string, port int) *Backend {
	return &Backend{
		client:      osc.NewClient(host, port),
		status:      backend.StatusNotRunning,
		nextNode:    1000,
		nextAudio:   firstDynamicAudioBus,
		nextControl: 0,
		nextBuffer:  0,
		sendTimeout: 10 * time.Millisecond,
	}
}

// MarkRunning transitions the backend to Running, called by the server
// lifecycle goroutine once scsynth confirms readiness (/status.reply or the
// teacher's IsSuperColliderEnabled() process check).
func (b *Backend) MarkRunning() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = backend.StatusRunning
}

func (b *Backend) MarkFailed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = backend.StatusFailed
}

func (b *Backend) Status() backend.ServerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Backend) send(msg *osc.Message) error {
	done := make(chan error, 1)
	go func() { done <- b.client.Send(msg) }()
	select {
	case err := <-done:
		return err
	case <-time.After(b.sendTimeout):
		return fmt.Errorf("scbackend: send timed out after %s", b.sendTimeout)
	}
}

// CreateSynth sends /s_new and returns the allocated node id.
func (b *Backend) CreateSynth(defName string, group backend.Group, addAction backend.AddAction, params []backend.Param) (backend.NodeId, error) {
	b.mu.Lock()
	id := b.nextNode
	b.nextNode++
	b.mu.Unlock()

	msg := osc.NewMessage("/s_new")
	msg.Append(defName)
	msg.Append(id)
	msg.Append(int32(addAction))
	msg.Append(int32(group))
	for _, p := range params {
		msg.Append(p.Name)
		msg.Append(p.Value)
	}
	if err := b.send(msg); err != nil {
		return 0, fmt.Errorf("s_new %s: %w", defName, err)
	}
	return backend.NodeId(id), nil
}

func (b *Backend) FreeNode(id backend.NodeId) error {
	msg := osc.NewMessage("/n_free")
	msg.Append(int32(id))
	if err := b.send(msg); err != nil {
		return fmt.Errorf("n_free %d: %w", id, err)
	}
	return nil
}

func (b *Backend) SetParam(id backend.NodeId, name string, value float32) error {
	msg := osc.NewMessage("/n_set")
	msg.Append(int32(id))
	msg.Append(name)
	msg.Append(value)
	if err := b.send(msg); err != nil {
		return fmt.Errorf("n_set %d %s: %w", id, name, err)
	}
	return nil
}

func (b *Backend) SetParams(id backend.NodeId, params []backend.Param) error {
	msg := osc.NewMessage("/n_set")
	msg.Append(int32(id))
	for _, p := range params {
		msg.Append(p.Name)
		msg.Append(p.Value)
	}
	if err := b.send(msg); err != nil {
		return fmt.Errorf("n_set %d (%d params): %w", id, len(params), err)
	}
	return nil
}

func (b *Backend) AllocAudioBus(channels int) (backend.AudioBusId, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextAudio
	b.nextAudio += int32(channels)
	return backend.AudioBusId(id), nil
}

func (b *Backend) FreeAudioBus(id backend.AudioBusId) error { return nil }

func (b *Backend) AllocControlBus() (backend.ControlBusId, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextControl
	b.nextControl++
	return backend.ControlBusId(id), nil
}

func (b *Backend) FreeControlBus(id backend.ControlBusId) error { return nil }

func (b *Backend) LoadBuffer(path string) (backend.BufferId, error) {
	b.mu.Lock()
	id := b.nextBuffer
	b.nextBuffer++
	b.mu.Unlock()

	msg := osc.NewMessage("/b_allocRead")
	msg.Append(id)
	msg.Append(path)
	if err := b.send(msg); err != nil {
		return 0, fmt.Errorf("b_allocRead %s: %w", path, err)
	}
	return backend.BufferId(id), nil
}

func (b *Backend) FreeBuffer(id backend.BufferId) error {
	msg := osc.NewMessage("/b_free")
	msg.Append(int32(id))
	if err := b.send(msg); err != nil {
		return fmt.Errorf("b_free %d: %w", id, err)
	}
	return nil
}

// SendBundle delivers msgs atomically, scheduled atOffsetSecs from now via
// scsynth's OSC timetag mechanism (osc.Bundle's Timetag), satisfying
// spec.md §4.3's "delivers msgs atomically at audio_time_now + lookahead +
// at_offset" contract — the caller is expected to have already folded
// lookahead into atOffsetSecs.
func (b *Backend) SendBundle(msgs []backend.Message, atOffsetSecs float64) error {
	if atOffsetSecs < 0 {
		atOffsetSecs = 0
	}
	when := time.Now().Add(time.Duration(atOffsetSecs * float64(time.Second)))
	bundle := osc.NewBundle(when)
	for _, m := range msgs {
		msg := osc.NewMessage(m.Address)
		for _, arg := range m.Args {
			msg.Append(arg)
		}
		bundle.Append(msg)
	}
	if err := b.client.Send(bundle); err != nil {
		return fmt.Errorf("send_bundle (%d msgs): %w", len(msgs), err)
	}
	return nil
}

// SubscribeNodeEnd starts an OSC server listening for /n_end notifications
// (scsynth sends these when a node is asked to notify on free) and returns
// a channel of freed NodeIds. When ctx is canceled the channel is closed and
// later notifications are dropped; the OSC server itself keeps running.
func (b *Backend) SubscribeNodeEnd(ctx context.Context) (<-chan backend.NodeId, error) {
	b.mu.Lock()
	if b.listening {
		b.mu.Unlock()
		return b.nodeEnd, nil
	}
	b.nodeEnd = make(chan backend.NodeId, 256)
	b.listening = true
	b.mu.Unlock()

	dispatcher := osc.NewStandardDispatcher()
	dispatcher.AddMsgHandler("/n_end", func(msg *osc.Message) {
		if len(msg.Arguments) == 0 {
			return
		}
		nodeID, ok := msg.Arguments[0].(int32)
		if !ok {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if !b.listening {
			return // ctx canceled; nodeEnd is closed
		}
		select {
		case b.nodeEnd <- backend.NodeId(nodeID):
		default:
			// drop on a full channel rather than block the OSC server;
			// the scheduler's 5s safety-net timer reclaims the voice.
		}
	})
	server := &osc.Server{Addr: "localhost:0", Dispatcher: dispatcher}
	b.server = server

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		b.listening = false
		close(b.nodeEnd)
		b.mu.Unlock()
	}()
	go func() {
		_ = server.ListenAndServe()
	}()

	return b.nodeEnd, nil
}
