package netserver

import "sync"

// outbox is one connected client's bounded, per-kind send queue (spec.md
// §4.8's slow-client isolation). Metering keeps only the latest frame;
// StatePatch/FullStateSync supersede the prior frame of the same kind;
// control frames (handshake, privilege, ownership, shutdown) are never
// dropped and are delivered in FIFO order ahead of everything else.
type outbox struct {
	mu       sync.Mutex
	cond     *sync.Cond
	control  [][]byte
	metering []byte
	patch    []byte
	fullSync []byte
	closed   bool
}

func newOutbox() *outbox {
	o := &outbox{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

func (o *outbox) pushControl(frame []byte) {
	o.mu.Lock()
	o.control = append(o.control, frame)
	o.cond.Signal()
	o.mu.Unlock()
}

// requeueControl puts a control frame back at the front, used when a write
// of it timed out (control frames are never dropped, only retried).
func (o *outbox) requeueControl(frame []byte) {
	o.mu.Lock()
	o.control = append([][]byte{frame}, o.control...)
	o.cond.Signal()
	o.mu.Unlock()
}

func (o *outbox) pushMetering(frame []byte) {
	o.mu.Lock()
	o.metering = frame
	o.cond.Signal()
	o.mu.Unlock()
}

func (o *outbox) pushPatch(frame []byte) {
	o.mu.Lock()
	o.patch = frame
	o.cond.Signal()
	o.mu.Unlock()
}

func (o *outbox) pushFullSync(frame []byte) {
	o.mu.Lock()
	o.fullSync = frame
	o.cond.Signal()
	o.mu.Unlock()
}

// frameKind tags what pop returned, so the writer knows whether a failed
// write should be requeued (control) or simply dropped (everything else is
// already latest-only, so the next tick supersedes it anyway).
type frameKind int

const (
	frameControl frameKind = iota
	frameFullSync
	framePatch
	frameMetering
)

// pop blocks until a frame is available or the outbox is closed, returning
// the highest-priority frame: control, then full-sync, then patch, then
// metering.
func (o *outbox) pop() ([]byte, frameKind, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.control) == 0 && o.fullSync == nil && o.patch == nil && o.metering == nil && !o.closed {
		o.cond.Wait()
	}
	if len(o.control) > 0 {
		frame := o.control[0]
		o.control = o.control[1:]
		return frame, frameControl, true
	}
	if o.fullSync != nil {
		frame := o.fullSync
		o.fullSync = nil
		return frame, frameFullSync, true
	}
	if o.patch != nil {
		frame := o.patch
		o.patch = nil
		return frame, framePatch, true
	}
	if o.metering != nil {
		frame := o.metering
		o.metering = nil
		return frame, frameMetering, true
	}
	return nil, 0, false
}

func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.cond.Broadcast()
	o.mu.Unlock()
}
