// Package discovery is spec.md §4.8/§5's optional mDNS collaborator: "the
// core treats discovered endpoints identically to user-supplied
// addresses." No mDNS/Bonjour library is present anywhere in the
// retrieved pack, so Advertiser/Browser are defined as small interfaces a
// real multicast-DNS implementation could satisfy later, backed here by a
// loopback-only seed-list stub: `--discover` resolves servers a user
// registered locally (e.g. via config or a prior `--server` run on the
// same machine) rather than fabricating a network mDNS client.
package discovery

import (
	"sync"
)

// Endpoint is one discoverable Imbolc server, identical in shape to a
// user-supplied `--connect ADDR:PORT` target.
type Endpoint struct {
	Name string
	Addr string
}

// Advertiser publishes this process's server endpoint so Browsers can find
// it. A no-op implementation is valid — discovery is optional collaborator
// per spec.md §4.8.
type Advertiser interface {
	Advertise(e Endpoint) error
	Withdraw() error
}

// Browser lists the Endpoints currently advertised.
type Browser interface {
	Browse() ([]Endpoint, error)
}

// LoopbackRegistry is a process-local stand-in for multicast DNS: every
// Advertise call registers an Endpoint in a shared in-memory table, and
// every Browse call lists what's currently registered. It satisfies both
// Advertiser and Browser, consistent with spec.md's core-level requirement
// that discovered and user-supplied endpoints look identical — the only
// thing a real mDNS implementation would change is how entries arrive,
// not this type's surface.
type LoopbackRegistry struct {
	mu        sync.Mutex
	endpoints map[string]Endpoint
	self      string
}

// NewLoopbackRegistry returns a registry seeded with any endpoints known
// ahead of time (e.g. from config), plus whatever this process later
// advertises.
func NewLoopbackRegistry(seed []Endpoint) *LoopbackRegistry {
	r := &LoopbackRegistry{endpoints: make(map[string]Endpoint, len(seed))}
	for _, e := range seed {
		r.endpoints[e.Name] = e
	}
	return r
}

// Advertise registers e under its Name, replacing any prior entry of the
// same name.
func (r *LoopbackRegistry) Advertise(e Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[e.Name] = e
	r.self = e.Name
	return nil
}

// Withdraw removes whatever this process last advertised.
func (r *LoopbackRegistry) Withdraw() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.self == "" {
		return nil
	}
	delete(r.endpoints, r.self)
	r.self = ""
	return nil
}

// Browse lists every currently registered Endpoint.
func (r *LoopbackRegistry) Browse() ([]Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		out = append(out, e)
	}
	return out, nil
}
