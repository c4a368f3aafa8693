package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLoopbackRegistrySeedsInitialEndpoints(t *testing.T) {
	r := NewLoopbackRegistry([]Endpoint{{Name: "studio", Addr: "10.0.0.5:9999"}})
	eps, err := r.Browse()
	assert.NoError(t, err)
	assert.Equal(t, []Endpoint{{Name: "studio", Addr: "10.0.0.5:9999"}}, eps)
}

func TestAdvertiseThenBrowseSeesTheNewEndpoint(t *testing.T) {
	r := NewLoopbackRegistry(nil)
	assert.NoError(t, r.Advertise(Endpoint{Name: "laptop", Addr: "127.0.0.1:9999"}))

	eps, err := r.Browse()
	assert.NoError(t, err)
	assert.Contains(t, eps, Endpoint{Name: "laptop", Addr: "127.0.0.1:9999"})
}

func TestWithdrawRemovesOnlyThisProcessesOwnAdvertisement(t *testing.T) {
	r := NewLoopbackRegistry([]Endpoint{{Name: "other-host", Addr: "10.0.0.9:9999"}})
	assert.NoError(t, r.Advertise(Endpoint{Name: "self", Addr: "127.0.0.1:9999"}))
	assert.NoError(t, r.Withdraw())

	eps, err := r.Browse()
	assert.NoError(t, err)
	assert.Equal(t, []Endpoint{{Name: "other-host", Addr: "10.0.0.9:9999"}}, eps)
}

func TestWithdrawWithoutPriorAdvertiseIsANoOp(t *testing.T) {
	r := NewLoopbackRegistry(nil)
	assert.NoError(t, r.Withdraw())
}
