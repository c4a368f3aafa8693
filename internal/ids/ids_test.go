package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterAllocatesMonotonically(t *testing.T) {
	c := NewCounter(1)
	first := c.Next()
	second := c.Next()
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestCounterResetRecomputesFromExistingMax(t *testing.T) {
	c := NewCounter(1)
	c.Next()
	c.Next()
	c.Reset(10)
	assert.Equal(t, 11, c.Next())
}

func TestCounterResetNeverGoesBackward(t *testing.T) {
	c := NewCounter(1)
	c.Next()
	c.Next()
	c.Next() // next would be 4
	c.Reset(1)
	assert.Equal(t, 4, c.Next(), "reset to a lower max must not rewind the counter")
}

func TestNewBusIdRejectsNonPositive(t *testing.T) {
	_, err := NewBusId(0)
	assert.Error(t, err)
	_, err = NewBusId(-1)
	assert.Error(t, err)

	id, err := NewBusId(3)
	assert.NoError(t, err)
	assert.Equal(t, BusId(3), id)
}
