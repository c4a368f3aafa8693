package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLookaheadDefaultBufferIsAbout21Ms(t *testing.T) {
	l := Lookahead(1024, 48000, 0)
	assert.InDelta(t, 21.33, l.Seconds()*1000, 0.1)
}

func TestLookaheadNeverGoesBelow10Ms(t *testing.T) {
	l := Lookahead(64, 48000, 0)
	assert.Equal(t, 10*time.Millisecond, l)
}
