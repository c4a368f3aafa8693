package netmsg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/actions"
	"github.com/schollz/imbolc/internal/ids"
)

func TestWriteFrameThenReadFrameRoundTripsClientMessage(t *testing.T) {
	var buf bytes.Buffer
	msg := ClientMessage{
		Kind:                 ClientAction,
		RequestedInstruments: []ids.InstrumentId{1, 2, 3},
		Action:               actions.DomainAction{Kind: actions.InstrumentSetLevel, Instrument: 2, Float: 0.75},
	}

	assert.NoError(t, WriteFrame(&buf, msg))

	var decoded ClientMessage
	assert.NoError(t, ReadFrame(&buf, &decoded))
	assert.Equal(t, msg.Kind, decoded.Kind)
	assert.Equal(t, msg.Action, decoded.Action)
	assert.Equal(t, msg.RequestedInstruments, decoded.RequestedInstruments)
}

func TestWriteFrameThenReadFrameRoundTripsServerMessage(t *testing.T) {
	var buf bytes.Buffer
	msg := ServerMessage{
		Kind: ServerStatePatchUpdate,
		Patch: &StatePatchUpdate{
			Seq:         7,
			Instruments: map[ids.InstrumentId]InstrumentPatch{},
		},
	}

	assert.NoError(t, WriteFrame(&buf, msg))

	var decoded ServerMessage
	assert.NoError(t, ReadFrame(&buf, &decoded))
	assert.Equal(t, ServerStatePatchUpdate, decoded.Kind)
	assert.Equal(t, uint64(7), decoded.Patch.Seq)
}

func TestReadFrameRejectsOversizedLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{0x7f, 0xff, 0xff, 0xff} // ~2GB, over MaxFrameBytes
	buf.Write(header)

	var decoded ServerMessage
	assert.Error(t, ReadFrame(&buf, &decoded))
}

func TestMultipleFramesOnOneStreamDecodeInOrder(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteFrame(&buf, ServerMessage{Kind: ServerPong}))
	assert.NoError(t, WriteFrame(&buf, ServerMessage{Kind: ServerShutdown}))

	var first, second ServerMessage
	assert.NoError(t, ReadFrame(&buf, &first))
	assert.NoError(t, ReadFrame(&buf, &second))
	assert.Equal(t, ServerPong, first.Kind)
	assert.Equal(t, ServerShutdown, second.Kind)
}
