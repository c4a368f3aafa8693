package audiofx

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/ids"
)

func TestCoalesceCollapsesRepeatedParamToLatestValue(t *testing.T) {
	stream := []Effect{
		SetFilter(1, FilterParamCutoff, 0.1),
		SetFilter(1, FilterParamCutoff, 0.2),
		SetFilter(1, FilterParamCutoff, 0.37),
	}
	out := Coalesce(stream)
	assert.Len(t, out, 1)
	assert.Equal(t, 0.37, out[0].Value)
}

func TestCoalesceEscalatesPastFourDistinctInstruments(t *testing.T) {
	var stream []Effect
	for id := 1; id <= 5; id++ {
		stream = append(stream, ForInstrument(RebuildRoutingForInstrument, ids.InstrumentId(id)))
	}
	out := Coalesce(stream)
	assert.Len(t, out, 1)
	assert.Equal(t, RebuildInstruments, out[0].Kind)
}

func TestCoalesceDoesNotEscalateAtExactlyFour(t *testing.T) {
	var stream []Effect
	for id := 1; id <= 4; id++ {
		stream = append(stream, ForInstrument(RebuildRoutingForInstrument, ids.InstrumentId(id)))
	}
	out := Coalesce(stream)
	assert.Len(t, out, 4)
	for _, e := range out {
		assert.Equal(t, RebuildRoutingForInstrument, e.Kind)
	}
}

func TestCoalesceRebuildInstrumentsSubsumesTargetedParams(t *testing.T) {
	stream := []Effect{
		SetFilter(1, FilterParamCutoff, 0.5),
		SetEffect(2, ids.EffectId(1), ids.ParamIndex(0), 0.9),
		Rebuild(RebuildInstruments),
	}
	out := Coalesce(stream)
	assert.Len(t, out, 1)
	assert.Equal(t, RebuildInstruments, out[0].Kind)
}

func TestCoalesceRebuildBusProcessingSubsumesBusAndGroupParams(t *testing.T) {
	stream := []Effect{
		SetBusEffect(ids.BusId(1), ids.EffectId(1), ids.ParamIndex(0), 0.5),
		Rebuild(RebuildBusProcessing),
	}
	out := Coalesce(stream)
	assert.Len(t, out, 1)
	assert.Equal(t, RebuildBusProcessing, out[0].Kind)
}

func TestCoalesceUpdateMixerParamsDedups(t *testing.T) {
	stream := []Effect{Rebuild(UpdateMixerParams), Rebuild(UpdateMixerParams), Rebuild(UpdateMixerParams)}
	out := Coalesce(stream)
	assert.Len(t, out, 1)
}

func TestCoalesceKeepsDistinctTargetsIndependent(t *testing.T) {
	stream := []Effect{
		SetFilter(1, FilterParamCutoff, 0.1),
		SetFilter(2, FilterParamCutoff, 0.2),
	}
	out := Coalesce(stream)
	assert.Len(t, out, 2)
}
