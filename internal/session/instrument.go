package session

import "github.com/schollz/imbolc/internal/ids"

// StealStrategy selects which voice the allocator reclaims when an
// instrument's voice pool is full. See internal/voices.
type StealStrategy int

const (
	StealOldest StealStrategy = iota
	StealLowestVelocity
	StealFurthestFromLastNote
)

// Instrument is one sound source plus its processing chain, modulation,
// mixer block, output routing, and sends. Grounded on the teacher's
// per-track settings structs (SoundMakerSettings, MidiSettings,
// ArpeggioSettings) generalized into one coherent per-instrument value.
type Instrument struct {
	ID              ids.InstrumentId
	Name            string
	Source          Source
	ProcessingChain []ProcessingStage
	Lfo             Lfo
	HasLfo          bool
	Envelope        Envelope
	HasEnvelope     bool
	Mixer           MixerBlock
	Output          Output
	Sends           map[ids.BusId]Send
	VoiceCap        int           // 8..64, default per spec.md DESIGN NOTES config
	StealStrategy   StealStrategy
	Humanize        bool // opt-in ±20ms scheduling jitter (spec.md §4.6)

	sampler *SamplerConfig // present only if Source.Kind == SourceSampler
	drums   *DrumSequencer // present only if Source.Kind == SourceDrumKit

	effectCounter *ids.Counter // owns EffectId allocation for ProcessingChain
}

// NewInstrument returns an instrument with defaults matching spec.md's
// config object (VoiceCap default 16, Master output, empty sends).
func NewInstrument(id ids.InstrumentId, name string, src Source) *Instrument {
	inst := &Instrument{
		ID:            id,
		Name:          name,
		Source:        src,
		Mixer:         MixerBlock{Level: 1.0, Pan: 0.0},
		Output:        Output{Kind: OutputMaster},
		Sends:         make(map[ids.BusId]Send),
		VoiceCap:      16,
		StealStrategy: StealOldest,
		effectCounter: ids.NewCounter(1),
	}
	if src.Kind == SourceSampler {
		inst.sampler = &SamplerConfig{}
	}
	if src.Kind == SourceDrumKit {
		inst.drums = &DrumSequencer{StepsCount: 16}
	}
	return inst
}

// Sampler returns the instrument's sampler config and whether it is present;
// the typed accessor spec.md requires instead of a raw optional field.
func (i *Instrument) Sampler() (*SamplerConfig, bool) {
	if i.Source.Kind != SourceSampler || i.sampler == nil {
		return nil, false
	}
	return i.sampler, true
}

// SetSampler installs a sampler config; it is a no-op (returns false) unless
// the instrument's source expects one.
func (i *Instrument) SetSampler(cfg SamplerConfig) bool {
	if i.Source.Kind != SourceSampler {
		return false
	}
	i.sampler = &cfg
	return true
}

// DrumSequencer returns the instrument's drum sequencer and whether it is
// present.
func (i *Instrument) DrumSequencer() (*DrumSequencer, bool) {
	if i.Source.Kind != SourceDrumKit || i.drums == nil {
		return nil, false
	}
	return i.drums, true
}

func (i *Instrument) SetDrumSequencer(seq DrumSequencer) bool {
	if i.Source.Kind != SourceDrumKit {
		return false
	}
	i.drums = &seq
	return true
}

// EqStageCount returns the number of Eq stages in the processing chain, used
// to enforce the "at most one EQ stage" invariant (spec.md §3 invariant 6).
func (i *Instrument) EqStageCount() int {
	n := 0
	for _, s := range i.ProcessingChain {
		if s.Kind == StageEq {
			n++
		}
	}
	return n
}

// EffectByID finds an effect slot anywhere in the processing chain by id.
func (i *Instrument) EffectByID(effectID ids.EffectId) (*EffectSlot, bool) {
	for idx := range i.ProcessingChain {
		stage := &i.ProcessingChain[idx]
		if stage.Kind == StageEffect && stage.Effect.ID == effectID {
			return &stage.Effect, true
		}
	}
	return nil, false
}

// NextEffectID allocates a new, never-reused EffectId for this instrument's
// processing chain (spec.md §3: effect monotonic counters live on their
// owning collection).
func (i *Instrument) NextEffectID() ids.EffectId {
	return ids.EffectId(i.effectCounter.Next())
}

// ResetEffectCounter recomputes the effect id counter as max(existing)+1,
// called after deserialization per spec.md's load-time recomputation rule.
func (i *Instrument) ResetEffectCounter() {
	max := 0
	for _, stage := range i.ProcessingChain {
		if stage.Kind == StageEffect && int(stage.Effect.ID) > max {
			max = int(stage.Effect.ID)
		}
	}
	i.effectCounter.Reset(max)
}

// Clone deep-copies the instrument, used by the reducer's SingleInstrument
// undo scope so an undo snapshot doesn't alias live state.
func (i *Instrument) Clone() *Instrument {
	clone := *i
	clone.effectCounter = ids.NewCounter(i.effectCounter.Peek())
	clone.ProcessingChain = append([]ProcessingStage(nil), i.ProcessingChain...)
	clone.Sends = make(map[ids.BusId]Send, len(i.Sends))
	for k, v := range i.Sends {
		clone.Sends[k] = v
	}
	for idx := range clone.ProcessingChain {
		if clone.ProcessingChain[idx].Kind == StageEffect {
			eff := clone.ProcessingChain[idx].Effect
			eff.Params = append([]EffectParam(nil), eff.Params...)
			if eff.VstParamState != nil {
				cp := make(map[ids.ParamIndex]float64, len(eff.VstParamState))
				for k, v := range eff.VstParamState {
					cp[k] = v
				}
				eff.VstParamState = cp
			}
			clone.ProcessingChain[idx].Effect = eff
		}
	}
	if i.sampler != nil {
		s := *i.sampler
		clone.sampler = &s
	}
	if i.drums != nil {
		d := *i.drums
		d.Steps = make([][]DrumSequencerStep, len(i.drums.Steps))
		for idx, row := range i.drums.Steps {
			d.Steps[idx] = append([]DrumSequencerStep(nil), row...)
		}
		d.PadFiles = append([]string(nil), i.drums.PadFiles...)
		clone.drums = &d
	}
	return &clone
}

// InstrumentState is the sub-value owning all instruments and their
// monotonic id counter.
type InstrumentState struct {
	Instruments map[ids.InstrumentId]*Instrument
	Order       []ids.InstrumentId // stable iteration / display order
	counter     *ids.Counter
}

// NewInstrumentState returns an empty InstrumentState.
func NewInstrumentState() *InstrumentState {
	return &InstrumentState{
		Instruments: make(map[ids.InstrumentId]*Instrument),
		counter:     ids.NewCounter(1),
	}
}

// NextID allocates a new, never-reused InstrumentId.
func (s *InstrumentState) NextID() ids.InstrumentId {
	return ids.InstrumentId(s.counter.Next())
}

// ResetCounter recomputes the id counter as max(existing)+1, called after
// deserialization per spec.md's load-time recomputation rule.
func (s *InstrumentState) ResetCounter() {
	max := 0
	for id, inst := range s.Instruments {
		if int(id) > max {
			max = int(id)
		}
		inst.ResetEffectCounter()
	}
	s.counter.Reset(max)
}

// Add inserts an instrument and appends it to Order.
func (s *InstrumentState) Add(inst *Instrument) {
	s.Instruments[inst.ID] = inst
	s.Order = append(s.Order, inst.ID)
}

// Remove deletes an instrument and removes it from Order.
func (s *InstrumentState) Remove(id ids.InstrumentId) bool {
	if _, ok := s.Instruments[id]; !ok {
		return false
	}
	delete(s.Instruments, id)
	for i, oid := range s.Order {
		if oid == id {
			s.Order = append(s.Order[:i], s.Order[i+1:]...)
			break
		}
	}
	return true
}

// Exists reports whether id refers to a live instrument.
func (s *InstrumentState) Exists(id ids.InstrumentId) bool {
	_, ok := s.Instruments[id]
	return ok
}

// Clone deep-copies the whole InstrumentState (for undo scope Full).
func (s *InstrumentState) Clone() *InstrumentState {
	clone := NewInstrumentState()
	clone.counter = ids.NewCounter(s.counter.Peek())
	for _, id := range s.Order {
		clone.Add(s.Instruments[id].Clone())
	}
	return clone
}

// CloneOne returns an InstrumentState containing a deep copy of a single
// instrument, used by undo scope SingleInstrument so the undo entry doesn't
// need to clone the whole collection.
func (s *InstrumentState) CloneOne(id ids.InstrumentId) *InstrumentState {
	clone := NewInstrumentState()
	clone.counter = ids.NewCounter(s.counter.Peek())
	if inst, ok := s.Instruments[id]; ok {
		clone.Add(inst.Clone())
	}
	return clone
}

// RestoreOne overwrites a single instrument from a CloneOne snapshot,
// without touching any other instrument.
func (s *InstrumentState) RestoreOne(snapshot *InstrumentState) {
	for _, id := range snapshot.Order {
		if s.Exists(id) {
			s.Instruments[id] = snapshot.Instruments[id].Clone()
		} else {
			s.Add(snapshot.Instruments[id].Clone())
		}
	}
}
