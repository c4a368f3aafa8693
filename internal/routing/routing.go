// Package routing implements the routing builder (spec.md §4.5): compiles
// the session's processing graph onto the backend, maintaining a
// NodeRegistry of every live node/bus it has created and exposing targeted
// rebuild operations the scheduler drives off the coalesced effect stream.
//
// Grounded on the teacher's synth-spawning call sites in
// internal/model/model.go (sendOSCInstrumentMessage, sendOSCSamplerMessage)
// and internal/supercollider's per-defname message builders, generalized
// from "send one /s_new per track, hardcode bus 0" into a multi-stage graph
// with tap points, per-instrument teardown, and escalating rebuild scope.
package routing

import (
	"fmt"

	"github.com/schollz/imbolc/internal/backend"
	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/session"
)

// ProcessingNodeRef names one node in an instrument's processing_order, so
// node-free and OSC message construction honor execution order even after a
// stage move (spec.md §4.5, "Correctness of dynamic chains").
type ProcessingNodeRef struct {
	StageIndex int
	Node       backend.NodeId
}

// InstrumentNodes is the routing builder's live-node bookkeeping for one
// instrument, per spec.md §4.5.
type InstrumentNodes struct {
	AudioBus        backend.AudioBusId
	ControlBuses    [3]backend.ControlBusId
	Source          backend.NodeId
	Filter          map[int]backend.NodeId // stage index -> node, for StageFilter stages
	Eq              backend.NodeId
	HasEq           bool
	Effects         map[ids.EffectId]backend.NodeId
	ProcessingOrder []ProcessingNodeRef
	Sends           map[ids.BusId]backend.NodeId
	Output          backend.NodeId

	sourceOutBus  backend.AudioBusId // captured before any stage, for PreInsert taps
	hasSourceOut  bool
	currentBus    backend.AudioBusId // tap point after the last built stage, for PostInsert taps
}

// BusNodes is the routing builder's live-node bookkeeping for one mixer bus
// or layer group's own effect chain (built in GROUP_BUS_PROCESSING).
type BusNodes struct {
	Effects []backend.NodeId
}

// NodeRegistry tracks every node the routing builder has created, so
// targeted rebuilds know what to tear down.
type NodeRegistry struct {
	Instruments   map[ids.InstrumentId]*InstrumentNodes
	Buses         map[ids.BusId]*BusNodes
	Groups        map[ids.GroupId]*BusNodes
	BusAudioBuses map[ids.BusId]backend.AudioBusId
}

func newRegistry() *NodeRegistry {
	return &NodeRegistry{
		Instruments:   make(map[ids.InstrumentId]*InstrumentNodes),
		Buses:         make(map[ids.BusId]*BusNodes),
		Groups:        make(map[ids.GroupId]*BusNodes),
		BusAudioBuses: make(map[ids.BusId]backend.AudioBusId),
	}
}

// defNameFor maps an instrument source to the synthdef the backend should
// instantiate. Custom synths and VST plugins carry their own registered
// name; built-ins map to the SC synthdefs the teacher ships under
// internal/supercollider/synthdefs.
func defNameFor(state *session.State, inst *session.Instrument) string {
	switch inst.Source.Kind {
	case session.SourceOscillator:
		switch inst.Source.Oscillator {
		case session.OscSaw:
			return "imbolc_saw"
		case session.OscSquare:
			return "imbolc_square"
		case session.OscTriangle:
			return "imbolc_tri"
		case session.OscNoise:
			return "imbolc_noise"
		default:
			return "imbolc_sine"
		}
	case session.SourceSampler:
		return "imbolc_sampler"
	case session.SourceDrumKit:
		return "imbolc_drum"
	case session.SourceAudioInput:
		return "imbolc_audio_in"
	case session.SourceBusInput:
		return "imbolc_bus_in"
	case session.SourceCustomSynth:
		if def, ok := state.Session.SynthDefs.Defs[inst.Source.CustomSynthDef]; ok {
			return def.Name
		}
		return "imbolc_sine"
	case session.SourceVstPlugin:
		return "imbolc_vst_host"
	default:
		return "imbolc_sine"
	}
}

func filterDefName(kind session.FilterKind) string {
	switch kind {
	case session.FilterHighpass:
		return "imbolc_hpf"
	case session.FilterBandpass:
		return "imbolc_bpf"
	case session.FilterNotch:
		return "imbolc_notch"
	default:
		return "imbolc_lpf"
	}
}

func effectDefName(kind session.EffectType) string {
	switch kind {
	case session.EffectDelay:
		return "imbolc_fx_delay"
	case session.EffectChorus:
		return "imbolc_fx_chorus"
	case session.EffectComb:
		return "imbolc_fx_comb"
	case session.EffectDistortion:
		return "imbolc_fx_distortion"
	case session.EffectCompressor:
		return "imbolc_fx_compressor"
	case session.EffectCustomVst:
		return "imbolc_fx_vst_host"
	default:
		return "imbolc_fx_reverb"
	}
}

// Builder compiles session.State onto a backend.Backend, maintaining a
// NodeRegistry of everything it has created. It is audio-thread owned,
// same single-writer discipline as internal/voices.
type Builder struct {
	backend  backend.Backend
	registry *NodeRegistry
}

// New returns a Builder with an empty registry.
func New(be backend.Backend) *Builder {
	return &Builder{backend: be, registry: newRegistry()}
}

// Registry exposes the live-node bookkeeping, read-only, for diagnostics and
// tests.
func (b *Builder) Registry() *NodeRegistry { return b.registry }

// AddInstrumentRouting builds one instrument's chain and sends, reusing
// existing bus allocations if already present (spec.md §4.5
// add_instrument_routing).
func (b *Builder) AddInstrumentRouting(state *session.State, inst *session.Instrument) error {
	nodes, ok := b.registry.Instruments[inst.ID]
	if !ok {
		nodes = &InstrumentNodes{
			Filter:  make(map[int]backend.NodeId),
			Effects: make(map[ids.EffectId]backend.NodeId),
			Sends:   make(map[ids.BusId]backend.NodeId),
		}
		audioBus, err := b.backend.AllocAudioBus(1)
		if err != nil {
			return fmt.Errorf("routing: alloc audio bus for instrument %d: %w", inst.ID, err)
		}
		nodes.AudioBus = audioBus
		for i := range nodes.ControlBuses {
			cb, err := b.backend.AllocControlBus()
			if err != nil {
				return fmt.Errorf("routing: alloc control bus for instrument %d: %w", inst.ID, err)
			}
			nodes.ControlBuses[i] = cb
		}
		b.registry.Instruments[inst.ID] = nodes
	}

	source, err := b.backend.CreateSynth(defNameFor(state, inst), backend.GroupSources, backend.AddToTail, []backend.Param{
		{Name: "out", Value: float32(nodes.AudioBus)},
	})
	if err != nil {
		return fmt.Errorf("routing: create source for instrument %d: %w", inst.ID, err)
	}
	nodes.Source = source
	nodes.currentBus = nodes.AudioBus
	nodes.sourceOutBus = nodes.AudioBus
	nodes.hasSourceOut = true
	nodes.ProcessingOrder = nodes.ProcessingOrder[:0]

	for idx, stage := range inst.ProcessingChain {
		nextBus, err := b.backend.AllocAudioBus(1)
		if err != nil {
			return fmt.Errorf("routing: alloc intermediate bus: %w", err)
		}
		node, err := b.buildStage(stage, nodes.currentBus, nextBus)
		if err != nil {
			return err
		}
		switch stage.Kind {
		case session.StageFilter:
			nodes.Filter[idx] = node
		case session.StageEq:
			nodes.Eq = node
			nodes.HasEq = true
		case session.StageEffect:
			nodes.Effects[stage.Effect.ID] = node
		}
		nodes.ProcessingOrder = append(nodes.ProcessingOrder, ProcessingNodeRef{StageIndex: idx, Node: node})
		nodes.currentBus = nextBus
	}

	if err := b.buildSends(inst, nodes); err != nil {
		return err
	}

	outputTarget := float32(0) // hardware bus 0 == Master
	if inst.Output.Kind == session.OutputBus {
		if bus, ok := state.Session.Mixer.BusByID(inst.Output.Bus); ok {
			dest, err := b.ensureBusAudioBus(bus.ID)
			if err != nil {
				return fmt.Errorf("routing: alloc audio bus for mixer bus %d: %w", bus.ID, err)
			}
			outputTarget = float32(dest)
		}
	}
	output, err := b.backend.CreateSynth("imbolc_output", backend.GroupOutput, backend.AddToTail, []backend.Param{
		{Name: "in", Value: float32(nodes.currentBus)},
		{Name: "out", Value: outputTarget},
	})
	if err != nil {
		return fmt.Errorf("routing: create output for instrument %d: %w", inst.ID, err)
	}
	nodes.Output = output
	return nil
}

// ensureBusAudioBus returns the mixer bus's own backend audio bus,
// allocating it on first reference. Sends and instrument outputs targeting
// this mixer bus resolve to this allocation; it is stable across
// RebuildBusProcessing calls (only the bus's effect nodes are torn down and
// recreated there, not the bus's audio bus itself).
func (b *Builder) ensureBusAudioBus(id ids.BusId) (backend.AudioBusId, error) {
	if existing, ok := b.registry.BusAudioBuses[id]; ok {
		return existing, nil
	}
	audioBus, err := b.backend.AllocAudioBus(1)
	if err != nil {
		return 0, err
	}
	b.registry.BusAudioBuses[id] = audioBus
	return audioBus, nil
}

func (b *Builder) buildStage(stage session.ProcessingStage, in, out backend.AudioBusId) (backend.NodeId, error) {
	switch stage.Kind {
	case session.StageFilter:
		return b.backend.CreateSynth(filterDefName(stage.Filter.Kind), backend.GroupProcessing, backend.AddToTail, []backend.Param{
			{Name: "in", Value: float32(in)},
			{Name: "out", Value: float32(out)},
			{Name: "cutoff", Value: float32(stage.Filter.Cutoff)},
			{Name: "resonance", Value: float32(stage.Filter.Resonance)},
		})
	case session.StageEq:
		return b.backend.CreateSynth("imbolc_eq3", backend.GroupProcessing, backend.AddToTail, []backend.Param{
			{Name: "in", Value: float32(in)},
			{Name: "out", Value: float32(out)},
			{Name: "low_freq", Value: float32(stage.Eq.Low.Frequency)},
			{Name: "low_gain", Value: float32(stage.Eq.Low.Gain)},
			{Name: "mid_freq", Value: float32(stage.Eq.Mid.Frequency)},
			{Name: "mid_gain", Value: float32(stage.Eq.Mid.Gain)},
			{Name: "high_freq", Value: float32(stage.Eq.High.Frequency)},
			{Name: "high_gain", Value: float32(stage.Eq.High.Gain)},
		})
	case session.StageEffect:
		params := []backend.Param{
			{Name: "in", Value: float32(in)},
			{Name: "out", Value: float32(out)},
			{Name: "bypass", Value: boolToFloat(!stage.Effect.Enabled)},
		}
		for _, p := range stage.Effect.Params {
			params = append(params, backend.Param{Name: p.Name, Value: float32(p.Value)})
		}
		return b.backend.CreateSynth(effectDefName(stage.Effect.Kind), backend.GroupProcessing, backend.AddToTail, params)
	default:
		return 0, fmt.Errorf("routing: unknown stage kind %d", stage.Kind)
	}
}

func boolToFloat(v bool) float32 {
	if v {
		return 1
	}
	return 0
}

// buildSends creates one send synth per enabled send, tapping source_out_bus
// for PreInsert and current_bus (post-chain) for PostInsert, per spec.md
// §4.5 step 4/5.
func (b *Builder) buildSends(inst *session.Instrument, nodes *InstrumentNodes) error {
	for busID, send := range inst.Sends {
		if send.Level <= 0 {
			continue
		}
		tap := nodes.currentBus
		if send.TapPoint == session.PreInsert && nodes.hasSourceOut {
			tap = nodes.sourceOutBus
		}
		dest, err := b.ensureBusAudioBus(busID)
		if err != nil {
			return fmt.Errorf("routing: alloc audio bus for send destination %d: %w", busID, err)
		}
		node, err := b.backend.CreateSynth("imbolc_send", backend.GroupProcessing, backend.AddToTail, []backend.Param{
			{Name: "in", Value: float32(tap)},
			{Name: "out", Value: float32(dest)},
			{Name: "level", Value: float32(send.Level)},
		})
		if err != nil {
			return fmt.Errorf("routing: create send to bus %d: %w", busID, err)
		}
		nodes.Sends[busID] = node
	}
	return nil
}

// DeleteInstrumentRouting frees every node this instrument owns and releases
// its buses, per spec.md §4.5 delete_instrument_routing.
func (b *Builder) DeleteInstrumentRouting(id ids.InstrumentId) error {
	nodes, ok := b.registry.Instruments[id]
	if !ok {
		return nil
	}
	if err := b.freeInstrumentNodes(nodes); err != nil {
		return err
	}
	if err := b.backend.FreeAudioBus(nodes.AudioBus); err != nil {
		return err
	}
	for _, cb := range nodes.ControlBuses {
		_ = b.backend.FreeControlBus(cb)
	}
	delete(b.registry.Instruments, id)
	return nil
}

func (b *Builder) freeInstrumentNodes(nodes *InstrumentNodes) error {
	if nodes.Source != 0 {
		if err := b.backend.FreeNode(nodes.Source); err != nil {
			return err
		}
	}
	for _, ref := range nodes.ProcessingOrder {
		if err := b.backend.FreeNode(ref.Node); err != nil {
			return err
		}
	}
	for _, node := range nodes.Sends {
		if err := b.backend.FreeNode(node); err != nil {
			return err
		}
	}
	if nodes.Output != 0 {
		if err := b.backend.FreeNode(nodes.Output); err != nil {
			return err
		}
	}
	nodes.Filter = make(map[int]backend.NodeId)
	nodes.Effects = make(map[ids.EffectId]backend.NodeId)
	nodes.Sends = make(map[ids.BusId]backend.NodeId)
	nodes.ProcessingOrder = nil
	nodes.Source, nodes.Output = 0, 0
	nodes.HasEq = false
	return nil
}

// RebuildSingleInstrument tears down and rebuilds one instrument's chain,
// keeping its bus allocations (spec.md §4.5 rebuild_single_instrument).
func (b *Builder) RebuildSingleInstrument(state *session.State, inst *session.Instrument) error {
	if nodes, ok := b.registry.Instruments[inst.ID]; ok {
		if err := b.freeInstrumentNodes(nodes); err != nil {
			return err
		}
	}
	return b.AddInstrumentRouting(state, inst)
}

// RebuildBusProcessing tears down every node in GROUP_BUS_PROCESSING (bus
// and layer-group effect chains) and recreates them; instrument chains and
// voices are untouched (spec.md §4.5 rebuild_bus_processing).
func (b *Builder) RebuildBusProcessing(state *session.State) error {
	for busID, bn := range b.registry.Buses {
		for _, node := range bn.Effects {
			_ = b.backend.FreeNode(node)
		}
		delete(b.registry.Buses, busID)
	}
	for groupID, gn := range b.registry.Groups {
		for _, node := range gn.Effects {
			_ = b.backend.FreeNode(node)
		}
		delete(b.registry.Groups, groupID)
	}

	for _, bus := range state.Session.Mixer.Buses {
		bn := &BusNodes{}
		audioBus, err := b.ensureBusAudioBus(bus.ID)
		if err != nil {
			return fmt.Errorf("routing: alloc audio bus for bus %d: %w", bus.ID, err)
		}
		for _, eff := range bus.Effects {
			node, err := b.backend.CreateSynth(effectDefName(eff.Kind), backend.GroupBusProcessing, backend.AddToTail, []backend.Param{
				{Name: "bus", Value: float32(audioBus)},
				{Name: "bypass", Value: boolToFloat(!eff.Enabled)},
			})
			if err != nil {
				return fmt.Errorf("routing: rebuild bus %d effect: %w", bus.ID, err)
			}
			bn.Effects = append(bn.Effects, node)
		}
		b.registry.Buses[bus.ID] = bn
	}
	for _, group := range state.Session.Mixer.LayerGroups {
		gn := &BusNodes{}
		for _, eff := range group.Effects {
			node, err := b.backend.CreateSynth(effectDefName(eff.Kind), backend.GroupBusProcessing, backend.AddToTail, []backend.Param{
				{Name: "bypass", Value: boolToFloat(!eff.Enabled)},
			})
			if err != nil {
				return fmt.Errorf("routing: rebuild group %d effect: %w", group.ID, err)
			}
			gn.Effects = append(gn.Effects, node)
		}
		b.registry.Groups[group.ID] = gn
	}
	return nil
}

// FullRebuild tears down and rebuilds the entire graph: every instrument
// plus bus/group processing. Last resort, used for undo scope Full (spec.md
// §4.5 full_rebuild).
func (b *Builder) FullRebuild(state *session.State) error {
	for id := range b.registry.Instruments {
		if err := b.DeleteInstrumentRouting(id); err != nil {
			return err
		}
	}
	if err := b.RebuildBusProcessing(state); err != nil {
		return err
	}
	for _, id := range state.Instruments.Order {
		if err := b.AddInstrumentRouting(state, state.Instruments.Instruments[id]); err != nil {
			return err
		}
	}
	return nil
}

// ApplyRebuildTargets applies a set of RebuildRoutingForInstrument targets
// honoring the >4-distinct-ids escalation rule spec.md §4.5 states: a frame
// naming more than 4 distinct instruments escalates to rebuilding every
// instrument instead (buses preserved), the same threshold
// internal/audiofx.Coalesce already applies to the effect stream itself —
// this is the routing builder's own enforcement of it when it is driven
// directly rather than through the coalesced stream.
func (b *Builder) ApplyRebuildTargets(state *session.State, targets []ids.InstrumentId) error {
	const escalateAfter = 4
	distinct := make(map[ids.InstrumentId]bool, len(targets))
	for _, id := range targets {
		distinct[id] = true
	}
	if len(distinct) > escalateAfter {
		for _, id := range state.Instruments.Order {
			if err := b.RebuildSingleInstrument(state, state.Instruments.Instruments[id]); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range targets {
		inst, ok := state.Instruments.Instruments[id]
		if !ok {
			if err := b.DeleteInstrumentRouting(id); err != nil {
				return err
			}
			continue
		}
		if err := b.RebuildSingleInstrument(state, inst); err != nil {
			return err
		}
	}
	return nil
}
