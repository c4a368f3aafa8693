package session

import "github.com/schollz/imbolc/internal/ids"

// CustomSynthDef describes a registered SuperCollider SynthDef an instrument
// can source from, including its parameter spec so the routing builder and
// UI can present it uniformly with built-in oscillators.
type CustomSynthDef struct {
	ID     ids.CustomSynthDefId
	Name   string
	Params []EffectParam
}

// CustomSynthDefRegistry maps stable ids to registered SynthDefs.
type CustomSynthDefRegistry struct {
	Defs    map[ids.CustomSynthDefId]CustomSynthDef
	counter *ids.Counter
}

func NewCustomSynthDefRegistry() *CustomSynthDefRegistry {
	return &CustomSynthDefRegistry{Defs: make(map[ids.CustomSynthDefId]CustomSynthDef), counter: ids.NewCounter(1)}
}

func (r *CustomSynthDefRegistry) ResetCounter() {
	max := 0
	for id := range r.Defs {
		if int(id) > max {
			max = int(id)
		}
	}
	r.counter.Reset(max)
}

func (r *CustomSynthDefRegistry) Register(name string, params []EffectParam) ids.CustomSynthDefId {
	id := ids.CustomSynthDefId(r.counter.Next())
	r.Defs[id] = CustomSynthDef{ID: id, Name: name, Params: params}
	return id
}

func (r *CustomSynthDefRegistry) Clone() *CustomSynthDefRegistry {
	clone := NewCustomSynthDefRegistry()
	clone.counter = ids.NewCounter(r.counter.Peek())
	for id, def := range r.Defs {
		clone.Defs[id] = def
	}
	return clone
}

// VstPlugin describes a registered VST plugin an instrument can host.
type VstPlugin struct {
	ID     ids.VstPluginId
	Path   string
	Name   string
	Params []EffectParam
}

// VstPluginRegistry maps stable ids to registered VST plugins.
type VstPluginRegistry struct {
	Plugins map[ids.VstPluginId]VstPlugin
	counter *ids.Counter
}

func NewVstPluginRegistry() *VstPluginRegistry {
	return &VstPluginRegistry{Plugins: make(map[ids.VstPluginId]VstPlugin), counter: ids.NewCounter(1)}
}

func (r *VstPluginRegistry) ResetCounter() {
	max := 0
	for id := range r.Plugins {
		if int(id) > max {
			max = int(id)
		}
	}
	r.counter.Reset(max)
}

func (r *VstPluginRegistry) Register(path, name string, params []EffectParam) ids.VstPluginId {
	id := ids.VstPluginId(r.counter.Next())
	r.Plugins[id] = VstPlugin{ID: id, Path: path, Name: name, Params: params}
	return id
}

func (r *VstPluginRegistry) Clone() *VstPluginRegistry {
	clone := NewVstPluginRegistry()
	clone.counter = ids.NewCounter(r.counter.Peek())
	for id, p := range r.Plugins {
		clone.Plugins[id] = p
	}
	return clone
}
