package session

import "github.com/schollz/imbolc/internal/ids"

// EnforceInvariants repairs the five cross-reference invariants spec.md §3
// requires after every reducer step (testable property 1): dangling bus
// references reset to Master, dangling instrument/effect references are
// dropped from automation and arrangement, and EQ-stage-count is left to the
// reducer's action-time guard (it never lets a chain accumulate a second EQ
// stage, so there is nothing to repair here).
func (st *State) EnforceInvariants() {
	st.fixInstrumentBusReferences()
	st.fixAutomationReferences()
	st.fixArrangementReferences()
	st.fixLayerGroupMembership()
}

func (st *State) fixInstrumentBusReferences() {
	for _, inst := range st.Instruments.Instruments {
		if inst.Output.Kind == OutputBus {
			if _, ok := st.Session.Mixer.BusByID(inst.Output.Bus); !ok {
				inst.Output = Output{Kind: OutputMaster}
			}
		}
		for bus := range inst.Sends {
			if _, ok := st.Session.Mixer.BusByID(bus); !ok {
				delete(inst.Sends, bus)
			}
		}
	}
}

func (st *State) fixAutomationReferences() {
	kept := st.Session.Automation.Lanes[:0]
	for _, l := range st.Session.Automation.Lanes {
		switch l.Target.Kind {
		case TargetFilterCutoff:
			if !st.Instruments.Exists(l.Target.Instrument) {
				continue
			}
		case TargetEffectParam:
			inst, ok := st.Instruments.Instruments[l.Target.Instrument]
			if !ok {
				continue
			}
			if _, ok := inst.EffectByID(l.Target.Effect); !ok {
				continue
			}
		case TargetBusLevel:
			if _, ok := st.Session.Mixer.BusByID(l.Target.Bus); !ok {
				continue
			}
		}
		kept = append(kept, l)
	}
	st.Session.Automation.Lanes = kept
}

func (st *State) fixArrangementReferences() {
	keptClips := st.Session.Arrangement.Clips[:0]
	for _, c := range st.Session.Arrangement.Clips {
		if st.Instruments.Exists(c.Instrument) {
			keptClips = append(keptClips, c)
		}
	}
	st.Session.Arrangement.Clips = keptClips

	validClip := func(id ids.ClipId) bool {
		_, ok := st.Session.Arrangement.ClipByID(id)
		return ok
	}
	keptPlacements := st.Session.Arrangement.Placements[:0]
	for _, p := range st.Session.Arrangement.Placements {
		if st.Instruments.Exists(p.Instrument) && validClip(p.ClipID) {
			keptPlacements = append(keptPlacements, p)
		}
	}
	st.Session.Arrangement.Placements = keptPlacements
}

func (st *State) fixLayerGroupMembership() {
	for gi := range st.Session.Mixer.LayerGroups {
		g := &st.Session.Mixer.LayerGroups[gi]
		kept := g.Members[:0]
		for _, m := range g.Members {
			if st.Instruments.Exists(m) {
				kept = append(kept, m)
			}
		}
		g.Members = kept
	}
}

// ValidateLoop clamps loop_end >= loop_start (spec.md §3 invariant 4).
func (p *PianoRoll) ValidateLoop() {
	if p.LoopEnd < p.LoopStart {
		p.LoopEnd = p.LoopStart
	}
}

// ValidateTimeSignature resets an invalid denominator to 4 and a
// sub-1 numerator to 1 (spec.md §3 invariant 4 / §8 testable property 6).
func (p *PianoRoll) ValidateTimeSignature() {
	if p.TimeSignature.Numerator < 1 {
		p.TimeSignature.Numerator = 1
	}
	if !ValidDenominators[p.TimeSignature.Denominator] {
		p.TimeSignature.Denominator = 4
	}
}
