package session

// Settings holds session-wide, non-instrument settings: project metadata
// and the startup values mirrored from internal/config at project creation.
type Settings struct {
	ProjectName     string
	DefaultBusCount int
	LookaheadMs     int
	SampleRate      int
}

// SessionState is one of the two sub-values composing the authoritative
// state (the other being InstrumentState). It owns everything that isn't
// per-instrument: mixer, piano roll transport, automation, arrangement, and
// the shared registries. Version-tagged on serialization (internal/persistence).
type SessionState struct {
	Version     int
	Settings    Settings
	Mixer       *Mixer
	PianoRoll   *PianoRoll
	Automation  *Automation
	Arrangement *Arrangement
	SynthDefs   *CustomSynthDefRegistry
	VstPlugins  *VstPluginRegistry
}

// CurrentVersion is bumped whenever the persisted shape changes in a way
// that requires a migration in internal/persistence.
const CurrentVersion = 1

// NewSessionState returns a fresh session with one instrument's worth of
// room: one mixer bus, empty piano roll/automation/arrangement, default
// settings.
func NewSessionState() *SessionState {
	return &SessionState{
		Version:     CurrentVersion,
		Settings:    Settings{ProjectName: "untitled", DefaultBusCount: 1, LookaheadMs: 21, SampleRate: 48000},
		Mixer:       NewMixer(),
		PianoRoll:   NewPianoRoll(),
		Automation:  NewAutomation(),
		Arrangement: NewArrangement(),
		SynthDefs:   NewCustomSynthDefRegistry(),
		VstPlugins:  NewVstPluginRegistry(),
	}
}

// ResetCounters recomputes every owned id counter after deserialization.
func (s *SessionState) ResetCounters() {
	s.Mixer.ResetCounters()
	s.Automation.ResetCounter()
	s.Arrangement.ResetCounters()
	s.SynthDefs.ResetCounter()
	s.VstPlugins.ResetCounter()
}

// Clone deep-copies the whole SessionState (undo scope Full/Session).
func (s *SessionState) Clone() *SessionState {
	return &SessionState{
		Version:     s.Version,
		Settings:    s.Settings,
		Mixer:       s.Mixer.Clone(),
		PianoRoll:   s.PianoRoll.Clone(),
		Automation:  s.Automation.Clone(),
		Arrangement: s.Arrangement.Clone(),
		SynthDefs:   s.SynthDefs.Clone(),
		VstPlugins:  s.VstPlugins.Clone(),
	}
}

// State is the full in-process value: the two networked sub-values plus
// purely local runtime the reducer never mutates directly from network
// input (recording status, MIDI connection, audio feedback, undo history
// live alongside it in their owning package, not here).
type State struct {
	Session     *SessionState
	Instruments *InstrumentState
}

// NewState returns a fresh, empty session.
func NewState() *State {
	return &State{Session: NewSessionState(), Instruments: NewInstrumentState()}
}

// Clone deep-copies both sub-values (undo scope Full).
func (st *State) Clone() *State {
	return &State{Session: st.Session.Clone(), Instruments: st.Instruments.Clone()}
}
