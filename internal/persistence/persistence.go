// Package persistence implements project save/load: a versioned,
// gzip-compressed JSON blob of session.State, plus the debounced
// autosave-on-dirty timer spec.md §7's PersistenceError surface assumes.
//
// Grounded on the teacher's internal/storage (jsoniter + gzip to a single
// data.json.gz file, with a debounced AutoSave timer coalescing bursts of
// edits into one write), generalized from one flat, version-less
// types.SaveData struct into a versioned envelope around session.State, so
// future format changes can default missing subsystem fields on load
// instead of breaking old saves outright.
package persistence

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FormatVersion increments whenever envelope's on-disk shape changes
// incompatibly; Load uses it to decide which defaulting pass to run.
const FormatVersion = 1

// envelope is the on-disk shape: a version tag plus the two root state
// values spec.md §3 names.
type envelope struct {
	Version     int                    `json:"version"`
	Session     *session.SessionState  `json:"session"`
	Instruments *session.InstrumentState `json:"instruments"`
}

// debounceWindow coalesces bursts of dirty-marking edits into one write,
// the same window the teacher's AutoSave uses.
const debounceWindow = 1 * time.Second

// AutoSaver debounces Save calls so rapid edits produce one write instead
// of one per action, grounded on the teacher's package-level AutoSave
// timer (here made an instance instead of global state, since Imbolc may
// run multiple sessions in one process under test).
type AutoSaver struct {
	mu    sync.Mutex
	timer *time.Timer
	path  string
}

// NewAutoSaver returns an AutoSaver that writes to path on each debounced
// trigger.
func NewAutoSaver(path string) *AutoSaver {
	return &AutoSaver{path: path}
}

// Trigger (re)starts the debounce timer; when it fires, state is saved to
// disk. Safe to call on every dirty-marking action.
func (a *AutoSaver) Trigger(state *session.State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(debounceWindow, func() {
		start := time.Now()
		if err := Save(a.path, state); err != nil {
			log.Printf("imbolc: autosave failed: %v", err)
			return
		}
		log.Printf("imbolc: autosaved in %d ms", time.Since(start).Milliseconds())
	})
}

// Stop cancels any pending debounced save, e.g. on clean shutdown after an
// explicit Save already ran.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
}

// Save writes state to path as a gzip-compressed JSON envelope, grounded
// on the teacher's DoSave (json.Marshal -> gzip.Writer -> os.Create).
func Save(path string, state *session.State) error {
	data, err := json.Marshal(envelope{
		Version:     FormatVersion,
		Session:     state.Session,
		Instruments: state.Instruments,
	})
	if err != nil {
		return fmt.Errorf("persistence: marshal: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("persistence: mkdir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("persistence: create %s: %w", path, err)
	}
	defer file.Close()

	gw := gzip.NewWriter(file)
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return fmt.Errorf("persistence: write: %w", err)
	}
	return gw.Close()
}

// Load reads and decompresses path into a fresh session.State, running
// ResetCounter and EnforceInvariants afterward so a save file from an
// older, narrower format still yields a referentially consistent state
// (spec.md §8 round-trip law: Load(Save(s)) == s for any invariant-valid s,
// modulo the counter/invariant repair pass every load already performs).
func Load(path string) (*session.State, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	defer file.Close()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("persistence: gzip reader: %w", err)
	}
	defer gr.Close()

	data, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("persistence: read: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal: %w", err)
	}

	state := session.NewState()
	if env.Session != nil {
		state.Session = env.Session
	}
	if env.Instruments != nil {
		state.Instruments = env.Instruments
	}
	applyDefaults(state, env.Version)

	// Every id counter is an unexported field and so never round-trips
	// through JSON; both sub-values recompute theirs as max(existing)+1.
	state.Session.ResetCounters()
	state.Instruments.ResetCounter()
	state.EnforceInvariants()
	return state, nil
}

// applyDefaults fills in subsystem fields a save written by an older
// FormatVersion may be missing, mirroring the teacher's own
// backward-compatibility pass in LoadState (e.g. its
// ModulateSettings-to-dual-pool migration).
func applyDefaults(state *session.State, version int) {
	if state.Session.Mixer == nil {
		state.Session.Mixer = session.NewMixer()
	}
	if state.Session.PianoRoll == nil {
		state.Session.PianoRoll = session.NewPianoRoll()
	}
	if state.Session.PianoRoll.BPM <= 0 {
		state.Session.PianoRoll.BPM = 120
	}
	if state.Session.PianoRoll.TimeSignature.Denominator == 0 {
		state.Session.PianoRoll.TimeSignature = session.TimeSignature{Numerator: 4, Denominator: 4}
	}
	if state.Session.PianoRoll.Tracks == nil {
		state.Session.PianoRoll.Tracks = make(map[ids.InstrumentId]*session.Track)
	}
	if state.Session.Automation == nil {
		state.Session.Automation = session.NewAutomation()
	}
	if state.Session.Arrangement == nil {
		state.Session.Arrangement = session.NewArrangement()
	}
	if state.Session.SynthDefs == nil {
		state.Session.SynthDefs = session.NewCustomSynthDefRegistry()
	}
	if state.Session.VstPlugins == nil {
		state.Session.VstPlugins = session.NewVstPluginRegistry()
	}
	_ = version // reserved for future format migrations
}
