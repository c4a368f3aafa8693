// Package config is Imbolc's startup configuration record (spec.md §7's
// Config objects): a plain struct populated from flags and optionally
// overlaid with a YAML file, matching the teacher's flag-driven main.go
// plus the rest of the retrieved pack's near-universal use of YAML for
// config files.
//
// Grounded on MrWong99-glyphoxa's internal/config/loader.go: a
// Load(path)/LoadFromReader(io.Reader) split so tests can exercise parsing
// from a string literal, yaml.v3's KnownFields(true) to reject typos
// instead of silently ignoring them, and a single Validate pass returning
// a joined error rather than failing on the first problem found.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is spec.md §7's startup configuration record.
type Config struct {
	DefaultBusCount        uint8  `yaml:"default_bus_count"`
	LookaheadMs            uint16 `yaml:"lookahead_ms"`
	MaxVoicesPerInstrument uint8  `yaml:"max_voices_per_instrument"`
	TickRateHz             uint32 `yaml:"tick_rate_hz"`
	NetworkPort            uint16 `yaml:"network_port"`
	ReconnectWindowSecs    uint32 `yaml:"reconnect_window_secs"`
	BroadcastHz            uint16 `yaml:"broadcast_hz"`
}

// Default returns spec.md §7's documented defaults.
func Default() Config {
	return Config{
		DefaultBusCount:        8,
		LookaheadMs:            21,
		MaxVoicesPerInstrument: 32,
		TickRateHz:             2000,
		NetworkPort:            9999,
		ReconnectWindowSecs:    60,
		BroadcastHz:            30,
	}
}

// Load reads a YAML config file at path, starting from Default() so an
// omitted field keeps its documented default rather than zeroing out.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over Default(), then
// validates the result. Exposed separately from Load so tests can build a
// Config from a string literal.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that cfg's fields fall within spec.md §7's documented
// ranges, returning a joined error listing every violation found.
func Validate(cfg Config) error {
	var errs []error
	if cfg.DefaultBusCount < 1 || cfg.DefaultBusCount > 32 {
		errs = append(errs, fmt.Errorf("default_bus_count %d out of range [1, 32]", cfg.DefaultBusCount))
	}
	if cfg.LookaheadMs < 10 || cfg.LookaheadMs > 100 {
		errs = append(errs, fmt.Errorf("lookahead_ms %d out of range [10, 100]", cfg.LookaheadMs))
	}
	if cfg.MaxVoicesPerInstrument < 8 || cfg.MaxVoicesPerInstrument > 64 {
		errs = append(errs, fmt.Errorf("max_voices_per_instrument %d out of range [8, 64]", cfg.MaxVoicesPerInstrument))
	}
	if cfg.TickRateHz == 0 {
		errs = append(errs, errors.New("tick_rate_hz must be non-zero"))
	}
	if cfg.NetworkPort == 0 {
		errs = append(errs, errors.New("network_port must be non-zero"))
	}
	if cfg.BroadcastHz == 0 {
		errs = append(errs, errors.New("broadcast_hz must be non-zero"))
	}
	return errors.Join(errs...)
}
