package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()
	assert.NoError(t, Validate(cfg))
	assert.Equal(t, uint32(2000), cfg.TickRateHz)
	assert.Equal(t, uint16(9999), cfg.NetworkPort)
	assert.Equal(t, uint32(60), cfg.ReconnectWindowSecs)
	assert.Equal(t, uint16(30), cfg.BroadcastHz)
}

func TestLoadFromReaderOverlaysOnlySpecifiedFields(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("network_port: 7000\n"))
	assert.NoError(t, err)
	assert.Equal(t, uint16(7000), cfg.NetworkPort)
	assert.Equal(t, uint32(2000), cfg.TickRateHz, "unspecified fields keep their documented default")
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("not_a_real_field: 1\n"))
	assert.Error(t, err)
}

func TestLoadFromReaderRejectsOutOfRangeValues(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("default_bus_count: 64\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "default_bus_count")
}

func TestLoadFromReaderAccumulatesMultipleValidationErrors(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("default_bus_count: 0\nlookahead_ms: 1\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "default_bus_count")
	assert.Contains(t, err.Error(), "lookahead_ms")
}

func TestLoadNonexistentFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/imbolc.yaml")
	assert.Error(t, err)
}
