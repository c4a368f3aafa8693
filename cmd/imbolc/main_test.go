package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/imbolc/internal/discovery"
	"github.com/schollz/imbolc/internal/ids"
)

func TestParseOwnSplitsAndTrimsCommaSeparatedIds(t *testing.T) {
	own, err := parseOwn(" 1, 2,3 ")
	assert.NoError(t, err)
	assert.Equal(t, []ids.InstrumentId{1, 2, 3}, own)
}

func TestParseOwnEmptyStringReturnsNil(t *testing.T) {
	own, err := parseOwn("")
	assert.NoError(t, err)
	assert.Nil(t, own)
}

func TestParseOwnRejectsNonNumericId(t *testing.T) {
	_, err := parseOwn("1,abc")
	assert.Error(t, err)
}

func TestParseSeedAddrsBuildsEndpoints(t *testing.T) {
	seed, err := parseSeedAddrs([]string{"studio=10.0.0.5:9999", "laptop=127.0.0.1:9999"})
	assert.NoError(t, err)
	assert.Equal(t, []discovery.Endpoint{
		{Name: "studio", Addr: "10.0.0.5:9999"},
		{Name: "laptop", Addr: "127.0.0.1:9999"},
	}, seed)
}

func TestParseSeedAddrsRejectsMissingEquals(t *testing.T) {
	_, err := parseSeedAddrs([]string{"bad-entry"})
	assert.Error(t, err)
}
