package geoip

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFallbackLookup(t *testing.T) {
	g, err := Init(filepath.Join("testdata", "geoip.json"))
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	tests := []struct {
		ip   string
		want Location
	}{
		{"203.0.113.7", Location{Country: "US", Region: "CA"}},
		{"198.51.100.1", Location{Country: "GB", Region: "ENG"}},
		{"192.0.2.10", Location{Country: "DE"}},
		{"10.0.0.1", Location{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.Lookup(net.ParseIP(tt.ip)), tt.ip)
	}
}

func TestFromJSONSkipsBadNetworks(t *testing.T) {
	g, err := FromJSON([]byte(`[{"net":"nope","country":"us"},{"net":"203.0.113.0/24","country":"us","region":"ny"}]`))
	require.NoError(t, err)
	assert.Equal(t, Location{Country: "US", Region: "NY"}, g.Lookup(net.ParseIP("203.0.113.1")))
}

func TestInitMissingFile(t *testing.T) {
	_, err := Init(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Error(t, err)
}

func TestInitGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(path, []byte("not a db"), 0o600))
	_, err := Init(path)
	assert.Error(t, err)
}

func TestNilResolver(t *testing.T) {
	var g *GeoIP
	assert.Equal(t, Location{}, g.Lookup(net.ParseIP("203.0.113.7")))
	assert.NoError(t, g.Close())
}
