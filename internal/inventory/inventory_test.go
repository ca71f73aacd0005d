package inventory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scocto/scoctoloc/internal/whitelist"
)

const testInventory = `
networks:
  - code: GE
    stations:
      - code: APE
        latitude: 0.5
        longitude: 0
        elevation: 620
        locations: ["", "00"]
      - code: FAR
        latitude: 10
        longitude: 0
        elevation: 10
  - code: XX
    stations:
      - code: OLD
        latitude: 0
        longitude: 0.5
        elevation: 0
        end: 2020-01-01T00:00:00Z
`

func TestParseAndSelect(t *testing.T) {
	inv, err := Parse([]byte(testInventory))
	require.NoError(t, err)
	require.Len(t, inv.Networks, 2)

	stations := inv.Select(Selection{MaxDistanceKm: 500})
	var codes []string
	for _, s := range stations {
		codes = append(codes, s.NSL())
	}
	assert.Equal(t, []string{"GE.APE.", "GE.APE.00", "XX.OLD."}, codes)
	assert.Equal(t, 620.0, stations[0].Elevation)
}

func TestSelectWhitelistAndEpoch(t *testing.T) {
	inv, err := Parse([]byte(testInventory))
	require.NoError(t, err)

	wl, err := whitelist.Parse("GE.APE.00")
	require.NoError(t, err)

	stations := inv.Select(Selection{MaxDistanceKm: 500, Whitelist: wl})
	require.Len(t, stations, 1)
	assert.Equal(t, "GE.APE.00", stations[0].NSL())

	stations = inv.Select(Selection{MaxDistanceKm: 500, At: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.Len(t, stations, 2, "XX.OLD closed in 2020")

	stations = inv.Select(Selection{MaxDistanceKm: 2000})
	assert.Len(t, stations, 4)
}

func TestParseRejectsBadInput(t *testing.T) {
	_, err := Parse([]byte("networks:\n  - code: GE\n    stations:\n      - code: A\n        latitude: 91\n"))
	assert.ErrorContains(t, err, "latitude")

	_, err = Parse([]byte("networks:\n  - code: GE\n    stationz: []\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Parse([]byte("networks:\n  - stations: []\n"))
	assert.ErrorContains(t, err, "code is required")
}

func TestParseEmpty(t *testing.T) {
	inv, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, inv.Select(Selection{MaxDistanceKm: 100}))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testInventory), 0o644))

	inv, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, inv.Networks, 2)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
