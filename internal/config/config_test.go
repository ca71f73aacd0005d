package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Nil(t, cfg.Center)
	assert.Equal(t, 500.0, cfg.MaxDistance)
	assert.Equal(t, 100.0, cfg.MaxDepth)
	assert.Equal(t, 1.0, cfg.MinDepth)
	assert.Equal(t, []string{"scautopick*"}, cfg.PickAuthors)
	assert.Equal(t, MinPickCount{P: 4, S: 0, PAndS: 0, POrS: 4}, cfg.MinPickCount)
	assert.Equal(t, "PyOcto", cfg.Engine.MethodID)
	assert.Equal(t, "LOCSAT", cfg.Relocation.MethodID)
	assert.True(t, cfg.Relocation.Enabled)
	assert.False(t, cfg.Relocation.DiscardAssociatorOrigin)
	assert.Equal(t, "GFZ", cfg.Publish.AgencyID)
	assert.Equal(t, 1, cfg.Messaging.QoS)
	assert.Equal(t, time.Minute, cfg.DelayDuration())
	assert.Equal(t, time.Minute, cfg.BaseWindowDuration())
	assert.Equal(t, time.Hour, cfg.RetentionHorizon())
	assert.Equal(t, time.Second, cfg.TickDuration())

	assert.ErrorIs(t, cfg.Validate(), ErrCenterUnset)
}

func TestParseYAML(t *testing.T) {
	cfg, err := Parse([]byte(`
center:
  latitude: 37.5
  longitude: 25.1
maxDistance: 300
delay: 12.5
minPickCount:
  p: 6
relocation:
  discardAssociatorOrigin: true
`), "scoctoloc.yaml")
	require.NoError(t, err)

	require.NotNil(t, cfg.Center)
	assert.Equal(t, 37.5, cfg.Center.Latitude)
	assert.Equal(t, 300.0, cfg.MaxDistance)
	assert.Equal(t, 12500*time.Millisecond, cfg.DelayDuration())
	assert.Equal(t, 6, cfg.MinPickCount.P)
	assert.Equal(t, 4, cfg.MinPickCount.POrS)
	assert.True(t, cfg.Relocation.DiscardAssociatorOrigin)
	assert.NoError(t, cfg.Validate())
}

func TestParseJSONAndCUE(t *testing.T) {
	cfg, err := Parse([]byte(`{"center": {"latitude": 1, "longitude": 2}, "maxDepth": 50}`), "c.json")
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.MaxDepth)

	cfg, err = Parse([]byte(`
center: latitude: -10
center: longitude: 120
pickAuthors: ["scautopick", "manual"]
`), "c.cue")
	require.NoError(t, err)
	assert.Equal(t, -10.0, cfg.Center.Latitude)
	assert.Equal(t, []string{"scautopick", "manual"}, cfg.PickAuthors)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", "maxDistanse: 10\n"},
		{"negative distance", "maxDistance: -1\n"},
		{"latitude out of range", "center: {latitude: 91, longitude: 0}\n"},
		{"bad qos", "messaging: {qos: 3}\n"},
		{"wrong type", "delay: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "c.yaml")
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("{}"), "c.toml")
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestValidateCrossField(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	cfg.Center = &LatLon{Latitude: 1, Longitude: 2}
	require.NoError(t, cfg.Validate())

	cfg.VelocityModel = VelocityModel{Constant: "6.0", CSV: "model.csv"}
	assert.ErrorIs(t, cfg.Validate(), ErrConflictingVelocityModel)

	cfg.VelocityModel = VelocityModel{}
	cfg.MinDepth = 200
	assert.ErrorContains(t, cfg.Validate(), "minDepth")
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	dist := 250.0
	delay := 5.0
	require.NoError(t, cfg.Apply(Overrides{
		Center:      "52.1, 13.4",
		MaxDistance: &dist,
		Delay:       &delay,
		PickAuthors: "scautopick,manual other",
		Whitelist:   "wl.txt",
	}))

	assert.Equal(t, &LatLon{Latitude: 52.1, Longitude: 13.4}, cfg.Center)
	assert.Equal(t, 250.0, cfg.MaxDistance)
	assert.Equal(t, 5*time.Second, cfg.DelayDuration())
	assert.Equal(t, []string{"scautopick", "manual", "other"}, cfg.PickAuthors)
	assert.Equal(t, "wl.txt", cfg.Whitelist)
	assert.Equal(t, 100.0, cfg.MaxDepth, "unset overrides keep file values")

	assert.Error(t, cfg.Apply(Overrides{Center: "52.1"}))
	negative := -1.0
	assert.Error(t, cfg.Apply(Overrides{Delay: &negative}))
}

func TestParseLatLon(t *testing.T) {
	ll, err := ParseLatLon("-33.5,151")
	require.NoError(t, err)
	assert.Equal(t, LatLon{Latitude: -33.5, Longitude: 151}, ll)

	for _, bad := range []string{"", "1", "a,b", "1,x", "95,0", "0,181"} {
		_, err := ParseLatLon(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoctoloc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maxDepth: 70\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 70.0, cfg.MaxDepth)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
