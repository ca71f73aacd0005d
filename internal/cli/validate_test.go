package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Success(t *testing.T) {
	ws := newWorkspace(t, "")

	out, err := execute(t, &RootOptions{}, "validate", "--config", ws.config, "--format", "json")
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 8, result.Stations)
	assert.Equal(t, 0, result.Whitelist)
	assert.Equal(t, "constant", result.VelocityModel)
	assert.Equal(t, "LOCSAT", result.Relocation)
	assert.InDelta(t, 37.0, result.Latitude, 1e-9)
}

func TestValidate_TextOutput(t *testing.T) {
	ws := newWorkspace(t, "")

	out, err := execute(t, &RootOptions{}, "validate", "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration valid")
	assert.Contains(t, out, "stations    8")
}

func TestValidate_WhitelistNarrowsStations(t *testing.T) {
	ws := newWorkspace(t, "")
	wl := filepath.Join(ws.dir, "whitelist.txt")
	require.NoError(t, os.WriteFile(wl, []byte("# two stations\nGE.S01\nGE.S02.*.HH?\n"), 0644))

	out, err := execute(t, &RootOptions{}, "validate", "--config", ws.config, "--whitelist", wl, "--format", "json")
	require.NoError(t, err)

	var result ValidationResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 2, result.Stations)
	assert.Equal(t, 2, result.Whitelist)
}

func TestValidate_MaxDistanceOverride(t *testing.T) {
	ws := newWorkspace(t, "")

	// The fixture ring has a radius of about 55 km.
	_, err := execute(t, &RootOptions{}, "validate", "--config", ws.config, "--max-distance", "10")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no inventory station")
}

func TestValidate_Errors(t *testing.T) {
	ws := newWorkspace(t, "")
	csv := filepath.Join(ws.dir, "model.csv")
	require.NoError(t, os.WriteFile(csv, []byte("depth,vp,vs\n0,5.8,3.36\n"), 0644))

	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{"missing config file", []string{"--config", filepath.Join(ws.dir, "absent.yaml")}, "failed to load config"},
		{"no centre", []string{"--inventory", ws.inventory}, "network center must be specified"},
		{"bad centre", []string{"--config", ws.config, "--center-latlon", "95,25"}, "invalid command-line option"},
		{"no inventory", []string{"--center-latlon", "37,25"}, "inventory is required"},
		{"missing inventory", []string{"--config", ws.config, "--inventory", filepath.Join(ws.dir, "none.yaml")}, "failed to load inventory"},
		{"conflicting models", []string{"--config", ws.config, "--velocity-model", "6.0", "--model-csv", csv}, "mutually exclusive"},
		{"missing whitelist", []string{"--config", ws.config, "--whitelist", filepath.Join(ws.dir, "none.txt")}, "failed to load whitelist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"validate"}, tt.args...)
			out, err := execute(t, &RootOptions{}, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.message)
			assert.Contains(t, out, "Error [E_CONFIG]")
		})
	}
}
