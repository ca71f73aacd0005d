package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../harness/testdata/scenarios"

const failingScenario = `name: wrong_count
config:
  delay: 10
  minPickCount: 4
  authors: [scautopick]
stations: {count: 8, latitude: 37.0, longitude: 25.0}
engine:
  minPicks: 4
  clusters:
    ev1: {time: 0, latitude: 37.0, longitude: 25.0, depth: 10}
picks:
  - {id: ev1-1, station: S01, time: 0, latency: 2}
  - {id: ev1-2, station: S02, time: 1, latency: 2}
  - {id: ev1-3, station: S03, time: 2, latency: 2}
  - {id: ev1-4, station: S04, time: 3, latency: 2}
assertions:
  - {type: origin_count, count: 2}
`

func TestTest_AllPass(t *testing.T) {
	out, err := execute(t, &RootOptions{}, "test", scenariosDir, "--format", "json")
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Passed)
	assert.Zero(t, result.Failed)
	for _, s := range result.Scenarios {
		assert.True(t, s.Pass, s.Name)
		assert.Empty(t, s.Errors)
	}
}

func TestTest_Filter(t *testing.T) {
	out, err := execute(t, &RootOptions{}, "test", scenariosDir, "--filter", "single_*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ single_event (1 origins, 1 events)")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTest_Failure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wrong_count.yaml")
	require.NoError(t, os.WriteFile(path, []byte(failingScenario), 0644))

	out, err := execute(t, &RootOptions{}, "test", path, filepath.Join(scenariosDir, "single_event.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_count")
	assert.Contains(t, out, "✓ single_event")
	assert.Contains(t, out, "Expected: 2")
	assert.Contains(t, out, "Error [E_SCENARIO]: 1 of 2 scenarios failed")
}

func TestTest_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\nunknown: true\n"), 0644))

	out, err := execute(t, &RootOptions{}, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "broken", result.Scenarios[0].Name)
	assert.False(t, result.Scenarios[0].Pass)
	assert.NotEmpty(t, result.Scenarios[0].Errors)
}

func TestTest_CommandErrors(t *testing.T) {
	_, err := execute(t, &RootOptions{}, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")

	_, err = execute(t, &RootOptions{}, "test", scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, &RootOptions{}, "test")
	require.Error(t, err)
}
