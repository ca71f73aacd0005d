package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scocto/scoctoloc/internal/config"
	"github.com/scocto/scoctoloc/internal/epfile"
	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/store"
	"github.com/scocto/scoctoloc/internal/testutil"
)

func TestOffline_File(t *testing.T) {
	ws := newWorkspace(t, "")
	ws.writePicks(t, eventPicks())
	output := filepath.Join(ws.dir, "origins.json")

	out, err := execute(t, &RootOptions{}, "offline", "--config", ws.config,
		"--input", ws.picks, "--output", output, "--format", "json")
	require.NoError(t, err)

	var summary RunSummary
	resp := decodeResponse(t, out, &summary)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "offline", summary.Mode)
	assert.Equal(t, 5, summary.Picks)
	assert.Equal(t, 1, summary.Origins)
	assert.Equal(t, map[string]int{"published": 1}, summary.Outcomes)
	assert.Equal(t, output, summary.Output)

	doc, err := epfile.Load(output)
	require.NoError(t, err)
	require.Len(t, doc.Origins, 1)
	o := doc.Origins[0]
	assert.Equal(t, "Origin/PyOcto/000000001", o.ID)
	assert.Equal(t, "TEST", o.CreationInfo.AgencyID)
	assert.Equal(t, []string{"ev1-1", "ev1-2", "ev1-3", "ev1-4", "ev1-5"}, o.PickIDs())
	assert.Len(t, doc.Picks, 5)

	// Stamped with the newest creation time in the batch.
	assert.True(t, testutil.Epoch.Add(6e9).Equal(o.CreationInfo.CreationTime))

	digest, err := model.SequenceDigest(doc.Origins)
	require.NoError(t, err)
	assert.Equal(t, summary.Digest, digest)
}

func TestOffline_TimeSpan(t *testing.T) {
	ws := newWorkspace(t, "")
	ws.writePicks(t, eventPicks())

	// ev1-1 falls before the span, leaving four picks: still enough.
	out, err := execute(t, &RootOptions{}, "offline", "--config", ws.config, "--input", ws.picks,
		"--start", "2024-03-01 12:00:00.5", "--end", "2024-03-01T12:00:10Z", "--format", "json")
	require.NoError(t, err)

	var summary RunSummary
	decodeResponse(t, out, &summary)
	assert.Equal(t, 4, summary.Picks)
	assert.Equal(t, 1, summary.Origins)
}

func TestOffline_Insufficient(t *testing.T) {
	ws := newWorkspace(t, "")
	ws.writePicks(t, eventPicks()[:2])

	out, err := execute(t, &RootOptions{}, "offline", "--config", ws.config, "--input", ws.picks, "--format", "json")
	require.NoError(t, err)

	var summary RunSummary
	decodeResponse(t, out, &summary)
	assert.Equal(t, 0, summary.Origins)
	assert.Equal(t, map[string]int{"insufficient": 1}, summary.Outcomes)
}

func TestOffline_Database(t *testing.T) {
	ws := newWorkspace(t, "")
	dbPath := filepath.Join(ws.dir, "archive.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.StorePicks(context.Background(), eventPicks()))
	require.NoError(t, st.Close())

	out, err := execute(t, &RootOptions{}, "offline", "--config", ws.config, "--db", dbPath,
		"--start", "2024-03-01T11:59:00Z", "--end", "2024-03-01T12:01:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "offline: 5 picks, 1 triggers, 1 origins")
	assert.Contains(t, out, "published")
}

func TestOffline_EngineFailure(t *testing.T) {
	ws := newWorkspace(t, "")
	ws.writePicks(t, eventPicks())

	failing := func(context.Context, *config.Config, *model.StationTable) (*Engines, error) {
		associator := testutil.NewScriptedAssociator().FailOn(0, errors.New("engine crashed"))
		return NewEngines(associator, nil), nil
	}
	out, err := execute(t, &RootOptions{Engines: failing}, "offline", "--config", ws.config,
		"--input", ws.picks, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeEngine, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "engine crashed")
}

func TestOffline_InputErrors(t *testing.T) {
	ws := newWorkspace(t, "")
	ws.writePicks(t, eventPicks())

	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{"no input", nil, "no pick input"},
		{"missing file", []string{"--input", filepath.Join(ws.dir, "absent.yaml")}, "failed to read input"},
		{"database without span", []string{"--db", filepath.Join(ws.dir, "a.db")}, "needs --start and --end"},
		{"bad start", []string{"--input", ws.picks, "--start", "yesterday"}, "invalid --start"},
		{"reversed span", []string{"--input", ws.picks, "--start", "2024-03-01T13:00:00Z", "--end", "2024-03-01T12:00:00Z"}, "--end is before --start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"offline", "--config", ws.config}, tt.args...)
			_, err := execute(t, &RootOptions{}, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestOffline_EngineStartFailure(t *testing.T) {
	ws := newWorkspace(t, "")
	ws.writePicks(t, eventPicks())

	broken := func(context.Context, *config.Config, *model.StationTable) (*Engines, error) {
		return nil, errors.New("executable not found")
	}
	_, err := execute(t, &RootOptions{Engines: broken}, "offline", "--config", ws.config, "--input", ws.picks)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to start engine")
}
