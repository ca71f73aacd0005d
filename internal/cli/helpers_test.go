package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scocto/scoctoloc/internal/config"
	"github.com/scocto/scoctoloc/internal/epfile"
	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/testutil"
)

// workspace holds the files of one CLI test: inventory, config and picks.
type workspace struct {
	dir       string
	inventory string
	config    string
	picks     string
}

// newWorkspace writes an eight-station inventory around 37N 25E and a
// configuration pointing at it. extra is appended to the YAML config.
func newWorkspace(t *testing.T, extra string) *workspace {
	t.Helper()
	dir := t.TempDir()
	ws := &workspace{
		dir:       dir,
		inventory: filepath.Join(dir, "inventory.yaml"),
		config:    filepath.Join(dir, "scoctoloc.yaml"),
		picks:     filepath.Join(dir, "picks.yaml"),
	}

	var inv strings.Builder
	inv.WriteString("networks:\n  - code: GE\n    stations:\n")
	for _, s := range testutil.Stations(8, 37, 25) {
		fmt.Fprintf(&inv, "      - {code: %s, latitude: %v, longitude: %v, elevation: 100}\n",
			s.Station, s.Latitude, s.Longitude)
	}
	require.NoError(t, os.WriteFile(ws.inventory, []byte(inv.String()), 0644))

	cfg := fmt.Sprintf(`center: {latitude: 37.0, longitude: 25.0}
inventory: %q
delay: 10
tickInterval: 0.05
publish: {agencyID: TEST, author: scoctoloc}
%s`, ws.inventory, extra)
	require.NoError(t, os.WriteFile(ws.config, []byte(cfg), 0644))
	return ws
}

// writePicks saves picks as the workspace pick file.
func (ws *workspace) writePicks(t *testing.T, picks []model.Pick) {
	t.Helper()
	require.NoError(t, epfile.Save(ws.picks, &epfile.Document{Picks: picks}))
}

// eventPicks are five picks of one earthquake at Epoch, one second
// apart, each created two seconds after arrival.
func eventPicks() []model.Pick {
	var picks []model.Pick
	for i := 0; i < 5; i++ {
		picks = append(picks, testutil.Pick(
			fmt.Sprintf("ev1-%d", i+1),
			testutil.StationCode(i),
			time.Duration(i)*time.Second,
			2*time.Second,
		))
	}
	return picks
}

// clusterEngines scripts the engine: picks named ev1-* form one event at
// the network centre.
func clusterEngines() EngineFactory {
	return func(context.Context, *config.Config, *model.StationTable) (*Engines, error) {
		associator := &testutil.ClusterAssociator{
			MinPicks: 4,
			Clusters: map[string]model.Origin{
				"ev1": testutil.Origin("ev1", 0, 37, 25, 10),
			},
		}
		return NewEngines(associator, nil), nil
	}
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), opts, args...)
}

func executeContext(t *testing.T, ctx context.Context, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	if opts.Engines == nil {
		opts.Engines = clusterEngines()
	}
	cmd := newRootCommand(opts)
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), err
}

// decodeResponse parses a JSON response and decodes its data into v.
func decodeResponse(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}
