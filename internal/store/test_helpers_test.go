package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestOrigin creates a stamped relocation-ready origin with quality.
func createTestOrigin(id string, offset time.Duration, pickIDs ...string) model.Origin {
	o := testutil.Origin(id, offset, 37.1, 25.2, 12.5, pickIDs...)
	o.Latitude.Uncertainty = 1.5
	o.EvaluationMode = model.EvaluationAutomatic
	o.CreationInfo = model.CreationInfo{
		AgencyID:     "GFZ",
		Author:       "scoctoloc",
		CreationTime: testutil.Epoch.Add(offset + 90*time.Second),
	}
	o.Quality = &model.Quality{
		StandardError:        0.42,
		UsedPhaseCount:       len(pickIDs),
		AssociatedPhaseCount: len(pickIDs),
		AzimuthalGap:         95,
		TGap:                 180,
	}
	return o
}
