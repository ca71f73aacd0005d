package whitelist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scocto/scoctoloc/internal/model"
)

func stream(s string) model.StreamID {
	id, err := model.ParseStreamID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func TestParse(t *testing.T) {
	w, err := Parse(`
# network wide
IU
  # commented out
GE.FALKS GE.APE..BHZ
GE.ZKR.00.HH?
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"IU.*.*.*", "GE.FALKS.*.*", "GE.APE.--.BHZ", "GE.ZKR.00.HH?"}, w.Patterns())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("A.B.C.D.E")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")

	_, err = Parse("GE\nGE.[AP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestMatches(t *testing.T) {
	w, err := Parse("IU GE.APE..BHZ GE.ZKR.00.HH?")
	require.NoError(t, err)

	tests := []struct {
		stream string
		want   bool
	}{
		{"IU.ANMO.00.BHZ", true},
		{"GE.APE..BHZ", true},
		{"GE.APE.--.BHZ", true},
		{"GE.APE..BHN", false},
		{"GE.APE.00.BHZ", false},
		{"GE.ZKR.00.HHZ", true},
		{"GE.ZKR.00.BHZ", false},
		{"GR.BFO..BHZ", false},
	}
	for _, tt := range tests {
		t.Run(tt.stream, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Matches(stream(tt.stream)))
		})
	}
}

func TestMatchesStation(t *testing.T) {
	w, err := Parse("IU GE.APE..BHZ")
	require.NoError(t, err)

	assert.True(t, w.MatchesStation("IU", "ANMO", "00"))
	assert.True(t, w.MatchesStation("GE", "APE", ""))
	assert.False(t, w.MatchesStation("GE", "APE", "10"))
	assert.False(t, w.MatchesStation("GE", "ZKR", ""))
}

func TestEmptyWhitelistMatchesAll(t *testing.T) {
	var w *Whitelist
	assert.True(t, w.Matches(stream("XX.ANY..HHZ")))
	assert.True(t, w.MatchesStation("XX", "ANY", ""))

	empty, err := Parse("# nothing\n")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.True(t, empty.Matches(stream("XX.ANY..HHZ")))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.txt")
	require.NoError(t, os.WriteFile(path, []byte("GE\n"), 0o644))

	w, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
