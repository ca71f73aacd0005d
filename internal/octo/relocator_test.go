package octo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/scocto/scoctoloc/internal/engine"
	"github.com/scocto/scoctoloc/internal/model"
	"github.com/scocto/scoctoloc/internal/testutil"
)

type pickMap map[string]model.Pick

func (m pickMap) Lookup(ids []string) map[string]model.Pick {
	out := make(map[string]model.Pick)
	for _, id := range ids {
		if p, ok := m[id]; ok {
			out[id] = p
		}
	}
	return out
}

func TestRelocator_Relocate(t *testing.T) {
	var sent []relocateBody
	w, _ := startFake(t, func(op string, body msgpack.RawMessage) (any, string) {
		req := decodeBody[relocateBody](t, body)
		sent = append(sent, req)
		out := req.Origin
		out.Depth = 3
		if req.FixedDepth != nil {
			out.Depth = *req.FixedDepth
		}
		used := false
		out.Picks[1].Used = &used
		return relocateResult{Origin: &out}, ""
	})

	picks := pickMap{
		"a": testutil.Pick("a", "S01", 0, 0),
		"b": testutil.Pick("b", "S02", 0, 0),
	}
	r := NewRelocator(w, "LOCSAT", picks, fixtureStations())
	in := testutil.Origin("assoc", 0, 37, 25, 10, "a", "b")
	ctx := context.Background()

	out, err := r.Relocate(ctx, in, engine.FreeDepth)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Nil(t, sent[0].FixedDepth)
	assert.Len(t, sent[0].Picks, 2)
	assert.Equal(t, model.MethodRelocation, out.Method)
	assert.Equal(t, "LOCSAT", out.MethodID)
	assert.Equal(t, 3.0, out.Depth.Value)
	assert.False(t, out.DepthFixed)
	assert.False(t, out.Arrivals[1].Used)
	assert.Empty(t, out.ID, "identifiers are minted by the relocation controller")

	out, err = r.Relocate(ctx, in, engine.DepthConstraint{Fixed: true, Depth: 5})
	require.NoError(t, err)
	require.NotNil(t, sent[1].FixedDepth)
	assert.Equal(t, 5.0, *sent[1].FixedDepth)
	assert.True(t, out.DepthFixed)
}

func TestRelocator_Errors(t *testing.T) {
	w, f := startFake(t, func(string, msgpack.RawMessage) (any, string) {
		return relocateResult{}, ""
	})
	r := NewRelocator(w, "LOCSAT", pickMap{"a": testutil.Pick("a", "S01", 0, 0)}, fixtureStations())
	ctx := context.Background()

	_, err := r.Relocate(ctx, testutil.Origin("o", 0, 37, 25, 10, "a", "gone"), engine.FreeDepth)
	assert.ErrorContains(t, err, "pick gone unknown")
	assert.Empty(t, f.Ops(), "nothing sent without all picks")

	_, err = r.Relocate(ctx, testutil.Origin("o", 0, 37, 25, 10, "a"), engine.FreeDepth)
	assert.ErrorContains(t, err, "no solution")
}

func TestRelocatorWithAssociatorPicks(t *testing.T) {
	w, _ := startFake(t, func(op string, body msgpack.RawMessage) (any, string) {
		switch op {
		case opAssociate:
			return associateResult{Events: []wireEvent{{
				Latitude: 37, Longitude: 25, Depth: 10,
				Picks: []wireAssignment{{PickID: "a"}, {PickID: "b"}},
			}}}, ""
		case opRelocate:
			req := decodeBody[relocateBody](t, body)
			return relocateResult{Origin: &req.Origin}, ""
		}
		return nil, ""
	})
	stations := fixtureStations()
	assoc := NewAssociator(w, "PyOcto", stations)
	reloc := NewRelocator(w, "LOCSAT", assoc, stations)
	ctx := context.Background()

	origins, err := assoc.Associate(ctx, []model.Pick{
		testutil.Pick("a", "S01", 0, 0),
		testutil.Pick("b", "S02", 0, 0),
	})
	require.NoError(t, err)
	require.Len(t, origins, 1)

	out, err := reloc.Relocate(ctx, origins[0], engine.FreeDepth)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.PickIDs())
}
