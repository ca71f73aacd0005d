package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scocto/scoctoloc/internal/testutil"
)

func TestWindowBuilder_Width(t *testing.T) {
	w := NewWindowBuilder(NewPickStore(), DefaultBaseWindow, 20*time.Second, 1)
	assert.Equal(t, 80*time.Second, w.Width())
}

func TestWindowBuilder_Window(t *testing.T) {
	store := NewPickStore()
	for i, off := range []int{-100, -80, -10, 0, 10, 80, 81} {
		store.Store(testutil.Pick(fmt.Sprintf("p%d", i), "S01", time.Duration(off)*time.Second, 0))
	}
	w := NewWindowBuilder(store, 60*time.Second, 20*time.Second, 3)

	trigger, ok := store.Get("p3")
	require.True(t, ok)
	picks, err := w.Window(trigger)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, ids(picks), "|dt| <= W, inclusive")
}

func TestWindowBuilder_Insufficient(t *testing.T) {
	store := NewPickStore()
	trigger := testutil.Pick("lonely", "S01", 0, 0)
	store.Store(trigger)
	w := NewWindowBuilder(store, DefaultBaseWindow, 0, 4)

	picks, err := w.Window(trigger)
	assert.ErrorIs(t, err, ErrInsufficientPicks)
	assert.Len(t, picks, 1)
}

func TestWindowBuilder_TriggerAlwaysIncluded(t *testing.T) {
	store := NewPickStore()
	store.Store(testutil.Pick("a", "S01", -time.Second, 0))
	store.Store(testutil.Pick("c", "S01", time.Second, 0))
	w := NewWindowBuilder(store, DefaultBaseWindow, 0, 1)

	picks, err := w.Window(testutil.Pick("b", "S02", 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(picks))
}

func TestWindowBuilder_Symmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a in window(b) iff b in window(a)", prop.ForAll(
		func(offsets []int, i, j int) bool {
			if len(offsets) == 0 {
				return true
			}
			store := NewPickStore()
			for k, off := range offsets {
				store.Store(testutil.Pick(fmt.Sprintf("p%03d", k), "S01", time.Duration(off)*time.Second, 0))
			}
			w := NewWindowBuilder(store, 30*time.Second, 10*time.Second, 0)
			a, _ := store.Get(fmt.Sprintf("p%03d", i%len(offsets)))
			b, _ := store.Get(fmt.Sprintf("p%03d", j%len(offsets)))

			wa, _ := w.Window(a)
			wb, _ := w.Window(b)
			return containsPick(wa, b.ID) == containsPick(wb, a.ID)
		},
		gen.SliceOf(gen.IntRange(0, 200)),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
