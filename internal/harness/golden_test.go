package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGolden(t *testing.T) {
	for _, name := range []string{"single_event", "relocated_event"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			r, err := Run(context.Background(), s)
			require.NoError(t, err)
			require.True(t, r.Pass, "errors: %v", r.Errors)
			require.NoError(t, AssertGolden(t, s.Name, r))
		})
	}
}

func TestSnapshot_Stable(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/improving_event.yaml")
	require.NoError(t, err)

	r1, err := Run(context.Background(), s)
	require.NoError(t, err)
	r2, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := Snapshot(s.Name, r1)
	require.NoError(t, err)
	b, err := Snapshot(s.Name, r2)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}
