package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/scocto/scoctoloc/internal/model"
)

// Snapshot renders the parts of a result that golden files pin down:
// trigger outcomes and the published origins' identity, event and
// hypocentre. The output is canonical JSON, so equal runs produce equal
// bytes.
func Snapshot(name string, r *Result) ([]byte, error) {
	triggers := make([]any, len(r.Triggers))
	for i, t := range r.Triggers {
		m := map[string]any{
			"pick":    t.Pick,
			"outcome": t.Outcome,
		}
		if len(t.Origins) > 0 {
			m["origins"] = t.Origins
		}
		triggers[i] = m
	}

	origins := make([]any, len(r.Origins))
	for i := range r.Origins {
		o := &r.Origins[i]
		full := o.CanonicalMap()
		origins[i] = map[string]any{
			"id":            o.ID,
			"method":        o.Method.String(),
			"method_id":     o.MethodID,
			"event":         r.OriginEvents[o.ID],
			"picks":         o.PickIDs(),
			"time":          full["time"],
			"latitude":      full["latitude"],
			"longitude":     full["longitude"],
			"depth":         full["depth"],
			"creation_time": full["creation_time"],
		}
	}

	rejected := r.Rejected
	if rejected == nil {
		rejected = []string{}
	}

	return model.MarshalCanonical(map[string]any{
		"scenario": name,
		"events":   r.Events,
		"triggers": triggers,
		"origins":  origins,
		"rejected": rejected,
	})
}

// AssertGolden compares the result snapshot against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, r *Result) error {
	t.Helper()

	data, err := Snapshot(name, r)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
