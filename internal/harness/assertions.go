package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/scocto/scoctoloc/internal/model"
)

// AssertionError is returned when an assertion fails.
// It includes the trigger trace to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Triggers []TriggerRecord // Full trigger trace for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nTriggers:\n")
	for i, t := range e.Triggers {
		fmt.Fprintf(&buf, "  [%d] %s %s", i+1, t.Pick, t.Outcome)
		if len(t.Origins) > 0 {
			fmt.Fprintf(&buf, " %v", t.Origins)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// Evaluate checks one assertion against a result.
func Evaluate(a Assertion, r *Result) error {
	switch a.Type {
	case AssertOriginCount:
		return assertOriginCount(a, r)
	case AssertEventCount:
		return compareCount(a, r, "events", r.Events)
	case AssertOutcomeCount:
		n := 0
		for _, t := range r.Triggers {
			if t.Outcome == a.Outcome {
				n++
			}
		}
		return compareCount(a, r, a.Outcome+" triggers", n)
	case AssertRejected:
		return assertRejected(a, r)
	case AssertOriginPicks:
		return assertOriginPicks(a, r)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func compareCount(a Assertion, r *Result, what string, got int) error {
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
		Triggers: r.Triggers,
	}
}

func assertOriginCount(a Assertion, r *Result) error {
	what := "origins"
	n := len(r.Origins)
	if a.Method != "" {
		m, err := model.ParseMethod(a.Method)
		if err != nil {
			return err
		}
		n = 0
		for _, o := range r.Origins {
			if o.Method == m {
				n++
			}
		}
		what = a.Method + " origins"
	}
	return compareCount(a, r, what, n)
}

func assertRejected(a Assertion, r *Result) error {
	var missing []string
	for _, id := range a.Picks {
		if !slices.Contains(r.Rejected, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("picks %v rejected", a.Picks),
		Actual:   fmt.Sprintf("rejected %v, accepted %v", r.Rejected, missing),
		Triggers: r.Triggers,
	}
}

func assertOriginPicks(a Assertion, r *Result) error {
	if a.Index >= len(r.Origins) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("origin at index %d", a.Index),
			Actual:   fmt.Sprintf("%d origins published", len(r.Origins)),
			Triggers: r.Triggers,
		}
	}
	want := slices.Clone(a.Picks)
	slices.Sort(want)
	got := r.Origins[a.Index].PickIDs()
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("origin %d references %v", a.Index, want),
		Actual:   fmt.Sprintf("origin %s references %v", r.Origins[a.Index].ID, got),
		Triggers: r.Triggers,
	}
}
