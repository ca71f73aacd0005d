package engine

import (
	"time"

	"github.com/scocto/scoctoloc/internal/model"
)

// DefaultBaseWindow is the fixed part of the trigger window half-width.
const DefaultBaseWindow = 60 * time.Second

// WindowBuilder selects the picks sent to the association engine for one
// trigger: every stored pick within W = baseWindow + delay of the trigger's
// arrival time, on either side.
type WindowBuilder struct {
	store    *PickStore
	width    time.Duration
	minPicks int
}

// NewWindowBuilder creates a builder over store.
func NewWindowBuilder(store *PickStore, baseWindow, delay time.Duration, minPicks int) *WindowBuilder {
	return &WindowBuilder{
		store:    store,
		width:    baseWindow + delay,
		minPicks: minPicks,
	}
}

// Width returns the half-width W.
func (w *WindowBuilder) Width() time.Duration {
	return w.width
}

// Window returns the stored picks with |t - trigger.t| <= W in ascending
// time order. The trigger is always part of the result. When the result
// has fewer than the minimum pick count it is returned together with
// ErrInsufficientPicks.
func (w *WindowBuilder) Window(trigger model.Pick) ([]model.Pick, error) {
	picks := w.store.Between(trigger.Time.Add(-w.width), trigger.Time.Add(w.width))
	if !containsPick(picks, trigger.ID) {
		picks = insertSorted(picks, trigger)
	}
	if len(picks) < w.minPicks {
		return picks, ErrInsufficientPicks
	}
	return picks, nil
}

func containsPick(picks []model.Pick, id string) bool {
	for _, p := range picks {
		if p.ID == id {
			return true
		}
	}
	return false
}

func insertSorted(picks []model.Pick, p model.Pick) []model.Pick {
	i := 0
	for i < len(picks) && comparePicks(picks[i], p) < 0 {
		i++
	}
	picks = append(picks, model.Pick{})
	copy(picks[i+1:], picks[i:])
	picks[i] = p
	return picks
}
