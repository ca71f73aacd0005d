package engine

import (
	"log/slog"
	"math"
	"time"

	"github.com/scocto/scoctoloc/internal/geo"
	"github.com/scocto/scoctoloc/internal/model"
)

// Matching thresholds between a new origin and an event's latest origin of
// the same method.
const (
	MatchMaxTimeSeparation = 30 * time.Second
	MatchMaxDistanceKm     = 100.0
)

// Event groups the origins believed to describe one earthquake. Each
// method keeps its own history, which only ever grows by improvements.
type Event struct {
	// Key is the catalog sequence number, assigned in creation order.
	Key int64

	history [model.MethodCount][]model.Origin
	picks   map[string]struct{}
	updated time.Time
}

// Latest returns the most recent origin recorded for method, or nil.
func (e *Event) Latest(m model.Method) *model.Origin {
	h := e.history[m]
	if len(h) == 0 {
		return nil
	}
	return &h[len(h)-1]
}

// History returns the origins recorded for method, oldest first.
func (e *Event) History(m model.Method) []model.Origin {
	return e.history[m]
}

// HasPick reports whether any recorded origin referenced the pick.
func (e *Event) HasPick(id string) bool {
	_, ok := e.picks[id]
	return ok
}

// PickCount returns the size of the event's pick set.
func (e *Event) PickCount() int {
	return len(e.picks)
}

// Updated returns when the event last recorded an origin.
func (e *Event) Updated() time.Time {
	return e.updated
}

// commonPicks counts the origin's picks already known to the event.
func (e *Event) commonPicks(o *model.Origin) int {
	n := 0
	for _, id := range o.PickIDs() {
		if e.HasPick(id) {
			n++
		}
	}
	return n
}

// Comparison is the result of CompareOrigins.
type Comparison int

const (
	// ComparisonIdentical: both origins reference the same picks.
	ComparisonIdentical Comparison = iota
	// ComparisonDisjoint: no pick in common.
	ComparisonDisjoint
	// ComparisonSuperset: new references every old pick and more.
	ComparisonSuperset
	// ComparisonMore: overlapping, new references more picks.
	ComparisonMore
	// ComparisonFewer: new references fewer picks, or is a subset.
	ComparisonFewer
	// ComparisonAnomaly: same number of picks but different sets.
	ComparisonAnomaly
)

var comparisonNames = [...]string{"identical", "disjoint", "superset", "more", "fewer", "anomaly"}

// String returns the comparison name used in logs.
func (c Comparison) String() string {
	if c >= 0 && int(c) < len(comparisonNames) {
		return comparisonNames[c]
	}
	return "unknown"
}

// Improves reports whether the new origin should replace the old one.
func (c Comparison) Improves() bool {
	return c == ComparisonSuperset || c == ComparisonMore
}

// CompareOrigins compares the referenced pick sets of two origins. Only a
// proper superset or a strictly larger overlapping set is an improvement.
// An equal-sized set that differs is logged as an anomaly and treated as no
// improvement.
func CompareOrigins(prev, next *model.Origin) Comparison {
	a, b := prev.PickIDs(), next.PickIDs()

	common := 0
	inA := make(map[string]struct{}, len(a))
	for _, id := range a {
		inA[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := inA[id]; ok {
			common++
		}
	}

	switch {
	case common == len(a) && len(a) == len(b):
		return ComparisonIdentical
	case common == 0:
		return ComparisonDisjoint
	case common == len(a):
		return ComparisonSuperset
	case len(b) > len(a):
		return ComparisonMore
	case len(b) < len(a):
		return ComparisonFewer
	}

	slog.Warn("same number of picks but different pick sets",
		"old", prev.ID,
		"new", next.ID,
		"picks", len(a),
		"common", common,
	)
	return ComparisonAnomaly
}

// Catalog is the set of events remembered for deduplication. Owned by the
// pipeline; not safe for concurrent use.
type Catalog struct {
	events  []*Event
	nextKey int64
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Len returns the number of events.
func (c *Catalog) Len() int {
	return len(c.events)
}

// Events returns the events in creation order.
func (c *Catalog) Events() []*Event {
	return c.events
}

// Match finds the event the origin most likely belongs to. Candidates are
// events whose latest origin of the same method is within the time and
// distance thresholds and shares at least one pick. The candidate sharing
// the most picks wins; ties go to the earliest event.
func (c *Catalog) Match(o *model.Origin) *Event {
	var best *Event
	bestCommon := 0
	for _, e := range c.events {
		last := e.Latest(o.Method)
		if last == nil {
			continue
		}
		if !withinThresholds(last, o) {
			continue
		}
		common := e.commonPicks(o)
		if common > bestCommon {
			best, bestCommon = e, common
		}
	}
	return best
}

func withinThresholds(a, b *model.Origin) bool {
	dt := a.Time.Sub(b.Time)
	if math.Abs(float64(dt)) >= float64(MatchMaxTimeSeparation) {
		return false
	}
	dist := geo.HypocentralDistanceKm(
		a.Latitude.Value, a.Longitude.Value, a.Depth.Value,
		b.Latitude.Value, b.Longitude.Value, b.Depth.Value,
	)
	return dist < MatchMaxDistanceKm
}

// NewEvent creates and registers an empty event.
func (c *Catalog) NewEvent() *Event {
	c.nextKey++
	e := &Event{Key: c.nextKey, picks: make(map[string]struct{})}
	c.events = append(c.events, e)
	return e
}

// Record appends the origin to the event's history for its method and
// folds its picks into the event's pick set. now stamps the update.
func (c *Catalog) Record(e *Event, o model.Origin, now time.Time) {
	e.history[o.Method] = append(e.history[o.Method], o)
	for _, a := range o.Arrivals {
		e.picks[a.PickID] = struct{}{}
	}
	if now.After(e.updated) {
		e.updated = now
	}
}

// Evict drops events not updated since the cutoff and returns how many
// were removed.
func (c *Catalog) Evict(before time.Time) int {
	kept := c.events[:0]
	for _, e := range c.events {
		if e.updated.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	n := len(c.events) - len(kept)
	clear(c.events[len(kept):])
	c.events = kept
	return n
}
