package engine

import (
	"sync"
	"time"

	"github.com/scocto/scoctoloc/internal/model"
)

// Clock supplies the pipeline's notion of "now". It drives the delay
// scheduler, creation timestamps and retention.
//
// Online processing uses WallClock. Playback uses PlaybackClock, which only
// advances as picks are fed in, so the same input always produces the same
// sequence of scheduler releases.
type Clock interface {
	Now() time.Time
}

// WallClock reads the system clock in UTC.
type WallClock struct{}

// Now returns the current UTC time.
func (WallClock) Now() time.Time {
	return time.Now().UTC()
}

// PlaybackClock is a simulated clock whose time is the maximum creation
// time (or, with UsePickTime, the maximum arrival time) of the picks
// observed so far. It never moves backwards.
//
// Thread-safety: safe for concurrent use, although playback normally
// drives it from one goroutine.
type PlaybackClock struct {
	mu          sync.Mutex
	now         time.Time
	usePickTime bool
}

// NewPlaybackClock creates a playback clock at the zero time.
func NewPlaybackClock(usePickTime bool) *PlaybackClock {
	return &PlaybackClock{usePickTime: usePickTime}
}

// Now returns the current simulated time.
func (c *PlaybackClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// PickTime returns the time a pick contributes to the clock.
func (c *PlaybackClock) PickTime(p model.Pick) time.Time {
	if c.usePickTime {
		return p.Time
	}
	return p.Created()
}

// Observe advances the clock to the pick's time if that is later.
func (c *PlaybackClock) Observe(p model.Pick) {
	c.AdvanceTo(c.PickTime(p))
}

// AdvanceTo moves the clock forward to t. Earlier times are ignored.
func (c *PlaybackClock) AdvanceTo(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t.UTC()
	}
}
