package engine

import (
	"time"

	"github.com/scocto/scoctoloc/internal/model"
)

// Scheduler holds stored picks until the quiescence delay has passed, so
// that picks from neighbouring stations have time to arrive before an
// association attempt.
//
// Entries are released in the order they were queued. Owned by the
// pipeline; not safe for concurrent use.
type Scheduler struct {
	delay   time.Duration
	pending []model.Pick
}

// NewScheduler creates a scheduler with a constant delay.
func NewScheduler(delay time.Duration) *Scheduler {
	return &Scheduler{delay: delay}
}

// Push queues a pick. A pick whose ID is already queued replaces that
// entry in place and keeps its queue position; Push then reports true.
func (s *Scheduler) Push(p model.Pick) bool {
	for i := range s.pending {
		if s.pending[i].ID == p.ID {
			s.pending[i] = p
			return true
		}
	}
	s.pending = append(s.pending, p)
	return false
}

// Len returns the number of queued picks.
func (s *Scheduler) Len() int {
	return len(s.pending)
}

// Due releases, in queue order, every pick with now - time >= delay.
// Picks not yet due stay queued in their original order.
func (s *Scheduler) Due(now time.Time) []model.Pick {
	var due []model.Pick
	kept := s.pending[:0]
	for _, p := range s.pending {
		if now.Sub(p.Time) >= s.delay {
			due = append(due, p)
		} else {
			kept = append(kept, p)
		}
	}
	clear(s.pending[len(kept):])
	s.pending = kept
	return due
}

// Horizon returns the time at which the last queued pick becomes due.
// Returns false when nothing is queued.
func (s *Scheduler) Horizon() (time.Time, bool) {
	if len(s.pending) == 0 {
		return time.Time{}, false
	}
	latest := s.pending[0].Time
	for _, p := range s.pending[1:] {
		if p.Time.After(latest) {
			latest = p.Time
		}
	}
	return latest.Add(s.delay), true
}
