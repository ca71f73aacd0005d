package engine

import (
	"slices"
	"time"

	"github.com/scocto/scoctoloc/internal/model"
)

// PickStore holds accepted picks ordered by arrival time. Ties are broken
// by pick ID so range queries are deterministic.
//
// Owned by the pipeline; not safe for concurrent use.
type PickStore struct {
	picks []model.Pick
	index map[string]model.Pick
}

// NewPickStore creates an empty store.
func NewPickStore() *PickStore {
	return &PickStore{index: make(map[string]model.Pick)}
}

func comparePicks(a, b model.Pick) int {
	if c := a.Time.Compare(b.Time); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// Store inserts p. A pick with the same ID replaces the stored one.
// Reports whether an existing pick was replaced.
func (s *PickStore) Store(p model.Pick) bool {
	old, replaced := s.index[p.ID]
	if replaced {
		s.remove(old)
	}
	i, _ := slices.BinarySearchFunc(s.picks, p, comparePicks)
	s.picks = slices.Insert(s.picks, i, p)
	s.index[p.ID] = p
	return replaced
}

func (s *PickStore) remove(p model.Pick) {
	if i, found := slices.BinarySearchFunc(s.picks, p, comparePicks); found {
		s.picks = slices.Delete(s.picks, i, i+1)
	}
	delete(s.index, p.ID)
}

// Get returns the stored pick with the given ID.
func (s *PickStore) Get(id string) (model.Pick, bool) {
	p, ok := s.index[id]
	return p, ok
}

// Len returns the number of stored picks.
func (s *PickStore) Len() int {
	return len(s.picks)
}

// Between returns the picks with tmin <= time <= tmax in ascending order.
func (s *PickStore) Between(tmin, tmax time.Time) []model.Pick {
	lo, _ := slices.BinarySearchFunc(s.picks, tmin, func(p model.Pick, t time.Time) int {
		return p.Time.Compare(t)
	})
	hi := lo
	for hi < len(s.picks) && !s.picks[hi].Time.After(tmax) {
		hi++
	}
	return slices.Clone(s.picks[lo:hi])
}

// All returns every stored pick in ascending order.
func (s *PickStore) All() []model.Pick {
	return slices.Clone(s.picks)
}

// Lookup returns the stored picks for the given IDs, keyed by ID. Unknown
// IDs are skipped.
func (s *PickStore) Lookup(ids []string) map[string]model.Pick {
	out := make(map[string]model.Pick, len(ids))
	for _, id := range ids {
		if p, ok := s.index[id]; ok {
			out[id] = p
		}
	}
	return out
}

// Evict removes picks with arrival time before the cutoff and returns how
// many were removed.
func (s *PickStore) Evict(before time.Time) int {
	n, _ := slices.BinarySearchFunc(s.picks, before, func(p model.Pick, t time.Time) int {
		return p.Time.Compare(t)
	})
	for _, p := range s.picks[:n] {
		delete(s.index, p.ID)
	}
	s.picks = slices.Delete(s.picks, 0, n)
	return n
}
