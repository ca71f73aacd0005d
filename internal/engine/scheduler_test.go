package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/scocto/scoctoloc/internal/testutil"
)

func TestScheduler_Due(t *testing.T) {
	s := NewScheduler(10 * time.Second)
	s.Push(testutil.Pick("late", "S01", 5*time.Second, 0))
	s.Push(testutil.Pick("early", "S02", 0, 0))
	s.Push(testutil.Pick("later", "S03", 20*time.Second, 0))

	assert.Empty(t, s.Due(testutil.Epoch.Add(9*time.Second)))

	due := s.Due(testutil.Epoch.Add(15 * time.Second))
	assert.Equal(t, []string{"late", "early"}, ids(due), "released in queue order")
	assert.Equal(t, 1, s.Len())

	horizon, ok := s.Horizon()
	assert.True(t, ok)
	assert.Equal(t, testutil.Epoch.Add(30*time.Second), horizon)

	due = s.Due(testutil.Epoch.Add(30 * time.Second))
	assert.Equal(t, []string{"later"}, ids(due), "due exactly at time + delay")
	assert.Equal(t, 0, s.Len())

	_, ok = s.Horizon()
	assert.False(t, ok)
}

func TestScheduler_PushReplaces(t *testing.T) {
	s := NewScheduler(10 * time.Second)
	assert.False(t, s.Push(testutil.Pick("a", "S01", 0, 0)))
	assert.False(t, s.Push(testutil.Pick("b", "S02", time.Second, 0)))

	assert.True(t, s.Push(testutil.Pick("a", "S01", 5*time.Second, 0)), "known id")
	assert.Equal(t, 2, s.Len())

	assert.Empty(t, s.Due(testutil.Epoch.Add(10*time.Second)), "a now waits for its corrected time")
	due := s.Due(testutil.Epoch.Add(15 * time.Second))
	assert.Equal(t, []string{"a", "b"}, ids(due), "replacement keeps the queue position")
	assert.Equal(t, testutil.Epoch.Add(5*time.Second), due[0].Time)
}

func TestScheduler_DelayMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a pick is released at the first tick with now >= t + delay", prop.ForAll(
		func(offsets []int, delaySec int, tickSec int) bool {
			delay := time.Duration(delaySec) * time.Second
			s := NewScheduler(delay)
			for i, off := range offsets {
				s.Push(testutil.Pick(fmt.Sprintf("p%d", i), "S01", time.Duration(off)*time.Second, 0))
			}

			tick := time.Duration(tickSec) * time.Second
			end := testutil.Epoch.Add(400*time.Second + delay)
			for now := testutil.Epoch; !now.After(end); now = now.Add(tick) {
				for _, p := range s.Due(now) {
					due := p.Time.Add(delay)
					if now.Before(due) {
						return false
					}
					if now.Sub(due) >= tick {
						return false
					}
				}
			}
			return s.Len() == 0
		},
		gen.SliceOf(gen.IntRange(0, 300)),
		gen.IntRange(0, 60),
		gen.IntRange(1, 7),
	))

	properties.TestingRun(t)
}
