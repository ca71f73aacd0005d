package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scocto/scoctoloc/internal/testutil"
)

func TestWallClock_UTC(t *testing.T) {
	now := WallClock{}.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

func TestPlaybackClock_CreationTime(t *testing.T) {
	c := NewPlaybackClock(false)
	assert.True(t, c.Now().IsZero(), "new clock starts at zero")

	c.Observe(testutil.Pick("p1", "S01", 0, 5*time.Second))
	assert.Equal(t, testutil.Epoch.Add(5*time.Second), c.Now())

	// An older creation time never moves the clock back.
	c.Observe(testutil.Pick("p2", "S02", -time.Minute, time.Second))
	assert.Equal(t, testutil.Epoch.Add(5*time.Second), c.Now())
}

func TestPlaybackClock_PickTime(t *testing.T) {
	c := NewPlaybackClock(true)
	c.Observe(testutil.Pick("p1", "S01", 10*time.Second, time.Hour))
	assert.Equal(t, testutil.Epoch.Add(10*time.Second), c.Now())
}

func TestPlaybackClock_AdvanceTo(t *testing.T) {
	c := NewPlaybackClock(false)
	c.AdvanceTo(testutil.Epoch)
	c.AdvanceTo(testutil.Epoch.Add(-time.Hour))
	assert.Equal(t, testutil.Epoch, c.Now())
}

func TestPlaybackClock_ThreadSafe(t *testing.T) {
	c := NewPlaybackClock(false)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.AdvanceTo(testutil.Epoch.Add(time.Duration(i) * time.Second))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, testutil.Epoch.Add(99*time.Second), c.Now())
}
