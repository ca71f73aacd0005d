package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	c := NewManualClock(Epoch)
	assert.Equal(t, Epoch, c.Now())

	assert.Equal(t, Epoch.Add(time.Minute), c.Advance(time.Minute))
	assert.Equal(t, Epoch.Add(time.Minute), c.Now())

	c.Set(Epoch)
	assert.Equal(t, Epoch, c.Now())
}

func TestManualClock_ThreadSafe(t *testing.T) {
	c := NewManualClock(Epoch)
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(goroutines*time.Second), c.Now())
}
