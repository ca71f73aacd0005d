package engine

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator(0)
	assert.Equal(t, "Origin/PyOcto/000000001", g.NewID("PyOcto"))
	assert.Equal(t, "Origin/LOCSAT/000000002", g.NewID("LOCSAT"))

	resumed := NewSequenceGenerator(41)
	assert.Equal(t, "Origin/PyOcto/000000042", resumed.NewID("PyOcto"))
}

func TestSequenceGenerator_ThreadSafe(t *testing.T) {
	g := NewSequenceGenerator(0)
	const goroutines = 20
	const calls = 50

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				id := g.NewID("X")
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, goroutines*calls, "all ids should be unique")
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.NewID("PyOcto"), g.NewID("PyOcto")

	assert.True(t, strings.HasPrefix(a, "Origin/PyOcto/"))
	assert.Len(t, strings.TrimPrefix(a, "Origin/PyOcto/"), 36)
	assert.NotEqual(t, a, b)
}
