package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator mints origin identifiers within a method namespace, e.g.
// "Origin/PyOcto/000000001".
//
// Implemented by SequenceGenerator (playback, tests) and UUIDv7Generator
// (online).
type IDGenerator interface {
	NewID(methodID string) string
}

// SequenceGenerator mints "Origin/<method>/%09d" identifiers from one
// counter. Given the same input, playback produces the same identifiers.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu  sync.Mutex
	seq int64
}

// NewSequenceGenerator creates a generator whose first identifier uses
// sequence number start+1.
func NewSequenceGenerator(start int64) *SequenceGenerator {
	return &SequenceGenerator{seq: start}
}

// NewID returns the next identifier.
func (g *SequenceGenerator) NewID(methodID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("Origin/%s/%09d", methodID, g.seq)
}

// UUIDv7Generator mints "Origin/<method>/<uuidv7>" identifiers. UUIDv7
// embeds a timestamp, so identifiers sort by creation time.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID returns a fresh identifier.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewID(methodID string) string {
	return "Origin/" + methodID + "/" + uuid.Must(uuid.NewV7()).String()
}
