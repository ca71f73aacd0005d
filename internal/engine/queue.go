package engine

import (
	"sync"

	"github.com/scocto/scoctoloc/internal/model"
)

// intakeQueue is a thread-safe FIFO of picks received from the transport.
//
// Transport callbacks enqueue from their own goroutines; the pipeline's Run
// loop is the only consumer. The signal channel lets Run wait on new picks
// and context cancellation in one select.
type intakeQueue struct {
	mu     sync.Mutex
	picks  []model.Pick
	closed bool
	signal chan struct{} // buffered, size 1
}

func newIntakeQueue() *intakeQueue {
	return &intakeQueue{
		picks:  make([]model.Pick, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a pick. Returns false if the queue is closed.
func (q *intakeQueue) Enqueue(p model.Pick) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.picks = append(q.picks, p)

	// Non-blocking: a pending signal already covers this pick.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front pick without blocking.
func (q *intakeQueue) TryDequeue() (model.Pick, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.picks) == 0 {
		return model.Pick{}, false
	}
	p := q.picks[0]
	q.picks[0] = model.Pick{}
	if len(q.picks) == 1 {
		q.picks = q.picks[:0]
	} else {
		q.picks = q.picks[1:]
	}
	return p, true
}

// Wait returns a channel that fires when picks may be available. It is
// closed when the queue is closed.
func (q *intakeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued picks.
func (q *intakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.picks)
}

// Closed reports whether Close was called.
func (q *intakeQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops intake and wakes the consumer.
func (q *intakeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
