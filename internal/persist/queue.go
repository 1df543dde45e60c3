package persist

import (
	"context"
	"sync"
	"time"
)

type item struct {
	roomID string
	raw    []byte
}

// queue is an unbounded FIFO with a single consumer. Enqueue never blocks;
// the trade-off is that pending events are lost if the process dies.
type queue struct {
	mu    sync.Mutex
	items []item
	wake  chan struct{}
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

func (q *queue) push(it item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pop waits up to wait for the next item. The bool is false on timeout or
// context cancellation.
func (q *queue) pop(ctx context.Context, wait time.Duration) (item, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return it, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
			// something was pushed, or a stale wakeup; re-check
		case <-timer.C:
			return item{}, false
		case <-ctx.Done():
			return item{}, false
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
