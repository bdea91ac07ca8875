package ipc

import (
	"context"
	"sync"
)

// item is one decoded line, or the error decoding it.
type item struct {
	msg Inbound
	err error
}

// queue is an unbounded FIFO with a single producer (the stdout reader)
// and a single consumer (Receive). The producer never blocks.
type queue struct {
	mu     sync.Mutex
	items  []item
	closed bool
	ready  chan struct{} // capacity 1; signalled on push and close
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

func (q *queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *queue) push(it item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()
	q.signal()
}

// close marks the end of input. Items already queued are still delivered.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// pop blocks until an item is available, the queue is closed and drained
// (ok == false), or ctx is done.
func (q *queue) pop(ctx context.Context) (it item, ok bool, err error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it = q.items[0]
			q.items[0] = item{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return it, true, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return item{}, false, nil
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return item{}, false, ctx.Err()
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
