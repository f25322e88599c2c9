package connection

import "sync"

// Queue buffers outbound frames while the transport is down. Frames leave the
// queue in enqueue order and only after they were written successfully.
type Queue struct {
	mu      sync.Mutex
	items   []string
	limit   int
	dropped uint64
}

// NewQueue creates a queue. limit <= 0 means unbounded; otherwise the oldest
// frame is evicted when the queue is full.
func NewQueue(limit int) *Queue {
	if limit < 0 {
		limit = 0
	}
	return &Queue{limit: limit}
}

// Enqueue appends msg to the tail. It reports whether an older frame was
// evicted to make room.
func (q *Queue) Enqueue(msg string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if q.limit > 0 && len(q.items) >= q.limit {
		q.items[0] = ""
		q.items = q.items[1:]
		q.dropped++
		evicted = true
	}
	q.items = append(q.items, msg)
	return evicted
}

// Drain hands queued frames to send in FIFO order, removing each one after
// send returns nil. It stops at the first error and leaves the failed frame at
// the head. The queue is locked for the whole drain.
func (q *Queue) Drain(send func(msg string) error) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sent := 0
	for len(q.items) > 0 {
		if err := send(q.items[0]); err != nil {
			return sent, err
		}
		q.items[0] = ""
		q.items = q.items[1:]
		sent++
	}
	q.items = nil
	return sent, nil
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many frames were evicted by the size limit.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
