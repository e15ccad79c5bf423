package broker

import "sync"

// Serializer is a single-lane FIFO pipeline for credential operations. The
// underlying identity flows are not safe for concurrent interactive prompts
// or concurrent cache writes, so at most one operation runs at a time:
// operation N+1 does not start until operation N has settled. A failing
// operation surfaces its error to its own caller only; the lane itself never
// enters a failed state.
type Serializer struct {
	mu      sync.Mutex
	tail    chan struct{}
	pending int
}

// Do runs op once every previously enqueued operation has settled, then
// returns. Each waiting caller chains on its predecessor, so execution order
// is exactly enqueue order. Do must not be called re-entrantly from inside
// an operation; that would deadlock the lane.
func (q *Serializer) Do(op func()) {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.pending++
	q.mu.Unlock()

	if prev != nil {
		<-prev
	}
	defer func() {
		q.mu.Lock()
		q.pending--
		if q.tail == done {
			q.tail = nil
		}
		q.mu.Unlock()
		close(done)
	}()
	op()
}

// Pending returns the number of operations enqueued or running.
func (q *Serializer) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}
