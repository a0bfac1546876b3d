package audio

import "sync"

// SampleQueue is an unbounded FIFO of samples shared between a capture
// producer and a frame consumer. The producer appends chunks of any size;
// the consumer removes whole frames from the front. All methods are safe for
// concurrent use.
type SampleQueue struct {
	mu sync.Mutex
	// buf[head:] holds the buffered samples. Pops advance head; the live
	// tail is moved to the front only once head passes half of cap(buf), so
	// draining a backlog costs linear time overall.
	buf    []int16
	head   int
	notify chan struct{}
}

// NewSampleQueue returns an empty queue.
func NewSampleQueue() *SampleQueue {
	return &SampleQueue{notify: make(chan struct{}, 1)}
}

// Append adds samples to the back of the queue and signals [Notify]
// listeners.
func (q *SampleQueue) Append(samples []int16) {
	if len(samples) == 0 {
		return
	}
	q.mu.Lock()
	q.buf = append(q.buf, samples...)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// PopFrame removes the first n samples and copies them into dst, which must
// have length n. It reports false and leaves the queue untouched when fewer
// than n samples are buffered.
func (q *SampleQueue) PopFrame(dst []int16) bool {
	n := len(dst)
	q.mu.Lock()
	defer q.mu.Unlock()
	if n == 0 || len(q.buf)-q.head < n {
		return false
	}
	copy(dst, q.buf[q.head:q.head+n])
	q.head += n
	switch {
	case q.head == len(q.buf):
		q.buf, q.head = q.buf[:0], 0
	case q.head > cap(q.buf)/2:
		rest := copy(q.buf, q.buf[q.head:])
		q.buf, q.head = q.buf[:rest], 0
	}
	return true
}

// Len returns the number of buffered samples.
func (q *SampleQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) - q.head
}

// Reset discards all buffered samples and returns how many were dropped.
func (q *SampleQueue) Reset() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.buf) - q.head
	q.buf, q.head = q.buf[:0], 0
	return n
}

// Notify returns a channel that receives a value after samples are appended.
// Notifications coalesce: a single receive may cover several appends.
func (q *SampleQueue) Notify() <-chan struct{} {
	return q.notify
}
