package app

import (
	"context"
	"sync"
)

// writeQueue serializes persistence calls for a single team record. Local
// state always mutates first; the queue guarantees the remote updates land in
// the same order, so a stale currentQuestion can never overwrite a newer one.
type writeQueue struct {
	mu     sync.Mutex
	closed bool
	jobs   chan func(context.Context)
	done   chan struct{}
}

func newWriteQueue() *writeQueue {
	q := &writeQueue{
		jobs: make(chan func(context.Context), 32),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *writeQueue) run() {
	defer close(q.done)
	for job := range q.jobs {
		job(context.Background())
	}
}

// enqueue submits a job, blocking when the buffer is full so ordering is
// preserved under backpressure. After close the job runs inline.
func (q *writeQueue) enqueue(job func(context.Context)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		job(context.Background())
		return
	}
	// Sending under the lock keeps close from racing a blocked send; the
	// runner drains without touching the lock, so this cannot deadlock.
	q.jobs <- job
}

// flush blocks until every job enqueued before the call has finished.
func (q *writeQueue) flush() {
	marker := make(chan struct{})
	q.enqueue(func(context.Context) { close(marker) })
	<-marker
}

// close drains outstanding jobs and stops the writer goroutine.
func (q *writeQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	<-q.done
}
