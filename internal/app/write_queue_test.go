package app

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWriteQueuePreservesOrder(t *testing.T) {
	q := newWriteQueue()
	defer q.close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		q.enqueue(func(context.Context) {
			// Jobs that land out of order would reorder remote updates and
			// let a stale index overwrite a newer one.
			time.Sleep(time.Millisecond)
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	q.flush()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("expected 50 jobs, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran out of order (got %d)", i, v)
		}
	}
}

func TestWriteQueueFlushWaitsForPending(t *testing.T) {
	q := newWriteQueue()
	defer q.close()

	done := false
	q.enqueue(func(context.Context) {
		time.Sleep(10 * time.Millisecond)
		done = true
	})
	q.flush()
	if !done {
		t.Fatalf("flush returned before pending job finished")
	}
}

func TestWriteQueueEnqueueAfterCloseRunsInline(t *testing.T) {
	q := newWriteQueue()
	q.close()

	ran := false
	q.enqueue(func(context.Context) { ran = true })
	if !ran {
		t.Fatalf("job after close should run inline")
	}
	// A second close is a harmless no-op.
	q.close()
}
