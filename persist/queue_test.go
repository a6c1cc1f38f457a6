package persist

import (
	"sync"
	"testing"
)

func TestSerialQueueRunsJobsInSubmissionOrder(t *testing.T) {
	t.Parallel()

	q := newSerialQueue()
	defer q.close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		if !q.perform(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}) {
			t.Fatal("perform rejected job on open queue")
		}
	}
	q.performWait(func() {})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("ran %d jobs, want 50", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
}

func TestSerialQueuePerformWaitBlocksUntilJobRan(t *testing.T) {
	t.Parallel()

	q := newSerialQueue()
	defer q.close()

	ran := false
	if !q.performWait(func() { ran = true }) {
		t.Fatal("performWait rejected job on open queue")
	}
	if !ran {
		t.Fatal("performWait returned before job ran")
	}
}

func TestSerialQueueCloseDrainsQueuedJobs(t *testing.T) {
	t.Parallel()

	q := newSerialQueue()
	var mu sync.Mutex
	count := 0
	for i := 0; i < 20; i++ {
		q.perform(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	q.close()

	mu.Lock()
	defer mu.Unlock()
	if count != 20 {
		t.Fatalf("drained %d jobs, want 20", count)
	}
}

func TestSerialQueueRejectsJobsAfterClose(t *testing.T) {
	t.Parallel()

	q := newSerialQueue()
	q.close()
	if q.perform(func() {}) {
		t.Fatal("perform accepted job on closed queue")
	}
	if q.performWait(func() {}) {
		t.Fatal("performWait accepted job on closed queue")
	}
}

func TestSerialQueueCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	q := newSerialQueue()
	q.close()
	q.close()
}
