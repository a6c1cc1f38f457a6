package persist

import "sync"

// queueDepth bounds how many jobs a session queue buffers before submitters
// block. Submissions only ever wait on ancestors, so a full queue drains.
const queueDepth = 64

// serialQueue is the execution context a session is permanently bound to:
// a single goroutine draining a FIFO job channel. Jobs submitted with
// perform run in submission order; performWait additionally blocks the
// submitter until the job returns.
//
// Waits must only flow from a child session toward its ancestors. The queue
// graph is then acyclic, so a performWait can never deadlock.
type serialQueue struct {
	mu     sync.Mutex
	closed bool
	jobs   chan func()
	done   chan struct{}
}

func newSerialQueue() *serialQueue {
	q := &serialQueue{
		jobs: make(chan func(), queueDepth),
		done: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *serialQueue) loop() {
	for job := range q.jobs {
		job()
	}
	close(q.done)
}

// perform schedules job on the queue. It reports false once the queue is
// closed.
func (q *serialQueue) perform(job func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.jobs <- job
	return true
}

// performWait schedules job and blocks until it has run. It must not be
// called from the queue's own goroutine.
func (q *serialQueue) performWait(job func()) bool {
	ran := make(chan struct{})
	if !q.perform(func() {
		defer close(ran)
		job()
	}) {
		return false
	}
	<-ran
	return true
}

// close stops accepting jobs, drains the ones already queued, and waits for
// the loop to exit.
func (q *serialQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	<-q.done
}
