package batch

import (
	"time"
)

// Job is one unit of work handed to the pool: either a paper id or a
// poison pill. The tagged variant avoids overloading an empty id as a
// sentinel, which could collide with a legitimate key.
type Job struct {
	PaperID string
	stop    bool
}

// Work wraps a paper id as a queue entry.
func Work(paperID string) Job {
	return Job{PaperID: paperID}
}

// Stop returns a poison pill. One is enqueued per worker after the real
// items so every worker has a guaranteed terminal wakeup independent of
// empty-queue detection.
func Stop() Job {
	return Job{stop: true}
}

// IsStop reports whether the job is a poison pill.
func (j Job) IsStop() bool {
	return j.stop
}

// Queue is a FIFO handout of Jobs to any number of concurrent consumers.
// Capacity is sized by the orchestrator to items plus poison pills, so
// Enqueue never blocks during population.
type Queue struct {
	ch chan Job
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan Job, capacity)}
}

// Enqueue adds a job. Must not be called beyond the queue's capacity.
func (q *Queue) Enqueue(j Job) {
	q.ch <- j
}

// Dequeue removes the oldest job, waiting up to timeout when the queue is
// empty. ok is false on timeout so the caller can re-check the shutdown
// flag instead of blocking forever.
func (q *Queue) Dequeue(timeout time.Duration) (Job, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case j := <-q.ch:
		return j, true
	case <-timer.C:
		return Job{}, false
	}
}

// Len reports the number of queued jobs.
func (q *Queue) Len() int {
	return len(q.ch)
}
