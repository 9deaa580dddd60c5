package batch

import (
	"log"
	"sync"
	"time"

	"github.com/paperdex/paperdex/internal/config"
)

// Outcome classifies how one item was handled. Every outcome counts as
// processed; recovery for failures is a later 'remaining' run, not an
// in-run retry.
type Outcome int

const (
	OutcomeUpdated Outcome = iota
	OutcomeNoChange
	OutcomeNotFound
	OutcomeParseError
	OutcomeInferenceFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeNoChange:
		return "no change"
	case OutcomeNotFound:
		return "not found"
	case OutcomeParseError:
		return "parse error"
	case OutcomeInferenceFailure:
		return "inference failure"
	}
	return "unknown"
}

// Processor handles one item end to end: load, prompt, inference, merge.
// Implementations must never panic past this boundary for per-item
// trouble; everything per-item resolves to an Outcome.
type Processor interface {
	Process(paperID string) Outcome
}

// worker states; terminated is absorbing.
type workerState int

const (
	stateWaitingForWork workerState = iota
	stateProcessing
	stateTerminated
)

// Dispatcher owns a fixed number of workers draining one queue. N mirrors
// the inference server's slot count (config.DefaultWorkers rationale).
type Dispatcher struct {
	workers  int
	queue    *Queue
	shutdown *ShutdownFlag
	progress *Progress
}

// NewDispatcher wires a pool over the shared queue, flag and counter.
func NewDispatcher(workers int, queue *Queue, shutdown *ShutdownFlag, progress *Progress) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{workers: workers, queue: queue, shutdown: shutdown, progress: progress}
}

// Run spawns the workers and blocks until the queue is drained and all
// workers terminated, or shutdown was observed, whichever first; after a
// shutdown it still waits (bounded) for in-flight workers to finish.
func (d *Dispatcher) Run(proc Processor) {
	var wg sync.WaitGroup
	wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			d.workerLoop(workerID, proc)
		}(i + 1)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		select {
		case <-done:
			return
		case <-time.After(100 * time.Millisecond):
			if !d.shutdown.IsSet() {
				continue
			}
			// cancelling: a worker blocked inside a network call cannot
			// be interrupted, it completes or times out on its own
			select {
			case <-done:
			case <-time.After(config.DrainTimeout):
				log.Printf("[BATCH] WARN: drain timeout after %v, abandoning in-flight workers", config.DrainTimeout)
			}
			return
		}
	}
}

// workerLoop runs one worker's state machine until it terminates.
func (d *Dispatcher) workerLoop(workerID int, proc Processor) {
	state := stateWaitingForWork
	var current Job

	for {
		switch state {
		case stateWaitingForWork:
			if d.shutdown.IsSet() {
				state = stateTerminated
				continue
			}
			job, ok := d.queue.Dequeue(config.DequeueTimeout)
			if !ok {
				continue // timeout, re-check the flag
			}
			if job.IsStop() {
				// poison pill: terminate without requeuing, never counted
				state = stateTerminated
				continue
			}
			if d.shutdown.IsSet() {
				// dequeued a real job but we are cancelling; it is still
				// accounted for so processed/total reconciles with queue
				// size minus poison pills
				d.progress.Report(d.progress.Increment())
				state = stateTerminated
				continue
			}
			current = job
			state = stateProcessing

		case stateProcessing:
			d.processOne(workerID, proc, current.PaperID)
			state = stateWaitingForWork

		case stateTerminated:
			return
		}
	}
}

// processOne runs the processor on one id and counts it exactly once. A
// panic from the processor is a bug, but it must not take the worker
// down with it: log it, count the item, move on.
func (d *Dispatcher) processOne(workerID int, proc Processor, paperID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Worker-%d] PANIC processing paper '%s': %v", workerID, paperID, r)
		}
		d.progress.Report(d.progress.Increment())
	}()

	log.Printf("[Worker-%d] processing paper '%s'", workerID, paperID)
	outcome := proc.Process(paperID)
	log.Printf("[Worker-%d] paper '%s': %s", workerID, paperID, outcome)
}
