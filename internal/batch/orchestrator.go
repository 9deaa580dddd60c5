package batch

import (
	"fmt"
	"log"
	"time"
)

// RunOptions configures one batch run. Select and Processor come from the
// driver (classification or verification); the driver resolves its own
// configuration (templates, grammar, model alias) before calling Run so a
// configuration failure never populates the queue.
type RunOptions struct {
	Label     string // "classification" or "verification", for logs
	Select    func() ([]string, error)
	Processor Processor
	Workers   int
	Shutdown  *ShutdownFlag

	// ProgressSink, when set, observes every progress report. Used by
	// the web embedding for its live status endpoint.
	ProgressSink func(processed, total int)
}

// Summary reports how a batch run ended.
type Summary struct {
	Label     string
	Total     int
	Processed int
	Cancelled bool
	Elapsed   time.Duration
}

// Run selects the work items, populates the queue (items first, then one
// poison pill per worker), runs the pool to completion and reports. An
// empty selection is a no-op success.
func Run(opts RunOptions) (*Summary, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Shutdown == nil {
		opts.Shutdown = NewShutdownFlag()
	}

	ids, err := opts.Select()
	if err != nil {
		return nil, fmt.Errorf("failed to select papers for %s: %w", opts.Label, err)
	}
	total := len(ids)
	log.Printf("[BATCH] %s: %d paper(s) selected", opts.Label, total)
	if total == 0 {
		return &Summary{Label: opts.Label, Elapsed: 0}, nil
	}

	queue := NewQueue(total + opts.Workers)
	for _, id := range ids {
		queue.Enqueue(Work(id))
	}
	for i := 0; i < opts.Workers; i++ {
		queue.Enqueue(Stop())
	}

	progress := NewProgress(total)
	if opts.ProgressSink != nil {
		progress.SetSink(opts.ProgressSink)
		opts.ProgressSink(0, total)
	}
	dispatcher := NewDispatcher(opts.Workers, queue, opts.Shutdown, progress)

	log.Printf("[BATCH] %s: starting %d workers", opts.Label, opts.Workers)
	start := time.Now()
	dispatcher.Run(opts.Processor)

	summary := &Summary{
		Label:     opts.Label,
		Total:     total,
		Processed: progress.Processed(),
		Cancelled: opts.Shutdown.IsSet(),
		Elapsed:   time.Since(start),
	}
	summary.Log()
	return summary, nil
}

// Log prints the end-of-run report.
func (s *Summary) Log() {
	log.Printf("--- %s summary ---", s.Label)
	log.Printf("papers processed: %d/%d", s.Processed, s.Total)
	log.Printf("time taken: %.2f seconds", s.Elapsed.Seconds())
	if s.Cancelled {
		log.Printf("processing was stopped by user request")
	} else {
		log.Printf("%s complete", s.Label)
	}
}
