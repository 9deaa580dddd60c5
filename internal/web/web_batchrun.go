package web

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/paperdex/paperdex/internal/batch"
	"github.com/paperdex/paperdex/internal/config"
	"github.com/paperdex/paperdex/internal/database"
	"github.com/paperdex/paperdex/internal/llm"
	"github.com/paperdex/paperdex/internal/processor"
)

// ErrBatchBusy signals that a run is already in flight.
var ErrBatchBusy = fmt.Errorf("a batch run is already in progress")

// BatchRunner owns batch runs triggered over HTTP. At most one run at a
// time; cancellation is always Cooperative because a request handler must
// never take the process down.
type BatchRunner struct {
	db     *database.Database
	client *llm.Client
	cfg    *config.MainConfig

	mux       sync.Mutex
	running   bool
	label     string
	processed int
	total     int
	started   time.Time
	shutdown  *batch.ShutdownFlag
	last      *batch.Summary
	lastErr   string
}

// NewBatchRunner creates an idle runner.
func NewBatchRunner(db *database.Database, client *llm.Client, cfg *config.MainConfig) *BatchRunner {
	return &BatchRunner{db: db, client: client, cfg: cfg}
}

// BatchStatus is the live state returned by the status endpoint.
type BatchStatus struct {
	Running   bool   `json:"running"`
	Label     string `json:"label,omitempty"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Cancelled bool   `json:"cancelled"`
	Elapsed   string `json:"elapsed,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Status reports the current or most recent run.
func (r *BatchRunner) Status() BatchStatus {
	r.mux.Lock()
	defer r.mux.Unlock()

	status := BatchStatus{
		Running:   r.running,
		Label:     r.label,
		Processed: r.processed,
		Total:     r.total,
		LastError: r.lastErr,
	}
	if r.running {
		status.Cancelled = r.shutdown.IsSet()
		status.Elapsed = time.Since(r.started).Round(time.Second).String()
	} else if r.last != nil {
		status.Cancelled = r.last.Cancelled
		status.Elapsed = r.last.Elapsed.Round(time.Second).String()
	}
	return status
}

// StartClassify launches a classification run in the background.
func (r *BatchRunner) StartClassify(mode database.SelectMode, paperID string) error {
	return r.start("classification", mode, paperID, func(shutdown *batch.ShutdownFlag) (batch.RunOptions, error) {
		classifier, err := processor.NewClassifier(r.db, r.client, r.cfg.Batch.PromptTemplate, r.cfg.Batch.GrammarFile, shutdown)
		if err != nil {
			return batch.RunOptions{}, err
		}
		return batch.RunOptions{
			Label: "classification",
			Select: func() ([]string, error) {
				return r.db.ListClassifyIDs(mode, paperID)
			},
			Processor: classifier,
			Workers:   r.cfg.Batch.Workers,
			Shutdown:  shutdown,
		}, nil
	})
}

// StartVerify launches a verification run in the background.
func (r *BatchRunner) StartVerify(mode database.SelectMode, paperID string) error {
	return r.start("verification", mode, paperID, func(shutdown *batch.ShutdownFlag) (batch.RunOptions, error) {
		verifier, err := processor.NewVerifier(r.db, r.client, r.cfg.Batch.VerifyTemplate, r.cfg.Batch.GrammarFile, shutdown)
		if err != nil {
			return batch.RunOptions{}, err
		}
		return batch.RunOptions{
			Label: "verification",
			Select: func() ([]string, error) {
				return r.db.ListVerifyIDs(mode, paperID)
			},
			Processor: verifier,
			Workers:   r.cfg.Batch.Workers,
			Shutdown:  shutdown,
		}, nil
	})
}

// start claims the runner, builds the run (template/grammar/model
// resolution happens here, so configuration errors surface to the caller
// with zero jobs run) and launches it in the background.
func (r *BatchRunner) start(label string, mode database.SelectMode, paperID string, build func(*batch.ShutdownFlag) (batch.RunOptions, error)) error {
	if !database.ValidSelectMode(mode) {
		return fmt.Errorf("unknown selection mode '%s'", mode)
	}
	if mode == database.SelectByID && paperID == "" {
		return fmt.Errorf("mode 'id' requires a paper_id")
	}

	r.mux.Lock()
	if r.running {
		r.mux.Unlock()
		return ErrBatchBusy
	}
	shutdown := batch.NewShutdownFlag()
	r.running = true
	r.label = label
	r.processed = 0
	r.total = 0
	r.started = time.Now()
	r.shutdown = shutdown
	r.lastErr = ""
	r.mux.Unlock()

	opts, err := build(shutdown)
	if err != nil {
		r.mux.Lock()
		r.running = false
		r.lastErr = err.Error()
		r.mux.Unlock()
		return err
	}
	opts.ProgressSink = func(processed, total int) {
		r.mux.Lock()
		r.processed = processed
		r.total = total
		r.mux.Unlock()
	}

	go func() {
		summary, err := batch.Run(opts)

		r.mux.Lock()
		r.running = false
		r.last = summary
		if err != nil {
			r.lastErr = err.Error()
			log.Printf("[WEB] %s run failed: %v", label, err)
		}
		r.mux.Unlock()
	}()
	return nil
}

// Cancel requests cooperative shutdown of the current run. Reports
// whether a run was in flight.
func (r *BatchRunner) Cancel() bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	if !r.running {
		return false
	}
	r.shutdown.Request()
	log.Printf("[WEB] cancellation requested for %s run", r.label)
	return true
}
