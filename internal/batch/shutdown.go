// Package batch implements the concurrent task-dispatch core: a shared
// shutdown flag, a FIFO work queue with poison-pill termination, a
// fixed-size worker pool, and the batch orchestrator that drives them.
package batch

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Policy selects how an interrupt is honored.
type Policy int

const (
	// Cooperative sets the flag and returns; workers notice it at their
	// checkpoints and exit voluntarily, and the run drains before
	// reporting. The only safe choice when a batch is embedded in a
	// long-running server.
	Cooperative Policy = iota

	// Immediate sets the flag and kills the process without waiting for
	// workers. Fastest possible Ctrl-C response for interactive runs,
	// traded against the risk of interrupting an in-flight store write
	// mid-transaction. Known durability gap, kept on purpose.
	Immediate
)

func (p Policy) String() string {
	if p == Immediate {
		return "immediate"
	}
	return "cooperative"
}

// ShutdownFlag records the single irreversible transition from running to
// cancelling. Reads and writes go through one mutex so a check is never
// torn; the flag never reverts.
type ShutdownFlag struct {
	mux sync.Mutex
	set bool
}

// NewShutdownFlag returns a flag in the running state.
func NewShutdownFlag() *ShutdownFlag {
	return &ShutdownFlag{}
}

// Request transitions to cancelling. Idempotent and safe to call from any
// goroutine any number of times.
func (f *ShutdownFlag) Request() {
	f.mux.Lock()
	f.set = true
	f.mux.Unlock()
}

// IsSet reports whether shutdown has been requested.
func (f *ShutdownFlag) IsSet() bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.set
}

// HandleInterrupt installs a SIGINT/SIGTERM handler that requests
// shutdown under the given policy. Immediate exits the process right
// after setting the flag.
func HandleInterrupt(flag *ShutdownFlag, policy Policy) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigs {
			log.Printf("[BATCH] interrupt received, requesting shutdown (policy: %s)", policy)
			flag.Request()
			if policy == Immediate {
				os.Exit(1)
			}
		}
	}()
}
