package batch

import (
	"log"
	"sync"
)

// Progress counts fully-handled jobs against the batch size computed at
// selection time. Incremented exactly once per dequeued real job,
// whatever its outcome; poison pills never count.
type Progress struct {
	mux       sync.Mutex
	processed int
	total     int
	sink      func(processed, total int)
}

// NewProgress creates a counter for a batch of total items.
func NewProgress(total int) *Progress {
	return &Progress{total: total}
}

// SetSink registers an observer called after every report, e.g. the web
// UI's live status endpoint. Must be set before workers start.
func (p *Progress) SetSink(sink func(processed, total int)) {
	p.sink = sink
}

// Increment records one handled job and returns the new count.
func (p *Progress) Increment() int {
	p.mux.Lock()
	p.processed++
	n := p.processed
	p.mux.Unlock()
	return n
}

// Processed returns the number of handled jobs so far.
func (p *Progress) Processed() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.processed
}

// Total returns the batch size computed at selection time.
func (p *Progress) Total() int {
	return p.total
}

// Report logs the running tally.
func (p *Progress) Report(count int) {
	log.Printf("[Progress] processed %d/%d papers", count, p.total)
	if p.sink != nil {
		p.sink(count, p.total)
	}
}
