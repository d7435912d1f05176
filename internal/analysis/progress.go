// Package analysis holds the runner-times computation stages and the
// progress reporting they share.
package analysis

import "sync"

// Progress represents the progress of a runner-times computation
type Progress struct {
	Processed   int     // Door pairs searched
	Total       int     // Door pairs to search
	Unreachable int     // Door pairs without a path
	Percent     float64 // Progress percentage (0-100)
	Message     string  // Optional progress message
}

// ProgressFunc receives progress updates. It may be called from several
// goroutines, but never concurrently.
type ProgressFunc func(Progress)

// Tracker counts finished pair searches and forwards updates to a ProgressFunc
type Tracker struct {
	mu   sync.Mutex
	fn   ProgressFunc
	cur  Progress
	step int
}

// NewTracker creates a tracker for total pair searches. Updates are emitted
// roughly every 1% of progress; fn may be nil.
func NewTracker(total int, fn ProgressFunc) *Tracker {
	step := total / 100
	if step < 1 {
		step = 1
	}
	return &Tracker{fn: fn, cur: Progress{Total: total}, step: step}
}

// Done records one finished search
func (t *Tracker) Done(found bool, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cur.Processed++
	if !found {
		t.cur.Unreachable++
	}
	if t.cur.Total > 0 {
		t.cur.Percent = float64(t.cur.Processed) / float64(t.cur.Total) * 100.0
	}
	t.cur.Message = message

	if t.fn != nil && (t.cur.Processed%t.step == 0 || t.cur.Processed == t.cur.Total) {
		t.fn(t.cur)
	}
}

// Snapshot returns the current progress
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}
