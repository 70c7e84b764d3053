// Package indicatortest provides an in-memory indicator.Driver that records
// every level written to it.
package indicatortest

import (
	"sync"

	"github.com/alertbeacon/alertbeacon/internal/indicator"
)

// Recorder is a Driver that remembers the levels it was given.
type Recorder struct {
	mu     sync.Mutex
	levels []bool
	level  bool
	err    error
	closed bool
}

var _ indicator.Driver = &Recorder{}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SetOutput(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.levels = append(r.levels, on)
	r.level = on
	return nil
}

func (r *Recorder) Info() indicator.Info {
	return indicator.Info{Type: "recorder", Available: true, Pin: 18}
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.level = false
	return nil
}

// FailWith makes subsequent SetOutput calls return err (nil restores).
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Level returns the last level written.
func (r *Recorder) Level() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// Levels returns a copy of every level written so far.
func (r *Recorder) Levels() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.levels))
	copy(out, r.levels)
	return out
}

// Writes returns the number of SetOutput calls recorded.
func (r *Recorder) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.levels)
}

// Reset forgets the recorded history but keeps the current level.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = nil
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
