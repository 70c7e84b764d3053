package pattern

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/alertbeacon/alertbeacon/internal/indicator"
)

// Mode is the coarse indicator state.
type Mode string

const (
	ModeOff      Mode = "off"
	ModeBlinking Mode = "blinking"
	ModeOn       Mode = "on"
)

// State is a snapshot of the indicator.
type State struct {
	Mode      Mode      `json:"mode"`
	Owner     string    `json:"owner,omitempty"`
	Pattern   *Pattern  `json:"pattern,omitempty"`
	Remaining int       `json:"remaining_repeats"`
	Level     bool      `json:"level"`
	Since     time.Time `json:"since"`

	// Version increases on every published change.
	Version        uint64 `json:"version"`
	Transitions    uint64 `json:"transitions"`
	HardwareErrors uint64 `json:"hardware_errors"`
}

// Engine runs blink patterns on a single driver. Every pin write goes
// through the engine lock, including those made by the detached run
// goroutine, so a preempted run can never touch the pin again.
type Engine struct {
	driver indicator.Driver
	clock  clock.Clock
	log    zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	state  State

	lmu       sync.RWMutex
	listeners []func(State)

	// pmu orders delivery; snapshots older than published are dropped.
	pmu       sync.Mutex
	published uint64
}

// NewEngine creates an engine with the indicator off.
func NewEngine(driver indicator.Driver, clk clock.Clock, logger zerolog.Logger) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	done := make(chan struct{})
	close(done)
	return &Engine{
		driver: driver,
		clock:  clk,
		log:    logger.With().Str("component", "pattern-engine").Logger(),
		done:   done,
		state:  State{Mode: ModeOff, Since: clk.Now()},
	}
}

// Subscribe registers fn to receive state changes in Version order. fn is
// called outside the engine lock and must not block. A snapshot that lost
// the race to a newer one is not delivered.
func (e *Engine) Subscribe(fn func(State)) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Run preempts whatever is running and starts p on behalf of owner. The
// first step is applied before Run returns; the rest of the sequence runs
// in its own goroutine.
func (e *Engine) Run(owner string, p Pattern) {
	e.mu.Lock()
	gen := e.preemptLocked()

	pp := p
	e.state.Pattern = &pp

	if p.Repeat <= 0 {
		e.finishLocked(owner, p)
		snap := e.bumpLocked()
		e.mu.Unlock()
		e.publish(snap)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	e.setModeLocked(ModeBlinking, owner)
	e.state.Remaining = p.Repeat
	e.writeLocked(true)
	snap := e.bumpLocked()
	e.mu.Unlock()

	e.log.Debug().
		Str("owner", owner).
		Str("pattern", p.Name).
		Int("repeat", p.Repeat).
		Dur("on", p.On).
		Dur("off", p.Off).
		Msg("Pattern started")
	e.publish(snap)

	go e.loop(ctx, gen, p, done)
}

// Stop cancels any run and drives the indicator off.
func (e *Engine) Stop() {
	e.Set("", false)
}

// Set cancels any run and holds a steady level for owner.
func (e *Engine) Set(owner string, on bool) {
	e.mu.Lock()
	e.preemptLocked()
	e.state.Pattern = nil
	e.state.Remaining = 0
	mode := ModeOff
	if on {
		mode = ModeOn
	}
	e.setModeLocked(mode, owner)
	e.writeLocked(on)
	snap := e.bumpLocked()
	e.mu.Unlock()
	e.publish(snap)
}

// State returns the current indicator state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Wait blocks until the current run finishes or is preempted, or ctx ends.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Info returns the underlying driver description.
func (e *Engine) Info() indicator.Info {
	return e.driver.Info()
}

// Close stops any run, drives the indicator off and releases the driver.
func (e *Engine) Close() error {
	e.Stop()
	return e.driver.Close()
}

func (e *Engine) loop(ctx context.Context, gen uint64, p Pattern, done chan struct{}) {
	defer close(done)

	for i := 0; i < p.Repeat; i++ {
		remaining := p.Repeat - i
		if i > 0 && !e.step(gen, true, remaining) {
			return
		}
		if !e.sleep(ctx, p.On) {
			return
		}
		if !e.step(gen, false, remaining) {
			return
		}
		if !e.sleep(ctx, p.Off) {
			return
		}
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.finishLocked(e.state.Owner, p)
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	snap := e.bumpLocked()
	e.mu.Unlock()

	e.log.Debug().Str("owner", snap.Owner).Str("pattern", p.Name).Str("final", string(p.Final)).Msg("Pattern finished")
	e.publish(snap)
}

func (e *Engine) step(gen uint64, level bool, remaining int) bool {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return false
	}
	e.writeLocked(level)
	e.state.Remaining = remaining
	snap := e.bumpLocked()
	e.mu.Unlock()
	e.publish(snap)
	return true
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := e.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// preemptLocked invalidates the running sequence and returns the new
// generation.
func (e *Engine) preemptLocked() uint64 {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
	return e.gen
}

func (e *Engine) finishLocked(owner string, p Pattern) {
	e.state.Remaining = 0
	if p.Final == FinalOff {
		e.setModeLocked(ModeOff, owner)
		e.writeLocked(false)
		return
	}
	e.setModeLocked(ModeOn, owner)
	e.writeLocked(true)
}

func (e *Engine) setModeLocked(mode Mode, owner string) {
	if e.state.Mode != mode || e.state.Owner != owner {
		e.state.Since = e.clock.Now()
	}
	e.state.Mode = mode
	e.state.Owner = owner
}

func (e *Engine) writeLocked(level bool) {
	if err := e.driver.SetOutput(level); err != nil {
		e.state.HardwareErrors++
		e.log.Warn().Err(err).Bool("level", level).Msg("Failed to set indicator output")
		return
	}
	if e.state.Level != level {
		e.state.Transitions++
	}
	e.state.Level = level
}

func (e *Engine) bumpLocked() State {
	e.state.Version++
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() State {
	s := e.state
	if s.Pattern != nil {
		p := *s.Pattern
		s.Pattern = &p
	}
	return s
}

func (e *Engine) publish(s State) {
	e.pmu.Lock()
	defer e.pmu.Unlock()
	if s.Version <= e.published {
		return
	}
	e.published = s.Version

	e.lmu.RLock()
	defer e.lmu.RUnlock()
	for _, fn := range e.listeners {
		fn(s)
	}
}
