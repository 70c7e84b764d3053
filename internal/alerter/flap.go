package alerter

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// FlapDetector tracks alert groups that fire and resolve rapidly.
type FlapDetector struct {
	log       zerolog.Logger
	clock     clock.Clock
	threshold int           // number of changes to trigger flap
	window    time.Duration // time window for threshold
	mu        sync.Mutex
	history   map[string][]time.Time // group id -> timestamps of changes
	flapping  map[string]bool
}

// NewFlapDetector creates a flap detector. A threshold <= 0 or a zero
// window disables detection.
func NewFlapDetector(log zerolog.Logger, clk clock.Clock, threshold int, window time.Duration) *FlapDetector {
	if clk == nil {
		clk = clock.New()
	}
	return &FlapDetector{
		log:       log.With().Str("component", "flap-detector").Logger(),
		clock:     clk,
		threshold: threshold,
		window:    window,
		history:   make(map[string][]time.Time),
		flapping:  make(map[string]bool),
	}
}

func (f *FlapDetector) enabled() bool {
	return f.threshold > 0 && f.window > 0
}

// RecordChange records a state change and returns whether the group is flapping.
// If flapping just started, returns (true, true). If already flapping, returns (true, false).
// If not flapping, returns (false, false).
func (f *FlapDetector) RecordChange(key string) (flapping bool, justStarted bool) {
	if !f.enabled() {
		return false, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	f.sweepLocked(now)
	pruned := append(f.history[key], now)
	f.history[key] = pruned

	if len(pruned) >= f.threshold {
		wasFlapping := f.flapping[key]
		f.flapping[key] = true
		if !wasFlapping {
			f.log.Warn().Str("group_id", key).Int("changes", len(pruned)).Dur("window", f.window).Msg("flapping detected")
			return true, true
		}
		return true, false
	}

	return false, false
}

// IsFlapping returns whether a group is currently marked as flapping.
func (f *FlapDetector) IsFlapping(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweepLocked(f.clock.Now())
	return f.flapping[key]
}

// Flapping prunes stale history and returns the flapping group ids, sorted.
func (f *FlapDetector) Flapping() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sweepLocked(f.clock.Now())
	out := make([]string, 0, len(f.flapping))
	for key := range f.flapping {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// tracked returns how many groups have history inside the window.
func (f *FlapDetector) tracked() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history)
}

// sweepLocked drops history older than the window and clears flapping
// groups that fell below the threshold.
func (f *FlapDetector) sweepLocked(now time.Time) {
	for key, timestamps := range f.history {
		pruned := f.pruneLocked(timestamps, now)
		if len(pruned) == 0 {
			delete(f.history, key)
		} else {
			f.history[key] = pruned
		}
		if f.flapping[key] && len(pruned) < f.threshold {
			delete(f.flapping, key)
			f.log.Info().Str("group_id", key).Msg("flapping stopped")
		}
	}
}

func (f *FlapDetector) pruneLocked(timestamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-f.window)
	pruned := make([]time.Time, 0, len(timestamps)+1)
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	return pruned
}
