package alerter

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// RemindFunc is called each time a still-firing group is due a reminder.
type RemindFunc func(groupID string)

// Reminder keeps one periodic timer per alert group.
type Reminder struct {
	log      zerolog.Logger
	clock    clock.Clock
	interval time.Duration
	onRemind RemindFunc
	mu       sync.Mutex
	timers   map[string]context.CancelFunc // group id -> cancel func
}

// NewReminder creates a reminder. An interval <= 0 disables it.
func NewReminder(log zerolog.Logger, clk clock.Clock, interval time.Duration, onRemind RemindFunc) *Reminder {
	if clk == nil {
		clk = clock.New()
	}
	return &Reminder{
		log:      log.With().Str("component", "reminder").Logger(),
		clock:    clk,
		interval: interval,
		onRemind: onRemind,
		timers:   make(map[string]context.CancelFunc),
	}
}

// Start (re)arms the reminder for id.
func (r *Reminder) Start(id string) {
	if r.interval <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.timers[id]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.timers[id] = cancel

	r.log.Debug().Str("group_id", id).Dur("interval", r.interval).Msg("reminder armed")

	ticker := r.clock.Ticker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				if r.onRemind != nil {
					r.onRemind(id)
				}
			}
		}
	}()
}

// Cancel stops the reminder for id.
func (r *Reminder) Cancel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.timers[id]; ok {
		cancel()
		delete(r.timers, id)
		r.log.Debug().Str("group_id", id).Msg("reminder cancelled")
	}
}

// Active returns the number of armed reminders.
func (r *Reminder) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop cancels all reminders.
func (r *Reminder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cancel := range r.timers {
		cancel()
		delete(r.timers, id)
	}
}
