package alerter

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/alertbeacon/alertbeacon/internal/pattern"
	"github.com/alertbeacon/alertbeacon/internal/types"
)

// ManualOwner is the indicator owner recorded for manual LED control.
const ManualOwner = "manual"

// Outcome names the action the tracker took for an event.
type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeQueued    Outcome = "queued"
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeRestarted Outcome = "restarted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeCleared   Outcome = "cleared"
	OutcomeDropped   Outcome = "dropped"
	OutcomeIgnored   Outcome = "ignored"
	OutcomePromoted  Outcome = "promoted"
)

// Notifier receives tracker events. Notify must not block.
type Notifier interface {
	Notify(ev types.Event)
}

// Options tunes optional tracker behaviour.
type Options struct {
	RemindInterval time.Duration
	FlapThreshold  int
	FlapWindow     time.Duration
}

// FireRequest is a firing event for one alert group.
type FireRequest struct {
	ID       string
	Title    string
	Severity types.Severity
	Platform string

	// Preempt makes the group take the indicator even if another group
	// owns it.
	Preempt bool
}

// Summary describes tracker state for status endpoints.
type Summary struct {
	Owner    string   `json:"owner,omitempty"`
	Active   int      `json:"active"`
	Pending  []string `json:"pending"`
	Flapping []string `json:"flapping,omitempty"`
}

// Tracker maps alert groups onto the single indicator. One group owns the
// indicator at a time; the others wait as pending. When the owner resolves
// the most recently fired pending group takes over.
type Tracker struct {
	engine   *pattern.Engine
	table    *pattern.Table
	clock    clock.Clock
	notifier Notifier
	reminder *Reminder
	flaps    *FlapDetector
	logger   zerolog.Logger

	mu     sync.Mutex
	groups map[string]*types.AlertGroup
	owner  string
	seq    uint64
	runs   map[types.Severity]uint64
}

// NewTracker creates a tracker driving engine. notifier and clk may be nil.
func NewTracker(engine *pattern.Engine, table *pattern.Table, clk clock.Clock, notifier Notifier, logger zerolog.Logger, opts Options) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	log := logger.With().Str("component", "tracker").Logger()
	t := &Tracker{
		engine:   engine,
		table:    table,
		clock:    clk,
		notifier: notifier,
		flaps:    NewFlapDetector(log, clk, opts.FlapThreshold, opts.FlapWindow),
		logger:   log,
		groups:   make(map[string]*types.AlertGroup),
		runs:     make(map[types.Severity]uint64),
	}
	t.reminder = NewReminder(log, clk, opts.RemindInterval, t.remind)
	return t
}

// HandleFiring records a firing event and updates the indicator.
func (t *Tracker) HandleFiring(req FireRequest) Outcome {
	if !req.Severity.Valid() {
		req.Severity = types.SeverityInfo
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	g, exists := t.groups[req.ID]

	if !exists {
		t.seq++
		g = &types.AlertGroup{
			ID:       req.ID,
			Title:    req.Title,
			Platform: req.Platform,
			Severity: req.Severity,
			Status:   types.StatusFiring,
			FiredAt:  now,
			LastSeen: now,
			Order:    t.seq,
		}
		t.groups[req.ID] = g
		t.recordChange(g)

		outcome := OutcomeQueued
		if t.owner == "" || req.Preempt {
			t.takeOwnershipLocked(g)
			outcome = OutcomeStarted
		}
		t.logOutcome(g, outcome).Msg("Alert group fired")
		t.notify(types.EventFired, g)
		return outcome
	}

	g.LastSeen = now
	if req.Title != "" {
		g.Title = req.Title
	}

	if req.Preempt {
		g.Severity = req.Severity
		t.takeOwnershipLocked(g)
		t.logOutcome(g, OutcomeRestarted).Msg("Alert group preempted indicator")
		return OutcomeRestarted
	}

	if t.owner == "" {
		changed := g.Severity != req.Severity
		g.Severity = req.Severity
		if changed {
			t.recordChange(g)
		}
		t.takeOwnershipLocked(g)
		t.logOutcome(g, OutcomeRestarted).Msg("Alert group re-took idle indicator")
		if changed {
			t.notify(types.EventChanged, g)
		}
		return OutcomeRestarted
	}

	if g.Severity == req.Severity {
		t.logOutcome(g, OutcomeRefreshed).Msg("Duplicate firing event")
		return OutcomeRefreshed
	}

	prev := g.Severity
	g.Severity = req.Severity
	t.recordChange(g)

	outcome := OutcomeUpdated
	if t.owner == g.ID {
		t.startLocked(g)
		outcome = OutcomeRestarted
	}
	t.logOutcome(g, outcome).
		Str("previous_severity", string(prev)).
		Msg("Alert group severity changed")
	t.notify(types.EventChanged, g)
	return outcome
}

// HandleResolved clears an alert group. Unknown IDs are ignored.
func (t *Tracker) HandleResolved(id string) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, exists := t.groups[id]
	if !exists {
		t.logger.Debug().Str("group_id", id).Str("action", string(OutcomeIgnored)).Msg("Resolve for unknown alert group")
		return OutcomeIgnored
	}

	delete(t.groups, id)
	g.Status = types.StatusResolved
	g.LastSeen = t.clock.Now()
	t.recordChange(g)
	duration := g.LastSeen.Sub(g.FiredAt)

	switch t.owner {
	case id:
		t.notify(types.EventResolved, g)
		t.reminder.Cancel(id)
		t.owner = ""
	case "":
		// Ownership was dropped by ForceOff; hand the indicator back.
		t.notify(types.EventResolved, g)
	default:
		t.logOutcome(g, OutcomeDropped).Dur("duration", duration).Msg("Pending alert group resolved")
		t.notify(types.EventResolved, g)
		return OutcomeDropped
	}
	t.engine.Stop()

	next := t.latestLocked()
	if next == nil {
		t.logOutcome(g, OutcomeCleared).Dur("duration", duration).Msg("Alert group resolved, indicator cleared")
		return OutcomeCleared
	}

	t.takeOwnershipLocked(next)
	t.logOutcome(g, OutcomePromoted).
		Dur("duration", duration).
		Str("next_owner", next.ID).
		Msg("Alert group resolved, pending group re-triggered")
	return OutcomePromoted
}

// ManualOn holds the indicator on until the next alert transition.
func (t *Tracker) ManualOn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.engine.Set(ManualOwner, true)
	t.logger.Info().Str("action", "manual_on").Msg("Indicator turned on manually")
}

// ManualOff turns the indicator off until the next alert transition.
func (t *Tracker) ManualOff() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.engine.Set(ManualOwner, false)
	t.logger.Info().Str("action", "manual_off").Msg("Indicator turned off manually")
}

// ManualBlink runs the bench-test blink pattern.
func (t *Tracker) ManualBlink() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.engine.Run(ManualOwner, pattern.ManualBlink)
	t.logger.Info().Str("action", "manual_blink").Msg("Indicator blink test started")
}

// ForceOff drops indicator ownership and drives the pin off. Alert
// groups stay recorded; the next firing or resolve event hands the
// indicator to the most recently fired remaining group.
func (t *Tracker) ForceOff() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.owner != "" {
		t.reminder.Cancel(t.owner)
	}
	t.owner = ""
	t.engine.Stop()
}

// Groups returns the active alert groups, most recently fired first.
func (t *Tracker) Groups() []types.AlertGroup {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.AlertGroup, 0, len(t.groups))
	for _, g := range t.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order > out[j].Order })
	return out
}

// Summary returns the owner, pending groups and flapping groups.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		Owner:    t.owner,
		Active:   len(t.groups),
		Pending:  []string{},
		Flapping: t.flaps.Flapping(),
	}
	pending := make([]*types.AlertGroup, 0, len(t.groups))
	for id, g := range t.groups {
		if id != t.owner {
			pending = append(pending, g)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Order > pending[j].Order })
	for _, g := range pending {
		s.Pending = append(s.Pending, g.ID)
	}
	return s
}

// Runs returns how many patterns were started per severity.
func (t *Tracker) Runs() map[types.Severity]uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[types.Severity]uint64, len(t.runs))
	for k, v := range t.runs {
		out[k] = v
	}
	return out
}

// Close stops reminder timers.
func (t *Tracker) Close() {
	t.reminder.Stop()
}

func (t *Tracker) takeOwnershipLocked(g *types.AlertGroup) {
	if t.owner != "" && t.owner != g.ID {
		t.reminder.Cancel(t.owner)
	}
	t.owner = g.ID
	t.startLocked(g)
}

func (t *Tracker) startLocked(g *types.AlertGroup) {
	p := t.table.Lookup(g.Severity)
	t.engine.Run(g.ID, p)
	t.runs[g.Severity]++
	t.reminder.Start(g.ID)
}

// latestLocked returns the most recently fired remaining group.
func (t *Tracker) latestLocked() *types.AlertGroup {
	var latest *types.AlertGroup
	for _, g := range t.groups {
		if latest == nil || g.Order > latest.Order {
			latest = g
		}
	}
	return latest
}

// remind replays the owner's pattern. It is skipped if id lost ownership
// or the indicator is under manual control.
func (t *Tracker) remind(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.groups[id]
	if !ok || t.owner != id || t.engine.State().Owner != id {
		return
	}
	t.engine.Run(g.ID, t.table.Lookup(g.Severity))
	t.runs[g.Severity]++
	t.logger.Info().
		Str("group_id", g.ID).
		Str("severity", string(g.Severity)).
		Dur("firing_for", t.clock.Since(g.FiredAt)).
		Msg("Reminder: alert group still firing")
}

func (t *Tracker) recordChange(g *types.AlertGroup) {
	if flapping, justStarted := t.flaps.RecordChange(g.ID); flapping && justStarted {
		t.notify(types.EventFlapping, g)
	}
}

func (t *Tracker) notify(kind types.EventKind, g *types.AlertGroup) {
	if t.notifier == nil {
		return
	}
	t.notifier.Notify(types.Event{
		Kind:     kind,
		GroupID:  g.ID,
		Title:    g.Title,
		Severity: g.Severity,
		Owner:    t.owner == g.ID,
		At:       t.clock.Now(),
	})
}

func (t *Tracker) logOutcome(g *types.AlertGroup, outcome Outcome) *zerolog.Event {
	return t.logger.Info().
		Str("group_id", g.ID).
		Str("severity", string(g.Severity)).
		Str("platform", g.Platform).
		Str("action", string(outcome)).
		Str("owner", t.owner).
		Bool("flapping", t.flaps.IsFlapping(g.ID))
}
