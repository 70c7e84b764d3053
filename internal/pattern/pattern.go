// Package pattern maps severities to blink sequences and runs them against
// an indicator.Driver.
package pattern

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alertbeacon/alertbeacon/internal/types"
)

// FinalState is the level held once a pattern's repeats are done.
type FinalState string

const (
	FinalOn  FinalState = "on"
	FinalOff FinalState = "off"
)

// Pattern is a timed on/off sequence followed by a steady final level.
type Pattern struct {
	Name   string        `yaml:"-"`
	On     time.Duration `yaml:"on"`
	Off    time.Duration `yaml:"off"`
	Repeat int           `yaml:"repeat"`
	Final  FinalState    `yaml:"final"`
}

// ManualBlink is the pattern used by the manual blink endpoint and the
// blink command.
var ManualBlink = Pattern{Name: "manual", On: time.Second, Off: time.Second, Repeat: 2, Final: FinalOff}

// Validate checks p and fills in the default final state.
func (p *Pattern) Validate() error {
	if p.Repeat < 0 {
		return fmt.Errorf("pattern %s: repeat must not be negative", p.Name)
	}
	if p.On < 0 || p.Off < 0 {
		return fmt.Errorf("pattern %s: durations must not be negative", p.Name)
	}
	if p.Repeat > 0 && p.On == 0 {
		return fmt.Errorf("pattern %s: on duration is required when repeat > 0", p.Name)
	}
	switch p.Final {
	case "":
		p.Final = FinalOn
	case FinalOn, FinalOff:
	default:
		return fmt.Errorf("pattern %s: final must be 'on' or 'off', got %q", p.Name, p.Final)
	}
	return nil
}

// Duration is how long the blinking phase lasts.
func (p Pattern) Duration() time.Duration {
	return time.Duration(p.Repeat) * (p.On + p.Off)
}

func (p Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name   string     `json:"name"`
		OnMs   int64      `json:"on_ms"`
		OffMs  int64      `json:"off_ms"`
		Repeat int        `json:"repeat"`
		Final  FinalState `json:"final"`
	}{p.Name, p.On.Milliseconds(), p.Off.Milliseconds(), p.Repeat, p.Final})
}

// Defaults returns the built-in severity table.
func Defaults() map[types.Severity]Pattern {
	return map[types.Severity]Pattern{
		types.SeverityCritical: {Name: string(types.SeverityCritical), On: 100 * time.Millisecond, Off: 100 * time.Millisecond, Repeat: 5, Final: FinalOn},
		types.SeverityHigh:     {Name: string(types.SeverityHigh), On: 250 * time.Millisecond, Off: 250 * time.Millisecond, Repeat: 4, Final: FinalOn},
		types.SeverityWarning:  {Name: string(types.SeverityWarning), On: 500 * time.Millisecond, Off: 500 * time.Millisecond, Repeat: 3, Final: FinalOn},
		types.SeverityInfo:     {Name: string(types.SeverityInfo), On: time.Second, Off: time.Second, Repeat: 2, Final: FinalOn},
		types.SeverityLow:      {Name: string(types.SeverityLow), On: 2 * time.Second, Off: time.Second, Repeat: 1, Final: FinalOn},
	}
}

// Table is the severity -> pattern mapping. It is safe for concurrent use
// and can be replaced while the service runs.
type Table struct {
	mu       sync.RWMutex
	patterns map[types.Severity]Pattern
}

// NewTable returns a table holding the defaults.
func NewTable() *Table {
	return &Table{patterns: Defaults()}
}

// Lookup returns the pattern for sev, or the info pattern for anything
// not in the table.
func (t *Table) Lookup(sev types.Severity) Pattern {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.patterns[sev]; ok {
		return p
	}
	return t.patterns[types.SeverityInfo]
}

// Replace merges overrides onto the defaults and swaps the result in.
// Nothing changes if any override is invalid.
func (t *Table) Replace(overrides map[types.Severity]Pattern) error {
	next := Defaults()
	for sev, p := range overrides {
		if !sev.Valid() {
			return fmt.Errorf("unknown severity %q", sev)
		}
		p.Name = string(sev)
		if err := p.Validate(); err != nil {
			return err
		}
		next[sev] = p
	}

	t.mu.Lock()
	t.patterns = next
	t.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current table.
func (t *Table) Snapshot() map[types.Severity]Pattern {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[types.Severity]Pattern, len(t.patterns))
	for k, v := range t.patterns {
		out[k] = v
	}
	return out
}
