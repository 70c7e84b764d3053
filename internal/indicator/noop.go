package indicator

import (
	"sync"

	"github.com/rs/zerolog"
)

// Noop is the degraded-mode driver. It keeps the requested level in memory
// and logs every change.
type Noop struct {
	log    zerolog.Logger
	pin    int
	reason string

	mu    sync.Mutex
	level bool
}

// NewNoop creates a no-op driver; reason is reported in Info.Detail.
func NewNoop(pin int, reason string, logger zerolog.Logger) *Noop {
	return &Noop{log: logger, pin: pin, reason: reason}
}

func (n *Noop) SetOutput(on bool) error {
	n.mu.Lock()
	changed := n.level != on
	n.level = on
	n.mu.Unlock()

	if changed {
		n.log.Debug().Bool("level", on).Int("pin", n.pin).Msg("Indicator level (simulated)")
	}
	return nil
}

// Level returns the last level set.
func (n *Noop) Level() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.level
}

func (n *Noop) Info() Info {
	return Info{Type: TypeNoop, Available: false, Pin: n.pin, Detail: n.reason}
}

func (n *Noop) Close() error {
	return n.SetOutput(false)
}
