//go:build linux

package indicator

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/warthog618/go-gpiocdev"
)

// GPIO drives one line of a GPIO character device (works on every
// Raspberry Pi generation, including the Pi 5 RP1 chip).
type GPIO struct {
	log  zerolog.Logger
	chip string
	pin  int

	mu   sync.Mutex
	line *gpiocdev.Line
}

func openGPIO(chip string, pin int, logger zerolog.Logger) (Driver, error) {
	if chip == "" {
		chip = "gpiochip0"
	}
	line, err := gpiocdev.RequestLine(chip, pin,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(consumerName),
	)
	if err != nil {
		return nil, fmt.Errorf("request line %d on %s: %w", pin, chip, err)
	}
	return &GPIO{log: logger, chip: chip, pin: pin, line: line}, nil
}

func (g *GPIO) SetOutput(on bool) error {
	value := 0
	if on {
		value = 1
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.line == nil {
		return fmt.Errorf("gpio line %d closed", g.pin)
	}
	if err := g.line.SetValue(value); err != nil {
		return fmt.Errorf("set line %d: %w", g.pin, err)
	}
	return nil
}

func (g *GPIO) Info() Info {
	return Info{Type: TypeRaspberryPi, Available: true, Pin: g.pin, Detail: g.chip}
}

func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.line == nil {
		return nil
	}
	if err := g.line.SetValue(0); err != nil {
		g.log.Warn().Err(err).Int("pin", g.pin).Msg("Failed to drive GPIO low on close")
	}
	err := g.line.Close()
	g.line = nil
	return err
}
