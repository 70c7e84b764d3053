// Package indicator drives the physical (or simulated) alert light.
//
// A Driver only knows the output level. It has no notion of alerts or
// patterns; sequencing lives in package pattern.
package indicator

import (
	"strings"

	"github.com/rs/zerolog"
)

// Driver types accepted by Open.
const (
	TypeRaspberryPi = "raspberry_pi"
	TypeMQTT        = "mqtt"
	TypeNoop        = "noop"
)

// consumerName labels the GPIO line request and the MQTT client id.
const consumerName = "alertbeacon"

// Driver sets the level of a single output.
type Driver interface {
	// SetOutput drives the output high (true) or low (false). Calling it
	// with the current level is harmless.
	SetOutput(on bool) error
	Info() Info
	Close() error
}

// Info describes a driver for health reporting.
type Info struct {
	Type      string `json:"type"`
	Available bool   `json:"available"`
	Pin       int    `json:"pin,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Options selects and configures a driver.
type Options struct {
	Type string
	Chip string
	Pin  int
	MQTT MQTTOptions
}

// Open returns the driver selected by opts.Type. It never fails: when the
// requested hardware cannot be opened a no-op driver is returned and the
// reason is logged as a warning and reported through Info.
func Open(opts Options, logger zerolog.Logger) Driver {
	log := logger.With().Str("component", "indicator").Logger()

	switch strings.ToLower(strings.TrimSpace(opts.Type)) {
	case TypeRaspberryPi, "":
		d, err := openGPIO(opts.Chip, opts.Pin, log)
		if err != nil {
			log.Warn().
				Err(err).
				Str("chip", opts.Chip).
				Int("pin", opts.Pin).
				Msg("GPIO unavailable, falling back to no-op indicator")
			return NewNoop(opts.Pin, "gpio: "+err.Error(), log)
		}
		log.Info().Str("chip", opts.Chip).Int("pin", opts.Pin).Msg("GPIO indicator ready")
		return d

	case TypeMQTT:
		d, err := OpenMQTT(opts.MQTT, NewPahoClient(opts.MQTT), log)
		if err != nil {
			log.Warn().
				Err(err).
				Str("broker", opts.MQTT.Broker).
				Msg("MQTT indicator unavailable, falling back to no-op indicator")
			return NewNoop(0, "mqtt: "+err.Error(), log)
		}
		log.Info().Str("broker", opts.MQTT.Broker).Str("topic", opts.MQTT.Topic).Msg("MQTT indicator ready")
		return d

	case TypeNoop:
		return NewNoop(opts.Pin, "configured", log)

	default:
		log.Warn().Str("type", opts.Type).Msg("Unsupported lightbulb type, using no-op indicator")
		return NewNoop(opts.Pin, "unsupported lightbulb type "+opts.Type, log)
	}
}
