//go:build !linux

package indicator

import (
	"errors"

	"github.com/rs/zerolog"
)

func openGPIO(chip string, pin int, logger zerolog.Logger) (Driver, error) {
	return nil, errors.New("GPIO character devices are only available on linux")
}
