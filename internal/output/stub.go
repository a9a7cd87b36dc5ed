//go:build !linux

package output

import (
	"errors"

	"github.com/sweeney/nightlight/internal/logic"
)

// GPIOConfig selects the chip and lines of an on/off RGB LED.
type GPIOConfig struct {
	Chip      string
	Red       int
	Green     int
	Blue      int
	ActiveLow bool
	Threshold uint8
}

// GPIO is not available on non-Linux platforms.
type GPIO struct{}

// NewGPIO returns an error on non-Linux platforms.
func NewGPIO(cfg GPIOConfig) (*GPIO, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Write is not implemented on non-Linux platforms.
func (g *GPIO) Write(c logic.Color) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (g *GPIO) Close() error {
	return nil
}
