//go:build linux

package output

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/nightlight/internal/logic"
)

// GPIOConfig selects the chip and lines of an on/off RGB LED.
type GPIOConfig struct {
	Chip      string
	Red       int
	Green     int
	Blue      int
	ActiveLow bool // common-anode LEDs
	Threshold uint8
}

// GPIO drives an RGB LED using the Linux GPIO character device. Each channel
// is on or off; a channel is lit when its dimmed value reaches Threshold.
type GPIO struct {
	chip      *gpiocdev.Chip
	lines     [3]*gpiocdev.Line
	threshold uint8
}

// NewGPIO requests the three lines as outputs, initially off.
func NewGPIO(cfg GPIOConfig) (*GPIO, error) {
	chipName := cfg.Chip
	if chipName == "" {
		chipName = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	g := &GPIO{chip: chip, threshold: cfg.Threshold}
	for i, pin := range []int{cfg.Red, cfg.Green, cfg.Blue} {
		line, err := chip.RequestLine(pin, opts...)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", channelNames[i], pin, err)
		}
		g.lines[i] = line
	}
	return g, nil
}

var channelNames = [3]string{"red", "green", "blue"}

// Write sets each channel on or off.
func (g *GPIO) Write(c logic.Color) error {
	for i, v := range [3]uint8{c.R, c.G, c.B} {
		value := 0
		if channelOn(v, g.threshold) {
			value = 1
		}
		if err := g.lines[i].SetValue(value); err != nil {
			return fmt.Errorf("set %s pin: %w", channelNames[i], err)
		}
	}
	return nil
}

// Close turns the LED off and releases GPIO resources.
// Lines are reconfigured as inputs (matching Pi boot defaults) before closing.
func (g *GPIO) Close() error {
	var errs []error

	for i, line := range g.lines {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear %s pin: %w", channelNames[i], err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", channelNames[i], err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", channelNames[i], err))
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
