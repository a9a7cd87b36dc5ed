// Package output writes colors to the light fixture with hardware abstraction.
// The GPIO implementation drives an RGB LED through the Linux GPIO character
// device; the MQTT and Hue implementations drive network lights.
// The fake implementation allows testing without hardware.
package output

import "github.com/sweeney/nightlight/internal/logic"

// Writer writes the displayed color of the single fixture.
type Writer interface {
	// Write sets the fixture to c. The color is already dimmed.
	Write(c logic.Color) error

	// Close releases hardware or network resources.
	Close() error
}

// Driver names accepted in configuration.
const (
	DriverGPIO = "gpio"
	DriverMQTT = "mqtt"
	DriverHue  = "hue"
	DriverNone = "none"
)

// Pin defaults (BCM numbering)
const (
	DefaultPinRed   = 17
	DefaultPinGreen = 27
	DefaultPinBlue  = 22
)

// channelOn reports whether a channel of an on/off RGB LED should be lit.
func channelOn(v, threshold uint8) bool {
	if threshold == 0 {
		threshold = 1
	}
	return v >= threshold
}

// Discard accepts and drops every write. Used for the "none" driver.
type Discard struct{}

// Write does nothing.
func (Discard) Write(logic.Color) error { return nil }

// Close does nothing.
func (Discard) Close() error { return nil }
