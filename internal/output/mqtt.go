package output

import (
	"encoding/json"
	"fmt"

	"github.com/sweeney/nightlight/internal/logic"
)

// RawPublisher publishes an already-encoded payload.
type RawPublisher interface {
	PublishRaw(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTLight drives a network light that accepts JSON set commands, in the
// format used by zigbee2mqtt and Tasmota.
type MQTTLight struct {
	pub   RawPublisher
	topic string
}

// NewMQTTLight publishes commands to topic (e.g. "zigbee2mqtt/desk/set").
func NewMQTTLight(pub RawPublisher, topic string) *MQTTLight {
	return &MQTTLight{pub: pub, topic: topic}
}

// LightCommand is the JSON set command.
type LightCommand struct {
	State      string    `json:"state"`
	Brightness uint8     `json:"brightness,omitempty"`
	Color      *RGBColor `json:"color,omitempty"`
}

// RGBColor is the color part of a LightCommand.
type RGBColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// FormatCommand builds the set command for c. Black turns the light off.
func FormatCommand(c logic.Color) ([]byte, error) {
	if c == logic.Black {
		return json.Marshal(LightCommand{State: "OFF"})
	}
	return json.Marshal(LightCommand{
		State:      "ON",
		Brightness: 255,
		Color:      &RGBColor{R: c.R, G: c.G, B: c.B},
	})
}

// Write publishes a retained set command so the light recovers its state
// after its own restart.
func (m *MQTTLight) Write(c logic.Color) error {
	payload, err := FormatCommand(c)
	if err != nil {
		return fmt.Errorf("format light command: %w", err)
	}
	if err := m.pub.PublishRaw(m.topic, 1, true, payload); err != nil {
		return fmt.Errorf("publish light command: %w", err)
	}
	return nil
}

// Close does nothing; the MQTT connection is owned by the caller.
func (m *MQTTLight) Close() error {
	return nil
}
