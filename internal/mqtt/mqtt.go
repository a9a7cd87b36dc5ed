// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/nightlight/internal/logic"
)

// Topic is the MQTT topic for light and clock events.
const Topic = "home/nightlight/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/nightlight/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a light event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Light LightPayload `json:"light"`
}

// LightPayload contains the light event details.
type LightPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	TimeOfDay string `json:"time_of_day"`
	Color     string `json:"color,omitempty"`
	Ratio     *uint8 `json:"ratio,omitempty"`
	Displayed string `json:"displayed,omitempty"`
	Source    string `json:"source,omitempty"`
	Window    string `json:"window,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for a light event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := LightPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		TimeOfDay: event.TimeOfDay.String(),
		Window:    event.Window,
		Reason:    event.Reason,
	}
	if event.Type == logic.EventAppearanceChanged {
		ratio := event.Appearance.Ratio
		p.Color = event.Appearance.Color.Hex()
		p.Ratio = &ratio
		p.Displayed = event.Appearance.Dimmed().Hex()
		p.Source = string(event.Source)
	}
	return json.Marshal(Payload{Light: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is registered as the last will: the broker publishes it if
// the connection drops without a clean disconnect.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	return data
}
