package logic

import "time"

// EventType represents a light or clock state change.
type EventType string

const (
	EventAppearanceChanged EventType = "APPEARANCE_CHANGED"
	EventTimeSynced        EventType = "TIME_SYNCED"
	EventTimeSyncFailed    EventType = "TIME_SYNC_FAILED"
	EventTrustLost         EventType = "TRUST_LOST"
	EventTrustRestored     EventType = "TRUST_RESTORED"
)

// Event represents a state change to be published and recorded.
type Event struct {
	Timestamp time.Time
	Type      EventType
	TimeOfDay TimeOfDay

	// Set for EventAppearanceChanged.
	Appearance Appearance
	Source     Source
	Window     string

	// Error text for EventTimeSyncFailed.
	Reason string
}
