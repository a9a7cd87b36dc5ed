package logic

import "time"

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Writes       int
	ResyncOK     int
	ResyncFailed int
	TrustLost    int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

// Heartbeat decides when a periodic heartbeat is due.
type Heartbeat struct {
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewHeartbeat creates a heartbeat timer. The startTime is used for uptime.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Check returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not
// elapsed, or if interval is <= 0 (disabled).
func (h *Heartbeat) Check(now time.Time, interval time.Duration, counts EventCounts) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(h.lastHeartbeat) < interval {
		return nil
	}

	h.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
		Counts:    counts,
	}
}
