package logic

import (
	"testing"
	"time"
)

func TestHeartbeatDisabledWithZeroInterval(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(startTime)

	// Should return nil with zero interval (disabled)
	if hb := h.Check(startTime.Add(15*time.Minute), 0, EventCounts{}); hb != nil {
		t.Error("should not return heartbeat when interval is 0 (disabled)")
	}

	// Should also return nil with negative interval
	if hb := h.Check(startTime.Add(15*time.Minute), -1*time.Minute, EventCounts{}); hb != nil {
		t.Error("should not return heartbeat when interval is negative")
	}
}

func TestHeartbeatBeforeInterval(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(startTime)

	if hb := h.Check(startTime.Add(14*time.Minute), 15*time.Minute, EventCounts{}); hb != nil {
		t.Error("should not return heartbeat before interval")
	}
}

func TestHeartbeatAtInterval(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(startTime)

	checkTime := startTime.Add(15 * time.Minute)
	counts := EventCounts{Writes: 3, ResyncOK: 1}
	hb := h.Check(checkTime, 15*time.Minute, counts)
	if hb == nil {
		t.Fatal("should return heartbeat at interval")
	}

	if !hb.Timestamp.Equal(checkTime) {
		t.Errorf("expected timestamp %v, got %v", checkTime, hb.Timestamp)
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("expected uptime 15m, got %v", hb.Uptime)
	}
	if hb.Counts != counts {
		t.Errorf("expected counts %+v, got %+v", counts, hb.Counts)
	}
}

func TestHeartbeatUpdatesLastTime(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(startTime)

	// First heartbeat
	t1 := startTime.Add(15 * time.Minute)
	if hb := h.Check(t1, 15*time.Minute, EventCounts{}); hb == nil {
		t.Fatal("should return first heartbeat")
	}

	// Check immediately after - should return nil
	if hb := h.Check(t1.Add(time.Second), 15*time.Minute, EventCounts{}); hb != nil {
		t.Error("should not return heartbeat immediately after previous")
	}

	// Second heartbeat after another interval
	hb := h.Check(t1.Add(15*time.Minute), 15*time.Minute, EventCounts{})
	if hb == nil {
		t.Fatal("should return second heartbeat")
	}
	if hb.Uptime != 30*time.Minute {
		t.Errorf("expected uptime 30m, got %v", hb.Uptime)
	}
}
