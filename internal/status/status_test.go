package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/nightlight/internal/logic"
)

var (
	testStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	nightRed  = logic.Appearance{Color: logic.Color{R: 255}, Ratio: 100}
)

func TestNewTracker(t *testing.T) {
	cfg := Config{TickMs: 1000, Broker: "tcp://localhost:1883", HTTPPort: ":80"}
	tr := NewTracker(testStart, "boot-1", cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(testStart) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, testStart)
	}
	if snap.BootID != "boot-1" {
		t.Errorf("BootID: got %q", snap.BootID)
	}
	if snap.Config.TickMs != 1000 {
		t.Errorf("Config.TickMs: got %d, want 1000", snap.Config.TickMs)
	}
	if snap.Ready {
		t.Error("expected Ready=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), "", Config{})

	tr.Update(Light{
		Appearance: nightRed,
		Source:     logic.SourceSchedule,
		Window:     "night",
		TimeOfDay:  logic.NewTimeOfDay(23, 30),
		Trusted:    true,
		Synced:     true,
		Counts:     logic.EventCounts{Writes: 3, ResyncOK: 1},
	})

	snap := tr.Snapshot()
	if snap.Appearance != nightRed {
		t.Errorf("Appearance: got %v", snap.Appearance)
	}
	if snap.Window != "night" {
		t.Errorf("Window: got %q", snap.Window)
	}
	if !snap.Ready {
		t.Error("expected Ready=true after Update")
	}
	if snap.Counts.Writes != 3 {
		t.Errorf("Counts.Writes: got %d, want 3", snap.Counts.Writes)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), "", Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), "", Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(true, &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if !snap.NetworkConnected {
		t.Error("expected NetworkConnected=true")
	}
	if snap.Network == nil || snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network: got %+v", snap.Network)
	}
}

func TestSetLastSync(t *testing.T) {
	tr := NewTracker(time.Now(), "", Config{})
	at := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	tr.SetLastSync(at)
	if !tr.Snapshot().LastSync.Equal(at) {
		t.Errorf("LastSync: got %v", tr.Snapshot().LastSync)
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{
		StartTime: testStart,
		Now:       testStart.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(testStart, "", Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), "", Config{})
	tr.Update(Light{Appearance: nightRed, Counts: logic.EventCounts{Writes: 1}})

	snap1 := tr.Snapshot()

	tr.Update(Light{Appearance: logic.Off, Counts: logic.EventCounts{Writes: 2}})

	if snap1.Appearance != nightRed {
		t.Error("snapshot should be a copy; Appearance was modified")
	}
	if snap1.Counts.Writes != 1 {
		t.Error("snapshot should be a copy; Counts was modified")
	}
}

func fullSnapshot() Snapshot {
	return Snapshot{
		Light: Light{
			Appearance: nightRed,
			Source:     logic.SourceSchedule,
			Window:     "night",
			TimeOfDay:  logic.NewTimeOfDay(23, 30),
			Trusted:    true,
			Synced:     true,
			Counts:     logic.EventCounts{Writes: 5, ResyncOK: 2, ResyncFailed: 1},
		},
		Ready:         true,
		BootID:        "b00t",
		StartTime:     testStart,
		Now:           testStart.Add(15 * time.Minute),
		LastSync:      testStart.Add(time.Minute),
		MQTTConnected: true,
		Config: Config{
			TickMs:    1000,
			Broker:    "tcp://localhost:1883",
			HTTPPort:  ":80",
			GapPolicy: "hold",
			Alarms: []AlarmInfo{
				{Name: "night", Enabled: true, From: "20:55", To: "06:00", Color: "#ff0000", Ratio: 100},
			},
		},
	}
}

func TestFormatJSON(t *testing.T) {
	data := FormatJSON(fullSnapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Light.Color != "#ff0000" || s.Light.Displayed != "#640000" || s.Light.Ratio != 100 {
		t.Errorf("Light: got %+v", s.Light)
	}
	if s.Light.Source != "SCHEDULE" || s.Light.Window != "night" {
		t.Errorf("Light source/window: got %+v", s.Light)
	}
	if s.Clock.TimeOfDay != "23:30" || !s.Clock.Trusted || !s.Clock.Synced {
		t.Errorf("Clock: got %+v", s.Clock)
	}
	if s.Clock.LastSync != "2026-01-01T00:01:00Z" {
		t.Errorf("Clock.LastSync: got %q", s.Clock.LastSync)
	}
	if !s.Ready {
		t.Error("expected Ready=true")
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if s.Counts.Writes != 5 || s.Counts.ResyncFailed != 1 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if len(s.Config.Alarms) != 1 || s.Config.Alarms[0].From != "20:55" {
		t.Errorf("Config.Alarms: got %+v", s.Config.Alarms)
	}
	if s.BootID != "b00t" {
		t.Errorf("BootID: got %q", s.BootID)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected empty Event/Reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONUnknownSource(t *testing.T) {
	snap := Snapshot{
		StartTime: testStart,
		Now:       testStart.Add(time.Second),
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Light.Source != "UNKNOWN" {
		t.Errorf("Source: got %q, want UNKNOWN", parsed.Status.Light.Source)
	}
	if parsed.Status.Clock.LastSync != "" {
		t.Errorf("LastSync should be omitted, got %q", parsed.Status.Clock.LastSync)
	}
	if parsed.Status.Config.Alarms == nil {
		t.Error("alarms should encode as an empty list")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	data := FormatStatusEvent(fullSnapshot(), "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	data := FormatStatusEvent(fullSnapshot(), "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: testStart, Now: testStart.Add(time.Second)}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := fullSnapshot()
	snap.NetworkConnected = true
	snap.Network = &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	n := parsed.Status.Network
	if n == nil {
		t.Fatal("expected Network in JSON")
	}
	if !n.Connected || n.IP != "192.168.1.42" || n.SSID != "MyNet" {
		t.Errorf("Network: got %+v", n)
	}
}

func TestFormatJSONNetworkWithoutPiHelper(t *testing.T) {
	snap := fullSnapshot()
	snap.NetworkConnected = true

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Network == nil || !parsed.Status.Network.Connected {
		t.Errorf("expected connected network without details, got %+v", parsed.Status.Network)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), "", Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(Light{Appearance: nightRed, Counts: logic.EventCounts{Writes: i}})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(true, &NetworkInfo{IP: "1.2.3.4"})
			tr.SetLastSync(time.Now())
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
		}
	}()

	wg.Wait()
}
