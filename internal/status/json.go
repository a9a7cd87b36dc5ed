package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	BootID        string       `json:"boot_id"`
	Light         LightJSON    `json:"light"`
	Clock         ClockJSON    `json:"clock"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// LightJSON reports what the fixture shows.
type LightJSON struct {
	Color     string `json:"color"`
	Ratio     uint8  `json:"ratio"`
	Displayed string `json:"displayed"`
	Source    string `json:"source"`
	Window    string `json:"window,omitempty"`
}

// ClockJSON reports the time source.
type ClockJSON struct {
	TimeOfDay string `json:"time_of_day"`
	Trusted   bool   `json:"trusted"`
	Synced    bool   `json:"synced"`
	LastSync  string `json:"last_sync,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Writes       int `json:"writes"`
	ResyncOK     int `json:"resync_ok"`
	ResyncFailed int `json:"resync_failed"`
	TrustLost    int `json:"trust_lost"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Connected  bool   `json:"connected"`
	Type       string `json:"type,omitempty"`
	IP         string `json:"ip,omitempty"`
	Status     string `json:"status,omitempty"`
	Gateway    string `json:"gateway,omitempty"`
	WifiStatus string `json:"wifi_status,omitempty"`
	SSID       string `json:"ssid,omitempty"`
}

// AlarmJSON is one configured window.
type AlarmJSON struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	From    string `json:"from"`
	To      string `json:"to"`
	Color   string `json:"color"`
	Ratio   uint8  `json:"ratio"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs           int64       `json:"tick_ms"`
	HeartbeatMs      int64       `json:"heartbeat_ms"`
	ResyncIntervalMs int64       `json:"resync_interval_ms"`
	NTPServer        string      `json:"ntp_server"`
	Timezone         string      `json:"timezone"`
	Driver           string      `json:"driver"`
	Broker           string      `json:"broker"`
	HTTPPort         string      `json:"http_port"`
	GapPolicy        string      `json:"gap_policy"`
	Fallback         string      `json:"fallback"`
	Alarms           []AlarmJSON `json:"alarms"`
}

func buildInner(snap Snapshot) StatusInner {
	source := string(snap.Source)
	if source == "" {
		source = "UNKNOWN"
	}

	inner := StatusInner{
		BootID: snap.BootID,
		Light: LightJSON{
			Color:     snap.Appearance.Color.Hex(),
			Ratio:     snap.Appearance.Ratio,
			Displayed: snap.Appearance.Dimmed().Hex(),
			Source:    source,
			Window:    snap.Window,
		},
		Clock: ClockJSON{
			TimeOfDay: snap.TimeOfDay.String(),
			Trusted:   snap.Trusted,
			Synced:    snap.Synced,
		},
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Writes:       snap.Counts.Writes,
			ResyncOK:     snap.Counts.ResyncOK,
			ResyncFailed: snap.Counts.ResyncFailed,
			TrustLost:    snap.Counts.TrustLost,
		},
		Config: ConfigJSON{
			TickMs:           snap.Config.TickMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			ResyncIntervalMs: snap.Config.ResyncIntervalMs,
			NTPServer:        snap.Config.NTPServer,
			Timezone:         snap.Config.Timezone,
			Driver:           snap.Config.Driver,
			Broker:           snap.Config.Broker,
			HTTPPort:         snap.Config.HTTPPort,
			GapPolicy:        snap.Config.GapPolicy,
			Fallback:         snap.Config.Fallback,
			Alarms:           make([]AlarmJSON, 0, len(snap.Config.Alarms)),
		},
	}
	if !snap.LastSync.IsZero() {
		inner.Clock.LastSync = snap.LastSync.UTC().Format(time.RFC3339)
	}
	for _, a := range snap.Config.Alarms {
		inner.Config.Alarms = append(inner.Config.Alarms, AlarmJSON(a))
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	n := &NetworkJSON{Connected: snap.NetworkConnected}
	if snap.Network != nil {
		n.Type = snap.Network.Type
		n.IP = snap.Network.IP
		n.Status = snap.Network.Status
		n.Gateway = snap.Network.Gateway
		n.WifiStatus = snap.Network.WifiStatus
		n.SSID = snap.Network.SSID
	}
	inner.Network = n
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
