// Package status provides a thread-safe status tracker for the nightlight daemon.
// It is read by HTTP handlers and by the MQTT system event publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/nightlight/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/network from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// AlarmInfo describes one configured window for display.
type AlarmInfo struct {
	Name    string
	Enabled bool
	From    string
	To      string
	Color   string
	Ratio   uint8
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs           int64
	HeartbeatMs      int64
	ResyncIntervalMs int64
	NTPServer        string
	Timezone         string
	Driver           string
	Broker           string
	HTTPPort         string
	GapPolicy        string
	Fallback         string
	Alarms           []AlarmInfo
}

// Light is the per-tick view of the control loop.
type Light struct {
	Appearance logic.Appearance
	Source     logic.Source
	Window     string
	TimeOfDay  logic.TimeOfDay
	Trusted    bool
	Synced     bool
	Counts     logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Light
	// Ready is false until the first tick has completed.
	Ready            bool
	LastSync         time.Time
	BootID           string
	StartTime        time.Time
	Now              time.Time
	MQTTConnected    bool
	NetworkConnected bool
	Network          *NetworkInfo
	Config           Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, boot ID and config.
func NewTracker(startTime time.Time, bootID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			BootID:    bootID,
			Config:    cfg,
		},
	}
}

// Update stores the light state. Called from runLoop on every tick.
func (t *Tracker) Update(l Light) {
	t.mu.Lock()
	t.snap.Light = l
	t.snap.Ready = true
	t.mu.Unlock()
}

// SetLastSync records the wall time of the last successful clock resync.
func (t *Tracker) SetLastSync(at time.Time) {
	t.mu.Lock()
	t.snap.LastSync = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the connectivity flag and pi-helper network info (may be nil).
func (t *Tracker) SetNetwork(connected bool, info *NetworkInfo) {
	t.mu.Lock()
	t.snap.NetworkConnected = connected
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
