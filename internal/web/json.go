package web

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sweeney/nightlight/internal/ledger"
	"github.com/sweeney/nightlight/internal/status"
)

// HealthJSON is the /health response.
type HealthJSON struct {
	OK      bool   `json:"ok"`
	Trusted bool   `json:"trusted"`
	Source  string `json:"source,omitempty"`
}

// HistoryJSON is the /history.json response.
type HistoryJSON struct {
	Events []HistoryEvent `json:"events"`
}

// HistoryEvent is one ledger entry.
type HistoryEvent struct {
	ID        int64  `json:"id"`
	BootID    string `json:"boot_id"`
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

func formatHealth(snap status.Snapshot) []byte {
	data, _ := json.Marshal(HealthJSON{
		OK:      snap.Ready,
		Trusted: snap.Trusted,
		Source:  string(snap.Source),
	})
	return data
}

func formatHistory(entries []ledger.Entry) []byte {
	h := HistoryJSON{Events: make([]HistoryEvent, 0, len(entries))}
	for _, e := range entries {
		h.Events = append(h.Events, HistoryEvent{
			ID:        e.ID,
			BootID:    e.BootID,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(e.Type),
			TimeOfDay: e.TimeOfDay,
			Color:     e.Color,
			Ratio:     e.Ratio,
			Displayed: e.Displayed,
			Source:    e.Source,
			Window:    e.Window,
			Reason:    e.Reason,
		})
	}
	data, _ := json.MarshalIndent(h, "", "  ")
	return data
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, nil
}
