package clock

import (
	"time"

	"github.com/sweeney/nightlight/internal/logic"
)

// Monotonic counts milliseconds since it was created, truncated to 32 bits.
// It wraps after about 49.7 days.
type Monotonic struct {
	start time.Time
	since func(time.Time) time.Duration
}

// NewMonotonic starts a counter at zero.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now(), since: time.Since}
}

// Now returns the current tick.
func (m *Monotonic) Now() logic.Tick {
	return logic.Tick(uint32(m.since(m.start) / time.Millisecond))
}

// TicksFor converts a duration to a tick count, saturating at the counter width.
func TicksFor(d time.Duration) logic.Tick {
	ms := d.Milliseconds()
	if ms <= 0 {
		return 0
	}
	if ms > int64(^uint32(0)) {
		return logic.Tick(^uint32(0))
	}
	return logic.Tick(ms)
}
