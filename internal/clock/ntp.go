// Package clock provides the wall-clock and tick sources for the control loop.
// The real implementations use NTP and the Go monotonic clock.
// The fake implementations allow testing without a network or waiting.
package clock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"github.com/sweeney/nightlight/internal/logic"
)

// ErrImplausibleTime is returned by Resync when the corrected clock is still
// earlier than the configured minimum year.
var ErrImplausibleTime = errors.New("clock: time not plausible")

// QueryFunc fetches the offset between the local clock and the time server.
type QueryFunc func(ctx context.Context, server string, timeout time.Duration) (time.Duration, error)

// NTPClock reports local time corrected by the offset from the last
// successful NTP query.
type NTPClock struct {
	server  string
	timeout time.Duration
	loc     *time.Location
	minYear int

	now   func() time.Time
	query QueryFunc

	mu         sync.RWMutex
	offset     time.Duration
	lastSynced time.Time
}

// Option configures an NTPClock.
type Option func(*NTPClock)

// WithNow replaces the local clock. Used in tests.
func WithNow(now func() time.Time) Option {
	return func(c *NTPClock) { c.now = now }
}

// WithQuery replaces the NTP query. Used in tests.
func WithQuery(q QueryFunc) Option {
	return func(c *NTPClock) { c.query = q }
}

// NewNTPClock creates a clock that syncs against server and reports time in loc.
// Time is trustworthy once the corrected year is at least minYear.
func NewNTPClock(server string, timeout time.Duration, loc *time.Location, minYear int, opts ...Option) *NTPClock {
	if loc == nil {
		loc = time.UTC
	}
	c := &NTPClock{
		server:  server,
		timeout: timeout,
		loc:     loc,
		minYear: minYear,
		now:     time.Now,
		query:   queryNTP,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func queryNTP(ctx context.Context, server string, timeout time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < timeout {
			timeout = remaining
		}
	}
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", server, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("validate response from %s: %w", server, err)
	}
	return resp.ClockOffset, nil
}

// Now returns the corrected local time.
func (c *NTPClock) Now() time.Time {
	return c.now().Add(c.Offset()).In(c.loc)
}

// TimeOfDay returns minutes since local midnight.
func (c *NTPClock) TimeOfDay() logic.TimeOfDay {
	t := c.Now()
	return logic.NewTimeOfDay(t.Hour(), t.Minute())
}

// MinValid returns the earliest time accepted as synced wall-clock time.
func (c *NTPClock) MinValid() time.Time {
	return time.Date(c.minYear, time.January, 1, 0, 0, 0, 0, c.loc)
}

// Trusted reports whether the corrected year is plausible.
func (c *NTPClock) Trusted() bool {
	return c.Now().Year() >= c.minYear
}

// Offset returns the correction applied to the local clock.
func (c *NTPClock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// LastSynced returns the corrected time of the last successful resync,
// or the zero time if none succeeded.
func (c *NTPClock) LastSynced() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSynced
}

// Resync queries the time server and applies the returned offset.
// On error the previous offset is kept.
func (c *NTPClock) Resync(ctx context.Context) error {
	offset, err := c.query(ctx, c.server, c.timeout)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.offset = offset
	c.mu.Unlock()

	now := c.Now()
	if now.Year() < c.minYear {
		return fmt.Errorf("%w: %s after sync", ErrImplausibleTime, now.Format(time.RFC3339))
	}
	c.mu.Lock()
	c.lastSynced = now
	c.mu.Unlock()
	return nil
}
