package clock

import (
	"context"

	"github.com/sweeney/nightlight/internal/logic"
)

// Fake is a test double for the clock source.
type Fake struct {
	// Time is returned by TimeOfDay.
	Time logic.TimeOfDay

	// IsTrusted is returned by Trusted.
	IsTrusted bool

	// ResyncError, if set, is returned by Resync.
	ResyncError error

	// TrustOnResync marks the clock trusted after a successful Resync.
	TrustOnResync bool

	// ResyncCalls counts calls to Resync.
	ResyncCalls int
}

// NewFake creates a Fake reporting the given time and trust flag.
func NewFake(t logic.TimeOfDay, trusted bool) *Fake {
	return &Fake{Time: t, IsTrusted: trusted}
}

// TimeOfDay returns the scripted time.
func (f *Fake) TimeOfDay() logic.TimeOfDay {
	return f.Time
}

// Trusted returns the scripted trust flag.
func (f *Fake) Trusted() bool {
	return f.IsTrusted
}

// Resync records the call and returns ResyncError.
func (f *Fake) Resync(ctx context.Context) error {
	f.ResyncCalls++
	if f.ResyncError != nil {
		return f.ResyncError
	}
	if f.TrustOnResync {
		f.IsTrusted = true
	}
	return nil
}

// FakeCounter is a manually advanced tick counter.
type FakeCounter struct {
	Tick logic.Tick
}

// Now returns the current tick.
func (f *FakeCounter) Now() logic.Tick {
	return f.Tick
}

// Advance moves the counter forward, wrapping on overflow.
func (f *FakeCounter) Advance(d logic.Tick) {
	f.Tick += d
}
