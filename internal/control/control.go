// Package control runs one iteration of the night light control loop:
// resync the clock when due, read the time of day, evaluate the schedule,
// decide the target appearance and write it to the fixture.
package control

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sweeney/nightlight/internal/logic"
)

// ClockSource provides wall-clock time of day and its trust signal.
type ClockSource interface {
	TimeOfDay() logic.TimeOfDay
	Trusted() bool
	Resync(ctx context.Context) error
}

// Connectivity reports whether the network is up.
type Connectivity interface {
	IsConnected() bool
}

// Output writes the displayed color to the fixture.
type Output interface {
	Write(c logic.Color) error
}

// TickCounter is a monotonic millisecond counter that wraps.
type TickCounter interface {
	Now() logic.Tick
}

// Config holds the immutable parts of the loop.
type Config struct {
	Schedule      *logic.Schedule
	Controller    *logic.LightController
	Resync        *logic.ResyncScheduler
	ResyncTimeout time.Duration
}

// Report describes what happened during one Tick.
type Report struct {
	Tick      logic.Tick
	TimeOfDay logic.TimeOfDay
	Trusted   bool

	ResyncAttempted bool
	ResyncErr       error

	Decision logic.Decision
	Wrote    bool
	WriteErr error

	// Events are the state changes observed during this tick, in order.
	Events []logic.Event
}

// Runner owns the collaborators of the control loop. It is not safe for
// concurrent use; a single goroutine calls Tick.
type Runner struct {
	cfg   Config
	clock ClockSource
	conn  Connectivity
	out   Output
	ticks TickCounter
	now   func() time.Time

	counts      logic.EventCounts
	trustKnown  bool
	lastTrusted bool
	failStreak  int

	resyncLog rate.Sometimes
	writeLog  rate.Sometimes
}

// Option configures a Runner.
type Option func(*Runner)

// WithWallClock sets the function used to timestamp events.
func WithWallClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner.
func NewRunner(cfg Config, clock ClockSource, conn Connectivity, out Output, ticks TickCounter, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		clock:     clock,
		conn:      conn,
		out:       out,
		ticks:     ticks,
		now:       time.Now,
		resyncLog: rate.Sometimes{First: 3, Interval: 5 * time.Minute},
		writeLog:  rate.Sometimes{First: 3, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Counts returns event counts since the Runner was created.
func (r *Runner) Counts() logic.EventCounts {
	return r.counts
}

// Tick runs one control loop iteration against st.
func (r *Runner) Tick(ctx context.Context, st *logic.ControllerState) Report {
	now := r.ticks.Now()
	rep := Report{Tick: now}

	if r.cfg.Resync.Due(st, now) && r.conn.IsConnected() {
		r.resync(ctx, st, now, &rep)
	}

	rep.TimeOfDay = r.clock.TimeOfDay()
	rep.Trusted = r.clock.Trusted()
	r.observeTrust(&rep)

	m, ok := r.cfg.Schedule.Evaluate(rep.TimeOfDay)
	rep.Decision = r.cfg.Controller.Decide(st, rep.Trusted, m, ok)
	if !rep.Decision.Write {
		return rep
	}

	if err := r.out.Write(rep.Decision.Target.Dimmed()); err != nil {
		rep.WriteErr = err
		r.writeLog.Do(func() {
			log.Warn().Err(err).Str("target", rep.Decision.Target.String()).Msg("output write failed")
		})
		return rep
	}
	r.cfg.Controller.Commit(st, rep.Decision.Target)
	rep.Wrote = true
	r.counts.Writes++

	ev := r.event(logic.EventAppearanceChanged, rep.TimeOfDay)
	ev.Appearance = rep.Decision.Target
	ev.Source = rep.Decision.Source
	if rep.Decision.Match != nil {
		ev.Window = rep.Decision.Match.Name
	}
	rep.Events = append(rep.Events, ev)

	log.Info().
		Str("appearance", ev.Appearance.String()).
		Str("displayed", ev.Appearance.Dimmed().Hex()).
		Str("source", string(ev.Source)).
		Str("window", ev.Window).
		Str("time", rep.TimeOfDay.String()).
		Msg("appearance changed")
	return rep
}

func (r *Runner) resync(ctx context.Context, st *logic.ControllerState, now logic.Tick, rep *Report) {
	rep.ResyncAttempted = true

	rctx := ctx
	if r.cfg.ResyncTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, r.cfg.ResyncTimeout)
		defer cancel()
	}

	err := r.clock.Resync(rctx)
	r.cfg.Resync.Record(st, now, err)
	rep.ResyncErr = err

	if err != nil {
		r.counts.ResyncFailed++
		r.failStreak++
		if r.failStreak == 1 {
			ev := r.event(logic.EventTimeSyncFailed, r.clock.TimeOfDay())
			ev.Reason = err.Error()
			rep.Events = append(rep.Events, ev)
		}
		r.resyncLog.Do(func() {
			log.Warn().Err(err).Int("streak", r.failStreak).Msg("clock resync failed")
		})
		return
	}

	if r.failStreak > 0 {
		log.Info().Int("failures", r.failStreak).Msg("clock resync recovered")
	}
	r.failStreak = 0
	r.counts.ResyncOK++
	rep.Events = append(rep.Events, r.event(logic.EventTimeSynced, r.clock.TimeOfDay()))
	log.Debug().Msg("clock resynced")
}

// observeTrust emits TRUST_LOST and TRUST_RESTORED on transitions. The
// first observation only sets the baseline.
func (r *Runner) observeTrust(rep *Report) {
	if !r.trustKnown {
		r.trustKnown = true
		r.lastTrusted = rep.Trusted
		if !rep.Trusted {
			log.Warn().Msg("clock not trusted, showing fallback")
		}
		return
	}
	if rep.Trusted == r.lastTrusted {
		return
	}
	r.lastTrusted = rep.Trusted

	if rep.Trusted {
		rep.Events = append(rep.Events, r.event(logic.EventTrustRestored, rep.TimeOfDay))
		log.Info().Str("time", rep.TimeOfDay.String()).Msg("clock trusted again")
		return
	}
	r.counts.TrustLost++
	rep.Events = append(rep.Events, r.event(logic.EventTrustLost, rep.TimeOfDay))
	log.Warn().Msg("clock trust lost, showing fallback")
}

func (r *Runner) event(t logic.EventType, tod logic.TimeOfDay) logic.Event {
	return logic.Event{Timestamp: r.now(), Type: t, TimeOfDay: tod}
}
