package logic

// Elapsed returns now-last using modular uint32 arithmetic. The result is
// correct across a single counter wrap.
func Elapsed(now, last Tick) Tick {
	return now - last
}

// ResyncScheduler decides when the clock source should be resynchronised.
type ResyncScheduler struct {
	Interval Tick
}

// NewResyncScheduler creates a scheduler with the given interval in ticks.
func NewResyncScheduler(interval Tick) *ResyncScheduler {
	return &ResyncScheduler{Interval: interval}
}

// Due reports whether a resync attempt should be made at now.
// A state that never synced is always due. A counter that moved backwards
// relative to LastSync (wrapped) is treated as due immediately.
func (r *ResyncScheduler) Due(st *ControllerState, now Tick) bool {
	if !st.Synced {
		return true
	}
	if now < st.LastSync {
		return true
	}
	return Elapsed(now, st.LastSync) >= r.Interval
}

// Record stores the result of a resync attempt made at now. A failure
// resets the state to "never synced" so the next tick retries.
func (r *ResyncScheduler) Record(st *ControllerState, now Tick, err error) {
	if err != nil {
		st.Synced = false
		st.LastSync = 0
		return
	}
	st.LastSync = now
	st.Synced = true
}
