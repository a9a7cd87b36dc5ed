package logic

// AlarmWindow maps a time-of-day range to an appearance.
// From == To means the window covers the whole day.
type AlarmWindow struct {
	Name       string
	Enabled    bool
	From       TimeOfDay
	To         TimeOfDay
	Appearance Appearance
}

// Start returns the inclusive start of the window.
func (w AlarmWindow) Start() TimeOfDay { return w.From }

// End returns the exclusive end of the window.
func (w AlarmWindow) End() TimeOfDay { return w.To }

// Wraps reports whether the window crosses midnight.
func (w AlarmWindow) Wraps() bool { return w.From >= w.To }

// Contains reports whether now falls inside the window, ignoring Enabled.
func (w AlarmWindow) Contains(now TimeOfDay) bool {
	start, end := w.Start(), w.End()
	if start < end {
		return now >= start && now < end
	}
	return (now >= start && now < MinutesPerDay) || now < end
}

// Match is the result of a successful schedule evaluation.
type Match struct {
	Index      int
	Name       string
	Appearance Appearance
}

// Schedule is the ordered, read-only alarm table.
type Schedule struct {
	windows []AlarmWindow
}

// NewSchedule copies windows into a new schedule. Order is significant.
func NewSchedule(windows []AlarmWindow) *Schedule {
	w := make([]AlarmWindow, len(windows))
	copy(w, windows)
	return &Schedule{windows: w}
}

// Windows returns a copy of the table.
func (s *Schedule) Windows() []AlarmWindow {
	w := make([]AlarmWindow, len(s.windows))
	copy(w, s.windows)
	return w
}

// Len returns the number of windows, enabled or not.
func (s *Schedule) Len() int {
	return len(s.windows)
}

// Evaluate returns the appearance that should be active at now.
// Every enabled window is tested; when several contain now, the last one
// in table order wins. ok is false when no enabled window contains now.
func (s *Schedule) Evaluate(now TimeOfDay) (m Match, ok bool) {
	for i, w := range s.windows {
		if !w.Enabled {
			continue
		}
		if w.Contains(now) {
			m = Match{Index: i, Name: w.Name, Appearance: w.Appearance}
			ok = true
		}
	}
	return m, ok
}
