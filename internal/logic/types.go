// Package logic contains the pure scheduling and light-state rules for the fixture.
// This package has NO external dependencies (no GPIO, MQTT, NTP, OS, or time.Sleep).
// Time of day and tick counts are always passed in by the caller.
package logic

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the length of the day in TimeOfDay units.
const MinutesPerDay = 1440

// TimeOfDay is minutes since local midnight, in [0, 1439].
type TimeOfDay uint16

// NewTimeOfDay returns hour*60+minute. Callers pass validated values.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (or "H:MM").
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(m) != 2 {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q: %d", s, hour)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q: %d", s, minute)
	}
	return NewTimeOfDay(hour, minute), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String renders the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Color is an 8-bit RGB value as written to the fixture.
type Color struct {
	R, G, B uint8
}

// Black is the "off" color.
var Black = Color{}

// Dim scales every channel by ratio/256 the way NeoPixelBus does:
// (v * (ratio+1)) >> 8. Ratio 255 leaves the color unchanged.
func (c Color) Dim(ratio uint8) Color {
	return Color{
		R: dimElement(c.R, ratio),
		G: dimElement(c.G, ratio),
		B: dimElement(c.B, ratio),
	}
}

func dimElement(v, ratio uint8) uint8 {
	return uint8((uint16(v) * (uint16(ratio) + 1)) >> 8)
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Appearance is what the fixture should display: a base color and an
// intensity ratio in [0,255].
type Appearance struct {
	Color Color
	Ratio uint8
}

// Off is the initial appearance before anything was written.
var Off = Appearance{Color: Black}

// Dimmed returns the color actually shown for this appearance.
func (a Appearance) Dimmed() Color {
	return a.Color.Dim(a.Ratio)
}

func (a Appearance) String() string {
	return fmt.Sprintf("%s@%d", a.Color.Hex(), a.Ratio)
}

// Tick is a monotonic millisecond counter value. It wraps on overflow.
type Tick uint32

// Source explains why an appearance was chosen.
type Source string

const (
	SourceSchedule Source = "SCHEDULE"
	SourceFallback Source = "FALLBACK"
	SourceHold     Source = "HOLD"
)

// GapPolicy selects what happens when trusted time falls in no window.
type GapPolicy string

const (
	// GapHold leaves the current display untouched.
	GapHold GapPolicy = "hold"
	// GapFallback shows the fallback appearance.
	GapFallback GapPolicy = "fallback"
)

// ControllerState is the mutable state of the control loop. It is owned by a
// single goroutine and passed explicitly to every operation that changes it.
type ControllerState struct {
	// Last appearance written to the output.
	Current Appearance
	// Tick of the last successful resync. Only meaningful when Synced.
	LastSync Tick
	// False means "never synced" (or the last attempt failed).
	Synced bool
	// Applied is false until the first successful write. Until then the
	// fixture may still show whatever it showed before this process started.
	Applied bool
}

// NewControllerState returns the initial state: display assumed off but not
// yet applied, never synced.
func NewControllerState() *ControllerState {
	return &ControllerState{Current: Off}
}
