package promotion

import (
	"fmt"
	"time"
)

// DefaultStoreOffsetMinutes is UTC+6:30.
const DefaultStoreOffsetMinutes = 390

// StoreZone is the fixed offset every window is evaluated in.
type StoreZone struct {
	OffsetMinutes int
}

func NewStoreZone(offsetMinutes int) StoreZone {
	return StoreZone{OffsetMinutes: offsetMinutes}
}

func (z StoreZone) Location() *time.Location {
	sign := "+"
	minutes := z.OffsetMinutes
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	name := fmt.Sprintf("UTC%s%02d:%02d", sign, minutes/60, minutes%60)
	return time.FixedZone(name, z.OffsetMinutes*60)
}

// Local converts an instant to store-local wall time.
func (z StoreZone) Local(now time.Time) time.Time {
	return now.In(z.Location())
}

// IsWithinWindow reports whether now falls inside the day and time windows
// of conditions. Without conditions the window is open.
func IsWithinWindow(conditions []Condition, now time.Time, zone StoreZone) bool {
	local := zone.Local(now)

	days, hasDays := firstDayWindow(conditions)
	window, hasTime := firstTimeWindow(conditions)

	if hasDays && !dayMatches(days, local) {
		return false
	}
	if hasTime && !timeMatches(window, local) {
		return false
	}
	return true
}

func dayMatches(w DayWindow, local time.Time) bool {
	today := local.Weekday().String()
	for _, d := range w.Days {
		if d == today {
			return true
		}
	}
	return false
}

// Both bounds sit on the same calendar day, so a range whose end is before
// its start never matches.
func timeMatches(w TimeWindow, local time.Time) bool {
	now := ClockOf(local)
	return now >= w.Start && now <= w.End
}
