package domain

import (
	"fmt"
	"time"
)

const (
	dateKeyLayout  = "2006-01-02"
	minutesPerDay  = 24 * 60
	clockSeparator = ':'
)

// MinutesToClock renders a minute-of-day offset as a zero-padded HH:MM string.
// Offsets past midnight keep the unwrapped hour ("24:30"), so the end of a
// slot that overruns the day still sorts after its start. Negative offsets
// wrap into the day.
func MinutesToClock(minutes int) string {
	if minutes < 0 {
		minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ClockToMinutes parses a 24-hour HH:MM string into a minute-of-day offset.
func ClockToMinutes(clock string) (int, error) {
	if len(clock) != 5 || clock[2] != clockSeparator {
		return 0, fmt.Errorf("invalid clock value %q: want HH:MM", clock)
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DateKey renders t as a YYYY-MM-DD calendar-day key. The key is taken in t's
// own location; day boundaries are local, not UTC, so a late-evening local
// time never rolls into the next UTC day.
func DateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD key into midnight local time.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(dateKeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	return t, nil
}
