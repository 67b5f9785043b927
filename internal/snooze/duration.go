// Package snooze defers feedback items until a wake time and wakes them again.
package snooze

import (
	"strconv"
	"strings"
	"time"

	"github.com/linnemanlabs/sift/internal/feedback"
)

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
)

// Presets are the named snooze lengths offered to users.
var Presets = map[string]time.Duration{
	"1h": time.Hour,
	"4h": 4 * time.Hour,
	"1d": Day,
	"3d": 3 * Day,
	"1w": Week,
	"2w": 2 * Week,
	"1m": Month,
}

var units = map[byte]time.Duration{
	'h': time.Hour,
	'd': Day,
	'w': Week,
	'm': Month,
}

// maxSnooze caps custom durations so now+d cannot overflow.
const maxSnooze = 10 * 365 * Day

// ParseDuration accepts a preset, a custom "<n><h|d|w|m>" string, or a
// compound Go duration such as "1h30m". A bare "<n>m" is n 30-day months,
// never minutes.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, feedback.Invalid("duration", "must not be empty")
	}
	if d, ok := Presets[s]; ok {
		return d, nil
	}

	if unit, ok := units[s[len(s)-1]]; ok {
		if n, err := strconv.Atoi(s[:len(s)-1]); err == nil {
			if n <= 0 {
				return 0, feedback.Invalid("duration", "%q must be positive", s)
			}
			if time.Duration(n) > maxSnooze/unit {
				return 0, feedback.Invalid("duration", "%q exceeds the maximum snooze", s)
			}
			return time.Duration(n) * unit, nil
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, feedback.Invalid("duration", "%q is not a preset, <n><h|d|w|m>, or a duration", s)
	}
	return Validate(d)
}

// Validate checks a raw duration supplied directly instead of as a string.
func Validate(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, feedback.Invalid("duration", "must be positive")
	}
	if d > maxSnooze {
		return 0, feedback.Invalid("duration", "exceeds the maximum snooze")
	}
	return d, nil
}
