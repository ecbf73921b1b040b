package scheduler

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseNaturalTime recognizes a small closed set of natural-language time
// phrases and normalizes them to a future absolute time relative to now.
// Unparseable input returns (zero, false); the caller falls back to
// RFC3339 parsing.
func ParseNaturalTime(input string, now time.Time) (time.Time, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return time.Time{}, false
	}

	if t, ok := parseInDuration(text, now); ok {
		return t, true
	}
	if t, ok := parseTomorrowAt(text, now); ok {
		return t, true
	}
	if t, ok := parseAtClock(text, now); ok {
		return t, true
	}
	return time.Time{}, false
}

var inDurationRe = regexp.MustCompile(`^in\s+(\d+)\s*(minute|minutes|hour|hours|day|days)$`)

// parseInDuration handles "in N {minutes|hours|days}".
func parseInDuration(text string, now time.Time) (time.Time, bool) {
	m := inDurationRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	switch {
	case strings.HasPrefix(m[2], "minute"):
		return now.Add(time.Duration(n) * time.Minute), true
	case strings.HasPrefix(m[2], "hour"):
		return now.Add(time.Duration(n) * time.Hour), true
	case strings.HasPrefix(m[2], "day"):
		return now.AddDate(0, 0, n), true
	default:
		return time.Time{}, false
	}
}

var tomorrowAtRe = regexp.MustCompile(`^tomorrow at (\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

// parseTomorrowAt handles "tomorrow at H[:M] [am|pm]".
func parseTomorrowAt(text string, now time.Time) (time.Time, bool) {
	m := tomorrowAtRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	hour, minute, ok := normalizeHourMinute(m[1], m[2], m[3])
	if !ok {
		return time.Time{}, false
	}
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), hour, minute, 0, 0, now.Location()), true
}

var atClockRe = regexp.MustCompile(`^at (\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

// parseAtClock handles "at H:M [am|pm]" and "at H {am|pm}". If the
// resulting time has already passed today, it rolls forward to tomorrow.
func parseAtClock(text string, now time.Time) (time.Time, bool) {
	m := atClockRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	hour, minute, ok := normalizeHourMinute(m[1], m[2], m[3])
	if !ok {
		return time.Time{}, false
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if candidate.Before(now) {
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate, true
}

func normalizeHourMinute(hourStr, minuteStr, meridiem string) (int, int, bool) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute := 0
	if minuteStr != "" {
		minute, err = strconv.Atoi(minuteStr)
		if err != nil || minute < 0 || minute > 59 {
			return 0, 0, false
		}
	}
	switch meridiem {
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour != 12 {
			hour += 12
		}
	}
	if hour > 23 {
		return 0, 0, false
	}
	return hour, minute, true
}
