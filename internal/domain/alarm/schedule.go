package alarm

import (
	"strconv"
	"strings"
	"time"
)

const (
	maxHour   = 23
	maxMinute = 59
)

// TimeOfDay is a validated wall-clock "HH:MM" value.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" with hour in [0,23] and minute in [0,59].
func ParseTimeOfDay(text string) (TimeOfDay, error) {
	trimmed := strings.TrimSpace(text)

	hourText, minuteText, found := strings.Cut(trimmed, ":")
	if !found {
		return TimeOfDay{}, &ParseError{Input: text, Reason: "expected HH:MM"}
	}

	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return TimeOfDay{}, &ParseError{Input: text, Reason: "hour is not a number"}
	}

	minute, err := strconv.Atoi(minuteText)
	if err != nil {
		return TimeOfDay{}, &ParseError{Input: text, Reason: "minute is not a number"}
	}

	if hour < 0 || hour > maxHour {
		return TimeOfDay{}, &ParseError{Input: text, Reason: "hour out of range"}
	}

	if minute < 0 || minute > maxMinute {
		return TimeOfDay{}, &ParseError{Input: text, Reason: "minute out of range"}
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// String formats the value as zero-padded "HH:MM".
func (t TimeOfDay) String() string {
	return twoDigits(t.Hour) + ":" + twoDigits(t.Minute)
}

// Next returns the first instant at t strictly after now, in now's location.
// If today's instant has already been reached the result rolls to tomorrow.
func (t TimeOfDay) Next(now time.Time) time.Time {
	year, month, day := now.Date()

	candidate := time.Date(year, month, day, t.Hour, t.Minute, 0, 0, now.Location())
	if candidate.After(now) {
		return candidate
	}

	return time.Date(year, month, day+1, t.Hour, t.Minute, 0, 0, now.Location())
}

func twoDigits(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}

	return strconv.Itoa(v)
}
