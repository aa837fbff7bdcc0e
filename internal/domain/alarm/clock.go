package alarm

import "time"

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads time.Now.
//
//nolint:gochecknoglobals // Stateless default clock.
var SystemClock Clock = ClockFunc(time.Now)
