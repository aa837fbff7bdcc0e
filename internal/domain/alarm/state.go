package alarm

import "time"

// Config is the single alarm slot owned by the state machine.
type Config struct {
	// Armed reports whether the alarm is scheduled to fire.
	Armed bool
	// Ringing reports whether the alarm clip is currently playing.
	Ringing bool
	// TimeOfDayShort is the last accepted "HH:MM" value, kept verbatim for change detection.
	TimeOfDayShort string
	// NextFire is the absolute instant the alarm is due to ring.
	NextFire time.Time
	// LastFired is the NextFire value that was last acted upon.
	LastFired time.Time
}

// NewConfig returns a disarmed, silent slot whose instants are set to now,
// so nothing fires before a time is received.
func NewConfig(now time.Time) *Config {
	return &Config{
		NextFire:  now,
		LastFired: now,
	}
}

// Clone returns a copy of the config to avoid leaking internal references.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	cloned := *c

	return &cloned
}

// Due reports whether an armed, silent alarm should start ringing at now.
func (c *Config) Due(now time.Time) bool {
	return c.Armed &&
		!c.Ringing &&
		!now.Before(c.NextFire) &&
		!c.NextFire.Equal(c.LastFired)
}

// ShouldSilence reports whether a ringing alarm has been disarmed.
func (c *Config) ShouldSilence() bool {
	return !c.Armed && c.Ringing
}

// Switch renders a boolean in the ON/OFF form used on the feeds.
func Switch(on bool) string {
	if on {
		return PayloadOn
	}

	return PayloadOff
}
