package alarm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTopic is returned when a message arrives on a feed the clock does not handle.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrEcho marks payloads the clock published itself, such as "pong" or a snooze "OFF".
	ErrEcho = errors.New("echoed payload")
)

// ParseError describes a malformed inbound payload.
type ParseError struct {
	// Input is the payload as received.
	Input string
	// Reason is a short human-readable cause.
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

// IsParseError reports whether err wraps a *ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError

	return errors.As(err, &parseErr)
}
