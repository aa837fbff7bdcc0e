package mqtt

import (
	"errors"
	"fmt"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

var (
	// ErrNotConnected is returned by Publish while the broker is unreachable.
	ErrNotConnected = errors.New("not connected")
	// errTimeout is the cause when a broker round trip exceeds the configured timeout.
	errTimeout = errors.New("timed out waiting for broker")
)

// TransportError reports a failed connect, subscribe or publish.
type TransportError struct {
	// Op is the failed operation: connect, subscribe or publish.
	Op string
	// Feed is the feed involved, empty for connect.
	Feed alarm.Feed
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Feed == "" {
		return fmt.Sprintf("mqtt %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("mqtt %s %s: %v", e.Op, e.Feed, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}
