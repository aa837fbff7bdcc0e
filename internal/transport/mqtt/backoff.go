package mqtt

import (
	"context"
	"time"

	"github.com/oshokin/alarm-clock/internal/config"
)

// defaultFactor doubles the wait after every failed attempt.
const defaultFactor = 2

// Backoff is a bounded exponential retry policy.
type Backoff struct {
	// Initial is the wait after the first failure.
	Initial time.Duration
	// Max caps every wait.
	Max time.Duration
	// Factor multiplies the wait after each failure.
	Factor float64
}

// BackoffFromConfig builds the policy from reconnect settings.
func BackoffFromConfig(settings *config.Reconnect) Backoff {
	return Backoff{
		Initial: settings.InitialInterval,
		Max:     settings.MaxInterval,
		Factor:  defaultFactor,
	}
}

// Next returns the wait before retrying after the given failed attempt, counting from 1.
func (b Backoff) Next(attempt int) time.Duration {
	wait := b.Initial
	if wait <= 0 {
		wait = config.DefaultReconnectInitial
	}

	factor := b.Factor
	if factor < 1 {
		factor = defaultFactor
	}

	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * factor)
		if b.Max > 0 && wait >= b.Max {
			return b.Max
		}
	}

	if b.Max > 0 && wait > b.Max {
		return b.Max
	}

	return wait
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
