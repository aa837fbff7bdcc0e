package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/metrics"
)

// Loop drives the machine once per tick and publishes a keepalive at a lower cadence.
type Loop struct {
	// machine is evaluated on every tick.
	machine *Machine
	// publisher carries keepalives.
	publisher Publisher
	// clock is read once per tick.
	clock alarm.Clock
	// tick is the evaluation period.
	tick time.Duration
	// keepalive is the period between keepalive publications.
	keepalive time.Duration

	// sending is set while a keepalive publication is in flight.
	sending atomic.Bool
	// wg tracks keepalive publications.
	wg sync.WaitGroup
}

// NewLoop creates a loop with the cadence from settings.
func NewLoop(machine *Machine, publisher Publisher, clock alarm.Clock, settings *config.Loop) *Loop {
	tick := settings.TickInterval
	if tick <= 0 {
		tick = config.DefaultTickInterval
	}

	keepalive := settings.KeepaliveInterval
	if keepalive <= 0 {
		keepalive = config.DefaultKeepaliveInterval
	}

	if clock == nil {
		clock = alarm.SystemClock
	}

	return &Loop{
		machine:   machine,
		publisher: publisher,
		clock:     clock,
		tick:      tick,
		keepalive: keepalive,
	}
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "loop")

	logger.InfoKV(ctx, "Reconciliation loop started", "tick", l.tick.String(), "keepalive", l.keepalive.String())

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	lastKeepalive := l.clock.Now()

	for {
		select {
		case <-ctx.Done():
			l.wg.Wait()
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
			lastKeepalive = l.step(ctx, lastKeepalive)
		}
	}
}

// step runs one tick and returns the instant of the latest keepalive.
func (l *Loop) step(ctx context.Context, lastKeepalive time.Time) time.Time {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TickDuration)

	now := l.clock.Now()

	l.evaluate(ctx, now)

	if now.Sub(lastKeepalive) < l.keepalive {
		return lastKeepalive
	}

	l.sendKeepalive(ctx)

	return now
}

// evaluate isolates the tick from a panicking collaborator.
func (l *Loop) evaluate(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Tick evaluation panicked", "panic", r)
		}
	}()

	l.machine.EvaluateTick(ctx, now)
}

// sendKeepalive publishes pong in the background so a slow broker does not
// delay the next evaluation. At most one keepalive is in flight.
func (l *Loop) sendKeepalive(ctx context.Context) {
	if !l.sending.CompareAndSwap(false, true) {
		logger.Debug(ctx, "Previous keepalive still in flight")
		return
	}

	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		defer l.sending.Store(false)

		logger.Debug(ctx, "Heartbeat pong")

		if err := l.publisher.Publish(ctx, alarm.FeedPing, alarm.PayloadPong); err != nil {
			logger.ErrorKV(ctx, "Keepalive failed", "error", err)
		}
	}()
}
