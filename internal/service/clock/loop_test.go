package clock

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oshokin/alarm-clock/internal/audio"
	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var loopSettings = &config.Loop{
	TickInterval:      time.Second,
	KeepaliveInterval: time.Minute,
}

// startLoop runs a loop over f in the background and returns its stop function.
func startLoop(t *testing.T, f *machineFixture) func() {
	t.Helper()

	loop := NewLoop(f.machine, f.publisher, alarm.SystemClock, loopSettings)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- loop.Run(ctx)
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func pongs(pubs []publication) int {
	count := 0

	for _, p := range pubs {
		if p.feed == alarm.FeedPing && p.payload == alarm.PayloadPong {
			count++
		}
	}

	return count
}

// TestLoop_FiresAtScheduledInstant rings on the first tick at or after the instant.
func TestLoop_FiresAtScheduledInstant(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()

		f := newFixture(time.Now())
		f.machine.clock = alarm.SystemClock
		f.machine.OnArmedChanged(ctx, true)
		require.NoError(t, f.machine.OnTimeSet(ctx, time.Now().Add(2*time.Minute).Format("15:04")))

		fireAt := f.machine.Snapshot().NextFire
		stop := startLoop(t, f)

		time.Sleep(time.Until(fireAt) - 500*time.Millisecond)
		synctest.Wait()
		require.False(t, f.machine.Snapshot().Ringing)

		time.Sleep(time.Second)
		synctest.Wait()

		snapshot := f.machine.Snapshot()
		require.True(t, snapshot.Ringing)
		require.Equal(t, fireAt, snapshot.LastFired)

		starts, _ := f.player.calls()
		require.Equal(t, []audio.Clip{audio.ClipAlarm}, starts)

		// Disarming silences on the next tick.
		f.machine.OnArmedChanged(ctx, false)
		time.Sleep(time.Second)
		synctest.Wait()

		require.False(t, f.machine.Snapshot().Ringing)
		require.Equal(t, 1, f.notifier.count())

		stop()

		ringing := 0

		for _, p := range f.publisher.publications() {
			if p.feed == alarm.FeedRinging {
				ringing++
			}
		}

		require.Equal(t, 2, ringing)
	})
}

// TestLoop_Keepalive publishes pong once per keepalive interval.
func TestLoop_Keepalive(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		f := newFixture(time.Now())
		stop := startLoop(t, f)

		time.Sleep(59500 * time.Millisecond)
		synctest.Wait()
		require.Zero(t, pongs(f.publisher.publications()))

		time.Sleep(time.Second)
		synctest.Wait()
		require.Equal(t, 1, pongs(f.publisher.publications()))

		time.Sleep(time.Minute)
		synctest.Wait()
		require.Equal(t, 2, pongs(f.publisher.publications()))

		stop()
	})
}

// TestLoop_SlowKeepaliveDoesNotBlockTicks keeps evaluating while a publication hangs.
func TestLoop_SlowKeepaliveDoesNotBlockTicks(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		f := newFixture(time.Now())
		f.publisher.pingDelay = 90 * time.Second

		stop := startLoop(t, f)

		// Keepalive starts at 60s and hangs until 150s.
		time.Sleep(61 * time.Second)

		f.machine.mu.Lock()
		f.machine.config.Armed = true
		f.machine.config.NextFire = time.Now().Add(2 * time.Second)
		f.machine.mu.Unlock()

		time.Sleep(3 * time.Second)
		synctest.Wait()
		require.True(t, f.machine.Snapshot().Ringing)

		// The second keepalive at 120s is skipped while the first is in flight.
		time.Sleep(100 * time.Second)
		synctest.Wait()
		require.Equal(t, 1, pongs(f.publisher.publications()))

		stop()
	})
}

// TestLoop_SurvivesFailures keeps ticking after publish errors and panics.
func TestLoop_SurvivesFailures(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		f := newFixture(time.Now())
		f.publisher.err = errTestPublish
		f.player.panics = true

		f.machine.mu.Lock()
		f.machine.config.Armed = true
		f.machine.config.NextFire = time.Now().Add(-time.Second)
		f.machine.mu.Unlock()

		stop := startLoop(t, f)

		time.Sleep(150 * time.Second)
		synctest.Wait()

		require.False(t, f.machine.Snapshot().Ringing)
		require.Equal(t, 2, pongs(f.publisher.publications()))

		stop()
	})
}

// TestNewLoop_Defaults falls back to the default cadence.
func TestNewLoop_Defaults(t *testing.T) {
	t.Parallel()

	loop := NewLoop(nil, nil, nil, new(config.Loop))

	require.Equal(t, config.DefaultTickInterval, loop.tick)
	require.Equal(t, config.DefaultKeepaliveInterval, loop.keepalive)
	require.NotNil(t, loop.clock)
}
