package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/alarm-clock/internal/audio"
	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/metrics"
	"github.com/oshokin/alarm-clock/internal/notifier"
)

// timestampLayout is used when logging scheduled instants.
const timestampLayout = "2006-01-02 15:04:05"

// Publisher sends a payload to an outbound feed.
type Publisher interface {
	Publish(ctx context.Context, feed alarm.Feed, payload string) error
}

// Machine owns the alarm slot. Inbound commands and clock ticks arrive on
// different goroutines, so every read and write of the slot happens under mu.
// Audio commands are issued under the lock; publications and the notifier
// run after it is released.
type Machine struct {
	// player drives the speaker.
	player audio.Player
	// publisher carries outbound state.
	publisher Publisher
	// notifier runs once per ringing to silent transition.
	notifier notifier.Notifier
	// clock supplies the instant used when a new time is set.
	clock alarm.Clock

	// mu serializes all access to config.
	mu sync.Mutex
	// config is the single alarm slot.
	config *alarm.Config
}

// NewMachine creates a disarmed, silent machine.
func NewMachine(player audio.Player, publisher Publisher, notify notifier.Notifier, clock alarm.Clock) *Machine {
	if notify == nil {
		notify = notifier.Nop{}
	}

	if clock == nil {
		clock = alarm.SystemClock
	}

	metrics.Armed.Set(0)
	metrics.Ringing.Set(0)

	return &Machine{
		player:    player,
		publisher: publisher,
		notifier:  notify,
		clock:     clock,
		config:    alarm.NewConfig(clock.Now()),
	}
}

// Snapshot returns a copy of the current slot.
func (m *Machine) Snapshot() *alarm.Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.config.Clone()
}

// HandleCommand routes a decoded inbound command to its handler.
// Nothing escapes: rejected input is logged and dropped.
func (m *Machine) HandleCommand(ctx context.Context, cmd alarm.Command) {
	switch c := cmd.(type) {
	case alarm.ArmedChanged:
		m.OnArmedChanged(ctx, c.Armed)
	case alarm.TimeSet:
		if err := m.OnTimeSet(ctx, c.Text); err != nil {
			logger.WarnKV(ctx, "Bad alarm time given", "error", err)
		}
	case alarm.Ping:
		m.OnPing(ctx)
	case alarm.SnoozePoke:
		m.OnSnoozePoke(ctx)
	default:
		logger.WarnKV(ctx, "Unsupported command", "command", fmt.Sprintf("%T", cmd))
	}
}

// OnArmedChanged stores the armed flag when it differs from the current one.
// The effect is applied by the next EvaluateTick.
func (m *Machine) OnArmedChanged(ctx context.Context, armed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.Armed == armed {
		return
	}

	m.config.Armed = armed
	metrics.Armed.Set(metrics.BoolValue(armed))

	logger.InfoKV(ctx, "Alarm armed state changed", "armed", alarm.Switch(armed))
}

// OnTimeSet parses "HH:MM" and, when it differs from the stored text,
// schedules the next occurrence. A malformed value leaves the slot untouched.
func (m *Machine) OnTimeSet(ctx context.Context, text string) error {
	tod, err := alarm.ParseTimeOfDay(text)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if text == m.config.TimeOfDayShort {
		return nil
	}

	m.config.TimeOfDayShort = text
	m.config.NextFire = tod.Next(m.clock.Now())

	logger.InfoKV(ctx, "Alarm set", "time", tod.String(), "next_fire", m.config.NextFire.Format(timestampLayout))

	return nil
}

// OnPing plays the chime unless the alarm is ringing and answers with pong.
func (m *Machine) OnPing(ctx context.Context) {
	m.mu.Lock()

	if !m.config.Ringing {
		if err := m.player.Start(ctx, audio.ClipChime); err != nil {
			logger.ErrorKV(ctx, "Failed to play chime", "error", err)
		}
	}

	m.mu.Unlock()

	m.publish(ctx, alarm.FeedPing, alarm.PayloadPong)

	logger.Info(ctx, "Ponged")
}

// OnSnoozePoke acknowledges a snooze button press. It does not silence the
// alarm; disarming does.
func (m *Machine) OnSnoozePoke(ctx context.Context) {
	m.publish(ctx, alarm.FeedSnoozePoke, alarm.PayloadOff)

	snapshot := m.Snapshot()

	logger.InfoKV(ctx, "Snooze pressed",
		"now", m.clock.Now().Format(timestampLayout),
		"next_fire", snapshot.NextFire.Format(timestampLayout),
	)
}

// transition is the outcome of one evaluation.
type transition int

const (
	transitionNone transition = iota
	transitionFired
	transitionSilenced
)

// EvaluateTick fires a due alarm or silences a disarmed one. When nothing
// is due it has no effect, so it is safe to call on every tick.
func (m *Machine) EvaluateTick(ctx context.Context, now time.Time) {
	switch m.decide(ctx, now) {
	case transitionFired:
		metrics.FiresTotal.Inc()
		m.publish(ctx, alarm.FeedRinging, alarm.PayloadOn)

		logger.Info(ctx, "Ringing")
	case transitionSilenced:
		metrics.SilencedTotal.Inc()
		m.publish(ctx, alarm.FeedRinging, alarm.PayloadOff)

		if err := m.notifier.Notify(ctx); err != nil {
			metrics.NotifyFailuresTotal.Inc()
			logger.ErrorKV(ctx, "Silence notification failed", "error", err)
		}

		logger.Info(ctx, "Snoozed")
	case transitionNone:
	}
}

// decide applies the state change for now and drives the speaker.
// A failed audio command leaves the slot as it was, so the next tick retries.
func (m *Machine) decide(ctx context.Context, now time.Time) transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.config.Due(now):
		if err := m.player.Start(ctx, audio.ClipAlarm); err != nil {
			logger.ErrorKV(ctx, "Failed to start alarm", "error", err)
			return transitionNone
		}

		m.config.Ringing = true
		m.config.LastFired = m.config.NextFire
		metrics.Ringing.Set(1)

		return transitionFired
	case m.config.ShouldSilence():
		if m.player.IsActive() {
			if err := m.player.Stop(ctx); err != nil {
				logger.ErrorKV(ctx, "Failed to stop alarm", "error", err)
				return transitionNone
			}
		}

		m.config.Ringing = false
		metrics.Ringing.Set(0)

		return transitionSilenced
	default:
		return transitionNone
	}
}

// publish sends one payload; failures are logged and dropped.
func (m *Machine) publish(ctx context.Context, feed alarm.Feed, payload string) {
	if err := m.publisher.Publish(ctx, feed, payload); err != nil {
		logger.ErrorKV(ctx, "Publish failed", "feed", feed, "payload", payload, "error", err)
	}
}
