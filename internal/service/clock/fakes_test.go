package clock

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/alarm-clock/internal/audio"
	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

// fakePlayer records audio commands.
type fakePlayer struct {
	mu       sync.Mutex
	starts   []audio.Clip
	stops    int
	active   bool
	startErr error
	stopErr  error
	panics   bool
}

func (p *fakePlayer) Start(_ context.Context, clip audio.Clip) error {
	if p.panics {
		panic("speaker on fire")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.starts = append(p.starts, clip)
	if p.startErr != nil {
		return p.startErr
	}

	p.active = true

	return nil
}

func (p *fakePlayer) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stops++
	if p.stopErr != nil {
		return p.stopErr
	}

	p.active = false

	return nil
}

func (p *fakePlayer) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active
}

func (p *fakePlayer) calls() ([]audio.Clip, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]audio.Clip(nil), p.starts...), p.stops
}

// publication is one recorded Publish call.
type publication struct {
	feed    alarm.Feed
	payload string
}

// fakePublisher records publications and optionally fails or delays them.
type fakePublisher struct {
	mu        sync.Mutex
	sent      []publication
	err       error
	pingDelay time.Duration
}

func (p *fakePublisher) Publish(_ context.Context, feed alarm.Feed, payload string) error {
	if feed == alarm.FeedPing && p.pingDelay > 0 {
		time.Sleep(p.pingDelay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sent = append(p.sent, publication{feed: feed, payload: payload})

	return p.err
}

func (p *fakePublisher) publications() []publication {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]publication(nil), p.sent...)
}

// fakeNotifier counts notifications.
type fakeNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (n *fakeNotifier) Notify(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls++

	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls
}

// fixedClock returns a clock frozen at now.
func fixedClock(now time.Time) alarm.Clock {
	return alarm.ClockFunc(func() time.Time { return now })
}

// machineFixture bundles a machine with its fakes.
type machineFixture struct {
	machine   *Machine
	player    *fakePlayer
	publisher *fakePublisher
	notifier  *fakeNotifier
}

func newFixture(now time.Time) *machineFixture {
	f := &machineFixture{
		player:    new(fakePlayer),
		publisher: new(fakePublisher),
		notifier:  new(fakeNotifier),
	}

	f.machine = NewMachine(f.player, f.publisher, f.notifier, fixedClock(now))

	return f
}
