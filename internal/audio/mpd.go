package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"github.com/oshokin/alarm-clock/internal/logger"
)

// mpdTimeout bounds one dial-and-command round trip to the daemon.
const mpdTimeout = 3 * time.Second

// ErrMPDTimeout is returned when the daemon does not answer within the timeout.
var ErrMPDTimeout = errors.New("mpd did not respond")

// mpdConn is the subset of the MPD client used by MPDPlayer.
type mpdConn interface {
	Clear() error
	Add(uri string) error
	Repeat(repeat bool) error
	Play(pos int) error
	Stop() error
	Status() (mpd.Attrs, error)
	Close() error
}

// dialFunc opens a connection to MPD.
type dialFunc func(network, address string) (mpdConn, error)

// MPDPlayer queues clips on an MPD daemon. The alarm clip repeats until
// stopped; the chime plays once.
type MPDPlayer struct {
	// address is the MPD host:port.
	address string
	// files maps clips to URIs in the MPD library.
	files map[Clip]string
	// dial opens connections; replaced in tests.
	dial dialFunc
	// timeout bounds each round trip so a hung daemon cannot hold mu.
	timeout time.Duration
	// mu serialises commands so Start and Stop do not interleave.
	mu sync.Mutex
}

// NewMPDPlayer creates a player for the MPD daemon at address.
func NewMPDPlayer(address string, files map[Clip]string) *MPDPlayer {
	return &MPDPlayer{
		address: address,
		files:   files,
		dial: func(network, address string) (mpdConn, error) {
			return mpd.Dial(network, address)
		},
		timeout: mpdTimeout,
	}
}

// Start implements Player.
func (p *MPDPlayer) Start(ctx context.Context, clip Clip) error {
	uri, ok := p.files[clip]
	if !ok || uri == "" {
		return fmt.Errorf("%w: %s", ErrUnknownClip, clip)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.withConn(func(c mpdConn) error {
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}

		if err := c.Add(uri); err != nil {
			return fmt.Errorf("add %s: %w", uri, err)
		}

		if err := c.Repeat(clip == ClipAlarm); err != nil {
			return fmt.Errorf("set repeat: %w", err)
		}

		if err := c.Play(0); err != nil {
			return fmt.Errorf("play: %w", err)
		}

		logger.DebugKV(ctx, "Clip queued on MPD", "clip", clip, "uri", uri)

		return nil
	})
}

// Stop implements Player.
func (p *MPDPlayer) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.withConn(func(c mpdConn) error {
		if err := c.Stop(); err != nil {
			return fmt.Errorf("stop: %w", err)
		}

		return nil
	})
}

// IsActive implements Player. An unreachable daemon counts as silent.
func (p *MPDPlayer) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	var active bool

	err := p.withConn(func(c mpdConn) error {
		status, err := c.Status()
		if err != nil {
			return err
		}

		active = status["state"] == "play"

		return nil
	})

	return err == nil && active
}

// withConn runs fn on a fresh connection. gompd takes no deadline, so the
// round trip runs in its own goroutine; on timeout it is abandoned and
// closes its connection whenever the daemon answers.
func (p *MPDPlayer) withConn(fn func(mpdConn) error) error {
	done := make(chan error, 1)

	go func() {
		done <- p.roundTrip(fn)
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("%w within %s at %s", ErrMPDTimeout, p.timeout, p.address)
	}
}

func (p *MPDPlayer) roundTrip(fn func(mpdConn) error) error {
	conn, err := p.dial("tcp", p.address)
	if err != nil {
		return fmt.Errorf("dial mpd %s: %w", p.address, err)
	}

	defer func() {
		_ = conn.Close()
	}()

	return fn(conn)
}
