package audio

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/oshokin/alarm-clock/internal/logger"
)

// runFunc executes one playback of a clip and blocks until it ends.
type runFunc func(ctx context.Context, name string, args ...string) error

// ExecPlayer plays clips by running an external command once per loop.
type ExecPlayer struct {
	// command is the player executable, e.g. aplay.
	command string
	// args are passed before the clip path.
	args []string
	// files maps clips to their paths.
	files map[Clip]string
	// loops maps clips to how many times they are played.
	loops map[Clip]int
	// run executes the command; replaced in tests.
	run runFunc

	// mu guards cancel and done.
	mu sync.Mutex
	// cancel stops the current playback goroutine.
	cancel context.CancelFunc
	// done is closed when the current playback goroutine exits.
	done chan struct{}
}

// NewExecPlayer creates a player that runs command for each clip loop.
func NewExecPlayer(command string, args []string, files map[Clip]string, loops map[Clip]int) *ExecPlayer {
	return &ExecPlayer{
		command: command,
		args:    args,
		files:   files,
		loops:   loops,
		run:     runCommand,
	}
}

// Start implements Player.
func (p *ExecPlayer) Start(ctx context.Context, clip Clip) error {
	path, ok := p.files[clip]
	if !ok || path == "" {
		return fmt.Errorf("%w: %s", ErrUnknownClip, clip)
	}

	loops := p.loops[clip]
	if loops <= 0 {
		loops = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	// Playback outlives the caller's context; only Stop or a new Start ends it.
	playCtx, cancel := context.WithCancel(context.WithoutCancel(logger.WithName(ctx, "audio")))
	done := make(chan struct{})

	p.cancel = cancel
	p.done = done

	args := append(append(make([]string, 0, len(p.args)+1), p.args...), path)

	go p.play(playCtx, clip, args, loops, done)

	return nil
}

// Stop implements Player.
func (p *ExecPlayer) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	return nil
}

// IsActive implements Player.
func (p *ExecPlayer) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done == nil {
		return false
	}

	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *ExecPlayer) stopLocked() {
	if p.cancel == nil {
		return
	}

	p.cancel()
	<-p.done

	p.cancel = nil
	p.done = nil
}

func (p *ExecPlayer) play(ctx context.Context, clip Clip, args []string, loops int, done chan struct{}) {
	defer close(done)

	for i := range loops {
		if ctx.Err() != nil {
			return
		}

		if err := p.run(ctx, p.command, args...); err != nil {
			if ctx.Err() == nil {
				logger.WarnKV(ctx, "Clip playback failed", "clip", clip, "loop", i+1, "error", err)
			}

			return
		}
	}

	logger.DebugKV(ctx, "Clip finished", "clip", clip, "loops", loops)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	//nolint:gosec // The player command comes from the operator's settings file.
	return exec.CommandContext(ctx, name, args...).Run()
}
