//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"os"

	ps "github.com/mitchellh/go-ps"

	"github.com/oshokin/alarm-clock/internal/logger"
)

// ErrAlreadyRunning indicates another process with the same executable is alive.
var ErrAlreadyRunning = errors.New("another instance is already running")

// processLister returns a snapshot of the process table.
type processLister func() ([]ps.Process, error)

// EnsureSingleInstance fails when another process runs the same executable.
// Two instances would both answer pings and fight over the speaker.
func EnsureSingleInstance(ctx context.Context) error {
	return ensureSingleInstance(ctx, ps.Processes, os.Getpid())
}

func ensureSingleInstance(ctx context.Context, list processLister, thisProcessID int) error {
	processList, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	var executable string

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			executable = process.Executable()
			break
		}
	}

	if executable == "" {
		logger.Warn(ctx, "Own process not found in the process table, skipping instance check")
		return nil
	}

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != executable {
			continue
		}

		return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, executable, process.Pid())
	}

	return nil
}
