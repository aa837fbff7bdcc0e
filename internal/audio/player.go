package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/alarm-clock/internal/config"
)

// Clip identifies one of the sounds the clock can play.
type Clip string

const (
	// ClipAlarm is the long clip played while ringing.
	ClipAlarm Clip = "alarm"
	// ClipChime is the short clip played on ping.
	ClipChime Clip = "chime"
)

// Player is the audio signal driver.
type Player interface {
	// Start plays clip, replacing whatever is playing.
	Start(ctx context.Context, clip Clip) error
	// Stop silences the speaker; it is a no-op when nothing plays.
	Stop(ctx context.Context) error
	// IsActive reports whether a clip is playing.
	IsActive() bool
}

var (
	// ErrUnknownClip is returned when a clip has no file configured.
	ErrUnknownClip = errors.New("unknown clip")
	// errNotAFile is the cause when a clip path points to a directory.
	errNotAFile = errors.New("not a regular file")
)

// New builds the player selected by the audio settings.
//
//nolint:ireturn // Backend is chosen at runtime.
func New(settings *config.Audio) (Player, error) {
	files := map[Clip]string{
		ClipAlarm: settings.AlarmFile,
		ClipChime: settings.ChimeFile,
	}

	switch settings.Backend {
	case config.BackendMPD:
		return NewMPDPlayer(settings.MPDAddress, files), nil
	case config.BackendExec, "":
		if err := CheckFiles(settings.AlarmFile, settings.ChimeFile); err != nil {
			return nil, err
		}

		loops := map[Clip]int{
			ClipAlarm: settings.AlarmLoops,
			ClipChime: 1,
		}

		return NewExecPlayer(settings.Player, settings.PlayerArgs, files, loops), nil
	default:
		return nil, &config.ConfigurationError{
			Field: "audio.backend",
			Err:   fmt.Errorf("unsupported backend %q", settings.Backend),
		}
	}
}

// CheckFiles verifies that every clip file exists and is readable.
func CheckFiles(paths ...string) error {
	for _, path := range paths {
		info, err := os.Stat(filepath.Clean(path))
		if err != nil {
			return &config.ConfigurationError{Field: "audio", Err: fmt.Errorf("clip %s: %w", path, err)}
		}

		if !info.Mode().IsRegular() {
			return &config.ConfigurationError{Field: "audio", Err: fmt.Errorf("clip %s: %w", path, errNotAFile)}
		}
	}

	return nil
}
