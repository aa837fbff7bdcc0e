package clock

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/alarm-clock/internal/api/grpc/health"
	"github.com/oshokin/alarm-clock/internal/audio"
	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/metrics"
	"github.com/oshokin/alarm-clock/internal/notifier"
	"github.com/oshokin/alarm-clock/internal/service/common"
	"github.com/oshokin/alarm-clock/internal/transport/mqtt"
	"github.com/oshokin/alarm-clock/internal/version"
)

// Options controls the alarm-clock process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// QOD enables the quote-of-day text message sent when a ringing alarm is silenced.
	QOD bool
}

// Run starts the alarm clock and blocks until ctx is cancelled.
// Configuration problems are returned before anything connects.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-clock")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if !logger.SetLevelFromString(settings.LogLevel) {
		logger.WarnKV(ctx, "Unknown log level, keeping the default", "log_level", settings.LogLevel)
	}

	mqtt.InstallLogger(ctx, settings.Broker.Trace)

	if err = common.EnsureSingleInstance(ctx); err != nil {
		return fmt.Errorf("check running instances: %w", err)
	}

	player, err := audio.New(&settings.Audio)
	if err != nil {
		return fmt.Errorf("initialise audio: %w", err)
	}

	notify, err := newNotifier(settings, opts.QOD)
	if err != nil {
		return fmt.Errorf("initialise notifier: %w", err)
	}

	channel := mqtt.NewChannel(&settings.Broker, mqtt.BackoffFromConfig(&settings.Reconnect))
	machine := NewMachine(player, channel, notify, alarm.SystemClock)
	loop := NewLoop(machine, channel, alarm.SystemClock, &settings.Loop)

	logger.InfoKV(ctx, "Alarm clock starting",
		"version", version.Short(),
		"broker", settings.Broker.URL,
		"audio_backend", settings.Audio.Backend,
		"qod", opts.QOD,
	)

	defer func() {
		if stopErr := player.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			logger.ErrorKV(ctx, "Failed to stop audio", "error", stopErr)
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return channel.Run(groupCtx, machine)
	})

	group.Go(func() error {
		return loop.Run(groupCtx)
	})

	if settings.MetricsAddress != "" {
		group.Go(func() error {
			return metrics.Serve(groupCtx, settings.MetricsAddress)
		})
	}

	if settings.HealthAddress != "" {
		group.Go(func() error {
			return health.Serve(groupCtx, settings.HealthAddress, channel)
		})
	}

	if err = group.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Alarm clock stopped")

	return nil
}

// newNotifier returns the quote-of-day notifier when enabled, Nop otherwise.
//
//nolint:ireturn // The feature flag selects the implementation.
func newNotifier(settings *config.Config, enabled bool) (notifier.Notifier, error) {
	if !enabled {
		return notifier.Nop{}, nil
	}

	if err := config.ValidateQOD(&settings.QOD); err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: settings.QOD.Timeout}

	twilio := settings.QOD.Twilio

	sender, err := notifier.NewTwilioSender(twilio.BaseURL, twilio.AccountSID, twilio.AuthToken, twilio.From, twilio.To, client)
	if err != nil {
		return nil, err
	}

	return notifier.NewQOD(settings.QOD.URL, settings.QOD.Timeout, client, sender), nil
}
