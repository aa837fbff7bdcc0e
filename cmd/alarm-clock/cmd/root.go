package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/service/clock"
	"github.com/oshokin/alarm-clock/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// sendQOD enables the quote-of-day text message.
	sendQOD bool

	// rootCmd represents the base command for running the alarm clock.
	rootCmd = &cobra.Command{
		Use:   "alarm-clock",
		Short: "Run the networked alarm clock.",
		Long: `Runs a single-alarm clock controlled over MQTT.

Remote clients arm and disarm the alarm, set its time, ping the clock and
press snooze through Adafruit IO style feeds. The clock plays the alarm clip
when the scheduled time arrives and broadcasts its ringing state.
With --qod a quote of the day is texted every time a ringing alarm is silenced.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &clock.Options{
				ConfigPath: configPath,
				QOD:        sendQOD,
			}

			return clock.Run(ctx, options)
		},
	}
)

// Execute runs the alarm-clock CLI and exits with non-zero status on error.
func Execute() {
	rootCmd.AddCommand(version.NewCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().BoolVarP(&sendQOD, "qod", "q", false, "text a quote of the day when the alarm is silenced")
}
