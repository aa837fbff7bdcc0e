package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/alarm-clock/internal/logger"
)

//nolint:gochecknoglobals // Prometheus collectors are process-wide by nature.
var (
	// Armed is 1 while the alarm is armed.
	Armed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alarm_clock_armed",
			Help: "Whether the alarm is armed (1) or disarmed (0)",
		},
	)

	// Ringing is 1 while the alarm clip plays.
	Ringing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alarm_clock_ringing",
			Help: "Whether the alarm is ringing (1) or silent (0)",
		},
	)

	// RemoteConnected is 1 while the broker connection is up.
	RemoteConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alarm_clock_remote_connected",
			Help: "Whether the pub/sub connection is established",
		},
	)

	// FiresTotal counts armed to ringing transitions.
	FiresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarm_clock_fires_total",
			Help: "Total number of times the alarm started ringing",
		},
	)

	// SilencedTotal counts ringing to silent transitions.
	SilencedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarm_clock_silenced_total",
			Help: "Total number of times a ringing alarm was silenced",
		},
	)

	// MessagesTotal counts inbound messages per feed and outcome.
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarm_clock_messages_total",
			Help: "Total number of inbound messages by feed and result",
		},
		[]string{"feed", "result"},
	)

	// PublishFailuresTotal counts failed publications per feed.
	PublishFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alarm_clock_publish_failures_total",
			Help: "Total number of failed publications by feed",
		},
		[]string{"feed"},
	)

	// ReconnectAttemptsTotal counts broker connection attempts after the first.
	ReconnectAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarm_clock_reconnect_attempts_total",
			Help: "Total number of broker reconnect attempts",
		},
	)

	// NotifyFailuresTotal counts failed side-effect notifications.
	NotifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alarm_clock_notify_failures_total",
			Help: "Total number of failed silence notifications",
		},
	)

	// TickDuration observes how long one evaluation takes.
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alarm_clock_tick_duration_seconds",
			Help:    "Time taken by one reconciliation tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

const readHeaderTimeout = 5 * time.Second

func init() { //nolint:gochecknoinits // Collectors must be registered before the first scrape.
	prometheus.MustRegister(
		Armed,
		Ringing,
		RemoteConnected,
		FiresTotal,
		SilencedTotal,
		MessagesTotal,
		PublishFailuresTotal,
		ReconnectAttemptsTotal,
		NotifyFailuresTotal,
		TickDuration,
	)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// BoolValue converts a flag to a gauge value.
func BoolValue(v bool) float64 {
	if v {
		return 1
	}

	return 0
}

// Serve exposes /metrics on address until ctx is cancelled.
func Serve(ctx context.Context, address string) error {
	ctx = logger.WithName(ctx, "metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Done channel is closed after Shutdown finishes.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()

		//nolint:contextcheck // The parent context is already cancelled here.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), readHeaderTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx) //nolint:errcheck // Best effort on exit.

		close(done)
	}()

	logger.InfoKV(ctx, "Metrics endpoint listening", "address", lis.Addr().String())

	if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	<-done

	return nil
}
