package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/synctest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestBoolValue maps flags to gauge values.
func TestBoolValue(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 1.0, BoolValue(true), 0)
	require.InDelta(t, 0.0, BoolValue(false), 0)
}

// TestTimer measures elapsed fake time and observes it.
func TestTimer(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		timer := NewTimer()

		time.Sleep(250 * time.Millisecond)
		require.Equal(t, 250*time.Millisecond, timer.Duration())

		histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "test_duration_seconds",
			Help: "Test duration histogram",
		})

		timer.ObserveDuration(histogram)
		require.Equal(t, 1, testutil.CollectAndCount(histogram))
	})
}

// TestHandler exposes the registered collectors.
func TestHandler(t *testing.T) {
	t.Parallel()

	FiresTotal.Inc()

	recorder := httptest.NewRecorder()
	Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "alarm_clock_fires_total")
}

// TestServe listens, answers a scrape and stops on cancellation.
func TestServe(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Serve(ctx, addr)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics") //nolint:noctx // Test helper.
		if err != nil {
			return false
		}

		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)

		return resp.StatusCode == http.StatusOK && len(body) > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
