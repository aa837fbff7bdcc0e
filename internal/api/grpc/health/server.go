package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/alarm-clock/internal/logger"
)

// ServiceName is the service name reported next to the overall "" entry.
const ServiceName = "alarm-clock"

// DefaultProbeInterval is how often the probe is polled.
const DefaultProbeInterval = time.Second

// Probe reports whether the process can do its job.
type Probe interface {
	IsConnected() bool
}

// Server keeps the health status in sync with the probe.
type Server struct {
	// health is the grpc-go health implementation.
	health *health.Server
	// probe is polled every interval.
	probe Probe
	// interval is the polling period.
	interval time.Duration
}

// NewServer creates a health server that starts as NOT_SERVING.
func NewServer(probe Probe, interval time.Duration) *Server {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	s := &Server{
		health:   health.NewServer(),
		probe:    probe,
		interval: interval,
	}

	s.set(healthpb.HealthCheckResponse_NOT_SERVING)

	return s
}

// Register attaches the health service to a gRPC server.
func (s *Server) Register(grpcServer *grpc.Server) {
	healthpb.RegisterHealthServer(grpcServer, s.health)
}

// Check answers a health request without going through the network.
func (s *Server) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	response, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}

	return response.GetStatus(), nil
}

// Update polls the probe once and publishes the result.
func (s *Server) Update() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.probe.IsConnected() {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.set(status)

	return status
}

// Watch updates the status every interval until ctx is cancelled.
func (s *Server) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Update()
		}
	}
}

// Shutdown reports NOT_SERVING for every service and ignores later updates.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve listens on address and serves health checks until ctx is cancelled.
func Serve(ctx context.Context, address string, probe Probe) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	return serve(ctx, lis, NewServer(probe, DefaultProbeInterval))
}

func serve(ctx context.Context, lis net.Listener, s *Server) error {
	ctx = logger.WithName(ctx, "health")

	grpcServer := grpc.NewServer()
	s.Register(grpcServer)

	logger.InfoKV(ctx, "Health server listening", "listen_address", lis.Addr().String())

	watchDone := make(chan struct{})

	go func() {
		defer close(watchDone)
		s.Watch(ctx)
	}()

	// Done channel is closed after GracefulStop finishes.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down health server")
		s.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	<-watchDone

	logger.Info(ctx, "Health server stopped")

	return nil
}
