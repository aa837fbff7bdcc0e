package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultCheckTimeout bounds a single Check call.
const DefaultCheckTimeout = 5 * time.Second

// errAddressRequired is returned when no address is configured.
var errAddressRequired = errors.New("address must be provided")

// Check asks the health endpoint at address for the status of ServiceName.
// Note: this uses insecure transport credentials; the endpoint is meant for
// local probes.
func Check(ctx context.Context, address string, timeout time.Duration) (healthpb.HealthCheckResponse_ServingStatus, error) {
	if address == "" {
		return healthpb.HealthCheckResponse_UNKNOWN, errAddressRequired
	}

	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("dial health server: %w", err)
	}

	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("check health: %w", err)
	}

	return response.GetStatus(), nil
}
