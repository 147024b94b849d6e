package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name the server reports besides "".
const HealthService = "catalog"

type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// HealthChecker queries the server's gRPC health endpoint.
type HealthChecker struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

func NewHealthChecker(addr string, opts ...grpc.DialOption) (*HealthChecker, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &HealthChecker{conn: conn, client: healthpb.NewHealthClient(conn)}, nil
}

func (h *HealthChecker) Close() error { return h.conn.Close() }

// Check returns nil only when the server reports SERVING.
func (h *HealthChecker) Check(ctx context.Context) error {
	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.GetStatus())
	}
	return nil
}

// Watch probes every interval until ctx is done and calls onChange on the
// first result and on every online/offline transition after it.
func (h *HealthChecker) Watch(ctx context.Context, interval, timeout time.Duration, onChange func(Mode, error)) {
	var current Mode
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := h.Check(pctx)
		cancel()
		if ctx.Err() != nil {
			return
		}

		next := ModeOnline
		if err != nil {
			next = ModeOffline
		}
		if next != current {
			current = next
			onChange(next, err)
		}
	}

	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			probe()
		case <-ctx.Done():
			return
		}
	}
}
