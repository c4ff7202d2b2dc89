// Package grpc probes gRPC health endpoints of siteledger processes.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Stage names the step of a health probe that failed.
type Stage string

const (
	StageConnect Stage = "connect"
	StageHealth  Stage = "health"
)

const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = time.Second
)

// HealthError reports a failed probe and the stage it failed in.
type HealthError struct {
	Addr  string
	Stage Stage
	Err   error
}

func (e *HealthError) Error() string {
	return fmt.Sprintf("gRPC health %s %s: %v", e.Stage, e.Addr, e.Err)
}

func (e *HealthError) Unwrap() error { return e.Err }

// ClientOptions returns the dial options for in-network probes: plaintext,
// with trace context propagated.
func ClientOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Probe connects to addr and waits until service reports SERVING. An empty
// service checks the server as a whole. A positive timeout bounds the whole
// probe.
func Probe(ctx context.Context, addr, service string, timeout time.Duration, logger *slog.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := gogrpc.NewClient(addr, ClientOptions()...)
	if err != nil {
		return &HealthError{Addr: addr, Stage: StageConnect, Err: err}
	}
	defer conn.Close()

	if err := WaitServing(ctx, conn, service, logger); err != nil {
		return &HealthError{Addr: addr, Stage: StageHealth, Err: err}
	}
	return nil
}

// WaitServing polls the health service on conn with capped exponential
// backoff until it reports SERVING or ctx ends.
func WaitServing(ctx context.Context, conn gogrpc.ClientConnInterface, service string, logger *slog.Logger) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	client := grpc_health_v1.NewHealthClient(conn)
	backoff := minBackoff
	for {
		callCtx, cancel := context.WithTimeout(ctx, maxBackoff)
		resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		if logger != nil {
			if err != nil {
				logger.DebugContext(ctx, "waiting for gRPC health", "service", service, "error", err)
			} else {
				logger.DebugContext(ctx, "waiting for gRPC health", "service", service, "status", resp.GetStatus().String())
			}
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
			}
			return fmt.Errorf("%w (last status: %s)", ctx.Err(), resp.GetStatus())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
