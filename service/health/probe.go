package health

import (
	"context"
	"time"

	"PNotify/tools/errs"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe asks the gRPC health service at target for service ("" means the
// whole server) and fails unless it reports SERVING.
func Probe(ctx context.Context, target, service string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return errs.WrapMsg(err, "grpc dial", "target", target)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return errs.WrapMsg(err, "grpc health check", "target", target)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return errs.ErrInternal.WrapMsg("not serving", "target", target, "status", resp.GetStatus().String())
	}
	return nil
}
