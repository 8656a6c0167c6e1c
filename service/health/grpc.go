package health

import (
	"context"
	"net"
	"time"

	"PNotify/tools/errs"
	"PNotify/tools/safe"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported to gRPC health clients.
const ServiceName = "ppnotify.Gateway"

// GRPCServer exposes the standard gRPC health service and keeps its status
// in line with Service.Ok.
type GRPCServer struct {
	srv    *grpc.Server
	hs     *health.Server
	svc    *Service
	period time.Duration
	log    *zap.Logger
}

func NewGRPCServer(svc *Service, log *zap.Logger) *GRPCServer {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &GRPCServer{srv: srv, hs: hs, svc: svc, period: 10 * time.Second, log: log}
}

// Refresh runs the checks once and updates the reported status.
func (g *GRPCServer) Refresh(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if _, ok := g.svc.Ok(ctx); !ok {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.hs.SetServingStatus("", st)
	g.hs.SetServingStatus(ServiceName, st)
}

// Serve blocks on lis until ctx is done, refreshing status periodically.
func (g *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	g.Refresh(ctx)
	safe.Go(g.log, "grpc-health-refresh", func() {
		t := time.NewTicker(g.period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				g.Refresh(ctx)
			}
		}
	})
	safe.Go(g.log, "grpc-health-stop", func() {
		<-ctx.Done()
		g.hs.Shutdown()
		g.srv.GracefulStop()
	})
	g.log.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
	if err := g.srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return errs.WrapMsg(err, "grpc serve")
	}
	return nil
}
