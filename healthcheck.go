package main

import (
	"context"
	"net/http"
	"time"

	"PNotify/service/health"
	"PNotify/tools/errs"

	"github.com/spf13/cobra"
)

// newHealthcheckCmd probes a running gateway; it exits non-zero when the
// gateway is down, for container health checks.
func newHealthcheckCmd() *cobra.Command {
	var (
		grpcAddr string
		httpURL  string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running gateway over gRPC or HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if grpcAddr != "" {
				return health.Probe(ctx, grpcAddr, health.ServiceName, timeout)
			}
			return probeHTTP(ctx, httpURL, timeout)
		},
	}
	cmd.Flags().StringVar(&grpcAddr, "grpc", "", "gRPC health address, e.g. 127.0.0.1:9090")
	cmd.Flags().StringVar(&httpURL, "http", "http://127.0.0.1:8080/health", "HTTP health URL, used when --grpc is empty")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "probe timeout")
	return cmd
}

func probeHTTP(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.ErrArgs.WrapMsg("bad health url", "url", url)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errs.WrapMsg(err, "health request", "url", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errs.ErrInternal.WrapMsg("gateway degraded", "url", url, "status", resp.StatusCode)
	}
	return nil
}
