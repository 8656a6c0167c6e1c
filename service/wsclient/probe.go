package wsclient

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// NetworkSink receives network availability changes.
type NetworkSink interface {
	SetNetworkOnline(online bool)
}

// NetProbe derives network availability from a TCP dial to Addr and feeds
// it to Sink. It stands in for a platform online/offline signal.
type NetProbe struct {
	Addr     string // host:port
	Interval time.Duration
	Timeout  time.Duration
	Sink     NetworkSink
	Log      *zap.Logger

	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// Check dials once and reports whether it succeeded.
func (p *NetProbe) Check(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dial := p.dial
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	c, err := dial(ctx, "tcp", p.Addr)
	if err != nil {
		if p.Log != nil {
			p.Log.Debug("network probe failed", zap.String("addr", p.Addr), zap.Error(err))
		}
		return false
	}
	_ = c.Close()
	return true
}

// Run probes until ctx is done, reporting every result to Sink.
func (p *NetProbe) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.Sink.SetNetworkOnline(p.Check(ctx))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
