package natsx

import (
	"strings"
	"sync"
	"time"

	"PNotify/tools/errs"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Config 客户端配置
type Config struct {
	Servers       []string
	Name          string
	User          string
	Password      string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Client wraps one NATS connection and the subscriptions made on it.
type Client struct {
	cfg Config
	nc  *nats.Conn
	log *zap.Logger

	mu   sync.Mutex
	subs map[string]*nats.Subscription // subject -> sub
}

// Connect dials NATS. The connection reconnects forever in the background.
func Connect(cfg Config, log *zap.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.ErrConfig.WrapMsg("nats servers missing")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect", "servers", strings.Join(cfg.Servers, ","))
	}
	log.Info("nats connected", zap.String("url", nc.ConnectedUrl()))
	return &Client{
		cfg:  cfg,
		nc:   nc,
		log:  log,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Conn exposes the underlying connection.
func (c *Client) Conn() *nats.Conn { return c.nc }

// Close 优雅关闭：先 drain 订阅再 drain 连接
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for subject, sub := range c.subs {
		_ = sub.Drain()
		delete(c.subs, subject)
	}
	if c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}
