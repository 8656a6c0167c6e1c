package chat

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"PNotify/service/notify"
	"PNotify/service/session"
	"PNotify/tools/errs"
	"PNotify/tools/ids"
	"PNotify/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ===== 配置 =====

type GatewayConfig struct {
	WriteWait      time.Duration // 单次写超时
	PongWait       time.Duration // 读超时，收到任何帧或 pong 即续期
	PingInterval   time.Duration // 控制帧 ping 周期，需小于 PongWait
	ResolveTimeout time.Duration // 会话查询超时
	MaxFrameBytes  int64
	FrameRate      float64 // 每连接每秒入站帧数，<=0 不限制
	FrameBurst     int
	CheckOrigin    func(r *http.Request) bool
	Credentials    session.CredentialOptions
	NodeID         int64
}

func (c *GatewayConfig) norm() {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 75 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 2 / 3
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = 3 * time.Second
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = 1 << 20
	}
	if c.FrameBurst <= 0 {
		c.FrameBurst = 20
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(r *http.Request) bool { return true }
	}
	if c.Credentials == (session.CredentialOptions{}) {
		c.Credentials = session.DefaultCredentialOptions()
	}
}

// CloseLookupFailed tells the client the session store was unreachable; it is
// not an auth rejection, so the client keeps retrying.
const CloseLookupFailed = 1011

// Gateway admits WebSocket connections, flushes offline notifications to
// them and answers inbound control frames.
type Gateway struct {
	conf     GatewayConfig
	reg      *Registry
	queue    *OfflineQueue
	disp     *Dispatcher
	resolver session.Resolver
	router   *FrameRouter
	upgrader websocket.Upgrader
	ids      *ids.Generator
	presence PresenceHook
	log      *zap.Logger

	mu      sync.RWMutex // guards closing against Register
	closing bool
}

// PresenceHook is told when an identity gains or loses its connection here.
type PresenceHook interface {
	Online(ctx context.Context, identity string)
	Offline(ctx context.Context, identity string)
}

func NewGateway(conf GatewayConfig, reg *Registry, queue *OfflineQueue, disp *Dispatcher, resolver session.Resolver, log *zap.Logger) *Gateway {
	conf.norm()
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{
		conf:     conf,
		reg:      reg,
		queue:    queue,
		disp:     disp,
		resolver: resolver,
		router:   NewFrameRouter(),
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: conf.CheckOrigin},
		ids:      ids.NewGenerator(conf.NodeID),
		log:      log,
	}
	g.router.Register(pingHandler{})
	return g
}

// SetPresence installs an optional presence hook. Call before serving.
func (g *Gateway) SetPresence(p PresenceHook) { g.presence = p }

// Router exposes the inbound frame router so callers can add handlers.
func (g *Gateway) Router() *FrameRouter { return g.router }

// HandleWS upgrades the request, resolves its identity and serves the
// connection until it closes.
func (g *Gateway) HandleWS(c *gin.Context) {
	credential := session.CredentialFromRequest(c.Request, g.conf.Credentials)
	ctx, cancel := context.WithTimeout(c.Request.Context(), g.conf.ResolveTimeout)
	identity, rerr := g.resolver.Resolve(ctx, credential)
	cancel()

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败
		g.log.Info("upgrade websocket failed", zap.Error(err))
		return
	}
	t := newWSTransport(g.ids.NextString(), ws, g.conf.WriteWait)

	if rerr != nil {
		if session.IsNoSession(rerr) {
			g.log.Info("no valid session, closing", zap.String("conn", t.id), zap.String("remote", t.remote))
			_ = t.Close(notify.ClosePolicy, notify.CloseReasonAuth)
			return
		}
		g.log.Error("session lookup failed", zap.String("conn", t.id), zap.Error(rerr))
		_ = t.Close(CloseLookupFailed, "session lookup unavailable")
		return
	}

	g.serve(identity, t)
}

// Admit registers t for identity, sends the connection ack and then every
// buffered notification in enqueue order. A transport it supersedes is
// closed with a clean code once t is fully admitted. If a push fails the
// unsent entries go back to the queue, t is unregistered and the superseded
// transport, when still open, is put back.
func (g *Gateway) Admit(identity string, t Transport) error {
	var (
		prev    Transport
		flushed int
		err     error
	)
	g.disp.withIdentity(identity, func() {
		g.mu.RLock()
		if g.closing {
			g.mu.RUnlock()
			err = errs.ErrGatewayClosed.WrapMsg("", "identity", identity)
			return
		}
		prev = g.reg.Register(identity, t)
		g.mu.RUnlock()

		if err = g.push(t, notify.ConnectionAck(identity)); err != nil {
			g.rollback(identity, t, prev)
			return
		}
		if flushed, err = g.flush(identity, t); err != nil {
			g.rollback(identity, t, prev)
		}
	})

	if err != nil {
		g.log.Warn("admit failed", zap.String("identity", identity), zap.String("conn", t.ID()), zap.Int("flushed", flushed), zap.Error(err))
		return err
	}
	if prev != nil && prev != t {
		g.log.Info("connection superseded", zap.String("identity", identity), zap.String("old", prev.ID()), zap.String("new", t.ID()))
		_ = prev.Close(notify.CloseNormal, "superseded")
	}
	if g.presence != nil {
		g.presence.Online(context.Background(), identity)
	}
	g.log.Info("connected", zap.String("identity", identity), zap.String("conn", t.ID()),
		zap.Int("flushed", flushed), zap.Int("online", g.reg.Count()))
	return nil
}

// flush drains identity's queue onto t. On a push failure the unsent
// entries are queued again in order.
func (g *Gateway) flush(identity string, t Transport) (int, error) {
	pending := g.queue.Drain(identity)
	for i, n := range pending {
		if err := g.push(t, n); err != nil {
			for _, rest := range pending[i:] {
				g.queue.Enqueue(identity, rest)
			}
			return i, err
		}
	}
	return len(pending), nil
}

// rollback unregisters a failed t. prev goes back in while it is open and
// the gateway is not shutting down. Caller holds identity's lock.
func (g *Gateway) rollback(identity string, t, prev Transport) {
	if !g.reg.Unregister(identity, t) {
		return
	}
	if prev == nil || prev == t || !prev.IsOpen() {
		return
	}
	g.mu.RLock()
	restored := !g.closing
	if restored {
		g.reg.Register(identity, prev)
	}
	g.mu.RUnlock()
	if !restored {
		return
	}
	g.log.Info("connection restored", zap.String("identity", identity), zap.String("conn", prev.ID()))
	if _, err := g.flush(identity, prev); err != nil {
		g.reg.Unregister(identity, prev)
		_ = prev.Close(CloseDeliveryFailed, "delivery failed")
	}
}

// HandleFrame decodes one inbound frame and routes it. Bad frames are
// logged and dropped; the connection stays open.
func (g *Gateway) HandleFrame(identity string, t Transport, raw []byte) {
	n, err := notify.Parse(raw)
	if err != nil {
		sample := raw
		if len(sample) > 256 {
			sample = sample[:256]
		}
		g.log.Warn("drop malformed frame", zap.String("identity", identity), zap.ByteString("sample", sample), zap.Error(err))
		return
	}
	ctx := &FrameContext{Identity: identity, Transport: t, Log: g.log}
	if err := g.router.Route(ctx, n); err != nil {
		g.log.Warn("frame not handled", zap.String("identity", identity), zap.String("type", string(n.Kind())), zap.Error(err))
	}
}

// Release unregisters t if it is still identity's transport.
func (g *Gateway) Release(identity string, t Transport) {
	if g.reg.Unregister(identity, t) {
		if g.presence != nil {
			g.presence.Offline(context.Background(), identity)
		}
		g.log.Info("disconnected", zap.String("identity", identity), zap.String("conn", t.ID()), zap.Int("online", g.reg.Count()))
	}
}

// Shutdown closes every registered connection with 1001. Later admits fail
// with ErrGatewayClosed.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	g.closing = true
	g.mu.Unlock()
	for identity, t := range g.reg.snapshot() {
		_ = t.Close(notify.CloseGoingAway, "server shutdown")
		g.Release(identity, t)
	}
}

func (g *Gateway) push(t Transport, n notify.Notification) error {
	data, err := notify.Marshal(n)
	if err != nil {
		return err
	}
	if !t.IsOpen() {
		return errs.ErrTransportClosed.WrapMsg("", "conn", t.ID())
	}
	return t.Push(data)
}

func (g *Gateway) serve(identity string, t *wsTransport) {
	if err := g.Admit(identity, t); err != nil {
		if errs.ErrGatewayClosed.Is(err) {
			_ = t.Close(notify.CloseGoingAway, "server shutdown")
		} else {
			_ = t.Close(CloseDeliveryFailed, "admit failed")
		}
		return
	}
	defer func() {
		g.Release(identity, t)
		t.markClosed()
	}()

	conn := t.conn
	conn.SetReadLimit(g.conf.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(g.conf.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.conf.PongWait))
	})

	done := make(chan struct{})
	defer close(done)
	safe.Go(g.log, "ws-keepalive", func() { g.keepalive(identity, t, done) })

	var limiter *rate.Limiter
	if g.conf.FrameRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(g.conf.FrameRate), g.conf.FrameBurst)
	}

	// 读循环：出错即退出
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			g.logReadError(identity, t, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(g.conf.PongWait))
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if limiter != nil && !limiter.Allow() {
			g.log.Warn("inbound rate exceeded, frame dropped", zap.String("identity", identity), zap.String("conn", t.id))
			continue
		}
		safe.Run(g.log, "ws-frame", func() { g.HandleFrame(identity, t, data) })
	}
}

func (g *Gateway) keepalive(identity string, t *wsTransport, done <-chan struct{}) {
	ticker := time.NewTicker(g.conf.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := t.ping(); err != nil {
				g.log.Debug("ping failed", zap.String("conn", t.id), zap.Error(err))
				return
			}
			g.touch(identity, t)
		}
	}
}

// touch renews presence while t is still identity's transport.
func (g *Gateway) touch(identity string, t Transport) {
	if g.presence == nil {
		return
	}
	if cur, ok := g.reg.Lookup(identity); !ok || cur != t {
		return
	}
	g.presence.Online(context.Background(), identity)
}

func (g *Gateway) logReadError(identity string, t *wsTransport, err error) {
	var ne net.Error
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		g.log.Info("peer closed", zap.String("identity", identity), zap.String("conn", t.id), zap.Error(err))
	case errors.As(err, &ne) && ne.Timeout():
		g.log.Info("read timeout", zap.String("identity", identity), zap.String("conn", t.id), zap.Error(err))
	default:
		g.log.Info("read error", zap.String("identity", identity), zap.String("conn", t.id), zap.Error(err))
	}
}
