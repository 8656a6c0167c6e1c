package wsclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"PNotify/service/notify"
	"PNotify/tools/safe"

	"go.uber.org/zap"
)

const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultResumeDelay       = time.Second
)

type Options struct {
	URL               string
	Header            http.Header // 携带 Cookie: sid=... 等凭证
	Dialer            Dialer
	Backoff           Backoff
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	ResumeDelay       time.Duration // network_error 恢复后到 connecting 的等待
	Logger            *zap.Logger
}

func (o *Options) norm() {
	if o.Dialer == nil {
		o.Dialer = NewGorillaDialer()
	}
	o.Backoff = o.Backoff.norm()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.ResumeDelay <= 0 {
		o.ResumeDelay = DefaultResumeDelay
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// StateListener is called after every state change, outside the manager lock.
type StateListener func(prev, cur State, reason string)

type stateChange struct {
	prev, cur State
	reason    string
}

// Manager owns a single client transport and its lifecycle.
type Manager struct {
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	state    State
	attempts int
	online   bool
	// epoch 每次换连接/拆连接时递增，旧连接和旧定时器的事件据此丢弃
	epoch      uint64
	conn       Conn
	cancelDial context.CancelFunc
	retry      *time.Timer
	heartbeat  chan struct{}
	lastPong   time.Time

	listeners      map[notify.Kind][]func(notify.Notification)
	stateListeners []StateListener
	outbox         []stateChange
	emitting       bool
}

func NewManager(opts Options) *Manager {
	opts.norm()
	return &Manager{
		opts:      opts,
		log:       opts.Logger,
		state:     Disconnected,
		online:    true,
		listeners: make(map[notify.Kind][]func(notify.Notification)),
	}
}

// ===== 查询 =====

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// LastPong is when the last pong frame arrived, zero if none yet.
func (m *Manager) LastPong() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPong
}

func (m *Manager) NetworkOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// ===== 监听 =====

// On registers fn for inbound notifications of kind.
func (m *Manager) On(kind notify.Kind, fn func(notify.Notification)) {
	m.mu.Lock()
	m.listeners[kind] = append(m.listeners[kind], fn)
	m.mu.Unlock()
}

func (m *Manager) OnStateChange(fn StateListener) {
	m.mu.Lock()
	m.stateListeners = append(m.stateListeners, fn)
	m.mu.Unlock()
}

// ===== 操作 =====

// Connect starts connecting from disconnected. Other states ignore it.
func (m *Manager) Connect() {
	m.mu.Lock()
	if cur := m.state; cur != Disconnected {
		m.mu.Unlock()
		m.log.Debug("connect ignored", zap.Stringer("state", cur))
		return
	}
	m.attempts = 0
	if m.fire(EventConnect, "connect") {
		m.startConnecting()
	}
	m.unlockAndEmit()
}

// Reconnect is the manual retry: attempts reset to 0 and a fresh
// connection is opened, replacing any current one.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	m.attempts = 0
	if m.fire(EventManualReconnect, "manual reconnect") {
		m.startConnecting()
	}
	m.unlockAndEmit()
}

// Disconnect is the logout path: timers are cancelled, the transport is
// closed with 1000 and no reconnect is scheduled.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.teardown(notify.CloseNormal, notify.CloseReasonClean)
	m.attempts = 0
	m.fire(EventLogout, "logout")
	m.unlockAndEmit()
}

// SetNetworkOnline feeds the host's network availability signal.
func (m *Manager) SetNetworkOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	if !online {
		switch m.state {
		case Connecting, Connected, Reconnecting:
			m.teardown(notify.CloseGoingAway, "network offline")
			m.fire(EventNetworkDown, "network offline")
		}
	} else if m.state == NetworkError {
		if m.fire(EventNetworkUp, "network restored") {
			// 恢复不消耗重连次数
			m.schedule(m.opts.ResumeDelay, false)
		}
	}
	m.unlockAndEmit()
}

// Send writes n on the current transport. It reports false when not
// connected or when the write fails.
func (m *Manager) Send(n notify.Notification) bool {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == Connected
	m.mu.Unlock()
	if !connected || conn == nil {
		return false
	}
	data, err := notify.Marshal(n)
	if err != nil {
		m.log.Warn("encode outbound frame", zap.String("type", string(n.Kind())), zap.Error(err))
		return false
	}
	if err := conn.WriteMessage(data); err != nil {
		m.log.Debug("send failed", zap.Error(err))
		return false
	}
	return true
}

// ===== 内部：以下方法调用时持有 m.mu =====

// fire applies ev and queues the change for listeners. It reports whether
// ev was accepted.
func (m *Manager) fire(ev Event, reason string) bool {
	to, ok := Next(m.state, ev)
	if !ok {
		m.log.Debug("event ignored", zap.Stringer("state", m.state), zap.Stringer("event", ev))
		return false
	}
	prev := m.state
	m.state = to
	if prev != to || ev == EventManualReconnect {
		m.outbox = append(m.outbox, stateChange{prev: prev, cur: to, reason: reason})
		m.log.Info("state transition", zap.Stringer("from", prev), zap.Stringer("to", to),
			zap.String("reason", reason), zap.Int("attempts", m.attempts))
	}
	return true
}

// teardown cancels every timer, invalidates in-flight callbacks and closes
// the current transport.
func (m *Manager) teardown(code int, reason string) {
	m.epoch++
	m.stopTimers()
	if m.conn != nil {
		_ = m.conn.Close(code, reason)
		m.conn = nil
	}
}

func (m *Manager) stopTimers() {
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.heartbeat != nil {
		close(m.heartbeat)
		m.heartbeat = nil
	}
}

// startConnecting runs on entry to Connecting. The previous transport is
// closed before a new dial starts.
func (m *Manager) startConnecting() {
	m.teardown(notify.CloseNormal, "reconnecting")
	if !m.online {
		m.fire(EventNetworkDown, "network offline")
		return
	}
	epoch := m.epoch
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ConnectTimeout)
	m.cancelDial = cancel
	safe.Go(m.log, "wsclient-dial", func() { m.dial(ctx, epoch) })
}

// lost handles an unexpected end of the transport or a failed dial.
func (m *Manager) lost(reason string) {
	m.stopTimers()
	if m.opts.Backoff.Exhausted(m.attempts) {
		m.fire(EventGiveUp, reason)
		return
	}
	if m.fire(EventLost, reason) {
		m.schedule(m.opts.Backoff.Delay(m.attempts), true)
	}
}

// schedule arms the retry timer. countAttempt is false for the resume
// after a network outage.
func (m *Manager) schedule(delay time.Duration, countAttempt bool) {
	epoch := m.epoch
	m.retry = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if epoch != m.epoch || m.state != Reconnecting {
			m.mu.Unlock()
			return
		}
		m.retry = nil
		if countAttempt {
			m.attempts++
		}
		if m.fire(EventRetryDue, "retry") {
			m.startConnecting()
		}
		m.unlockAndEmit()
	})
	m.log.Debug("retry scheduled", zap.Duration("delay", delay), zap.Int("attempts", m.attempts))
}

func (m *Manager) startHeartbeat(conn Conn) {
	stop := make(chan struct{})
	m.heartbeat = stop
	interval := m.opts.HeartbeatInterval
	safe.Go(m.log, "wsclient-heartbeat", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ping, _ := notify.Marshal(notify.Ping())
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := conn.WriteMessage(ping); err != nil {
					m.log.Debug("heartbeat write failed", zap.Error(err))
				}
			}
		}
	})
}

// unlockAndEmit releases m.mu and delivers queued state changes in order.
// A listener that calls back into the manager only appends to the outbox.
func (m *Manager) unlockAndEmit() {
	if m.emitting {
		m.mu.Unlock()
		return
	}
	m.emitting = true
	for len(m.outbox) > 0 {
		batch := m.outbox
		m.outbox = nil
		listeners := append([]StateListener(nil), m.stateListeners...)
		m.mu.Unlock()
		for _, c := range batch {
			for _, fn := range listeners {
				fn := fn
				safe.Run(m.log, "wsclient-state-listener", func() { fn(c.prev, c.cur, c.reason) })
			}
		}
		m.mu.Lock()
	}
	m.emitting = false
	m.mu.Unlock()
}

// ===== goroutines =====

func (m *Manager) dial(ctx context.Context, epoch uint64) {
	conn, err := m.opts.Dialer.Dial(ctx, m.opts.URL, m.opts.Header)

	m.mu.Lock()
	if epoch != m.epoch || m.state != Connecting {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close(notify.CloseNormal, "stale")
		}
		return
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if err != nil {
		reason := "dial failed"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "connect timeout"
		}
		m.log.Warn(reason, zap.String("url", m.opts.URL), zap.Int("attempts", m.attempts), zap.Error(err))
		m.lost(reason)
		m.unlockAndEmit()
		return
	}

	m.conn = conn
	m.attempts = 0
	m.fire(EventOpened, "opened")
	m.startHeartbeat(conn)
	m.unlockAndEmit()

	m.readLoop(conn, epoch)
}

func (m *Manager) readLoop(conn Conn, epoch uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.closed(epoch, err)
			return
		}
		n, perr := notify.Parse(data)
		if perr != nil {
			m.log.Warn("drop malformed frame", zap.Error(perr))
			continue
		}
		m.dispatch(n)
	}
}

func (m *Manager) dispatch(n notify.Notification) {
	m.mu.Lock()
	if n.Kind() == notify.KindPong {
		m.lastPong = time.Now()
	}
	fns := append(([]func(notify.Notification))(nil), m.listeners[n.Kind()]...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn := fn
		safe.Run(m.log, "wsclient-listener", func() { fn(n) })
	}
}

// closed maps the close code of a live transport to an event.
func (m *Manager) closed(epoch uint64, err error) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	code := CloseCode(err)
	m.log.Info("connection closed", zap.Int("code", code), zap.Error(err))

	switch {
	case code == notify.CloseNormal:
		m.stopTimers()
		m.fire(EventCleanClose, "closed by server")
	case code == notify.ClosePolicy:
		m.stopTimers()
		m.fire(EventAuthRejected, notify.CloseReasonAuth)
	case !m.online:
		m.stopTimers()
		m.fire(EventNetworkDown, "network offline")
	default:
		m.lost("connection lost")
	}
	m.unlockAndEmit()
}
