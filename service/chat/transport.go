package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"PNotify/tools/errs"

	"github.com/gorilla/websocket"
)

// Transport is the push side of one live connection.
type Transport interface {
	ID() string
	Push(data []byte) error
	IsOpen() bool
	Close(code int, reason string) error
}

// wsTransport 每条 WebSocket 连接
type wsTransport struct {
	id        string
	conn      *websocket.Conn
	writeWait time.Duration
	remote    string

	mu   sync.Mutex // gorilla 只允许一个并发写
	open atomic.Bool
}

func newWSTransport(id string, conn *websocket.Conn, writeWait time.Duration) *wsTransport {
	t := &wsTransport{
		id:        id,
		conn:      conn,
		writeWait: writeWait,
	}
	if ra := conn.RemoteAddr(); ra != nil {
		t.remote = ra.String()
	}
	t.open.Store(true)
	return t
}

func (t *wsTransport) ID() string { return t.id }

func (t *wsTransport) IsOpen() bool { return t.open.Load() }

func (t *wsTransport) Push(data []byte) error {
	if !t.open.Load() {
		return errs.ErrTransportClosed.WrapMsg("", "conn", t.id)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeWait)); err != nil {
		t.open.Store(false)
		return errs.Wrap(err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.open.Store(false)
		return errs.Wrap(err)
	}
	return nil
}

// Close sends a close frame with code and reason, then drops the socket.
// Only the first call has any effect.
func (t *wsTransport) Close(code int, reason string) error {
	if !t.open.CompareAndSwap(true, false) {
		return nil
	}
	deadline := time.Now().Add(t.writeWait)
	_ = t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return t.conn.Close()
}

// ping writes a control ping. WriteControl is safe to call next to WriteMessage.
func (t *wsTransport) ping() error {
	return t.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(t.writeWait))
}

// markClosed drops the socket without a close frame, used after a read error.
func (t *wsTransport) markClosed() {
	if t.open.CompareAndSwap(true, false) {
		_ = t.conn.Close()
	}
}
