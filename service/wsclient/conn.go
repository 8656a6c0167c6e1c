package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"PNotify/service/notify"
	"PNotify/tools/errs"

	"github.com/gorilla/websocket"
)

// Conn is one open client transport.
type Conn interface {
	// ReadMessage blocks for the next data frame. When the connection ends
	// the error is a *CloseError.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close(code int, reason string) error
}

// Dialer opens a Conn. ctx bounds the handshake.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// CloseError carries the close code the connection ended with. Endings
// without a close frame are reported as 1006.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("websocket closed: %d %s", e.Code, e.Reason)
}

// CloseCode extracts the close code from err, 1006 when there is none.
func CloseCode(err error) int {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return notify.CloseAbnormal
}

// ===== gorilla =====

type GorillaDialer struct {
	Dialer    *websocket.Dialer
	WriteWait time.Duration
}

func NewGorillaDialer() *GorillaDialer {
	return &GorillaDialer{
		Dialer:    &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second},
		WriteWait: 10 * time.Second,
	}
}

func (d *GorillaDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, errs.WrapMsg(err, "dial", "url", url, "status", resp.StatusCode)
		}
		return nil, errs.WrapMsg(err, "dial", "url", url)
	}
	ww := d.WriteWait
	if ww <= 0 {
		ww = 10 * time.Second
	}
	return &gorillaConn{ws: ws, writeWait: ww}, nil
}

type gorillaConn struct {
	ws        *websocket.Conn
	writeWait time.Duration
	mu        sync.Mutex
}

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
			}
			return nil, &CloseError{Code: notify.CloseAbnormal, Reason: err.Error()}
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *gorillaConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *gorillaConn) Close(code int, reason string) error {
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(c.writeWait))
	c.mu.Unlock()
	return c.ws.Close()
}
