package wsclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"PNotify/service/notify"
)

var errRefused = errors.New("connection refused")

type fakeConn struct {
	in     chan []byte
	end    chan *CloseError
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	out    [][]byte
	closed *CloseError
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan []byte, 16),
		end:  make(chan *CloseError, 1),
		done: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case d := <-c.in:
		return d, nil
	case ce := <-c.end:
		return nil, ce
	case <-c.done:
		return nil, &CloseError{Code: notify.CloseAbnormal, Reason: "closed locally"}
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed != nil {
		return c.closed
	}
	c.out = append(c.out, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed == nil {
		c.closed = &CloseError{Code: code, Reason: reason}
	}
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
	return nil
}

// serverClose simulates the peer ending the connection.
func (c *fakeConn) serverClose(code int, reason string) {
	c.end <- &CloseError{Code: code, Reason: reason}
}

func (c *fakeConn) push(n notify.Notification) {
	data, _ := notify.Marshal(n)
	c.in <- data
}

func (c *fakeConn) localClose() *CloseError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) written() []notify.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notify.Notification
	for _, d := range c.out {
		if n, err := notify.Parse(d); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// fakeDialer fails while fail is set, blocks until ctx ends while block is
// set, and otherwise hands out a new fakeConn.
type fakeDialer struct {
	fail  atomic.Bool
	block atomic.Bool
	dials atomic.Int32

	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, _ string, _ http.Header) (Conn, error) {
	d.dials.Add(1)
	if d.block.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.fail.Load() {
		return nil, errRefused
	}
	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

type transitionLog struct {
	mu  sync.Mutex
	seq []State
}

func (l *transitionLog) record(_, cur State, _ string) {
	l.mu.Lock()
	l.seq = append(l.seq, cur)
	l.mu.Unlock()
}

func (l *transitionLog) states() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.seq...)
}

func (l *transitionLog) contains(s State) bool {
	for _, got := range l.states() {
		if got == s {
			return true
		}
	}
	return false
}
