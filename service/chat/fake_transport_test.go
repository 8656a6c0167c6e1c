package chat

import (
	"errors"
	"sync"
	"sync/atomic"

	"PNotify/service/notify"
)

var errFakePush = errors.New("fake push failed")

type closeCall struct {
	code   int
	reason string
}

// fakeTransport records pushed frames. failAfter < 0 never fails; otherwise
// the push with index failAfter and every later push fail.
type fakeTransport struct {
	id        string
	mu        sync.Mutex
	frames    [][]byte
	closes    []closeCall
	open      atomic.Bool
	failAfter int
}

func newFake(id string) *fakeTransport {
	t := &fakeTransport{id: id, failAfter: -1}
	t.open.Store(true)
	return t
}

func (t *fakeTransport) ID() string   { return t.id }
func (t *fakeTransport) IsOpen() bool { return t.open.Load() }

func (t *fakeTransport) Push(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failAfter >= 0 && len(t.frames) >= t.failAfter {
		return errFakePush
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	t.frames = append(t.frames, cp)
	return nil
}

func (t *fakeTransport) Close(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open.Store(false)
	t.closes = append(t.closes, closeCall{code: code, reason: reason})
	return nil
}

func (t *fakeTransport) setFailAfter(n int) {
	t.mu.Lock()
	t.failAfter = n
	t.mu.Unlock()
}

func (t *fakeTransport) notifications() []notify.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]notify.Notification, 0, len(t.frames))
	for _, f := range t.frames {
		n, err := notify.Parse(f)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

func (t *fakeTransport) kinds() []notify.Kind {
	var out []notify.Kind
	for _, n := range t.notifications() {
		out = append(out, n.Kind())
	}
	return out
}

func (t *fakeTransport) closeCalls() []closeCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]closeCall(nil), t.closes...)
}
