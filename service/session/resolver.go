package session

import (
	"context"
	"sync"

	"PNotify/tools/errs"
)

// Resolver turns a credential into an identity. Unknown credentials return
// an error matching errs.ErrNoSession; any other error means the lookup
// itself failed.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (string, error)
}

type ResolverFunc func(ctx context.Context, credential string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, credential string) (string, error) {
	return f(ctx, credential)
}

// IsNoSession reports whether err means "no such session" rather than a
// lookup failure.
func IsNoSession(err error) bool {
	return errs.ErrNoSession.Is(err)
}

// Chain asks each resolver in order and returns the first identity found.
// A lookup failure is remembered and returned if no resolver succeeds.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", errs.ErrNoSession.WrapMsg("empty credential")
	}
	var lookupErr error
	for _, r := range c {
		id, err := r.Resolve(ctx, credential)
		if err == nil {
			return id, nil
		}
		if !IsNoSession(err) && lookupErr == nil {
			lookupErr = err
		}
	}
	if lookupErr != nil {
		return "", lookupErr
	}
	return "", errs.ErrNoSession.Wrap()
}

// MemoryStore keeps sessions in a map. Used for development and tests.
type MemoryStore struct {
	mu  sync.RWMutex
	sid map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sid: make(map[string]string)}
}

func (m *MemoryStore) Put(sid, identity string) {
	m.mu.Lock()
	m.sid[sid] = identity
	m.mu.Unlock()
}

func (m *MemoryStore) Delete(sid string) {
	m.mu.Lock()
	delete(m.sid, sid)
	m.mu.Unlock()
}

func (m *MemoryStore) Resolve(_ context.Context, credential string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sid[credential]
	if !ok || id == "" {
		return "", errs.ErrNoSession.Wrap()
	}
	return id, nil
}
