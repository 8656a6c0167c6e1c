package chat

import (
	"sort"
	"sync"
)

// Registry maps identities to their live transport. At most one transport is
// held per identity and the last one registered wins.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]Transport
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]Transport),
	}
}

// Register stores t for identity and returns the transport it replaced, if
// any. The replaced transport is not closed here; that is the caller's job.
func (r *Registry) Register(identity string, t Transport) Transport {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.byUser[identity]
	r.byUser[identity] = t
	return prev
}

// Unregister removes identity only while it still maps to t, so a late
// close of an old connection cannot evict the newer one.
func (r *Registry) Unregister(identity string, t Transport) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byUser[identity]
	if !ok || cur != t {
		return false
	}
	delete(r.byUser, identity)
	return true
}

func (r *Registry) Lookup(identity string) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byUser[identity]
	return t, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Identities lists registered identities in sorted order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// snapshot copies the map for iteration outside the lock.
func (r *Registry) snapshot() map[string]Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Transport, len(r.byUser))
	for id, t := range r.byUser {
		out[id] = t
	}
	return out
}
