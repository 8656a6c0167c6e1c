package chat

import (
	"sync"

	"PNotify/service/notify"
)

// OfflineQueue buffers notifications per identity until it reconnects.
// Entries are FIFO and never deduplicated. Memory only, see package doc.
type OfflineQueue struct {
	mu      sync.Mutex
	pending map[string][]notify.Notification
	// maxPerIdentity <= 0 means unbounded
	maxPerIdentity int
}

func NewOfflineQueue(maxPerIdentity int) *OfflineQueue {
	return &OfflineQueue{
		pending:        make(map[string][]notify.Notification),
		maxPerIdentity: maxPerIdentity,
	}
}

// Enqueue appends n to identity's list. When the list is at its cap the
// oldest entry is evicted and dropped is true.
func (q *OfflineQueue) Enqueue(identity string, n notify.Notification) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.pending[identity]
	if q.maxPerIdentity > 0 && len(list) >= q.maxPerIdentity {
		list = list[len(list)-q.maxPerIdentity+1:]
		dropped = true
	}
	q.pending[identity] = append(list, n)
	return dropped
}

// Drain returns identity's list in enqueue order and clears it in the same
// critical section. Anything enqueued after Drain returns stays queued.
func (q *OfflineQueue) Drain(identity string) []notify.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.pending[identity]
	delete(q.pending, identity)
	if list == nil {
		return []notify.Notification{}
	}
	return list
}

// Peek copies identity's list without removing it.
func (q *OfflineQueue) Peek(identity string) []notify.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.pending[identity]
	out := make([]notify.Notification, len(list))
	copy(out, list)
	return out
}

func (q *OfflineQueue) Len(identity string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[identity])
}

// CountAll is the number of buffered notifications across identities.
func (q *OfflineQueue) CountAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, list := range q.pending {
		n += len(list)
	}
	return n
}

// Snapshot copies every non-empty list, keyed by identity.
func (q *OfflineQueue) Snapshot() map[string][]notify.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string][]notify.Notification, len(q.pending))
	for id, list := range q.pending {
		cp := make([]notify.Notification, len(list))
		copy(cp, list)
		out[id] = cp
	}
	return out
}
