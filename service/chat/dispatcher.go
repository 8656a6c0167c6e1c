package chat

import (
	"sync"

	"PNotify/service/notify"

	"go.uber.org/zap"
)

// DeliveryResult tells the write path what happened to a notification.
type DeliveryResult int

const (
	Delivered DeliveryResult = iota + 1 // pushed to a live transport
	Queued                              // buffered in the offline queue
	Dropped                             // could not be encoded, nothing buffered
)

func (r DeliveryResult) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case Queued:
		return "queued"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// BroadcastReport summarises one Broadcast call.
type BroadcastReport struct {
	Delivered []string
	Failed    []string
}

// CloseDeliveryFailed is sent when a transport is dropped after a failed push.
const CloseDeliveryFailed = 1011

// Dispatcher pushes notifications to connected identities and buffers the
// rest. It never returns an error to the write path.
type Dispatcher struct {
	reg   *Registry
	queue *OfflineQueue
	locks *keyLocks
	log   *zap.Logger
}

func NewDispatcher(reg *Registry, queue *OfflineQueue, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		reg:   reg,
		queue: queue,
		locks: newKeyLocks(),
		log:   log,
	}
}

// Deliver pushes n to identity's transport when one is registered and open,
// otherwise buffers it. A failed push buffers n and drops the dead transport.
func (d *Dispatcher) Deliver(identity string, n notify.Notification) DeliveryResult {
	data, err := notify.Marshal(n)
	if err != nil {
		d.log.Error("encode notification", zap.String("identity", identity), zap.String("kind", string(n.Kind())), zap.Error(err))
		return Dropped
	}

	var res DeliveryResult
	d.withIdentity(identity, func() {
		t, ok := d.reg.Lookup(identity)
		if ok && t.IsOpen() {
			err := t.Push(data)
			if err == nil {
				res = Delivered
				return
			}
			d.log.Warn("push failed, buffering", zap.String("identity", identity), zap.String("conn", t.ID()), zap.Error(err))
		}
		if ok {
			d.evict(identity, t)
		}
		if d.queue.Enqueue(identity, n) {
			d.log.Warn("offline queue full, oldest dropped", zap.String("identity", identity))
		}
		res = Queued
	})

	d.log.Debug("deliver", zap.String("identity", identity), zap.String("kind", string(n.Kind())), zap.Stringer("result", res))
	return res
}

// Broadcast pushes n to every registered identity except exclude. Failures
// drop that identity's transport and do not stop the loop. Nothing is buffered.
func (d *Dispatcher) Broadcast(n notify.Notification, exclude string) BroadcastReport {
	var rep BroadcastReport
	data, err := notify.Marshal(n)
	if err != nil {
		d.log.Error("encode broadcast", zap.String("kind", string(n.Kind())), zap.Error(err))
		return rep
	}

	for _, identity := range d.reg.Identities() {
		if identity == exclude {
			continue
		}
		ok := false
		d.withIdentity(identity, func() {
			t, found := d.reg.Lookup(identity)
			if !found {
				// went away between listing and locking
				return
			}
			if t.IsOpen() {
				if err := t.Push(data); err == nil {
					ok = true
					return
				}
			}
			d.evict(identity, t)
		})
		if ok {
			rep.Delivered = append(rep.Delivered, identity)
		} else {
			rep.Failed = append(rep.Failed, identity)
		}
	}
	return rep
}

// ===== 写路径辅助 =====

// NotifyNewMessage tells the sender (direction "sent") and the recipient
// (direction "received") about a stored message.
func (d *Dispatcher) NotifyNewMessage(from, to string, message map[string]any) (sender, recipient DeliveryResult) {
	sender = d.Deliver(from, notify.NewMessage(notify.DirectionSent, message))
	recipient = d.Deliver(to, notify.NewMessage(notify.DirectionReceived, message))
	return sender, recipient
}

func (d *Dispatcher) NotifyFriendRequest(to, from string) DeliveryResult {
	return d.Deliver(to, notify.FriendRequest(from))
}

func (d *Dispatcher) NotifyFriendRequestResponse(to, from, status string) DeliveryResult {
	return d.Deliver(to, notify.FriendRequestResponse(from, status))
}

// evict drops a transport that failed a push. Guarded by handle.
func (d *Dispatcher) evict(identity string, t Transport) {
	if d.reg.Unregister(identity, t) {
		d.log.Info("transport evicted", zap.String("identity", identity), zap.String("conn", t.ID()))
	}
	_ = t.Close(CloseDeliveryFailed, "delivery failed")
}

// withIdentity serialises deliveries and connection admission per identity,
// which keeps pushes to one identity in call order.
func (d *Dispatcher) withIdentity(identity string, f func()) {
	unlock := d.locks.lock(identity)
	defer unlock()
	f()
}

// ===== 按 key 加锁 =====

type keyLock struct {
	mu   sync.Mutex
	refs int
}

type keyLocks struct {
	mu sync.Mutex
	m  map[string]*keyLock
}

func newKeyLocks() *keyLocks {
	return &keyLocks{m: make(map[string]*keyLock)}
}

func (k *keyLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	l := k.m[key]
	if l == nil {
		l = &keyLock{}
		k.m[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.m)
}
