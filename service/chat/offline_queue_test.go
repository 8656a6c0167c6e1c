package chat

import (
	"fmt"
	"sync"
	"testing"

	"PNotify/service/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func friendReq(from string) notify.Notification { return notify.FriendRequest(from) }

func TestOfflineQueue_FIFO(t *testing.T) {
	q := NewOfflineQueue(0)
	q.Enqueue("alice", friendReq("u1"))
	q.Enqueue("alice", friendReq("u2"))
	q.Enqueue("alice", friendReq("u1"))

	assert.Equal(t, 3, q.Len("alice"))
	got := q.Drain("alice")
	require.Len(t, got, 3)
	for i, want := range []string{"u1", "u2", "u1"} {
		from, _ := got[i].Field("from")
		assert.Equal(t, want, from)
	}
	assert.Equal(t, 0, q.Len("alice"))
}

func TestOfflineQueue_DrainEmpty(t *testing.T) {
	q := NewOfflineQueue(0)
	got := q.Drain("nobody")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestOfflineQueue_CapDropsOldest(t *testing.T) {
	q := NewOfflineQueue(2)
	assert.False(t, q.Enqueue("bob", friendReq("u1")))
	assert.False(t, q.Enqueue("bob", friendReq("u2")))
	assert.True(t, q.Enqueue("bob", friendReq("u3")))

	got := q.Drain("bob")
	require.Len(t, got, 2)
	from0, _ := got[0].Field("from")
	from1, _ := got[1].Field("from")
	assert.Equal(t, "u2", from0)
	assert.Equal(t, "u3", from1)
}

func TestOfflineQueue_PeekAndCounts(t *testing.T) {
	q := NewOfflineQueue(0)
	q.Enqueue("a", friendReq("x"))
	q.Enqueue("b", friendReq("y"))
	q.Enqueue("b", friendReq("z"))

	assert.Len(t, q.Peek("b"), 2)
	assert.Equal(t, 2, q.Len("b"), "peek must not drain")
	assert.Equal(t, 3, q.CountAll())

	snap := q.Snapshot()
	assert.Len(t, snap, 2)
	assert.Len(t, snap["b"], 2)
}

func TestOfflineQueue_ConcurrentEnqueueDrain(t *testing.T) {
	q := NewOfflineQueue(0)
	const n = 200

	var wg sync.WaitGroup
	var mu sync.Mutex
	var drained []notify.Notification
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Enqueue("alice", friendReq(fmt.Sprintf("u%d", i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n/10; i++ {
			got := q.Drain("alice")
			mu.Lock()
			drained = append(drained, got...)
			mu.Unlock()
		}
	}()
	wg.Wait()
	drained = append(drained, q.Drain("alice")...)

	// nothing lost, nothing duplicated, order kept
	require.Len(t, drained, n)
	for i, got := range drained {
		from, _ := got.Field("from")
		assert.Equal(t, fmt.Sprintf("u%d", i), from)
	}
}
