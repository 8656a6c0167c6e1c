package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"PNotify/service/chat"
	"PNotify/service/notify"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type nopTransport struct{ id string }

func (n nopTransport) ID() string            { return n.id }
func (nopTransport) Push([]byte) error       { return nil }
func (nopTransport) IsOpen() bool            { return true }
func (nopTransport) Close(int, string) error { return nil }

func setup(t *testing.T, adminToken string, checks ...Check) (*gin.Engine, *chat.Registry, *chat.OfflineQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := chat.NewRegistry()
	q := chat.NewOfflineQueue(0)
	svc := New(reg, q, zap.NewNop(), checks...)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	r := gin.New()
	svc.Register(r, adminToken)
	return r, reg, q
}

func get(r http.Handler, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, reg, q := setup(t, "")
	reg.Register("alice", nopTransport{"a"})
	q.Enqueue("bob", notify.FriendRequest("alice"))
	q.Enqueue("bob", notify.FriendRequest("carol"))

	w := get(r, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.WebSocket.ConnectedUsers)
	assert.Equal(t, "running", body.WebSocket.Status)
	assert.Equal(t, 2, body.WebSocket.PendingNotifications)
	assert.Equal(t, "2024-05-01T12:00:00Z", body.Timestamp)
}

func TestHealth_FailingCheck(t *testing.T) {
	r, _, _ := setup(t, "", Check{Name: "redis", Fn: func(context.Context) error { return errors.New("down") }})
	w := get(r, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "down", body.Checks["redis"])
}

func TestDiagnostics(t *testing.T) {
	r, reg, q := setup(t, "")
	reg.Register("bob", nopTransport{"b"})
	reg.Register("alice", nopTransport{"a"})
	q.Enqueue("carol", notify.FriendRequest("alice"))

	w := get(r, "/api/v1/ws/connections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var conns struct {
		Count      int      `json:"count"`
		Identities []string `json:"identities"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conns))
	assert.Equal(t, 2, conns.Count)
	assert.Equal(t, []string{"alice", "bob"}, conns.Identities)

	w = get(r, "/api/v1/ws/pending", nil)
	var pending struct {
		Total  int            `json:"total"`
		Counts map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	assert.Equal(t, 1, pending.Total)
	assert.Equal(t, 1, pending.Counts["carol"])

	w = get(r, "/api/v1/ws/pending/carol", nil)
	var one struct {
		Count         int              `json:"count"`
		Notifications []map[string]any `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	require.Equal(t, 1, one.Count)
	assert.Equal(t, "friend_request", one.Notifications[0]["type"])
	assert.Equal(t, "alice", one.Notifications[0]["from"])
	assert.Equal(t, 1, q.Len("carol"), "diagnostics never drain")

	w = get(r, "/api/v1/ws/pending/nobody", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, 0, one.Count)
	assert.NotNil(t, one.Notifications)
}

func TestDiagnostics_AdminToken(t *testing.T) {
	r, _, _ := setup(t, "s3cret")
	assert.Equal(t, http.StatusOK, get(r, "/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/v1/ws/connections", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/ws/connections", map[string]string{"X-Admin-Token": "s3cret"}).Code)
}

func TestGRPCHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	svc := New(chat.NewRegistry(), chat.NewOfflineQueue(0), zap.NewNop(), Check{Name: "dep", Fn: func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("down")
	}})
	g := NewGRPCServer(svc, zap.NewNop())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Serve(ctx, lis) }()

	conn, err := grpc.Dial(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
	assert.NoError(t, Probe(context.Background(), lis.Addr().String(), ServiceName, time.Second))

	healthy.Store(false)
	g.Refresh(context.Background())
	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
	assert.Error(t, Probe(context.Background(), lis.Addr().String(), "", time.Second))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("grpc server did not stop")
	}
}
