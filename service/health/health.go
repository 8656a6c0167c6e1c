package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"PNotify/middleware"
	midsec "PNotify/middleware/security"
	"PNotify/service/chat"
	"PNotify/service/notify"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Check is a named dependency probe, e.g. a redis or postgres ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Service serves /health and the /api/v1/ws diagnostics.
type Service struct {
	reg     *chat.Registry
	queue   *chat.OfflineQueue
	checks  []Check
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

func New(reg *chat.Registry, queue *chat.OfflineQueue, log *zap.Logger, checks ...Check) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{reg: reg, queue: queue, checks: checks, timeout: 2 * time.Second, now: time.Now, log: log}
}

type wsStatus struct {
	ConnectedUsers       int    `json:"connected_users"`
	Status               string `json:"status"`
	PendingNotifications int    `json:"pending_notifications"`
}

type healthResponse struct {
	Status    string            `json:"status"`
	WebSocket wsStatus          `json:"websocket"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Register mounts the routes. Diagnostic routes require adminToken when it
// is not empty; /health is always open.
func (s *Service) Register(r gin.IRoutes, adminToken string) {
	r.GET("/health", s.Health)
	opt := middleware.RouteOpt{IsAuth: adminToken != "", Auth: midsec.DefaultOptions(adminToken)}
	middleware.GET(r, "/api/v1/ws/connections", s.Connections, opt)
	middleware.GET(r, "/api/v1/ws/pending", s.PendingAll, opt)
	middleware.GET(r, "/api/v1/ws/pending/:identity", s.PendingFor, opt)
}

// Ok runs the dependency checks and reports whether all passed.
func (s *Service) Ok(ctx context.Context) (map[string]string, bool) {
	if len(s.checks) == 0 {
		return nil, true
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out := make(map[string]string, len(s.checks))
	ok := true
	for _, c := range s.checks {
		if err := c.Fn(ctx); err != nil {
			s.log.Warn("health check failed", zap.String("check", c.Name), zap.Error(err))
			out[c.Name] = err.Error()
			ok = false
			continue
		}
		out[c.Name] = "ok"
	}
	return out, ok
}

func (s *Service) Health(c *gin.Context) {
	checks, ok := s.Ok(c.Request.Context())
	resp := healthResponse{
		Status: "ok",
		WebSocket: wsStatus{
			ConnectedUsers:       s.reg.Count(),
			Status:               "running",
			PendingNotifications: s.queue.CountAll(),
		},
		Checks:    checks,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if !ok {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (s *Service) Connections(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":      s.reg.Count(),
		"identities": s.reg.Identities(),
	})
}

func (s *Service) PendingAll(c *gin.Context) {
	snap := s.queue.Snapshot()
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	counts := make(map[string]int, len(snap))
	for _, id := range ids {
		counts[id] = len(snap[id])
	}
	c.JSON(http.StatusOK, gin.H{
		"total":      s.queue.CountAll(),
		"identities": ids,
		"counts":     counts,
	})
}

func (s *Service) PendingFor(c *gin.Context) {
	identity := c.Param("identity")
	list := s.queue.Peek(identity)
	if list == nil {
		list = []notify.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{
		"identity":      identity,
		"count":         len(list),
		"notifications": list,
	})
}
