package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const maxTrackedIPs = 10000

// HandshakeLimit caps new requests per client IP. It is meant for the
// WebSocket path, where each request is a reconnect.
func HandshakeLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(*gin.Context) {}
	}
	if burst <= 0 {
		burst = 1
	}
	var (
		mu  sync.Mutex
		ips = make(map[string]*rate.Limiter)
	)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		mu.Lock()
		lim, ok := ips[ip]
		if !ok {
			// 粗粒度回收：表满了直接清空
			if len(ips) >= maxTrackedIPs {
				ips = make(map[string]*rate.Limiter)
			}
			lim = rate.NewLimiter(rate.Limit(perSecond), burst)
			ips[ip] = lim
		}
		mu.Unlock()
		if !lim.Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
		}
	}
}
