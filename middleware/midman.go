package middleware

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Guard 是一个具名的前置检查，只作用于 Prefix 开头的路径（空表示所有路径）。
// Fn 不应调用 c.Next，拒绝时 Abort 即可。
type Guard struct {
	Name   string
	Prefix string
	Fn     gin.HandlerFunc
}

// MiddlewareManager 持有一组可在运行时替换的 Guard
type MiddlewareManager struct {
	mu     sync.RWMutex
	guards []Guard
}

func NewManager(guards ...Guard) *MiddlewareManager {
	m := &MiddlewareManager{}
	for _, g := range guards {
		m.Set(g)
	}
	return m
}

// Set 注册 guard，同名的会被原位替换
func (m *MiddlewareManager) Set(g Guard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.guards {
		if m.guards[i].Name == g.Name {
			m.guards[i] = g
			return
		}
	}
	m.guards = append(m.guards, g)
}

func (m *MiddlewareManager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.guards {
		if m.guards[i].Name == name {
			m.guards = append(m.guards[:i], m.guards[i+1:]...)
			return true
		}
	}
	return false
}

func (m *MiddlewareManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.guards))
	for _, g := range m.guards {
		out = append(out, g.Name)
	}
	return out
}

// Use 返回挂到 Engine 上的总控中间件
func (m *MiddlewareManager) Use() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		guards := append([]Guard(nil), m.guards...) // 快照
		m.mu.RUnlock()

		path := c.Request.URL.Path
		for _, g := range guards {
			if g.Prefix != "" && !strings.HasPrefix(path, g.Prefix) {
				continue
			}
			g.Fn(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}
