package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"PNotify/tools/errs"

	"github.com/gin-gonic/gin"
)

// PPCtxAdminKey 校验通过后写入 context 的 key
const PPCtxAdminKey = "admin"

type Options struct {
	Token                     string // 为空时不校验
	HeaderToken               string // 默认 "X-Admin-Token"
	EnableAuthorizationBearer bool   // 默认 true
}

func DefaultOptions(token string) *Options {
	return &Options{
		Token:                     token,
		HeaderToken:               "X-Admin-Token",
		EnableAuthorizationBearer: true,
	}
}

// Middleware guards diagnostic routes with a shared admin token.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions("")
	}
	return func(c *gin.Context) {
		if opts.Token == "" {
			c.Next()
			return
		}
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))

		// 兼容 Authorization: Bearer xxx
		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(opts.Token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized)
			return
		}
		c.Set(PPCtxAdminKey, true)
		c.Next()
	}
}
