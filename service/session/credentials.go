package session

import (
	"net/http"
	"strings"
)

// CredentialOptions says where a handshake may carry its credential.
type CredentialOptions struct {
	CookieName                string // 默认 "sid"
	HeaderToken               string // 默认 "authorization-token"
	QueryParam                string // 默认 "session"
	EnableAuthorizationBearer bool   // 默认 true
}

func DefaultCredentialOptions() CredentialOptions {
	return CredentialOptions{
		CookieName:                "sid",
		HeaderToken:               "Authorization-Token",
		QueryParam:                "session",
		EnableAuthorizationBearer: true,
	}
}

// CredentialFromRequest looks at the session cookie, then
// "Authorization: Bearer", then the custom header, and finally the query
// parameter fallback. It returns "" when none is present.
func CredentialFromRequest(r *http.Request, opts CredentialOptions) string {
	if opts.CookieName != "" {
		if c, err := r.Cookie(opts.CookieName); err == nil {
			if v := strings.TrimSpace(c.Value); v != "" {
				return v
			}
		}
	}

	// 兼容 Authorization: Bearer xxx
	if opts.EnableAuthorizationBearer {
		if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				if v := strings.TrimSpace(authz[len("bearer "):]); v != "" {
					return v
				}
			}
		}
	}

	if opts.HeaderToken != "" {
		if v := strings.TrimSpace(r.Header.Get(opts.HeaderToken)); v != "" {
			return v
		}
	}

	if opts.QueryParam != "" {
		return strings.TrimSpace(r.URL.Query().Get(opts.QueryParam))
	}
	return ""
}
