package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialFromRequest(t *testing.T) {
	opts := DefaultCredentialOptions()

	tests := []struct {
		name  string
		setup func(r *http.Request)
		url   string
		want  string
	}{
		{
			name:  "cookie wins",
			url:   "/ws?session=q",
			setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sid", Value: "c"}); r.Header.Set("Authorization", "Bearer b") },
			want:  "c",
		},
		{
			name:  "bearer before header",
			url:   "/ws",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "bearer  b "); r.Header.Set("Authorization-Token", "h") },
			want:  "b",
		},
		{
			name:  "custom header",
			url:   "/ws",
			setup: func(r *http.Request) { r.Header.Set("Authorization-Token", "h") },
			want:  "h",
		},
		{
			name: "query fallback",
			url:  "/ws?session=q",
			want: "q",
		},
		{
			name:  "non bearer authorization ignored",
			url:   "/ws",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Basic xyz") },
			want:  "",
		},
		{
			name: "nothing",
			url:  "/ws",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.setup != nil {
				tt.setup(r)
			}
			assert.Equal(t, tt.want, CredentialFromRequest(r, opts))
		})
	}
}

func TestCredentialFromRequest_DisabledSources(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?session=q", nil)
	r.Header.Set("Authorization", "Bearer b")

	assert.Equal(t, "", CredentialFromRequest(r, CredentialOptions{}))
}
