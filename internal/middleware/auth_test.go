package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware("s3cret")(okHandler())

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"no credentials", "/api/runs", "", http.StatusUnauthorized},
		{"wrong token", "/api/runs", "Bearer nope", http.StatusUnauthorized},
		{"basic scheme", "/api/runs", "Basic s3cret", http.StatusUnauthorized},
		{"bearer", "/api/runs", "Bearer s3cret", http.StatusTeapot},
		{"query token", "/api/ws?token=s3cret", "", http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	AuthMiddleware("")(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
