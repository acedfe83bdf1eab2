package api

import (
	"context"
	"net/http"

	"github.com/noah-isme/storefront-gateway/internal/backend"
	"github.com/noah-isme/storefront-gateway/internal/common"
	"github.com/noah-isme/storefront-gateway/internal/session"
)

type sessionCtxKey struct{}

// sessionFrom returns the request's session, or nil outside the middleware.
func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(sessionCtxKey{}).(*session.Session)
	return s
}

// WithSession resolves the session from the X-Session-Id header, creating one
// (with a generated id) when absent, and echoes the id on the response so the
// storefront can persist it.
func WithSession(reg *session.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, id := reg.Get(r.Header.Get(backend.SessionHeader))
			w.Header().Set(backend.SessionHeader, id)
			if err := s.Load(r.Context()); err != nil {
				common.JSONError(w, http.StatusBadGateway, "UPSTREAM", "cart could not be loaded", nil)
				return
			}
			ctx := context.WithValue(r.Context(), sessionCtxKey{}, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
