package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

type ctxKey string

const callerKey ctxKey = "caller"

// identify attaches the caller identity when the request carries a valid token.
// Anonymous requests continue without one.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := h.Identity.Resolve(r.Context(), token)
		if err != nil {
			if !errors.Is(err, domain.ErrAuthRequired) {
				h.Logger.Error(middleware.GetReqID(r.Context()), "identity_resolve_failed", "Auth provider unavailable", err, nil)
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), callerKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if callerFrom(r.Context()) == nil {
			writeJSONError(w, http.StatusUnauthorized, errorResponse{Error: domain.ErrAuthRequired.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(callerKey).(*domain.Identity)
	return identity
}

// accessToken reads a bearer token, falling back to the session cookie.
func accessToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if c, err := r.Cookie(accessCookie); err == nil {
		return c.Value
	}
	return ""
}

// instrument logs each request and records its latency by route pattern.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := h.now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := h.now().Sub(start)
		h.Metrics.ObserveHTTP(route, r.Method, strconv.Itoa(status), elapsed)
		h.Logger.Debug(middleware.GetReqID(r.Context()), "request_completed", r.Method+" "+route, map[string]interface{}{
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
		})
	})
}
