package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/catalog/internal/logging"
)

// CallerHeader carries the caller identity. The userId query parameter is
// accepted as a fallback for clients that cannot set headers.
const CallerHeader = "X-Caller-ID"

// CallerID stores the request's caller identity in its context.
// Identity is opaque here; authorization happens in the service.
func CallerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := requestCaller(r); id != "" {
			r = r.WithContext(WithCaller(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func requestCaller(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(CallerHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}

// RequireCaller calls deny instead of next when the request has no caller.
func RequireCaller(deny http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if CallerFromContext(r.Context()) == "" {
				deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithCaller returns ctx carrying id. Context loggers pick it up as caller_id.
func WithCaller(ctx context.Context, id string) context.Context {
	return logging.ContextWithCaller(ctx, id)
}

// CallerFromContext returns the caller identity, or "" if none was sent.
func CallerFromContext(ctx context.Context) string {
	return logging.CallerFromContext(ctx)
}
