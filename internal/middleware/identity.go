package middleware

import (
	"context"
	"net/http"
)

const userIDKey contextKey = "user_id"

// Identity extracts the authenticated user id from the X-User-ID header.
// Authentication terminates at the edge proxy; by the time a request reaches
// this service the header is trusted.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get("X-User-ID")
		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the caller's user id, or empty when absent.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}
