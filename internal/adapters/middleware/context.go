package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"gitlab.com/timkado/api/account-cache-service/pkg/contextkeys"
)

const XRequestIDHeader = "X-Request-ID"

// RequestIDMiddleware injects a request ID into the context.
// It tries to get it from the X-Request-ID header, otherwise generates a new UUID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(XRequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), contextkeys.RequestIDKey, requestID)
		w.Header().Set(XRequestIDHeader, requestID) // Also set it in the response header
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccountScopeMiddleware copies the tenantID and userID path values of a routed request into the
// context so that every log line of the request carries them. It must wrap a handler registered on a
// pattern that declares both wildcards.
func AccountScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if tenantID := r.PathValue("tenantID"); tenantID != "" {
			ctx = context.WithValue(ctx, contextkeys.TenantIDKey, tenantID)
		}
		if userID := r.PathValue("userID"); userID != "" {
			ctx = context.WithValue(ctx, contextkeys.UserIDKey, userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
