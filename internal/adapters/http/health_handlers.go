package http

import (
	"context"
	"net/http"
	"time"

	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// ReadinessCheck reports whether one dependency is usable.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler answers liveness probes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ReadyHandler runs every check with a short deadline and answers 503 naming the first failing one.
func ReadyHandler(checks []ReadinessCheck, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.Warn(ctx, "Readiness check failed", "check", c.Name, "error", err)
				domain.NewErrorResponse(domain.ErrInternal, "Not ready", c.Name+" check failed").WriteJSON(w, http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
