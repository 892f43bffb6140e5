package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthFunc reports component health; a non-nil error marks the process unhealthy.
type HealthFunc func(ctx context.Context) error

// NewRouter returns the ops router serving /metrics and /health.
func NewRouter(health HealthFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", Handler())
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		status := map[string]interface{}{"status": "ok"}
		code := http.StatusOK
		if health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				status["status"] = "unhealthy"
				status["error"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}

		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})

	return r
}
