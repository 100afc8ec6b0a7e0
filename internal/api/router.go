package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-locks/internal/bridges/smartlock"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth, scraped on the local network)
	r.Handle("/metrics", s.metricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Get("/metrics", s.handleSystemMetrics)

			r.Route("/locks", func(r chi.Router) {
				r.Get("/", s.handleListLocks)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetLock)
					r.Post("/lock", s.handleLock)
					r.Post("/unlock", s.handleUnlock)
					r.Post("/open", s.handleOpen)
					r.Post("/sync", s.handleSync)
				})
			})

			r.Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// healthResponse is returned by GET /api/v1/health.
type healthResponse struct {
	Status  smartlock.HealthStatus `json:"status"`
	Version string                 `json:"version"`
	Reason  string                 `json:"reason,omitempty"`
	Locks   smartlock.LockCounts   `json:"locks"`
}

// handleHealth returns the bridge health. Degraded bridges answer 503 so
// load balancers and container probes notice.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.locks.Health()
	status := http.StatusOK
	if h.Status != smartlock.HealthHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{
		Status:  h.Status,
		Version: s.version,
		Reason:  h.Reason,
		Locks:   h.Locks,
	})
}
