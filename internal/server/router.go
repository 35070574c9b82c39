package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/api"
	"github.com/macarrie/relique/internal/backup"
	"github.com/macarrie/relique/internal/metrics"
	"github.com/macarrie/relique/internal/repository"
	"github.com/macarrie/relique/internal/websocket"
)

// RouterConfig holds the dependencies needed to build the server HTTP
// router. It is populated by the command layer after all components are
// initialized and passed to NewRouter as a single struct.
type RouterConfig struct {
	Jobs    repository.JobRepository
	Storage *backup.Storage
	Hub     *websocket.Hub
	Logger  *zap.Logger
}

// NewRouter builds the server API router: the backup wire protocol, the job
// management endpoints, the event stream and the Prometheus exposition.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// RequestID generates a unique ID for each request, used in logs for
	// tracing.
	r.Use(middleware.RequestID)

	// RealIP extracts the real client IP from X-Forwarded-For or X-Real-IP
	// headers when the server runs behind a reverse proxy.
	r.Use(middleware.RealIP)

	// RequestLogger logs every request with method, path, status and latency.
	r.Use(api.RequestLogger(cfg.Logger))

	// Recoverer catches panics in handlers, logs them, and returns a 500
	// instead of crashing the daemon.
	r.Use(middleware.Recoverer)

	backupHandler := NewBackupHandler(cfg.Jobs, cfg.Storage, cfg.Hub, cfg.Logger)
	jobsHandler := NewJobsHandler(cfg.Jobs, cfg.Logger)
	eventsHandler := NewEventsHandler(cfg.Hub, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", ping)

		// Wire protocol spoken by client daemons during a backup run.
		r.Route("/backup/jobs", func(r chi.Router) {
			r.Post("/register", backupHandler.Register)
			r.Put("/{uuid}/status", backupHandler.UpdateStatus)
			r.Get("/{uuid}/signature", backupHandler.Signature)
			r.Post("/{uuid}/delta", backupHandler.Delta)
		})

		// Management API for the CLI and monitoring tools.
		r.Get("/jobs", jobsHandler.List)
		r.Get("/jobs/{uuid}", jobsHandler.Show)
		r.Get("/events", eventsHandler.ServeWS)
	})

	r.Handle("/metrics", metrics.Handler())

	return r
}

// ping handles GET /api/v1/ping, the liveness probe used by the CLI to check
// that a daemon is up before talking to it.
func ping(w http.ResponseWriter, r *http.Request) {
	api.Ok(w, map[string]string{"status": "ok"})
}
