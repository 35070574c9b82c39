package client

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/api"
	"github.com/macarrie/relique/internal/types"
)

// StartBackupParams is the body of POST /api/v1/backup/start. A nil
// BackupType keeps the module's configured type.
type StartBackupParams struct {
	Module     string            `json:"module"`
	BackupType *types.BackupType `json:"backup_type,omitempty"`
}

// handler serves the client daemon API on top of the shared daemon
// state.
type handler struct {
	daemon *Daemon
	logger *zap.Logger
}

// NewRouter builds the client API router: the configuration sync
// endpoints the server talks to, the liveness probe and the manual
// backup trigger used by the CLI.
func NewRouter(d *Daemon, logger *zap.Logger) http.Handler {
	h := &handler{
		daemon: d,
		logger: logger.Named("client_api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", h.Ping)
		r.Get("/config/version", h.ConfigVersion)
		r.Post("/config", h.PostConfig)
		r.Post("/backup/start", h.StartBackup)
	})

	return r
}

// Ping handles GET /api/v1/ping.
func (h *handler) Ping(w http.ResponseWriter, r *http.Request) {
	api.Ok(w, map[string]string{"status": "ok"})
}

// ConfigVersion handles GET /api/v1/config/version. The version is null
// until a server pushes a configuration, which tells the server this
// client needs one.
func (h *handler) ConfigVersion(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.daemon.ConfigVersion())
}

// PostConfig handles POST /api/v1/config, the server pushing a full
// client record. Pushes carrying the version already held change
// nothing; both cases answer 200 so the server's sync loop stays
// simple.
func (h *handler) PostConfig(w http.ResponseWriter, r *http.Request) {
	var spec types.Client
	if err := api.Decode(w, r, &spec, api.MaxControlBody); err != nil {
		h.logger.Error("Could not parse configuration received from server", zap.Error(err))
		api.Text(w, http.StatusBadRequest, "Could not parse client configuration")
		return
	}

	h.daemon.ApplyConfig(spec)
	api.Text(w, http.StatusOK, "Configuration applied")
}

// StartBackup handles POST /api/v1/backup/start, the manual backup
// trigger. The job launches immediately regardless of schedules; the
// response carries the queued job so the caller can track it.
func (h *handler) StartBackup(w http.ResponseWriter, r *http.Request) {
	var params StartBackupParams
	if !api.DecodeJSON(w, r, &params) {
		return
	}
	if params.Module == "" {
		api.ErrBadRequest(w, "module name is required")
		return
	}

	job, err := h.daemon.StartManualBackup(params.Module, params.BackupType)
	switch {
	case errors.Is(err, ErrNoConfiguration):
		api.ErrUnavailable(w, err.Error())
	case errors.Is(err, ErrUnknownModule):
		api.ErrNotFound(w)
	case errors.Is(err, ErrJobAlreadyRunning):
		api.ErrConflict(w, err.Error())
	case err != nil:
		h.logger.Error("Could not start manual backup",
			zap.String("module", params.Module),
			zap.Error(err),
		)
		api.ErrInternal(w)
	default:
		api.Ok(w, job)
	}
}
