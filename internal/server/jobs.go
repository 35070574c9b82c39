package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/api"
	"github.com/macarrie/relique/internal/repository"
	"github.com/macarrie/relique/internal/types"
)

// JobsHandler serves the management API used by the relique CLI and
// monitoring tooling to inspect backup jobs. Unlike the protocol endpoints,
// responses here use the JSON envelope.
type JobsHandler struct {
	jobs   repository.JobRepository
	logger *zap.Logger
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(jobs repository.JobRepository, logger *zap.Logger) *JobsHandler {
	return &JobsHandler{
		jobs:   jobs,
		logger: logger.Named("jobs_handler"),
	}
}

// List handles GET /api/v1/jobs.
// Supports filtering by client, module, status and backup type via query
// parameters; limit caps the number of rows returned (newest first).
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := repository.SearchParams{
		Client: q.Get("client"),
		Module: q.Get("module"),
	}

	if s := q.Get("status"); s != "" {
		status, err := types.ParseJobStatus(s)
		if err != nil {
			api.ErrBadRequest(w, "invalid status: use pending, active, done, incomplete or error")
			return
		}
		params.Status = &status
	}
	if s := q.Get("type"); s != "" {
		backupType, err := types.ParseBackupType(s)
		if err != nil {
			api.ErrBadRequest(w, "invalid type: use full or diff")
			return
		}
		params.BackupType = &backupType
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			api.ErrBadRequest(w, "invalid limit: must be a positive integer")
			return
		}
		params.Limit = limit
	}

	jobs, err := h.jobs.Search(r.Context(), params)
	if err != nil {
		h.logger.Error("failed to search jobs", zap.Error(err))
		api.ErrInternal(w)
		return
	}

	api.Ok(w, jobs)
}

// Show handles GET /api/v1/jobs/{uuid}.
func (h *JobsHandler) Show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	jobUUID, err := uuid.Parse(id)
	if err != nil {
		api.ErrBadRequest(w, "invalid job uuid")
		return
	}

	job, err := h.jobs.GetByUUID(r.Context(), jobUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			api.ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get job", zap.String("job", id), zap.Error(err))
		api.ErrInternal(w)
		return
	}

	api.Ok(w, job)
}
