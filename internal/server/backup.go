package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/api"
	"github.com/macarrie/relique/internal/backup"
	"github.com/macarrie/relique/internal/metrics"
	"github.com/macarrie/relique/internal/repository"
	"github.com/macarrie/relique/internal/rsync"
	"github.com/macarrie/relique/internal/types"
	"github.com/macarrie/relique/internal/websocket"
)

// BackupHandler serves the wire protocol spoken by client daemons during a
// backup run: job registration, status updates, signature requests and delta
// uploads. Protocol responses are plain text bodies the client relies on;
// only the signature endpoint answers with JSON.
type BackupHandler struct {
	jobs    repository.JobRepository
	storage *backup.Storage
	hub     *websocket.Hub
	logger  *zap.Logger
}

// NewBackupHandler creates a new BackupHandler. hub may be nil when no event
// stream is wanted, events are then dropped.
func NewBackupHandler(jobs repository.JobRepository, storage *backup.Storage, hub *websocket.Hub, logger *zap.Logger) *BackupHandler {
	return &BackupHandler{
		jobs:    jobs,
		storage: storage,
		hub:     hub,
		logger:  logger.Named("backup_handler"),
	}
}

// Register handles POST /api/v1/backup/jobs/register.
// A job uuid can only be registered once: replays are answered with 409 so
// the client knows the server already tracks this run.
func (h *BackupHandler) Register(w http.ResponseWriter, r *http.Request) {
	var job types.BackupJob
	if err := api.Decode(w, r, &job, api.MaxControlBody); err != nil {
		h.logger.Error("Could not parse backup job information from client", zap.Error(err))
		api.Text(w, http.StatusBadRequest, "Could not parse backup job information")
		return
	}

	h.logger.Info("Registering job",
		zap.String("job", job.UUID.String()),
		zap.String("client", job.Client.Name),
		zap.String("module", job.Module.Name),
	)

	err := h.jobs.Register(r.Context(), job)
	switch {
	case errors.Is(err, repository.ErrConflict):
		api.Text(w, http.StatusConflict, "Job already registered in relique server")
	case err != nil:
		msg := fmt.Sprintf("Could not save job '%s' into database: '%s'", job.UUID, err)
		h.logger.Error("Could not save job into database",
			zap.String("job", job.UUID.String()),
			zap.Error(err),
		)
		api.Text(w, http.StatusInternalServerError, msg)
	default:
		metrics.JobRegistered(job.BackupType)
		h.publishJobEvent(websocket.MsgJobRegistered, job.UUID, job)
		api.Text(w, http.StatusOK, "Job registered")
	}
}

// UpdateStatus handles PUT /api/v1/backup/jobs/{uuid}/status.
func (h *BackupHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	jobUUID, err := uuid.Parse(id)
	if err != nil {
		api.Text(w, http.StatusBadRequest, fmt.Sprintf("Cannot parse valid UUID from '%s': '%s'", id, err))
		return
	}

	var status types.JobStatus
	if err := api.Decode(w, r, &status, api.MaxControlBody); err != nil {
		api.Text(w, http.StatusBadRequest, "Could not parse job status")
		return
	}

	h.logger.Info("Updating job status",
		zap.String("job", id),
		zap.Stringer("status", status),
	)

	err = h.jobs.UpdateStatus(r.Context(), jobUUID, status)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		api.Text(w, http.StatusNotFound, "Job not found")
	case err != nil:
		h.logger.Error("Could not save status changes for job",
			zap.String("job", id),
			zap.Error(err),
		)
		api.Text(w, http.StatusInternalServerError, "")
	default:
		metrics.JobStatusUpdated(status)
		h.publishJobEvent(websocket.MsgJobStatus, jobUUID, jobStatusEvent{UUID: id, Status: status})
		api.Text(w, http.StatusOK, "Job status updated")
	}
}

// Signature handles GET /api/v1/backup/jobs/{uuid}/signature. The request
// carries a BackupFile JSON body even though it is a GET, a protocol quirk
// kept for client compatibility. The response is the JSON-encoded signature
// of the reference file: empty for full backups, the stored copy from the
// latest completed full backup for diffs. Resolving the reference may rewrite
// a diff job to full when no completed full backup exists yet.
func (h *BackupHandler) Signature(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}

	var file types.BackupFile
	if err := api.Decode(w, r, &file, api.MaxControlBody); err != nil {
		h.logger.Error("Could not parse backup file information from client", zap.Error(err))
		api.Text(w, http.StatusBadRequest, "Could not parse backup file information")
		return
	}

	reference := h.storage.ReferencePath(r.Context(), &job, file.Path)
	signature, err := rsync.Signature(reference)
	if err != nil {
		msg := fmt.Sprintf("Could not get signature for file '%s': '%s'", reference, err)
		h.logger.Error("Could not get signature for reference file",
			zap.String("job", job.UUID.String()),
			zap.String("path", file.Path),
			zap.String("reference", reference),
			zap.Error(err),
		)
		api.Text(w, http.StatusInternalServerError, msg)
		return
	}

	api.JSON(w, http.StatusOK, signature)
}

// Delta handles POST /api/v1/backup/jobs/{uuid}/delta. The body size is not
// capped here: the delta carries file contents.
func (h *BackupHandler) Delta(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}

	var file types.BackupFile
	if err := api.Decode(w, r, &file, 0); err != nil {
		h.logger.Error("Could not parse backup file information from client", zap.Error(err))
		api.Text(w, http.StatusBadRequest, "Could not parse backup file information")
		return
	}

	if err := h.storage.ApplyDelta(job, file); err != nil {
		msg := fmt.Sprintf("Could not create backup file from client delta for path '%s': '%s'", file.Path, err)
		h.logger.Error("Could not create backup file from client delta",
			zap.String("job", job.UUID.String()),
			zap.String("path", file.Path),
			zap.Error(err),
		)
		api.Text(w, http.StatusInternalServerError, msg)
		return
	}

	metrics.DeltaApplied(len(file.Delta))
	api.Text(w, http.StatusOK, "Delta applied")
}

// lookupJob parses the uuid path parameter and loads the matching job,
// writing the protocol error response itself when either step fails.
func (h *BackupHandler) lookupJob(w http.ResponseWriter, r *http.Request) (types.BackupJob, bool) {
	id := chi.URLParam(r, "uuid")
	jobUUID, err := uuid.Parse(id)
	if err != nil {
		api.Text(w, http.StatusBadRequest, fmt.Sprintf("Cannot parse valid UUID from '%s': '%s'", id, err))
		return types.BackupJob{}, false
	}

	job, err := h.jobs.GetByUUID(r.Context(), jobUUID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		api.Text(w, http.StatusNotFound, "Job not found")
		return types.BackupJob{}, false
	case err != nil:
		h.logger.Error("An error occurred when querying job in database",
			zap.String("job", id),
			zap.Error(err),
		)
		api.Text(w, http.StatusInternalServerError, "")
		return types.BackupJob{}, false
	}
	return job, true
}

// jobStatusEvent is the payload published on the event stream when a status
// update lands.
type jobStatusEvent struct {
	UUID   string          `json:"uuid"`
	Status types.JobStatus `json:"status"`
}

// publishJobEvent fans a job event out to the global jobs topic and the
// job-specific topic.
func (h *BackupHandler) publishJobEvent(msgType websocket.MessageType, id uuid.UUID, payload any) {
	if h.hub == nil {
		return
	}
	h.hub.Publish(websocket.TopicJobs, websocket.Message{
		Type:    msgType,
		Topic:   websocket.TopicJobs,
		Payload: payload,
	})

	topic := websocket.JobTopic(id)
	h.hub.Publish(topic, websocket.Message{
		Type:    msgType,
		Topic:   topic,
		Payload: payload,
	})
}
