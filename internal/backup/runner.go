package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/api"
	"github.com/macarrie/relique/internal/hooks"
	"github.com/macarrie/relique/internal/rsync"
	"github.com/macarrie/relique/internal/types"
)

// Runner executes backup jobs on the client side. Each job runs in its own
// goroutine and talks to the server strictly in protocol order: register,
// then one signature/delta exchange per file, then the final status update.
// Files within a job are sent sequentially, which keeps the done/incomplete
// accounting trivial.
type Runner struct {
	strictSSL bool
	hooks     *hooks.Runner
	logger    *zap.Logger
}

// NewRunner creates a Runner. strictSSL controls certificate verification on
// outbound calls to the server.
func NewRunner(strictSSL bool, hooksRunner *hooks.Runner, logger *zap.Logger) *Runner {
	return &Runner{
		strictSSL: strictSSL,
		hooks:     hooksRunner,
		logger:    logger,
	}
}

// Run drives one job from launch to final status. It never returns an error:
// every failure mode ends up in the job's status and the log. The handle is
// shared with the daemon loop, which watches status to evict finished jobs.
func (r *Runner) Run(ctx context.Context, handle *Handle) {
	job := handle.Snapshot()
	logger := r.logger.With(
		zap.String("job", job.UUID.String()),
		zap.String("client", job.Client.Name),
		zap.String("module", job.Module.Name),
		zap.Stringer("backup_type", job.BackupType),
	)
	logger.Info("Launching backup job")

	handle.SetStatus(types.JobStatusActive)
	job.Status = types.JobStatusActive

	logger.Info("Registering job to relique server")
	if err := r.register(ctx, job); err != nil {
		// The server refused or never saw the job, so there is nothing on
		// its side to update: the failure is recorded locally only.
		logger.Error("Could not register job to relique server", zap.Error(err))
		handle.SetStatus(types.JobStatusError)
		return
	}

	status := r.runJob(ctx, job, logger)

	handle.SetStatus(status)
	job.Status = status
	logger.Info("Updating job status in relique server", zap.Stringer("status", status))
	if err := r.updateStatus(ctx, job); err != nil {
		logger.Error("Could not update job status in relique server", zap.Error(err))
	}
}

// runJob runs the pre backup script, the file sweep, and the post backup
// script, and folds the outcomes into one final status. A failing pre script
// aborts the sweep with Error; a failing post script demotes Done to
// Incomplete since the data made it to the server but the job did not finish
// cleanly.
func (r *Runner) runJob(ctx context.Context, job types.BackupJob, logger *zap.Logger) types.JobStatus {
	if job.Module.PreBackupScript != "" {
		logger.Info("Launching pre backup script", zap.String("script", job.Module.PreBackupScript))
	}
	if res, err := r.hooks.Run(ctx, job.Module.PreBackupScript, hooks.JobEnv(job)); err != nil {
		logger.Error("Pre backup script failed", zap.Error(err), zap.String("output", hookOutput(res)))
		return types.JobStatusError
	}

	status := r.sendFiles(ctx, job, logger)

	if job.Module.PostBackupScript != "" {
		logger.Info("Launching post backup script", zap.String("script", job.Module.PostBackupScript))
	}
	if res, err := r.hooks.Run(ctx, job.Module.PostBackupScript, hooks.JobEnv(job)); err != nil {
		logger.Error("Post backup script failed", zap.Error(err), zap.String("output", hookOutput(res)))
		if status == types.JobStatusDone {
			status = types.JobStatusIncomplete
		}
	}
	return status
}

// sendFiles walks every backup path of the job's module and ships each
// regular file through the signature/delta exchange. Per-file failures
// demote the job to Incomplete and the sweep moves on to the next file.
func (r *Runner) sendFiles(ctx context.Context, job types.BackupJob, logger *zap.Logger) types.JobStatus {
	status := types.JobStatusActive

	for _, backupPath := range job.Module.BackupPaths {
		logger.Info("Performing backup of path", zap.String("path", backupPath))

		walkErr := filepath.WalkDir(backupPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Error("Could not browse path for backup",
					zap.String("path", path),
					zap.Error(err),
				)
				status = types.JobStatusIncomplete
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			if err := r.backupFile(ctx, job, path); err != nil {
				logger.Error("Could not back up file",
					zap.String("file", path),
					zap.Error(err),
				)
				status = types.JobStatusIncomplete
			}
			return nil
		})
		if walkErr != nil {
			logger.Error("Could not browse path for backup",
				zap.String("path", backupPath),
				zap.Error(walkErr),
			)
			status = types.JobStatusIncomplete
		}
	}

	if status == types.JobStatusActive {
		status = types.JobStatusDone
	}
	return status
}

// backupFile runs the three protocol legs for one file: fetch the reference
// signature from the server, compute the local delta against it, send the
// delta back.
func (r *Runner) backupFile(ctx context.Context, job types.BackupJob, path string) error {
	file := types.BackupFile{
		JobID: job.UUID,
		Path:  path,
	}

	signature, err := r.fetchSignature(ctx, job, file)
	if err != nil {
		return fmt.Errorf("get signature from server: %w", err)
	}

	delta, err := rsync.Delta(signature, path)
	if err != nil {
		return fmt.Errorf("compute delta: %w", err)
	}

	file.Signature = signature
	file.Delta = delta
	if err := r.sendDelta(ctx, job, file); err != nil {
		return fmt.Errorf("send delta to server: %w", err)
	}
	return nil
}

func (r *Runner) register(ctx context.Context, job types.BackupJob) error {
	req, err := r.request(ctx, http.MethodPost, r.serverURL(job, "/api/v1/backup/jobs/register"), job)
	if err != nil {
		return err
	}
	_, err = r.do(req, api.ControlTimeout)
	return err
}

func (r *Runner) fetchSignature(ctx context.Context, job types.BackupJob, file types.BackupFile) ([]byte, error) {
	url := r.serverURL(job, "/api/v1/backup/jobs/"+job.UUID.String()+"/signature")
	req, err := r.request(ctx, http.MethodGet, url, file)
	if err != nil {
		return nil, err
	}

	raw, err := r.do(req, api.TransferTimeout)
	if err != nil {
		return nil, err
	}

	var signature []byte
	if err := json.Unmarshal(raw, &signature); err != nil {
		return nil, fmt.Errorf("parse signature received from server: %w", err)
	}
	return signature, nil
}

func (r *Runner) sendDelta(ctx context.Context, job types.BackupJob, file types.BackupFile) error {
	url := r.serverURL(job, "/api/v1/backup/jobs/"+job.UUID.String()+"/delta")
	req, err := r.request(ctx, http.MethodPost, url, file)
	if err != nil {
		return err
	}
	_, err = r.do(req, api.TransferTimeout)
	return err
}

func (r *Runner) updateStatus(ctx context.Context, job types.BackupJob) error {
	url := r.serverURL(job, "/api/v1/backup/jobs/"+job.UUID.String()+"/status")
	req, err := r.request(ctx, http.MethodPut, url, job.Status)
	if err != nil {
		return err
	}
	_, err = r.do(req, api.ControlTimeout)
	return err
}

// serverURL builds the URL of a server endpoint from the job's client
// snapshot, which carries the server address the job must report to.
func (r *Runner) serverURL(job types.BackupJob, path string) string {
	address := job.Client.ServerAddress
	if address == "" {
		address = "localhost"
	}
	hostPort := net.JoinHostPort(address, strconv.Itoa(job.Client.ServerAPIPort()))
	return "https://" + hostPort + path
}

// request builds a JSON request. The signature leg rides a GET with a body,
// which the server expects.
func (r *Runner) request(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends req with a per-call client and returns the response body. Any
// answer other than 200 is an error carrying the status code and the body
// the server sent, so log lines show the server's own explanation.
func (r *Runner) do(req *http.Request, timeout time.Duration) ([]byte, error) {
	client := api.NewHTTPClient(r.strictSSL, timeout)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server answered %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func hookOutput(res *hooks.Result) string {
	if res == nil {
		return ""
	}
	return res.Output
}
