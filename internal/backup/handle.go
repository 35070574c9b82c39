// Package backup implements both halves of the relique delta protocol: the
// client-side runner that walks module paths and ships per-file deltas, and
// the server-side storage engine that resolves reference files and applies
// deltas under the backup storage tree.
package backup

import (
	"sync"

	"github.com/macarrie/relique/internal/types"
)

// Handle is a backup job shared between the client daemon loop and the
// worker goroutine executing the job. The loop reads status to decide
// eviction and to report progress; the worker advances status as the job
// moves through its lifecycle. Client and module snapshots inside the job
// are immutable after creation, only Status and BackupType change.
type Handle struct {
	mu  sync.RWMutex
	job types.BackupJob
}

// NewHandle wraps a freshly created job.
func NewHandle(job types.BackupJob) *Handle {
	return &Handle{job: job}
}

// Status returns the job's current status.
func (h *Handle) Status() types.JobStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.job.Status
}

// SetStatus advances the job's status.
func (h *Handle) SetStatus(status types.JobStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.job.Status = status
}

// Snapshot returns a copy of the job as it currently stands. Callers use
// the copy for outbound HTTP calls so no lock is held during network I/O.
func (h *Handle) Snapshot() types.BackupJob {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.job
}
