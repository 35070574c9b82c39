package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/repository"
	"github.com/macarrie/relique/internal/rsync"
	"github.com/macarrie/relique/internal/types"
)

// Storage is the server-side half of the delta protocol. It maps backup
// files onto the storage tree, resolves the reference file a signature is
// computed from, and applies client deltas onto basis files.
//
// Layout: {root}/{client_name}/{job_uuid}/{original_path}. The original
// absolute path is appended verbatim, so one job directory mirrors the
// client's filesystem structure.
type Storage struct {
	root   string
	jobs   repository.JobRepository
	logger *zap.Logger
}

// NewStorage creates a Storage rooted at the configured backup_storage_path.
func NewStorage(root string, jobs repository.JobRepository, logger *zap.Logger) *Storage {
	return &Storage{
		root:   root,
		jobs:   jobs,
		logger: logger,
	}
}

// FilePath returns the storage path holding the given original path for the
// given job. The original path is rooted before joining so a crafted path
// cannot escape the job's directory.
func (s *Storage) FilePath(job types.BackupJob, path string) string {
	rooted := filepath.Clean("/" + path)
	return filepath.Join(s.root, job.Client.Name, job.UUID.String(), rooted)
}

// ReferencePath resolves the file whose signature is sent back to the client
// for the given requested path.
//
// Full jobs diff against the empty reference, so the path is os.DevNull. A
// Diff job diffs against the newest Done Full job for the same
// (module_type, client): when none exists the job itself is rewritten to
// Full, persisted, and the empty reference is used. The rewrite updates job
// in place so the handler keeps working with the corrected type.
func (s *Storage) ReferencePath(ctx context.Context, job *types.BackupJob, path string) string {
	if job.BackupType != types.BackupTypeDiff {
		return os.DevNull
	}

	fullJob, err := s.jobs.PreviousFullDone(ctx, job.Module.ModuleType, job.Client.Name)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("No previous full backup found. Performing full backup instead of diff",
			zap.String("job", job.UUID.String()),
		)

		job.BackupType = types.BackupTypeFull
		if err := s.jobs.Save(ctx, *job); err != nil {
			s.logger.Error("Could not save backup type change for job",
				zap.String("job", job.UUID.String()),
				zap.Error(err),
			)
		}
		return os.DevNull
	}
	if err != nil {
		s.logger.Error("Error encountered when querying previous full backup job",
			zap.String("job", job.UUID.String()),
			zap.Error(err),
		)
		return os.DevNull
	}

	return s.FilePath(fullJob, path)
}

// ApplyDelta reconstructs one file under the job's storage directory from a
// client delta. The basis is the file already at the target path when one
// exists (resuming a partial backup), else the empty reference. The patched
// content is written to a unique temp file in the target directory and
// renamed onto the target, so concurrent delta applications never trample
// each other and a crash never leaves a half-written target.
func (s *Storage) ApplyDelta(job types.BackupJob, file types.BackupFile) error {
	target := s.FilePath(job, file.Path)
	dir := filepath.Dir(target)

	s.logger.Info("Creating backup file from client delta",
		zap.String("job", job.UUID.String()),
		zap.String("path", file.Path),
	)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory structure for %s: %w", file.Path, err)
	}

	basis := os.DevNull
	if _, err := os.Stat(target); err == nil {
		basis = target
	}

	tmp, err := os.CreateTemp(dir, ".delta-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}

	if err := rsync.Patch(basis, file.Delta, tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("apply delta for %s: %w", file.Path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("flush temp file for %s: %w", file.Path, err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename temp file onto %s: %w", target, err)
	}
	return nil
}
