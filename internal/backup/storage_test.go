package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/macarrie/relique/internal/db"
	"github.com/macarrie/relique/internal/repository"
	"github.com/macarrie/relique/internal/rsync"
	"github.com/macarrie/relique/internal/types"
)

func testStorage(t *testing.T) (*Storage, repository.JobRepository, string) {
	t.Helper()
	database, err := db.New(db.Config{
		DSN:    filepath.Join(t.TempDir(), "server.db"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	jobs := repository.NewJobRepository(database)
	root := t.TempDir()
	return NewStorage(root, jobs, zaptest.NewLogger(t)), jobs, root
}

func storageTestJob(backupType types.BackupType, status types.JobStatus) types.BackupJob {
	job := types.NewBackupJob(
		types.Client{Name: "alpha", Address: "10.0.0.3"},
		types.Module{ModuleType: "generic", Name: "alpha-data"},
	)
	job.BackupType = backupType
	job.Status = status
	return job
}

func TestFilePathMirrorsOriginalPath(t *testing.T) {
	storage, _, root := testStorage(t)
	job := storageTestJob(types.BackupTypeFull, types.JobStatusActive)

	got := storage.FilePath(job, "/tmp/one/a")
	want := filepath.Join(root, "alpha", job.UUID.String(), "tmp", "one", "a")
	assert.Equal(t, want, got)
}

func TestFilePathContainsTraversalAttempts(t *testing.T) {
	storage, _, root := testStorage(t)
	job := storageTestJob(types.BackupTypeFull, types.JobStatusActive)

	got := storage.FilePath(job, "../../../etc/passwd")
	jobDir := filepath.Join(root, "alpha", job.UUID.String())
	assert.True(t, strings.HasPrefix(got, jobDir+string(filepath.Separator)),
		"path %q must stay under the job directory %q", got, jobDir)
}

func TestReferencePathFullUsesEmptyBasis(t *testing.T) {
	storage, _, _ := testStorage(t)
	job := storageTestJob(types.BackupTypeFull, types.JobStatusActive)

	assert.Equal(t, os.DevNull, storage.ReferencePath(context.Background(), &job, "/tmp/one/a"))
}

func TestReferencePathDiffWithoutPriorFullRewritesJob(t *testing.T) {
	storage, jobs, _ := testStorage(t)
	ctx := context.Background()

	job := storageTestJob(types.BackupTypeDiff, types.JobStatusActive)
	require.NoError(t, jobs.Register(ctx, job))

	ref := storage.ReferencePath(ctx, &job, "/tmp/one/a")
	assert.Equal(t, os.DevNull, ref)
	assert.Equal(t, types.BackupTypeFull, job.BackupType, "the job itself is rewritten to full")

	persisted, err := jobs.GetByUUID(ctx, job.UUID)
	require.NoError(t, err)
	assert.Equal(t, types.BackupTypeFull, persisted.BackupType, "the rewrite is persisted")
}

func TestReferencePathDiffPointsIntoNewestFull(t *testing.T) {
	storage, jobs, _ := testStorage(t)
	ctx := context.Background()

	older := storageTestJob(types.BackupTypeFull, types.JobStatusDone)
	require.NoError(t, jobs.Save(ctx, older))
	newest := storageTestJob(types.BackupTypeFull, types.JobStatusDone)
	require.NoError(t, jobs.Save(ctx, newest))

	diff := storageTestJob(types.BackupTypeDiff, types.JobStatusActive)
	ref := storage.ReferencePath(ctx, &diff, "/tmp/one/a")

	assert.Equal(t, storage.FilePath(newest, "/tmp/one/a"), ref)
	assert.Equal(t, types.BackupTypeDiff, diff.BackupType, "a prior full leaves the job type untouched")
}

func TestApplyDeltaReconstructsFile(t *testing.T) {
	storage, _, _ := testStorage(t)
	job := storageTestJob(types.BackupTypeFull, types.JobStatusActive)

	src := filepath.Join(t.TempDir(), "a")
	require.NoError(t, os.WriteFile(src, []byte("hello\n"), 0o644))

	emptySig, err := rsync.Signature(os.DevNull)
	require.NoError(t, err)
	delta, err := rsync.Delta(emptySig, src)
	require.NoError(t, err)

	file := types.BackupFile{JobID: job.UUID, Path: src, Delta: delta}
	require.NoError(t, storage.ApplyDelta(job, file))

	got, err := os.ReadFile(storage.FilePath(job, src))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello\n"), got)

	assertNoTempLitter(t, filepath.Dir(storage.FilePath(job, src)))
}

func TestApplyDeltaResumesFromExistingTarget(t *testing.T) {
	storage, _, _ := testStorage(t)
	job := storageTestJob(types.BackupTypeFull, types.JobStatusActive)

	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(src, []byte("version one\n"), 0o644))

	emptySig, err := rsync.Signature(os.DevNull)
	require.NoError(t, err)
	delta, err := rsync.Delta(emptySig, src)
	require.NoError(t, err)
	require.NoError(t, storage.ApplyDelta(job, types.BackupFile{JobID: job.UUID, Path: src, Delta: delta}))

	// Second exchange: the client file changed, the delta is computed against
	// the signature of what the server already holds for this job.
	require.NoError(t, os.WriteFile(src, []byte("version two, longer\n"), 0o644))
	target := storage.FilePath(job, src)
	targetSig, err := rsync.Signature(target)
	require.NoError(t, err)
	delta2, err := rsync.Delta(targetSig, src)
	require.NoError(t, err)
	require.NoError(t, storage.ApplyDelta(job, types.BackupFile{JobID: job.UUID, Path: src, Delta: delta2}))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, []byte("version two, longer\n"), got)
}

func TestApplyDeltaBadDeltaLeavesNoTrace(t *testing.T) {
	storage, _, _ := testStorage(t)
	job := storageTestJob(types.BackupTypeFull, types.JobStatusActive)

	file := types.BackupFile{JobID: job.UUID, Path: "/tmp/one/a", Delta: []byte("not a delta")}
	err := storage.ApplyDelta(job, file)
	require.Error(t, err)

	target := storage.FilePath(job, "/tmp/one/a")
	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr), "a failed apply must not leave a target behind")
	assertNoTempLitter(t, filepath.Dir(target))
}

func assertNoTempLitter(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), ".delta-"),
			"leftover temp file %s", entry.Name())
	}
}
