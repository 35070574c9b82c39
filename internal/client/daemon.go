// Package client implements the relique client daemon: it waits for the
// server to push a configuration, launches backup jobs when one of the
// configured schedules becomes active, and serves the small HTTP API the
// server and the CLI talk to.
package client

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/backup"
	"github.com/macarrie/relique/internal/daemon"
	"github.com/macarrie/relique/internal/schedule"
	"github.com/macarrie/relique/internal/types"
)

// Errors returned by StartManualBackup, mapped to HTTP statuses by the
// API layer.
var (
	// ErrNoConfiguration means no server has pushed a configuration yet,
	// so there is no module catalog to start a job from.
	ErrNoConfiguration = errors.New("no configuration received from relique server yet")

	// ErrUnknownModule means the requested module name is not part of the
	// configuration pushed by the server.
	ErrUnknownModule = errors.New("module not found in client configuration")

	// ErrJobAlreadyRunning means a job for the requested module is still
	// in flight; one module runs at most one job at a time.
	ErrJobAlreadyRunning = errors.New("a backup job for this module is already running")
)

// Launcher executes one backup job to completion. Implemented by
// *backup.Runner; faked in tests.
type Launcher interface {
	Run(ctx context.Context, handle *backup.Handle)
}

// Daemon holds the client run-loop state. The configuration received
// from the server and the in-flight job list are guarded by a
// read/write lock shared with the HTTP handlers: the loop and the
// config push take the writer side, version reads take the reader side.
type Daemon struct {
	mu   sync.RWMutex
	spec *types.Client
	jobs []*backup.Handle

	launcher Launcher
	logger   *zap.Logger

	// now is the loop clock, swapped out in tests to pin schedule
	// evaluation to known instants.
	now func() time.Time
}

// NewDaemon creates the client daemon. It starts without a
// configuration: the run loop idles until the server pushes one.
func NewDaemon(launcher Launcher, logger *zap.Logger) *Daemon {
	return &Daemon{
		launcher: launcher,
		logger:   logger.Named("client"),
		now:      time.Now,
	}
}

// LoopFunc runs one iteration of the client run loop: launch a backup
// job for every module with an active schedule, or sweep finished jobs
// out of the pool while no schedule is active.
func (d *Daemon) LoopFunc(ctx context.Context) (daemon.Stopping, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.spec == nil {
		d.logger.Info("Waiting for configuration from relique server")
		return daemon.Continue, nil
	}

	active := schedule.ActiveNames(d.spec.Schedules, d.now(), daemon.TickPeriod, d.logger)
	if len(active) == 0 {
		d.logger.Debug("No active schedules")
		d.cleanDoneJobs()
		return daemon.Continue, nil
	}
	d.logger.Debug("Active schedules", zap.Strings("schedules", active))

	d.startBackupJobs(active)

	for _, handle := range d.jobs {
		job := handle.Snapshot()
		d.logger.Info("Backup job in pool",
			zap.String("job", job.UUID.String()),
			zap.String("module", job.Module.Name),
			zap.Stringer("backup_type", job.BackupType),
			zap.Stringer("status", job.Status),
		)
	}

	return daemon.Continue, nil
}

// ReceivedSignal stops the daemon on any termination signal.
func (d *Daemon) ReceivedSignal(sig os.Signal) daemon.Stopping {
	return daemon.Stop
}

// Shutdown logs the jobs left in flight. Workers are not cancelled:
// a running job completes or errors on its own even while the daemon
// is draining.
func (d *Daemon) Shutdown() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	d.logger.Info("Stopping relique client daemon")
	for _, handle := range d.jobs {
		if status := handle.Status(); status == types.JobStatusActive {
			job := handle.Snapshot()
			d.logger.Warn("Backup job still running, letting it finish",
				zap.String("job", job.UUID.String()),
				zap.String("module", job.Module.Name),
			)
		}
	}
	return nil
}

// startBackupJobs launches one job per module whose schedule list
// intersects the active set, skipping modules that already have a job
// in the pool. Workers run detached: the loop only keeps the handle.
// Callers hold the write lock.
func (d *Daemon) startBackupJobs(activeSchedules []string) {
	activeSet := make(map[string]bool, len(activeSchedules))
	for _, name := range activeSchedules {
		activeSet[name] = true
	}

	if len(d.spec.Modules) == 0 {
		d.logger.Warn("No modules defined for client. No backup jobs to launch",
			zap.String("client", d.spec.Name))
		return
	}

	for _, module := range d.spec.Modules {
		if !scheduleIntersects(module.Schedules, activeSet) {
			continue
		}
		if d.jobForModule(module.Name) != nil {
			continue
		}
		d.launchJob(module)
	}
}

// launchJob enqueues and starts one job. The worker gets a background
// context on purpose: in-flight backups survive daemon shutdown.
// Callers hold the write lock.
func (d *Daemon) launchJob(module types.Module) *backup.Handle {
	job := types.NewBackupJob(*d.spec, module)
	handle := backup.NewHandle(job)
	d.jobs = append(d.jobs, handle)

	d.logger.Info("Queuing new backup job",
		zap.String("job", job.UUID.String()),
		zap.String("module", module.Name),
		zap.Stringer("backup_type", job.BackupType),
	)
	go d.launcher.Run(context.Background(), handle)
	return handle
}

// cleanDoneJobs drops handles of completed jobs from the pool.
// Incomplete and errored jobs are kept so they stay visible in the
// per-tick job report. Callers hold the write lock.
func (d *Daemon) cleanDoneJobs() {
	kept := d.jobs[:0]
	for _, handle := range d.jobs {
		if handle.Status() != types.JobStatusDone {
			kept = append(kept, handle)
		}
	}
	if evicted := len(d.jobs) - len(kept); evicted > 0 {
		d.logger.Debug("Cleaned finished backup jobs from job pool", zap.Int("count", evicted))
	}
	d.jobs = kept
}

// jobForModule returns the in-flight handle for the named module, nil
// when there is none. Callers hold at least the read lock.
func (d *Daemon) jobForModule(name string) *backup.Handle {
	for _, handle := range d.jobs {
		if handle.Snapshot().Module.Name == name {
			return handle
		}
	}
	return nil
}

func scheduleIntersects(names []string, active map[string]bool) bool {
	for _, name := range names {
		if active[name] {
			return true
		}
	}
	return false
}

// ConfigVersion reports the version of the configuration currently
// held, with a nil version before the first push.
func (d *Daemon) ConfigVersion() types.ConfigVersion {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.spec == nil {
		return types.ConfigVersion{}
	}
	return types.ConfigVersion{Version: d.spec.ConfigVersion}
}

// ApplyConfig installs a configuration pushed by the server. A push
// carrying the version already held is a no-op so the server can
// re-send harmlessly; anything else replaces the whole spec. Returns
// whether the configuration changed.
func (d *Daemon) ApplyConfig(spec types.Client) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.spec != nil {
		held := types.ConfigVersion{Version: d.spec.ConfigVersion}
		if held.Matches(spec.ConfigVersion) {
			return false
		}
	}

	d.logger.Info("Replacing current client configuration with version received from relique server",
		zap.Stringer("version", types.ConfigVersion{Version: spec.ConfigVersion}),
	)
	d.spec = &spec
	return true
}

// StartManualBackup launches a job for the named module right away,
// outside any schedule window. backupType overrides the module's own
// type when non-nil. The duplicate-module guard applies exactly as in
// the scheduled path.
func (d *Daemon) StartManualBackup(moduleName string, backupType *types.BackupType) (types.BackupJob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.spec == nil {
		return types.BackupJob{}, ErrNoConfiguration
	}

	var module *types.Module
	for i := range d.spec.Modules {
		if d.spec.Modules[i].Name == moduleName {
			module = &d.spec.Modules[i]
			break
		}
	}
	if module == nil {
		return types.BackupJob{}, ErrUnknownModule
	}
	if d.jobForModule(moduleName) != nil {
		return types.BackupJob{}, ErrJobAlreadyRunning
	}

	picked := *module
	if backupType != nil {
		picked.BackupType = *backupType
	}

	d.logger.Info("Starting manual backup",
		zap.String("module", picked.Name),
		zap.Stringer("backup_type", picked.BackupType),
	)
	handle := d.launchJob(picked)
	return handle.Snapshot(), nil
}
