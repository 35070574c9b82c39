// Package hooks runs the per-module lifecycle scripts around a backup
// job: pre_backup_script before the file sweep and post_backup_script
// after it. The restore scripts will go through the same runner once
// the restore protocol lands.
//
// Scripts run as blocking subprocesses under /bin/sh -c with a bounded
// timeout, so pipes and environment expansion behave as they would in
// an interactive shell. Combined stdout and stderr are captured for
// the job log. A non-zero exit fails the hook: a failed pre script
// aborts the job, a failed post script downgrades it to incomplete.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/macarrie/relique/internal/types"
)

// DefaultTimeout is applied when the caller does not set one. Five
// minutes covers typical dump scripts while still bounding a stalled
// hook.
const DefaultTimeout = 5 * time.Minute

// ErrHookFailed is returned when the script exits with a non-zero code
// or is killed by the timeout.
var ErrHookFailed = errors.New("hooks: script failed")

// Result holds the outcome of one script execution.
type Result struct {
	// Output is the combined stdout and stderr of the script, trimmed
	// of surrounding whitespace.
	Output string
	// ExitCode is the script exit code, 0 on success.
	ExitCode int
	// Duration is how long the script ran.
	Duration time.Duration
}

// Runner executes module lifecycle scripts. The zero value uses
// DefaultTimeout.
type Runner struct {
	Timeout time.Duration
}

// NewRunner creates a Runner with the given timeout. Pass 0 to use
// DefaultTimeout.
func NewRunner(timeout time.Duration) *Runner {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Runner{Timeout: timeout}
}

// Run executes script under /bin/sh with the given extra environment.
// An empty script path is a configured no-op. If the parent context is
// cancelled or the timeout elapses, the subprocess is killed and the
// returned error wraps ErrHookFailed; the Result is populated either
// way so the caller can log the output.
func (r *Runner) Run(ctx context.Context, script string, env []string) (*Result, error) {
	if script == "" {
		return &Result{}, nil
	}

	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", script)
	cmd.Env = append(os.Environ(), env...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Output:   strings.TrimSpace(buf.String()),
		Duration: time.Since(start),
	}

	if err != nil {
		result.ExitCode = 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("%w: %w", ErrHookFailed, ctx.Err())
		}
		return result, fmt.Errorf("%w: exit code %d", ErrHookFailed, result.ExitCode)
	}

	return result, nil
}

// JobEnv renders the environment passed to every lifecycle script of a
// job.
func JobEnv(job types.BackupJob) []string {
	return []string{
		"RELIQUE_JOB_UUID=" + job.UUID.String(),
		"RELIQUE_CLIENT_NAME=" + job.Client.Name,
		"RELIQUE_MODULE_NAME=" + job.Module.Name,
		"RELIQUE_MODULE_TYPE=" + job.Module.ModuleType,
		"RELIQUE_BACKUP_TYPE=" + job.BackupType.String(),
	}
}
