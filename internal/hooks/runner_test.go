package hooks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macarrie/relique/internal/types"
)

func TestRunCapturesOutputAndEnv(t *testing.T) {
	job := types.NewBackupJob(
		types.Client{Name: "alpha"},
		types.Module{Name: "alpha-data", ModuleType: "generic"},
	)

	runner := NewRunner(0)
	result, err := runner.Run(context.Background(), `echo "pre hook for $RELIQUE_MODULE_NAME"`, JobEnv(job))
	require.NoError(t, err)
	assert.Equal(t, "pre hook for alpha-data", result.Output)
	assert.Equal(t, 0, result.ExitCode)
}

func TestRunEmptyScriptIsNoop(t *testing.T) {
	runner := NewRunner(0)
	result, err := runner.Run(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Output)
	assert.Equal(t, 0, result.ExitCode)
}

func TestRunNonZeroExit(t *testing.T) {
	runner := NewRunner(0)
	result, err := runner.Run(context.Background(), "echo still logged; exit 3", nil)
	require.ErrorIs(t, err, ErrHookFailed)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "still logged", result.Output)
}

func TestRunTimeoutKillsScript(t *testing.T) {
	runner := NewRunner(100 * time.Millisecond)

	start := time.Now()
	_, err := runner.Run(context.Background(), "sleep 5", nil)
	require.ErrorIs(t, err, ErrHookFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
}
