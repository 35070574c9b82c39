package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobStatus(t *testing.T) {
	for text, want := range map[string]JobStatus{
		"pending":    JobStatusPending,
		"active":     JobStatusActive,
		"done":       JobStatusDone,
		"incomplete": JobStatusIncomplete,
		"error":      JobStatusError,
	} {
		got, err := ParseJobStatus(text)
		require.NoError(t, err, text)
		assert.Equal(t, want, got, text)
		assert.Equal(t, text, got.String())
	}

	_, err := ParseJobStatus("running")
	assert.Error(t, err)
}

func TestJobStatusJSON(t *testing.T) {
	raw, err := json.Marshal(JobStatusIncomplete)
	require.NoError(t, err)
	assert.Equal(t, `"incomplete"`, string(raw))

	var st JobStatus
	require.NoError(t, json.Unmarshal([]byte(`"error"`), &st))
	assert.Equal(t, JobStatusError, st)
}

func TestJobStatusScan(t *testing.T) {
	var st JobStatus
	require.NoError(t, st.Scan(int64(2)))
	assert.Equal(t, JobStatusDone, st)

	assert.Error(t, st.Scan(int64(5)), "out of range codes must not decode")
	assert.Error(t, st.Scan(int64(-1)))
}

func TestNewBackupJob(t *testing.T) {
	module := Module{Name: "files", ModuleType: "generic", BackupType: BackupTypeDiff}
	client := Client{Name: "alpha", Address: "10.0.0.3"}

	job := NewBackupJob(client, module)
	assert.NotEqual(t, job.UUID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, BackupTypeDiff, job.BackupType)
	assert.Equal(t, "alpha", job.Client.Name)

	other := NewBackupJob(client, module)
	assert.NotEqual(t, job.UUID, other.UUID)
}
