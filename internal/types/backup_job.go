package types

import "github.com/google/uuid"

// BackupJob is the unit of work exchanged between the two daemons and
// persisted by the server. Client and Module are snapshots taken at
// creation time so a configuration push cannot change a job mid-run.
type BackupJob struct {
	UUID       uuid.UUID  `json:"uuid"`
	Client     Client     `json:"client"`
	Module     Module     `json:"module"`
	Status     JobStatus  `json:"status"`
	BackupType BackupType `json:"backup_type"`
}

// NewBackupJob creates a pending job for one module of one client,
// taking its backup type from the module.
func NewBackupJob(client Client, module Module) BackupJob {
	return BackupJob{
		UUID:       uuid.New(),
		Client:     client,
		Module:     module,
		Status:     JobStatusPending,
		BackupType: module.BackupType,
	}
}
