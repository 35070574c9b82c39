package db

import "github.com/macarrie/relique/internal/types"

// Row models for the relique job store. Client and module records are
// flattened snapshots: in-memory only fields such as backup paths or
// schedule name lists never reach the database.

// Module is one row of the modules table, keyed by name.
type Module struct {
	ID                int64 `gorm:"primaryKey"`
	ModuleType        string
	Name              string
	BackupType        types.BackupType
	PreBackupScript   string
	PostBackupScript  string
	PreRestoreScript  string
	PostRestoreScript string
}

// Client is one row of the clients table, keyed by name.
type Client struct {
	ID            int64 `gorm:"primaryKey"`
	ConfigVersion string
	Name          string
	Address       string
	Port          int
	ServerAddress string
	ServerPort    int
}

// Job is one row of the jobs table, keyed by uuid. ID grows
// monotonically with insertion order, which is what the previous-full
// lookup sorts on.
type Job struct {
	ID         int64  `gorm:"primaryKey"`
	UUID       string `gorm:"column:uuid"`
	Status     types.JobStatus
	BackupType types.BackupType
	ModuleID   int64
	ClientID   int64
}

// ModuleSchedule is the modules_schedules join table. The schedules
// table it points at is reserved for a future extension; schedule
// linkage is currently carried in memory on the module record.
type ModuleSchedule struct {
	ScheduleID int64
	ModuleID   int64
}

func (ModuleSchedule) TableName() string { return "modules_schedules" }
