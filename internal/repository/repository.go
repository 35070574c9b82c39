// Package repository provides data access to the relique server job
// store. The daemon and HTTP layers consume the interfaces; the GORM
// implementations live alongside them. Writes follow the upsert
// discipline of the wire protocol: clients and modules are keyed by
// name, jobs by uuid.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/macarrie/relique/internal/types"
)

// ErrNotFound is returned when the requested record does not exist.
// Callers check it with errors.Is to tell missing records apart from
// other database errors.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when an insert collides with an existing
// record, for example registering a job uuid that is already present.
var ErrConflict = errors.New("record already exists")

// SearchParams filters job listings. Zero values mean no filter; Limit
// defaults to 50.
type SearchParams struct {
	Client     string
	Module     string
	Status     *types.JobStatus
	BackupType *types.BackupType
	Limit      int
}

// ClientRepository persists client snapshots, upserting by name.
type ClientRepository interface {
	Save(ctx context.Context, client types.Client) (int64, error)
	GetByName(ctx context.Context, name string) (types.Client, error)
}

// ModuleRepository persists module snapshots, upserting by name.
type ModuleRepository interface {
	Save(ctx context.Context, module types.Module) (int64, error)
	GetByName(ctx context.Context, name string) (types.Module, error)
}

// JobRepository persists backup jobs. Register refuses a uuid that is
// already present; Save upserts. Both cascade through module and
// client saves to obtain foreign keys before touching the jobs table.
type JobRepository interface {
	Register(ctx context.Context, job types.BackupJob) error
	Save(ctx context.Context, job types.BackupJob) error
	GetByUUID(ctx context.Context, id uuid.UUID) (types.BackupJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status types.JobStatus) error
	Active(ctx context.Context) ([]types.BackupJob, error)
	PreviousFullDone(ctx context.Context, moduleType, clientName string) (types.BackupJob, error)
	Search(ctx context.Context, params SearchParams) ([]types.BackupJob, error)
}
