package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/macarrie/relique/internal/db"
	"github.com/macarrie/relique/internal/types"
)

// gormJobRepository is the GORM implementation of JobRepository.
type gormJobRepository struct {
	db      *gorm.DB
	clients ClientRepository
	modules ModuleRepository
}

// NewJobRepository returns a JobRepository backed by the provided
// *gorm.DB.
func NewJobRepository(database *gorm.DB) JobRepository {
	return &gormJobRepository{
		db:      database,
		clients: NewClientRepository(database),
		modules: NewModuleRepository(database),
	}
}

// jobRow flattens the three-table join used to rebuild a BackupJob
// snapshot. Fields that are never persisted (backup paths, schedule
// lists) stay empty on the rebuilt job.
type jobRow struct {
	ID         int64
	UUID       string
	Status     types.JobStatus
	BackupType types.BackupType

	ModuleType        string
	ModuleName        string
	ModuleBackupType  types.BackupType
	PreBackupScript   string
	PostBackupScript  string
	PreRestoreScript  string
	PostRestoreScript string

	ClientName          string
	ClientAddress       string
	ClientPort          int
	ClientServerAddress string
	ClientServerPort    int
	ClientConfigVersion string
}

const jobSelect = `jobs.id, jobs.uuid, jobs.status, jobs.backup_type,
modules.module_type AS module_type, modules.name AS module_name, modules.backup_type AS module_backup_type,
modules.pre_backup_script, modules.post_backup_script, modules.pre_restore_script, modules.post_restore_script,
clients.name AS client_name, clients.address AS client_address, clients.port AS client_port,
clients.server_address AS client_server_address, clients.server_port AS client_server_port,
clients.config_version AS client_config_version`

func (row jobRow) toDomain() (types.BackupJob, error) {
	id, err := uuid.Parse(row.UUID)
	if err != nil {
		return types.BackupJob{}, fmt.Errorf("jobs: parse uuid %q: %w", row.UUID, err)
	}

	job := types.BackupJob{
		UUID:       id,
		Status:     row.Status,
		BackupType: row.BackupType,
		Module: types.Module{
			ModuleType:        row.ModuleType,
			Name:              row.ModuleName,
			BackupType:        row.ModuleBackupType,
			PreBackupScript:   row.PreBackupScript,
			PostBackupScript:  row.PostBackupScript,
			PreRestoreScript:  row.PreRestoreScript,
			PostRestoreScript: row.PostRestoreScript,
		},
		Client: types.Client{
			Name:          row.ClientName,
			Address:       row.ClientAddress,
			Port:          row.ClientPort,
			ServerAddress: row.ClientServerAddress,
			ServerPort:    row.ClientServerPort,
		},
	}
	if v, err := uuid.Parse(row.ClientConfigVersion); err == nil {
		job.Client.ConfigVersion = &v
	}
	return job, nil
}

func (r *gormJobRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("jobs").
		Select(jobSelect).
		Joins("JOIN modules ON modules.id = jobs.module_id").
		Joins("JOIN clients ON clients.id = jobs.client_id")
}

// Register inserts a new job. Returns ErrConflict when the uuid is
// already known, which the API layer maps to 409.
func (r *gormJobRepository) Register(ctx context.Context, job types.BackupJob) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&db.Job{}).
		Where("uuid = ?", job.UUID.String()).
		Count(&count).Error; err != nil {
		return fmt.Errorf("jobs: register: %w", err)
	}
	if count > 0 {
		return ErrConflict
	}
	return r.Save(ctx, job)
}

// Save upserts the job keyed by uuid, cascading through module and
// client saves first to obtain foreign keys.
func (r *gormJobRepository) Save(ctx context.Context, job types.BackupJob) error {
	moduleID, err := r.modules.Save(ctx, job.Module)
	if err != nil {
		return fmt.Errorf("jobs: save module: %w", err)
	}
	clientID, err := r.clients.Save(ctx, job.Client)
	if err != nil {
		return fmt.Errorf("jobs: save client: %w", err)
	}

	row := db.Job{
		UUID:       job.UUID.String(),
		Status:     job.Status,
		BackupType: job.BackupType,
		ModuleID:   moduleID,
		ClientID:   clientID,
	}

	var existing db.Job
	err = r.db.WithContext(ctx).First(&existing, "uuid = ?", row.UUID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("jobs: create: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("jobs: save: %w", err)
	}

	row.ID = existing.ID
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("jobs: update: %w", err)
	}
	return nil
}

// GetByUUID rebuilds a job snapshot from the jobs, modules and clients
// tables. Returns ErrNotFound if no record exists.
func (r *gormJobRepository) GetByUUID(ctx context.Context, id uuid.UUID) (types.BackupJob, error) {
	var row jobRow
	err := r.baseQuery(ctx).Where("jobs.uuid = ?", id.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.BackupJob{}, ErrNotFound
	}
	if err != nil {
		return types.BackupJob{}, fmt.Errorf("jobs: get by uuid: %w", err)
	}
	return row.toDomain()
}

// UpdateStatus sets the status of the job with the given uuid. Returns
// ErrNotFound when the uuid is unknown.
func (r *gormJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status types.JobStatus) error {
	result := r.db.WithContext(ctx).
		Model(&db.Job{}).
		Where("uuid = ?", id.String()).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("jobs: update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Active returns every job currently marked active, oldest first.
func (r *gormJobRepository) Active(ctx context.Context) ([]types.BackupJob, error) {
	var rows []jobRow
	err := r.baseQuery(ctx).
		Where("jobs.status = ?", types.JobStatusActive).
		Order("jobs.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("jobs: active: %w", err)
	}
	return rowsToDomain(rows)
}

// PreviousFullDone returns the most recently registered job for the
// given module type and client that ran a full backup to completion.
// This is the reference basis for differential backups.
func (r *gormJobRepository) PreviousFullDone(ctx context.Context, moduleType, clientName string) (types.BackupJob, error) {
	var row jobRow
	err := r.baseQuery(ctx).
		Where("modules.module_type = ?", moduleType).
		Where("clients.name = ?", clientName).
		Where("jobs.backup_type = ?", types.BackupTypeFull).
		Where("jobs.status = ?", types.JobStatusDone).
		Order("jobs.id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.BackupJob{}, ErrNotFound
	}
	if err != nil {
		return types.BackupJob{}, fmt.Errorf("jobs: previous full: %w", err)
	}
	return row.toDomain()
}

// Search lists jobs matching the given filters, newest first.
func (r *gormJobRepository) Search(ctx context.Context, params SearchParams) ([]types.BackupJob, error) {
	query := r.baseQuery(ctx)
	if params.Client != "" {
		query = query.Where("clients.name = ?", params.Client)
	}
	if params.Module != "" {
		query = query.Where("modules.name = ?", params.Module)
	}
	if params.Status != nil {
		query = query.Where("jobs.status = ?", *params.Status)
	}
	if params.BackupType != nil {
		query = query.Where("jobs.backup_type = ?", *params.BackupType)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows []jobRow
	if err := query.Order("jobs.id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("jobs: search: %w", err)
	}
	return rowsToDomain(rows)
}

func rowsToDomain(rows []jobRow) ([]types.BackupJob, error) {
	jobs := make([]types.BackupJob, 0, len(rows))
	for _, row := range rows {
		job, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
