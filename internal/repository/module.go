package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/macarrie/relique/internal/db"
	"github.com/macarrie/relique/internal/types"
)

// gormModuleRepository is the GORM implementation of ModuleRepository.
type gormModuleRepository struct {
	db *gorm.DB
}

// NewModuleRepository returns a ModuleRepository backed by the provided
// *gorm.DB.
func NewModuleRepository(database *gorm.DB) ModuleRepository {
	return &gormModuleRepository{db: database}
}

// Save upserts the module row keyed by name and returns its id.
func (r *gormModuleRepository) Save(ctx context.Context, module types.Module) (int64, error) {
	row := db.Module{
		ModuleType:        module.ModuleType,
		Name:              module.Name,
		BackupType:        module.BackupType,
		PreBackupScript:   module.PreBackupScript,
		PostBackupScript:  module.PostBackupScript,
		PreRestoreScript:  module.PreRestoreScript,
		PostRestoreScript: module.PostRestoreScript,
	}

	var existing db.Module
	err := r.db.WithContext(ctx).First(&existing, "name = ?", module.Name).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return 0, fmt.Errorf("modules: create: %w", err)
		}
		return row.ID, nil
	case err != nil:
		return 0, fmt.Errorf("modules: save: %w", err)
	}

	row.ID = existing.ID
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return 0, fmt.Errorf("modules: update: %w", err)
	}
	return row.ID, nil
}

// GetByName retrieves a module snapshot by name. Returns ErrNotFound
// if no record exists.
func (r *gormModuleRepository) GetByName(ctx context.Context, name string) (types.Module, error) {
	var row db.Module
	err := r.db.WithContext(ctx).First(&row, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Module{}, ErrNotFound
	}
	if err != nil {
		return types.Module{}, fmt.Errorf("modules: get by name: %w", err)
	}

	return types.Module{
		ModuleType:        row.ModuleType,
		Name:              row.Name,
		BackupType:        row.BackupType,
		PreBackupScript:   row.PreBackupScript,
		PostBackupScript:  row.PostBackupScript,
		PreRestoreScript:  row.PreRestoreScript,
		PostRestoreScript: row.PostRestoreScript,
	}, nil
}
