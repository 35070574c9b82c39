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

// gormClientRepository is the GORM implementation of ClientRepository.
type gormClientRepository struct {
	db *gorm.DB
}

// NewClientRepository returns a ClientRepository backed by the provided
// *gorm.DB.
func NewClientRepository(database *gorm.DB) ClientRepository {
	return &gormClientRepository{db: database}
}

// Save upserts the client row keyed by name and returns its id. Only
// the flattened snapshot is persisted; modules and schedules stay in
// memory.
func (r *gormClientRepository) Save(ctx context.Context, client types.Client) (int64, error) {
	row := db.Client{
		ConfigVersion: versionString(client.ConfigVersion),
		Name:          client.Name,
		Address:       client.Address,
		Port:          client.APIPort(),
		ServerAddress: client.ServerAddress,
		ServerPort:    client.ServerAPIPort(),
	}

	var existing db.Client
	err := r.db.WithContext(ctx).First(&existing, "name = ?", client.Name).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return 0, fmt.Errorf("clients: create: %w", err)
		}
		return row.ID, nil
	case err != nil:
		return 0, fmt.Errorf("clients: save: %w", err)
	}

	row.ID = existing.ID
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return 0, fmt.Errorf("clients: update: %w", err)
	}
	return row.ID, nil
}

// GetByName retrieves a client snapshot by name. Returns ErrNotFound
// if no record exists.
func (r *gormClientRepository) GetByName(ctx context.Context, name string) (types.Client, error) {
	var row db.Client
	err := r.db.WithContext(ctx).First(&row, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Client{}, ErrNotFound
	}
	if err != nil {
		return types.Client{}, fmt.Errorf("clients: get by name: %w", err)
	}

	client := types.Client{
		Name:          row.Name,
		Address:       row.Address,
		Port:          row.Port,
		ServerAddress: row.ServerAddress,
		ServerPort:    row.ServerPort,
	}
	if v, err := uuid.Parse(row.ConfigVersion); err == nil {
		client.ConfigVersion = &v
	}
	return client, nil
}

func versionString(v *uuid.UUID) string {
	if v == nil {
		return ""
	}
	return v.String()
}
