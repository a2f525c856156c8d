// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Service
// catalog.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civregistry/registrar-backend/internal/domain"
)

// CreateService inserts a catalog entry. An empty id gets a fresh UUID;
// admin-supplied stable keys (e.g. "birth-cert") are kept as-is.
func CreateService(ctx context.Context, db *gorm.DB, id, name string, requirements []string) (*domain.Service, error) {
	if id == "" {
		id = uuid.NewString()
	}
	s := &domain.Service{
		ID:           id,
		Name:         name,
		Requirements: requirements,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetService fetches a catalog entry by id, or ErrNotFound.
func GetService(ctx context.Context, db *gorm.DB, id string) (*domain.Service, error) {
	var s domain.Service
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListServices returns the catalog ordered by name.
func ListServices(ctx context.Context, db *gorm.DB) ([]domain.Service, error) {
	var out []domain.Service
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// CountServices returns the number of catalog entries.
func CountServices(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Service{}).Count(&total).Error
	return total, err
}

// UpdateService overwrites name and requirements for id. Returns ErrNotFound
// when no row matched.
func UpdateService(ctx context.Context, db *gorm.DB, id, name string, requirements []string) error {
	res := db.WithContext(ctx).
		Model(&domain.Service{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"name":         name,
			"requirements": domain.StringList(requirements),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteService removes a catalog entry by id. Returns ErrNotFound when no
// row was deleted.
func DeleteService(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Service{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
