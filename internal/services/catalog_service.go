// Package services – CatalogService
//
// This file implements the CatalogService, which manages the registrar
// service catalog. It normalizes names, coordinates repository CRUD, and
// seeds the default registrar services the first time the catalog is read
// while empty. Seeding is idempotent: it runs inside a transaction that
// re-checks emptiness, so two concurrent first reads cannot double-insert.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/civregistry/registrar-backend/internal/domain"
	"github.com/civregistry/registrar-backend/internal/repo"
)

// defaultServices is the fixed catalog installed when no services exist yet.
var defaultServices = []domain.Service{
	{
		ID:   "birth-cert",
		Name: "Birth Certificate",
		Requirements: domain.StringList{
			"National ID",
			"Negative result (PSA)",
			"Affidavit of delay registration",
			"Voter certification",
			"Permanent record",
		},
	},
	{
		ID:   "marriage-cert",
		Name: "Marriage Certificate",
		Requirements: domain.StringList{
			"Valid ID",
			"Marriage contract (if applicable)",
			"PSA Certificate of Marriage",
			"Affidavit (if needed)",
		},
	},
	{
		ID:   "no-marriage-cert",
		Name: "Certificate of No Marriage",
		Requirements: domain.StringList{
			"Valid ID",
			"PSA Certificate of No Marriage",
			"Barangay Clearance",
			"Birth Certificate",
		},
	},
	{
		ID:   "death-reg",
		Name: "Death Registration",
		Requirements: domain.StringList{
			"Valid ID of informant",
			"Death certificate from hospital/clinic",
			"PSA Certificate of Death",
			"Affidavit (if needed)",
		},
	},
}

// CatalogService provides CRUD over the service catalog plus first-read
// seeding of the default registrar services.
type CatalogService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// StoreTimeout caps store operations. Values <= 0 default to 5s.
	StoreTimeout time.Duration

	nameCaser cases.Caser
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{
		DB:           db,
		StoreTimeout: 5 * time.Second,
		nameCaser:    cases.Title(language.English),
	}
}

// List returns the catalog ordered by name. When the catalog is empty it
// installs the default registrar services first and returns them; a second
// call sees a non-empty catalog and seeds nothing.
func (s *CatalogService) List(ctx context.Context) ([]domain.Service, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	total, err := repo.CountServices(opCtx, s.DB)
	if err != nil {
		return nil, s.mapErr(err)
	}
	if total == 0 {
		if err := s.seedDefaults(opCtx); err != nil {
			return nil, s.mapErr(err)
		}
	}
	out, err := repo.ListServices(opCtx, s.DB)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return out, nil
}

// Get returns a catalog entry by id, or ErrServiceNotFound.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Service, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	svc, err := repo.GetService(opCtx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, s.mapErr(err)
	}
	return svc, nil
}

// Create adds a catalog entry. The name is required and title-cased; an
// empty id gets a generated one.
func (s *CatalogService) Create(ctx context.Context, id, name string, requirements []string) (*domain.Service, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrValidation
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	svc, err := repo.CreateService(opCtx, s.DB, strings.TrimSpace(id), s.nameCaser.String(name), requirements)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return svc, nil
}

// Update overwrites name and requirements for an existing entry.
func (s *CatalogService) Update(ctx context.Context, id, name string, requirements []string) (*domain.Service, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrValidation
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := repo.UpdateService(opCtx, s.DB, id, s.nameCaser.String(name), requirements); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, s.mapErr(err)
	}
	return repo.GetService(opCtx, s.DB, id)
}

// Delete removes a catalog entry by id.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := repo.DeleteService(opCtx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrServiceNotFound
		}
		return s.mapErr(err)
	}
	return nil
}

// seedDefaults installs the default services when the catalog is still empty.
// The emptiness re-check and inserts share a transaction, making the seeding
// idempotent under concurrent first reads.
func (s *CatalogService) seedDefaults(ctx context.Context) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total int64
		if err := tx.Model(&domain.Service{}).Count(&total).Error; err != nil {
			return err
		}
		if total > 0 {
			return nil
		}
		for _, svc := range defaultServices {
			svc.CreatedAt = time.Now().UTC()
			if err := tx.Create(&svc).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *CatalogService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.StoreTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (s *CatalogService) mapErr(err error) error {
	if isTimeout(err) {
		return ErrTimeout
	}
	return err
}
