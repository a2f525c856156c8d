// Package services – AvailabilityService
//
// This file implements the AvailabilityService, the admin-facing manager of
// per-(date, time) slot capacity. Upserts merge by key; deletes are by id.
// The allocator-side conditional decrement lives in BookingService and the
// repo — this service never consumes capacity.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/civregistry/registrar-backend/internal/domain"
	"github.com/civregistry/registrar-backend/internal/repo"
)

// AvailabilityService provides admin CRUD over availability records.
type AvailabilityService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// DefaultSlots is the capacity applied when an upsert omits slots.
	// Values <= 0 default to 10.
	DefaultSlots int

	// StoreTimeout caps store operations. Values <= 0 default to 5s.
	StoreTimeout time.Duration
}

// NewAvailabilityService constructs an AvailabilityService with defaults.
func NewAvailabilityService(db *gorm.DB) *AvailabilityService {
	return &AvailabilityService{
		DB:           db,
		DefaultSlots: 10,
		StoreTimeout: 5 * time.Second,
	}
}

// Upsert merges capacity by (date, time): a missing key creates a record, an
// existing one gets its slots overwritten. slots == nil applies the default
// capacity; negative slots are rejected. Upserting the same key twice with
// the same value leaves exactly one record with that value.
func (s *AvailabilityService) Upsert(ctx context.Context, date, timeLabel string, slots *int) (*domain.Availability, error) {
	date = strings.TrimSpace(date)
	timeLabel = strings.TrimSpace(timeLabel)
	if date == "" {
		return nil, ErrValidation
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, ErrValidation
	}

	n := s.DefaultSlots
	if n <= 0 {
		n = 10
	}
	if slots != nil {
		if *slots < 0 {
			return nil, ErrValidation
		}
		n = *slots
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	rec, err := repo.UpsertAvailability(opCtx, s.DB, date, timeLabel, n)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return rec, nil
}

// List returns all availability records ordered by date then time.
func (s *AvailabilityService) List(ctx context.Context) ([]domain.Availability, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	out, err := repo.ListAvailabilities(opCtx, s.DB)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return out, nil
}

// Delete removes an availability record by id.
func (s *AvailabilityService) Delete(ctx context.Context, id string) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := repo.DeleteAvailability(opCtx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAvailabilityNotFound
		}
		return s.mapErr(err)
	}
	return nil
}

func (s *AvailabilityService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.StoreTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (s *AvailabilityService) mapErr(err error) error {
	if isTimeout(err) {
		return ErrTimeout
	}
	return err
}
