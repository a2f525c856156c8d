// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Availability model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, functions return ErrNotFound.
//   - DecrementSlot additionally returns ErrSlotsExhausted when the record
//     exists but has no remaining capacity.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civregistry/registrar-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrSlotsExhausted is returned by DecrementSlot when the availability record
// exists but its remaining capacity is zero.
var ErrSlotsExhausted = errors.New("no slots remaining")

// UpsertAvailability merges capacity by (date, time): it creates a new record
// with a fresh UUID when none exists for the key, otherwise it overwrites the
// Slots value on the existing record. Exactly one row per key ever exists.
func UpsertAvailability(ctx context.Context, db *gorm.DB, date, timeLabel string, slots int) (*domain.Availability, error) {
	var out *domain.Availability
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Availability
		err := tx.Where("date = ? AND time = ?", date, timeLabel).First(&existing).Error
		switch {
		case err == nil:
			if uerr := tx.Model(&existing).Update("slots", slots).Error; uerr != nil {
				return uerr
			}
			existing.Slots = slots
			out = &existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec := &domain.Availability{
				ID:        uuid.NewString(),
				Date:      date,
				Time:      timeLabel,
				Slots:     slots,
				CreatedAt: time.Now().UTC(),
			}
			if cerr := tx.Create(rec).Error; cerr != nil {
				return cerr
			}
			out = rec
			return nil
		default:
			return err
		}
	})
	return out, err
}

// GetAvailability fetches the record for (date, time), or ErrNotFound.
func GetAvailability(ctx context.Context, db *gorm.DB, date, timeLabel string) (*domain.Availability, error) {
	var a domain.Availability
	err := db.WithContext(ctx).
		Where("date = ? AND time = ?", date, timeLabel).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAvailabilities returns all records ordered by date then time, the order
// the admin availability table displays.
func ListAvailabilities(ctx context.Context, db *gorm.DB) ([]domain.Availability, error) {
	var out []domain.Availability
	err := db.WithContext(ctx).
		Order("date ASC, time ASC").
		Find(&out).Error
	return out, err
}

// DeleteAvailability removes a record by id. Returns ErrNotFound when no row
// was deleted.
func DeleteAvailability(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Availability{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementSlot conditionally consumes one slot for (date, time). Used only
// by the booking allocator, on its transaction handle.
//
// The decrement is a single conditional UPDATE guarded by slots > 0, so two
// transactions racing on a record with one slot left cannot both succeed.
// Returns ErrNotFound when no record exists for the key (the allocator treats
// that as unconstrained capacity) and ErrSlotsExhausted when the record is at
// zero.
func DecrementSlot(tx *gorm.DB, date, timeLabel string) error {
	res := tx.Model(&domain.Availability{}).
		Where("date = ? AND time = ? AND slots > 0", date, timeLabel).
		Update("slots", gorm.Expr("slots - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Distinguish "no record" from "record at zero".
	var n int64
	if err := tx.Model(&domain.Availability{}).
		Where("date = ? AND time = ?", date, timeLabel).
		Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrSlotsExhausted
}

// SlotLedger is one line of the capacity audit: for a (date, time) key, the
// remaining slots on record and the number of live pending appointments.
type SlotLedger struct {
	Date    string
	Time    string
	Slots   int
	Pending int64
}

// VerifyLedger re-derives, offline, the relationship between consumed slots
// and non-cancelled appointments per (date, time). Callers can assert that
// initialCapacity - Slots == Pending for keys whose capacity is tracked.
func VerifyLedger(ctx context.Context, db *gorm.DB) ([]SlotLedger, error) {
	avails, err := ListAvailabilities(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]SlotLedger, 0, len(avails))
	for _, a := range avails {
		var pending int64
		err := db.WithContext(ctx).Model(&domain.Appointment{}).
			Where("date = ? AND time = ? AND status = ?", a.Date, a.Time, domain.StatusPending).
			Count(&pending).Error
		if err != nil {
			return nil, err
		}
		out = append(out, SlotLedger{Date: a.Date, Time: a.Time, Slots: a.Slots, Pending: pending})
	}
	return out, nil
}
