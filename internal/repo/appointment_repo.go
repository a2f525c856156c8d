// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Appointment
// model.
//
// Ownership: every owner-scoped function filters by user_id in the query
// itself, so another user's appointment is indistinguishable from a missing
// one — both surface ErrNotFound, never a "forbidden" signal that would leak
// record existence.
//
// Functions:
//
//   - CreateAppointment(tx, appt) -> error
//     Inserts a fully populated row (the allocator assigns id/queue number).
//
//   - GetAppointment(ctx, db, ownerID, id) -> *domain.Appointment, error
//     Fetches one appointment scoped to its owner, or ErrNotFound.
//
//   - ListAppointmentsByOwner(ctx, db, ownerID) -> []domain.Appointment, error
//     All of an owner's live appointments, most recently created first.
//
//   - ListAppointmentsByOwnerPage(ctx, db, ownerID, offset, limit)
//     Paginated variant of the above.
//
//   - CountAppointmentsByOwner(ctx, db, ownerID) -> (int64, error)
//
//   - ListPendingAppointments(ctx, db) -> []domain.Appointment, error
//     The admin-facing queue: pending rows ordered by queue number ascending.
//
//   - LatestPendingByOwner(ctx, db, ownerID) -> *domain.Appointment, error
//     The owner's most recently created pending appointment, or ErrNotFound.
//
//   - UpdateAppointment(ctx, db, ownerID, id, patch) -> error
//     Applies an owner-scoped field patch; never touches queue number/status.
//
//   - CancelAppointment(ctx, db, ownerID, id) -> error
//     Marks the row cancelled and soft-deletes it; the queue number stays on
//     record and is never reused.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/civregistry/registrar-backend/internal/domain"
)

// AppointmentPatch is the set of owner-editable fields. Queue number, status,
// and the slot accounting are deliberately absent: editing never renumbers
// the queue and never restores or re-consumes capacity.
type AppointmentPatch struct {
	Name    string
	Email   string
	Service string
	Date    string
	Time    string
}

// CreateAppointment inserts a new appointment row. Called by the allocator on
// its transaction handle with id, queue number, and status already assigned.
func CreateAppointment(tx *gorm.DB, appt *domain.Appointment) error {
	return tx.Create(appt).Error
}

// GetAppointment fetches a single appointment by id scoped to ownerID.
// Returns ErrNotFound when missing or owned by someone else.
func GetAppointment(ctx context.Context, db *gorm.DB, ownerID, id string) (*domain.Appointment, error) {
	var a domain.Appointment
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAppointmentsByOwner returns all live appointments belonging to ownerID,
// ordered by creation time descending (most recent first).
func ListAppointmentsByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountAppointmentsByOwner returns the number of live appointments for ownerID.
func CountAppointmentsByOwner(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("user_id = ?", ownerID).
		Count(&total).Error
	return total, err
}

// ListAppointmentsByOwnerPage returns a paginated slice of an owner's
// appointments, creation time descending. The caller computes offset/limit.
func ListAppointmentsByOwnerPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListPendingAppointments returns every pending appointment ordered by queue
// number ascending — the first-come-first-served queue as admins see it.
func ListPendingAppointments(ctx context.Context, db *gorm.DB) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := db.WithContext(ctx).
		Where("status = ?", domain.StatusPending).
		Order("queue_number ASC").
		Find(&out).Error
	return out, err
}

// LatestPendingByOwner returns the owner's most recently created pending
// appointment, or ErrNotFound when they have none.
func LatestPendingByOwner(ctx context.Context, db *gorm.DB, ownerID string) (*domain.Appointment, error) {
	var a domain.Appointment
	err := db.WithContext(ctx).
		Where("user_id = ? AND status = ?", ownerID, domain.StatusPending).
		Order("created_at DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAppointment applies patch to the appointment identified by id and
// owned by ownerID. Returns ErrNotFound when no row matched.
func UpdateAppointment(ctx context.Context, db *gorm.DB, ownerID, id string, patch AppointmentPatch) error {
	res := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(map[string]any{
			"name":    patch.Name,
			"email":   patch.Email,
			"service": patch.Service,
			"date":    patch.Date,
			"time":    patch.Time,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CancelAppointment marks the owner's appointment cancelled and soft-deletes
// it. The row (and its queue number) remains on record for audit; live
// queries exclude it. Availability is not replenished.
func CancelAppointment(ctx context.Context, db *gorm.DB, ownerID, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Appointment{}).
			Where("id = ? AND user_id = ?", id, ownerID).
			Update("status", domain.StatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ? AND user_id = ?", id, ownerID).
			Delete(&domain.Appointment{}).Error
	})
}
