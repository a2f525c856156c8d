// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the global queue counter: a single row
// incremented atomically inside the booking transaction so that concurrent
// bookings can never observe the same number.
package repo

import (
	"gorm.io/gorm"

	"github.com/civregistry/registrar-backend/internal/domain"
)

// NextQueueNumber atomically increments the queue counter and returns the new
// value. It must be called on a transaction handle: the in-place UPDATE takes
// the row's write lock, serializing all concurrent allocations, and the value
// read back is the one this transaction produced.
//
// Returns ErrNotFound if the counter row has not been seeded.
func NextQueueNumber(tx *gorm.DB) (int64, error) {
	res := tx.Model(&domain.QueueCounter{}).
		Where("id = ?", domain.QueueCounterID).
		Update("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}

	var c domain.QueueCounter
	if err := tx.First(&c, "id = ?", domain.QueueCounterID).Error; err != nil {
		return 0, err
	}
	return c.Value, nil
}

// QueueHighWaterMark returns the current counter value without advancing it.
func QueueHighWaterMark(db *gorm.DB) (int64, error) {
	var c domain.QueueCounter
	if err := db.First(&c, "id = ?", domain.QueueCounterID).Error; err != nil {
		return 0, err
	}
	return c.Value, nil
}
