package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/civregistry/registrar-backend/internal/domain"
)

func newAvailabilityDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("avail_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Availability{}, &domain.Appointment{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestUpsertAvailability_CreateThenOverwrite_SingleRow(t *testing.T) {
	db := newAvailabilityDB(t)
	ctx := context.Background()

	created, err := UpsertAvailability(ctx, db, "2026-09-15", "09:00 AM", 10)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if created.ID == "" || created.Slots != 10 {
		t.Fatalf("unexpected created record: %+v", created)
	}

	updated, err := UpsertAvailability(ctx, db, "2026-09-15", "09:00 AM", 3)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("upsert replaced the row instead of merging: %q vs %q", updated.ID, created.ID)
	}
	if updated.Slots != 3 {
		t.Fatalf("slots not overwritten: %+v", updated)
	}

	var n int64
	if err := db.Model(&domain.Availability{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one row for the key, got %d", n)
	}
}

func TestUpsertAvailability_SameValueTwice_Idempotent(t *testing.T) {
	db := newAvailabilityDB(t)
	ctx := context.Background()

	if _, err := UpsertAvailability(ctx, db, "2026-10-01", "", 5); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	if _, err := UpsertAvailability(ctx, db, "2026-10-01", "", 5); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}

	got, err := GetAvailability(ctx, db, "2026-10-01", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Slots != 5 {
		t.Fatalf("slots = %d; want 5", got.Slots)
	}
}

func TestListAvailabilities_OrderedByDateThenTime(t *testing.T) {
	db := newAvailabilityDB(t)
	ctx := context.Background()

	for _, rec := range []struct {
		date, tm string
	}{
		{"2026-09-16", "09:00"},
		{"2026-09-15", "13:00"},
		{"2026-09-15", "09:00"},
	} {
		if _, err := UpsertAvailability(ctx, db, rec.date, rec.tm, 10); err != nil {
			t.Fatalf("upsert %s %s: %v", rec.date, rec.tm, err)
		}
	}

	out, err := ListAvailabilities(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d; want 3", len(out))
	}
	if out[0].Date != "2026-09-15" || out[0].Time != "09:00" ||
		out[1].Date != "2026-09-15" || out[1].Time != "13:00" ||
		out[2].Date != "2026-09-16" {
		t.Fatalf("unexpected order: %+v", out)
	}
}

func TestDeleteAvailability_NotFound(t *testing.T) {
	db := newAvailabilityDB(t)
	if err := DeleteAvailability(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDecrementSlot_ConsumesDownToExhaustion(t *testing.T) {
	db := newAvailabilityDB(t)
	ctx := context.Background()

	if _, err := UpsertAvailability(ctx, db, "2026-09-15", "09:00 AM", 2); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := DecrementSlot(db, "2026-09-15", "09:00 AM"); err != nil {
		t.Fatalf("decrement 1: %v", err)
	}
	if err := DecrementSlot(db, "2026-09-15", "09:00 AM"); err != nil {
		t.Fatalf("decrement 2: %v", err)
	}
	if err := DecrementSlot(db, "2026-09-15", "09:00 AM"); !errors.Is(err, ErrSlotsExhausted) {
		t.Fatalf("expected ErrSlotsExhausted at zero, got %v", err)
	}

	// Capacity never goes negative.
	got, err := GetAvailability(ctx, db, "2026-09-15", "09:00 AM")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Slots != 0 {
		t.Fatalf("slots = %d; want 0", got.Slots)
	}
}

func TestDecrementSlot_MissingRecord_ErrNotFound(t *testing.T) {
	db := newAvailabilityDB(t)
	if err := DecrementSlot(db, "2099-01-01", "08:00"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}
}

func TestVerifyLedger_RelatesSlotsToPending(t *testing.T) {
	db := newAvailabilityDB(t)
	ctx := context.Background()

	const initial = 4
	if _, err := UpsertAvailability(ctx, db, "2026-09-15", "09:00", initial); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Consume two slots and record matching pending appointments.
	for i := 0; i < 2; i++ {
		if err := DecrementSlot(db, "2026-09-15", "09:00"); err != nil {
			t.Fatalf("decrement: %v", err)
		}
		appt := &domain.Appointment{
			ID:          fmt.Sprintf("a%d", i),
			UserID:      "u1",
			Name:        "N",
			Email:       "n@example.com",
			Service:     "birth-cert",
			Date:        "2026-09-15",
			Time:        "09:00",
			QueueNumber: int64(i + 1),
			Status:      domain.StatusPending,
			CreatedAt:   time.Now().UTC(),
		}
		if err := CreateAppointment(db, appt); err != nil {
			t.Fatalf("create appointment: %v", err)
		}
	}

	ledger, err := VerifyLedger(ctx, db)
	if err != nil {
		t.Fatalf("VerifyLedger: %v", err)
	}
	if len(ledger) != 1 {
		t.Fatalf("ledger lines = %d; want 1", len(ledger))
	}
	line := ledger[0]
	if int64(initial-line.Slots) != line.Pending {
		t.Fatalf("ledger mismatch: consumed=%d pending=%d", initial-line.Slots, line.Pending)
	}
}
