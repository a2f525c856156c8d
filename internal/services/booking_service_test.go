package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/civregistry/registrar-backend/internal/domain"
	"github.com/civregistry/registrar-backend/internal/repo"
)

func newBookingDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("booking_test_%d.db", time.Now().UnixNano()))
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func validBooking() BookingRequest {
	return BookingRequest{
		Name:    "Juan Dela Cruz",
		Email:   "juan@example.com",
		Service: "birth-cert",
		Date:    "2026-09-15",
		Time:    "09:00",
	}
}

func TestBook_ValidationBeforeAnyWrite(t *testing.T) {
	db := newBookingDB(t)
	svc := NewBookingService(db)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*BookingRequest)
	}{
		{"missing name", func(r *BookingRequest) { r.Name = "  " }},
		{"missing email", func(r *BookingRequest) { r.Email = "" }},
		{"malformed email", func(r *BookingRequest) { r.Email = "not-an-email" }},
		{"missing service", func(r *BookingRequest) { r.Service = "" }},
		{"missing date", func(r *BookingRequest) { r.Date = "" }},
		{"malformed date", func(r *BookingRequest) { r.Date = "15-09-2026" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validBooking()
			tc.mutate(&req)
			if _, err := svc.Book(ctx, "u1", req); !errors.Is(err, ErrValidation) {
				t.Fatalf("want ErrValidation, got %v", err)
			}
		})
	}
	if _, err := svc.Book(ctx, "", validBooking()); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty owner: want ErrValidation, got %v", err)
	}

	// Rejected input must not burn a queue number or leave rows behind.
	var n int64
	if err := db.Model(&domain.Appointment{}).Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("appointments after rejected input: n=%d err=%v", n, err)
	}
	a, err := svc.Book(ctx, "u1", validBooking())
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if a.QueueNumber != 1 {
		t.Fatalf("first valid booking got number %d; want 1", a.QueueNumber)
	}
}

func TestBook_ContiguousQueueNumbers(t *testing.T) {
	db := newBookingDB(t)
	svc := NewBookingService(db)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		req := validBooking()
		req.Email = fmt.Sprintf("u%d@example.com", i)
		a, err := svc.Book(ctx, fmt.Sprintf("u%d", i), req)
		if err != nil {
			t.Fatalf("book %d: %v", i, err)
		}
		if a.QueueNumber != int64(i) {
			t.Fatalf("booking %d got number %d", i, a.QueueNumber)
		}
		if a.Status != domain.StatusPending {
			t.Fatalf("booking %d status %q", i, a.Status)
		}
	}
}

func TestBook_ConcurrentBookings_UniqueContiguousNumbers(t *testing.T) {
	db := newBookingDB(t)
	svc := NewBookingService(db)
	// A generous retry budget: the assertion is about allocation, not about
	// how quickly SQLite hands the write lock around under a thundering herd.
	svc.MaxRetries = 20
	ctx := context.Background()

	const n = 12
	var (
		mu      sync.Mutex
		numbers []int64
	)
	start := make(chan struct{})
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			req := validBooking()
			req.Email = fmt.Sprintf("u%d@example.com", i)
			a, err := svc.Book(ctx, fmt.Sprintf("u%d", i), req)
			if err != nil {
				errs <- fmt.Errorf("book %d: %w", i, err)
				return
			}
			mu.Lock()
			numbers = append(numbers, a.QueueNumber)
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if len(numbers) != n {
		t.Fatalf("successful bookings = %d; want %d", len(numbers), n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for i, got := range numbers {
		if got != int64(i+1) {
			t.Fatalf("queue numbers not unique and contiguous: %v", numbers)
		}
	}
}

func TestBook_ConcurrentOnLastSlot_OneWinner(t *testing.T) {
	db := newBookingDB(t)
	svc := NewBookingService(db)
	svc.MaxRetries = 20
	ctx := context.Background()

	if _, err := repo.UpsertAvailability(ctx, db, "2026-09-15", "09:00", 1); err != nil {
		t.Fatalf("seed availability: %v", err)
	}

	start := make(chan struct{})
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.Book(ctx, fmt.Sprintf("u%d", i), validBooking())
			results <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(results)

	var wins, exhausted int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected booking error: %v", err)
		}
	}
	if wins != 1 || exhausted != 1 {
		t.Fatalf("wins=%d exhausted=%d; want exactly one winner and one ErrSlotExhausted", wins, exhausted)
	}

	// The loser must not have driven capacity negative.
	var rec domain.Availability
	if err := db.First(&rec, "date = ? AND time = ?", "2026-09-15", "09:00").Error; err != nil {
		t.Fatalf("load availability: %v", err)
	}
	if rec.Slots != 0 {
		t.Fatalf("slots = %d; want 0", rec.Slots)
	}
}

func TestBook_ConsumesSlots_ThenExhausted(t *testing.T) {
	db := newBookingDB(t)
	svc := NewBookingService(db)
	ctx := context.Background()

	if _, err := repo.UpsertAvailability(ctx, db, "2026-09-15", "09:00", 1); err != nil {
		t.Fatalf("seed availability: %v", err)
	}

	if _, err := svc.Book(ctx, "u1", validBooking()); err != nil {
		t.Fatalf("first book: %v", err)
	}
	if _, err := svc.Book(ctx, "u2", validBooking()); !errors.Is(err, ErrSlotExhausted) {
		t.Fatalf("second book: want ErrSlotExhausted, got %v", err)
	}

	// The failed attempt must not burn a number: a booking on a free slot
	// gets 2, not 3.
	free := validBooking()
	free.Time = "10:00"
	a, err := svc.Book(ctx, "u3", free)
	if err != nil {
		t.Fatalf("book free slot: %v", err)
	}
	if a.QueueNumber != 2 {
		t.Fatalf("queue number after exhausted attempt = %d; want 2", a.QueueNumber)
	}

	// Capacity is pinned at zero, never negative.
	var rec domain.Availability
	if err := db.First(&rec, "date = ? AND time = ?", "2026-09-15", "09:00").Error; err != nil {
		t.Fatalf("load availability: %v", err)
	}
	if rec.Slots != 0 {
		t.Fatalf("slots = %d; want 0", rec.Slots)
	}
}

func TestBook_UnconstrainedSlot_NoRecordCreated(t *testing.T) {
	db := newBookingDB(t)
	svc := NewBookingService(db)
	ctx := context.Background()

	if _, err := svc.Book(ctx, "u1", validBooking()); err != nil {
		t.Fatalf("book: %v", err)
	}

	// Booking against a key with no record must not materialize one.
	var n int64
	if err := db.Model(&domain.Availability{}).Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("availability rows after unconstrained booking: n=%d err=%v", n, err)
	}
}

func TestCancel_PreservesOtherNumbers_NoSlotRestore(t *testing.T) {
	db := newBookingDB(t)
	svc := NewBookingService(db)
	ctx := context.Background()

	if _, err := repo.UpsertAvailability(ctx, db, "2026-09-15", "09:00", 5); err != nil {
		t.Fatalf("seed availability: %v", err)
	}

	var ids []string
	for i := 1; i <= 3; i++ {
		a, err := svc.Book(ctx, fmt.Sprintf("u%d", i), validBooking())
		if err != nil {
			t.Fatalf("book %d: %v", i, err)
		}
		ids = append(ids, a.ID)
	}

	if err := svc.Cancel(ctx, "u2", ids[1]); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	queue, err := svc.Queue(ctx)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 2 || queue[0].QueueNumber != 1 || queue[1].QueueNumber != 3 {
		t.Fatalf("queue after cancel: %+v", queue)
	}

	// Cancellation never replenishes capacity.
	var rec domain.Availability
	if err := db.First(&rec, "date = ? AND time = ?", "2026-09-15", "09:00").Error; err != nil {
		t.Fatalf("load availability: %v", err)
	}
	if rec.Slots != 2 {
		t.Fatalf("slots after cancel = %d; want 2", rec.Slots)
	}

	if err := svc.Cancel(ctx, "u2", ids[1]); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("repeat cancel: want ErrAppointmentNotFound, got %v", err)
	}
}

func TestGet_And_Cancel_ForeignOwnerLooksMissing(t *testing.T) {
	db := newBookingDB(t)
	svc := NewBookingService(db)
	ctx := context.Background()

	a, err := svc.Book(ctx, "alice", validBooking())
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := svc.Get(ctx, "mallory", a.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("foreign get: want ErrAppointmentNotFound, got %v", err)
	}
	if err := svc.Cancel(ctx, "mallory", a.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("foreign cancel: want ErrAppointmentNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, "alice", a.ID); err != nil {
		t.Fatalf("owner get after foreign attempts: %v", err)
	}
}

func TestUpdate_KeepsQueueNumber(t *testing.T) {
	db := newBookingDB(t)
	svc := NewBookingService(db)
	ctx := context.Background()

	a, err := svc.Book(ctx, "alice", validBooking())
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	req := validBooking()
	req.Name = "Juana Dela Cruz"
	req.Date = "2026-10-01"
	got, err := svc.Update(ctx, "alice", a.ID, req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Juana Dela Cruz" || got.Date != "2026-10-01" {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.QueueNumber != a.QueueNumber || got.Status != domain.StatusPending {
		t.Fatalf("update touched queue number or status: %+v", got)
	}

	if _, err := svc.Update(ctx, "mallory", a.ID, validBooking()); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("foreign update: want ErrAppointmentNotFound, got %v", err)
	}
	bad := validBooking()
	bad.Email = "nope"
	if _, err := svc.Update(ctx, "alice", a.ID, bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("invalid update: want ErrValidation, got %v", err)
	}
}

func TestCurrent_NilWhenNone_ThenLatestPending(t *testing.T) {
	db := newBookingDB(t)
	svc := NewBookingService(db)
	ctx := context.Background()

	got, err := svc.Current(ctx, "alice")
	if err != nil || got != nil {
		t.Fatalf("empty current: got=%v err=%v; want nil, nil", got, err)
	}

	first, err := svc.Book(ctx, "alice", validBooking())
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	second, err := svc.Book(ctx, "alice", validBooking())
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	got, err = svc.Current(ctx, "alice")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got == nil || got.ID != second.ID {
		t.Fatalf("current = %+v; want latest booking %s", got, second.ID)
	}

	if err := svc.Cancel(ctx, "alice", second.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, err = svc.Current(ctx, "alice")
	if err != nil {
		t.Fatalf("current after cancel: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("current after cancel = %+v; want %s", got, first.ID)
	}
}

func TestIsBusy_FlattenedDriverText(t *testing.T) {
	// Errors that cross a layer which stringifies them lose the driver type;
	// the textual fallback still has to classify them as retryable.
	wrapped := fmt.Errorf("allocate number: %w", errors.New("database is locked (5) (SQLITE_BUSY)"))
	if !isBusy(wrapped) {
		t.Fatalf("wrapped busy text not detected")
	}
	if isBusy(nil) {
		t.Fatalf("nil classified as busy")
	}
	if isBusy(gorm.ErrRecordNotFound) {
		t.Fatalf("record-not-found classified as busy")
	}
	if isBusy(context.DeadlineExceeded) {
		t.Fatalf("deadline expiry classified as busy")
	}
}

func TestListMine_Pagination(t *testing.T) {
	db := newBookingDB(t)
	svc := NewBookingService(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.Book(ctx, "alice", validBooking()); err != nil {
			t.Fatalf("book %d: %v", i, err)
		}
	}
	if _, err := svc.Book(ctx, "bob", validBooking()); err != nil {
		t.Fatalf("book bob: %v", err)
	}

	items, total, err := svc.ListMine(ctx, "alice", 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(items) != 2 {
		t.Fatalf("page 1: total=%d len=%d", total, len(items))
	}

	items, total, err = svc.ListMine(ctx, "alice", 3, 2)
	if err != nil {
		t.Fatalf("list page 3: %v", err)
	}
	if total != 5 || len(items) != 1 {
		t.Fatalf("page 3: total=%d len=%d", total, len(items))
	}

	items, total, err = svc.ListMine(ctx, "carol", 1, 20)
	if err != nil {
		t.Fatalf("list empty owner: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("empty owner: total=%d len=%d", total, len(items))
	}
}
