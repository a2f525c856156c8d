// Package services – BookingService
//
// This file implements BookingService, the queue allocator at the heart of
// the application. Booking an appointment is the one operation that needs
// cross-request atomicity: it reads the global queue counter, checks slot
// capacity, and writes the appointment, and no interleaving of two bookings
// may produce a duplicate queue number or oversell a slot. The whole
// sequence therefore runs inside a single database transaction, wrapped in a
// bounded retry loop for writer conflicts.
//
// Edits and cancellations are single-record writes: they never renumber the
// queue and never restore consumed capacity.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// owner and slot identifiers.
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/civregistry/registrar-backend/internal/domain"
	"github.com/civregistry/registrar-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// dateLayout is the calendar-day wire format for booking dates.
const dateLayout = "2006-01-02"

// BookingService coordinates queue-number allocation, slot accounting, and
// appointment persistence.
type BookingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// MaxRetries bounds the retry loop around the booking transaction when
	// concurrent writers conflict. Values <= 0 default to 3.
	MaxRetries int

	// StoreTimeout caps every store operation; exceeding it surfaces
	// ErrTimeout. Values <= 0 default to 5s.
	StoreTimeout time.Duration
}

// NewBookingService constructs a BookingService with sane defaults.
func NewBookingService(db *gorm.DB) *BookingService {
	return &BookingService{
		DB:           db,
		MaxRetries:   3,
		StoreTimeout: 5 * time.Second,
	}
}

// BookingRequest carries the validated-to-be fields of a booking.
type BookingRequest struct {
	Name    string
	Email   string
	Service string
	Date    string
	Time    string // opaque slot label; empty means "any time"
}

// Book allocates the next queue number and creates a pending appointment for
// ownerID, atomically with respect to every other concurrent booking (not
// just same-slot ones — the queue number is global).
//
// Semantics:
//   - Name, Email, Service, and Date are required; Date must be a calendar
//     date (2006-01-02). Validation failures return ErrValidation before any
//     store write.
//   - If an availability record exists for (Date, Time), one slot is consumed;
//     a record at zero fails with ErrSlotExhausted. A missing record means
//     unconstrained capacity: the booking proceeds and no record is created.
//   - The counter increment, the conditional slot decrement, and the insert
//     commit or roll back together — a failure at any step leaves both the
//     availability record and the appointment set unchanged.
//   - Writer conflicts (SQLite busy/locked) are retried with backoff up to
//     MaxRetries, then surface ErrContention.
func (s *BookingService) Book(ctx context.Context, ownerID string, req BookingRequest) (*domain.Appointment, error) {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "Book",
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.String("slot.date", req.Date),
			attribute.String("slot.time", req.Time),
		),
	)
	defer span.End()

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Service = strings.TrimSpace(req.Service)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	if err := validateBooking(ownerID, req); err != nil {
		return nil, err
	}

	var appt *domain.Appointment
	attempts := s.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}

	for attempt := 0; ; attempt++ {
		opCtx, cancel := s.opContext(ctx)
		err := s.DB.WithContext(opCtx).Transaction(func(tx *gorm.DB) error {
			next, err := repo.NextQueueNumber(tx)
			if err != nil {
				return err
			}

			switch err := repo.DecrementSlot(tx, req.Date, req.Time); {
			case err == nil:
				// One slot consumed.
			case errors.Is(err, repo.ErrNotFound):
				// No record for the key: unconstrained capacity.
			case errors.Is(err, repo.ErrSlotsExhausted):
				return ErrSlotExhausted
			default:
				return err
			}

			a := &domain.Appointment{
				ID:          uuid.NewString(),
				UserID:      ownerID,
				Name:        req.Name,
				Email:       req.Email,
				Service:     req.Service,
				Date:        req.Date,
				Time:        req.Time,
				QueueNumber: next,
				Status:      domain.StatusPending,
				CreatedAt:   time.Now().UTC(),
			}
			if err := repo.CreateAppointment(tx, a); err != nil {
				return err
			}
			appt = a
			return nil
		})
		cancel()

		if err == nil {
			return appt, nil
		}
		if errors.Is(err, ErrSlotExhausted) {
			return nil, ErrSlotExhausted
		}
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		if !isBusy(err) {
			return nil, err
		}
		if attempt+1 >= attempts {
			return nil, ErrContention
		}
		// Brief backoff before retrying a busy transaction.
		time.Sleep(time.Duration(attempt+1) * 25 * time.Millisecond)
	}
}

// Update applies an owner-scoped field patch to an existing appointment.
// It never touches the queue number and never re-validates or restores
// availability: slots are monotonically consumed.
func (s *BookingService) Update(ctx context.Context, ownerID, id string, req BookingRequest) (*domain.Appointment, error) {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.String("appointment.id", id),
		),
	)
	defer span.End()

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Service = strings.TrimSpace(req.Service)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	if err := validateBooking(ownerID, req); err != nil {
		return nil, err
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	err := repo.UpdateAppointment(opCtx, s.DB, ownerID, id, repo.AppointmentPatch{
		Name:    req.Name,
		Email:   req.Email,
		Service: req.Service,
		Date:    req.Date,
		Time:    req.Time,
	})
	if err != nil {
		return nil, s.mapStoreErr(err, ErrAppointmentNotFound)
	}
	return repo.GetAppointment(opCtx, s.DB, ownerID, id)
}

// Cancel marks the owner's appointment cancelled. The queue number stays on
// record for audit and is never reassigned; other appointments keep their
// numbers; slot capacity is not replenished.
func (s *BookingService) Cancel(ctx context.Context, ownerID, id string) error {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "Cancel",
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.String("appointment.id", id),
		),
	)
	defer span.End()

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if err := repo.CancelAppointment(opCtx, s.DB, ownerID, id); err != nil {
		return s.mapStoreErr(err, ErrAppointmentNotFound)
	}
	return nil
}

// Get returns the owner's appointment by id, or ErrAppointmentNotFound.
func (s *BookingService) Get(ctx context.Context, ownerID, id string) (*domain.Appointment, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	a, err := repo.GetAppointment(opCtx, s.DB, ownerID, id)
	if err != nil {
		return nil, s.mapStoreErr(err, ErrAppointmentNotFound)
	}
	return a, nil
}

// ListMine returns a page of the owner's appointments, newest created first,
// plus the total count for pagination metadata.
func (s *BookingService) ListMine(ctx context.Context, ownerID string, page, pageSize int) ([]domain.Appointment, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	total, err := repo.CountAppointmentsByOwner(opCtx, s.DB, ownerID)
	if err != nil {
		return nil, 0, s.mapStoreErr(err, nil)
	}
	if total == 0 {
		return []domain.Appointment{}, 0, nil
	}

	items, err := repo.ListAppointmentsByOwnerPage(opCtx, s.DB, ownerID, offset, pageSize)
	if err != nil {
		return nil, 0, s.mapStoreErr(err, nil)
	}
	return items, total, nil
}

// Current returns the caller's most recently created pending appointment, or
// (nil, nil) when they have none — the handler renders that as a null queue
// number.
func (s *BookingService) Current(ctx context.Context, ownerID string) (*domain.Appointment, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	a, err := repo.LatestPendingByOwner(opCtx, s.DB, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, s.mapStoreErr(err, nil)
	}
	return a, nil
}

// Queue returns every pending appointment ordered by ascending queue number —
// the global first-come-first-served order shown on the admin dashboard.
func (s *BookingService) Queue(ctx context.Context) ([]domain.Appointment, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	out, err := repo.ListPendingAppointments(opCtx, s.DB)
	if err != nil {
		return nil, s.mapStoreErr(err, nil)
	}
	return out, nil
}

// opContext derives a deadline-bounded context for a store operation.
func (s *BookingService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.StoreTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// mapStoreErr translates repo/driver errors into service sentinels. notFound
// may be nil when the caller has no not-found case.
func (s *BookingService) mapStoreErr(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case notFound != nil && errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case isTimeout(err):
		return ErrTimeout
	default:
		return err
	}
}

// validateBooking rejects incomplete or malformed booking input before any
// store write. Time is optional ("any time"); everything else is required.
func validateBooking(ownerID string, req BookingRequest) error {
	if ownerID == "" || req.Name == "" || req.Email == "" || req.Service == "" || req.Date == "" {
		return ErrValidation
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return ErrValidation
	}
	if _, err := time.Parse(dateLayout, req.Date); err != nil {
		return ErrValidation
	}
	return nil
}

// isBusy reports whether err is a transient SQLite writer conflict worth
// retrying. The driver's numeric result code is authoritative; the text match
// is a fallback for errors that reach us already flattened to a string.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var se *gosqlite.Error
	if errors.As(err, &se) {
		// Extended result codes (e.g. SQLITE_BUSY_SNAPSHOT) carry the
		// primary code in the low byte.
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

// isTimeout reports whether err is a store deadline expiry.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
