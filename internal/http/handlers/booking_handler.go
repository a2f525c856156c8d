// Appointment HTTP handlers.
//
// This file exposes REST endpoints for appointment resources:
//   - POST   /appointments        (book; allocates the next queue number)
//   - GET    /appointments        (list own, paginated, ETag support)
//   - GET    /appointments/{id}   (fetch own)
//   - PUT    /appointments/{id}   (edit own; queue number untouched)
//   - DELETE /appointments/{id}   (cancel own; number never reassigned)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses
// and idempotent replays).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civregistry/registrar-backend/internal/domain"
	"github.com/civregistry/registrar-backend/internal/http/middleware"
	"github.com/civregistry/registrar-backend/internal/repo"
	"github.com/civregistry/registrar-backend/internal/services"
	"github.com/civregistry/registrar-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AuthService defines the identity operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AuthService interface {
	// Signup registers a user and returns a signed token plus the user row.
	Signup(ctx context.Context, name, email, password string) (string, *domain.User, error)
	// Login verifies credentials and returns a signed token plus the user row.
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	// Me returns the user row for an authenticated caller.
	Me(ctx context.Context, userID string) (*domain.User, error)
}

// BookingService defines appointment lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type BookingService interface {
	// Book allocates the next queue number and creates a pending appointment.
	Book(ctx context.Context, ownerID string, req services.BookingRequest) (*domain.Appointment, error)
	// Update applies an owner-scoped field patch; the queue number is untouched.
	Update(ctx context.Context, ownerID, id string, req services.BookingRequest) (*domain.Appointment, error)
	// Cancel marks the owner's appointment cancelled without renumbering.
	Cancel(ctx context.Context, ownerID, id string) error
	// Get returns the owner's appointment by id.
	Get(ctx context.Context, ownerID, id string) (*domain.Appointment, error)
	// ListMine returns a page of the owner's appointments and the total count.
	ListMine(ctx context.Context, ownerID string, page, pageSize int) ([]domain.Appointment, int64, error)
	// Current returns the owner's latest pending appointment, or (nil, nil).
	Current(ctx context.Context, ownerID string) (*domain.Appointment, error)
	// Queue returns all pending appointments in ascending queue-number order.
	Queue(ctx context.Context) ([]domain.Appointment, error)
}

// CatalogService defines service-catalog operations consumed by HTTP handlers.
type CatalogService interface {
	// List returns the catalog, seeding defaults on the first empty read.
	List(ctx context.Context) ([]domain.Service, error)
	// Get returns a catalog entry by id.
	Get(ctx context.Context, id string) (*domain.Service, error)
	// Create adds a catalog entry.
	Create(ctx context.Context, id, name string, requirements []string) (*domain.Service, error)
	// Update overwrites name and requirements for an existing entry.
	Update(ctx context.Context, id, name string, requirements []string) (*domain.Service, error)
	// Delete removes a catalog entry by id.
	Delete(ctx context.Context, id string) error
}

// AvailabilityService defines slot-capacity operations consumed by HTTP
// handlers.
type AvailabilityService interface {
	// Upsert merges capacity by (date, time); nil slots applies the default.
	Upsert(ctx context.Context, date, timeLabel string, slots *int) (*domain.Availability, error)
	// List returns all availability records ordered by date then time.
	List(ctx context.Context) ([]domain.Availability, error)
	// Delete removes an availability record by id.
	Delete(ctx context.Context, id string) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for auth, appointments, the catalog, and
// availability. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	authSvc    AuthService
	bookingSvc BookingService
	catalogSvc CatalogService
	availSvc   AvailabilityService

	// IdemTTL is the validity window for Idempotency-Key replays on booking.
	// Values <= 0 default to 24h.
	IdemTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(authSvc AuthService, bookingSvc BookingService, catalogSvc CatalogService, availSvc AvailabilityService) *Handlers {
	return &Handlers{
		authSvc:    authSvc,
		bookingSvc: bookingSvc,
		catalogSvc: catalogSvc,
		availSvc:   availSvc,
		IdemTTL:    24 * time.Hour,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it).
// It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

//
// DTOs
//

// BookAppointmentRequest is the JSON payload for booking an appointment.
type BookAppointmentRequest struct {
	// Name is the applicant's full name.
	Name string `json:"name" binding:"required" example:"Juan dela Cruz"`
	// Email is the applicant's contact address.
	Email string `json:"email" binding:"required" example:"juan@example.com"`
	// Service is the catalog entry being applied for.
	Service string `json:"service" binding:"required" example:"birth-cert"`
	// Date is the appointment day (2006-01-02).
	Date string `json:"date" binding:"required" example:"2026-09-15"`
	// Time optionally names the slot within the day.
	Time string `json:"time" example:"09:00 AM"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListAppointmentsResponse wraps a page of appointments and pagination
// information.
type ListAppointmentsResponse struct {
	Appointments []domain.Appointment `json:"appointments"`
	Pagination   Pagination           `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// bookingOutcome maps a booking error onto the bounded metric label set.
func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, services.ErrValidation):
		return "rejected"
	case errors.Is(err, services.ErrSlotExhausted):
		return "slot_exhausted"
	case errors.Is(err, services.ErrContention):
		return "contention"
	case errors.Is(err, services.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// failBooking maps service-layer sentinels onto the HTTP error taxonomy.
func failBooking(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, email, service and a valid date are required")
	case errors.Is(err, services.ErrAppointmentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "appointment not found")
	case errors.Is(err, services.ErrSlotExhausted):
		fail(c, http.StatusConflict, ErrCodeSlotExhausted, "no slots remaining for the requested date and time")
	case errors.Is(err, services.ErrContention):
		fail(c, http.StatusConflict, ErrCodeContention, "booking contention, please retry")
	case errors.Is(err, services.ErrTimeout):
		fail(c, http.StatusGatewayTimeout, ErrCodeTimeout, "storage deadline exceeded")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// db exposes the underlying GORM handle when the booking service is the
// concrete implementation (used for ETag stats and idempotency records).
func (h *Handlers) db() *gorm.DB {
	if svc, ok := h.bookingSvc.(*services.BookingService); ok {
		return svc.DB
	}
	return nil
}

func (h *Handlers) idemTTL() time.Duration {
	if h.IdemTTL > 0 {
		return h.IdemTTL
	}
	return 24 * time.Hour
}

//
// Handlers
//

// BookAppointment godoc
// @ID          bookAppointment
// @Summary     Book an appointment
// @Description Allocates the next queue number and creates a pending appointment. Supports Idempotency-Key replays.
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       body             body    handlers.BookAppointmentRequest  true  "Booking payload"
//
// @Success     201  {object}  domain.Appointment
// @Success     200  {object}  domain.Appointment "Idempotent replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse  "Slot exhausted or contention"
// @Failure     504  {object}  handlers.ErrorResponse  "Storage timeout"
// @Router      /appointments [post]
func (h *Handlers) BookAppointment(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	// Idempotent replay: a stored key returns the original appointment.
	key, hasKey := middleware.GetIdempotencyKey(c)
	db := h.db()
	if hasKey && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, uid, key, time.Now().UTC()); err == nil && rec != nil {
			if appt, gerr := h.bookingSvc.Get(ctx, uid, rec.AppointmentID); gerr == nil {
				middleware.ObserveBookingOutcome("replayed")
				ok(c, http.StatusOK, appt)
				return
			}
		}
	}

	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.ObserveBookingOutcome("rejected")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	appt, err := h.bookingSvc.Book(ctx, uid, services.BookingRequest{
		Name:    req.Name,
		Email:   req.Email,
		Service: req.Service,
		Date:    req.Date,
		Time:    req.Time,
	})
	if err != nil {
		middleware.ObserveBookingOutcome(bookingOutcome(err))
		failBooking(c, err)
		return
	}
	middleware.ObserveBookingOutcome("created")

	// Record the key → appointment mapping for future replays (best effort).
	if hasKey && db != nil {
		_, _ = repo.CreateIdempotency(ctx, db, uid, key, appt.ID, http.StatusCreated, h.idemTTL())
	}

	ok(c, http.StatusCreated, appt)
}

// ListAppointments godoc
// @ID          listAppointments
// @Summary     List own appointments (paginated)
// @Description Returns a page of the caller's appointments, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListAppointmentsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /appointments [get]
func (h *Handlers) ListAppointments(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		count, maxTS, err := repo.AppointmentsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"appointments:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	// Fetch page.
	items, total, err := h.bookingSvc.ListMine(ctx, uid, page, pageSize)
	if err != nil {
		failBooking(c, err)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListAppointmentsResponse{
		Appointments: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// GetAppointment godoc
// @ID          getAppointment
// @Summary     Fetch one of the caller's appointments
// @Description Returns the appointment only when it belongs to the caller; anyone else sees 404.
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Appointment ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Appointment
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Appointment not found"
// @Router      /appointments/{id} [get]
func (h *Handlers) GetAppointment(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "appointment id must be a UUID")
		return
	}

	appt, err := h.bookingSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failBooking(c, err)
		return
	}
	ok(c, http.StatusOK, appt)
}

// UpdateAppointment godoc
// @ID          updateAppointment
// @Summary     Edit an appointment
// @Description Updates the caller's appointment fields. The queue number is never changed and capacity is not re-checked.
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Appointment ID (UUID)"  format(uuid)
// @Param       body  body  handlers.BookAppointmentRequest  true  "Updated fields"
//
// @Success     200  {object} domain.Appointment
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Appointment not found"
// @Router      /appointments/{id} [put]
func (h *Handlers) UpdateAppointment(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "appointment id must be a UUID")
		return
	}

	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	appt, err := h.bookingSvc.Update(c.Request.Context(), userID(c), id, services.BookingRequest{
		Name:    req.Name,
		Email:   req.Email,
		Service: req.Service,
		Date:    req.Date,
		Time:    req.Time,
	})
	if err != nil {
		failBooking(c, err)
		return
	}
	ok(c, http.StatusOK, appt)
}

// CancelAppointment godoc
// @ID          cancelAppointment
// @Summary     Cancel an appointment
// @Description Marks the caller's appointment cancelled. Its queue number stays on record and is never reassigned; other appointments keep their numbers.
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Appointment ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Appointment not found"
// @Router      /appointments/{id} [delete]
func (h *Handlers) CancelAppointment(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "appointment id must be a UUID")
		return
	}

	if err := h.bookingSvc.Cancel(c.Request.Context(), userID(c), id); err != nil {
		failBooking(c, err)
		return
	}
	noContent(c)
}
