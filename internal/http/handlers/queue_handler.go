// Queue HTTP handlers.
//
// This file exposes the queue-position endpoints:
//   - GET /queue/current  (the caller's latest pending number, or null)
//   - GET /queue/all      (admin: every pending appointment, FIFO order)
//
// The queue is ordered by ascending queue number, which is allocated
// atomically at booking time, so the listing is the global
// first-come-first-served order.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civregistry/registrar-backend/internal/domain"
	"github.com/civregistry/registrar-backend/internal/repo"
)

// CurrentQueueResponse reports the caller's active position in the queue.
// QueueNumber is null when the caller has no pending appointment.
type CurrentQueueResponse struct {
	QueueNumber *int64              `json:"queueNumber"`
	Appointment *domain.Appointment `json:"appointment,omitempty"`
}

// QueueResponse wraps the full pending queue for the admin dashboard.
type QueueResponse struct {
	Queue []domain.Appointment `json:"queue"`
	Total int                  `json:"total"`
}

// CurrentQueue godoc
// @ID          currentQueue
// @Summary     Current queue position
// @Description Returns the caller's most recently booked pending appointment and its queue number, or a null number when none is pending.
// @Tags        Queue
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  handlers.CurrentQueueResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /queue/current [get]
func (h *Handlers) CurrentQueue(c *gin.Context) {
	appt, err := h.bookingSvc.Current(c.Request.Context(), userID(c))
	if err != nil {
		failBooking(c, err)
		return
	}
	if appt == nil {
		ok(c, http.StatusOK, CurrentQueueResponse{QueueNumber: nil})
		return
	}
	ok(c, http.StatusOK, CurrentQueueResponse{QueueNumber: &appt.QueueNumber, Appointment: appt})
}

// FullQueue godoc
// @ID          fullQueue
// @Summary     Full pending queue (admin)
// @Description Returns every pending appointment ordered by ascending queue number. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Queue
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.QueueResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     403  {object}  handlers.ErrorResponse  "Admin access required"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /queue/all [get]
func (h *Handlers) FullQueue(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		count, maxTS, err := repo.QueueStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"queue:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	queue, err := h.bookingSvc.Queue(ctx)
	if err != nil {
		failBooking(c, err)
		return
	}
	ok(c, http.StatusOK, QueueResponse{Queue: queue, Total: len(queue)})
}
