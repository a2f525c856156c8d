// Admin HTTP handlers.
//
// This file exposes the administrative surface, mounted behind RequireAuth +
// RequireAdmin:
//   - POST   /admin/services            (create catalog entry)
//   - PUT    /admin/services/{id}       (update catalog entry)
//   - DELETE /admin/services/{id}       (delete catalog entry)
//   - GET    /admin/availability        (list slot capacity)
//   - POST   /admin/availability        (upsert capacity by date+time)
//   - DELETE /admin/availability/{id}   (remove a capacity record)
//
// Deleting an availability record removes the capacity constraint for its
// (date, time) key; it does not touch existing appointments.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civregistry/registrar-backend/internal/domain"
	"github.com/civregistry/registrar-backend/internal/services"
)

//
// DTOs
//

// UpsertServiceRequest is the JSON payload for creating or updating a catalog
// entry.
type UpsertServiceRequest struct {
	// ID optionally fixes the entry's identifier on create; ignored on update.
	ID string `json:"id" example:"birth-cert"`
	// Name is the human-readable service name (title-cased server-side).
	Name string `json:"name" binding:"required" example:"Birth Certificate"`
	// Requirements lists the documents applicants must bring.
	Requirements []string `json:"requirements"`
}

// UpsertAvailabilityRequest is the JSON payload for setting slot capacity.
type UpsertAvailabilityRequest struct {
	// Date is the slot day (2006-01-02).
	Date string `json:"date" binding:"required" example:"2026-09-15"`
	// Time optionally names the slot within the day.
	Time string `json:"time" example:"09:00 AM"`
	// Slots is the capacity to set; omitted means the configured default.
	Slots *int `json:"slots" example:"10"`
}

// ListAvailabilityResponse wraps all availability records.
type ListAvailabilityResponse struct {
	Availability []domain.Availability `json:"availability"`
}

// failAvailability maps availability-service sentinels onto the HTTP error
// taxonomy.
func failAvailability(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "a valid date and non-negative slots are required")
	case errors.Is(err, services.ErrAvailabilityNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "availability record not found")
	case errors.Is(err, services.ErrTimeout):
		fail(c, http.StatusGatewayTimeout, ErrCodeTimeout, "storage deadline exceeded")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Catalog administration
//

// CreateService godoc
// @ID          createService
// @Summary     Create a registrar service (admin)
// @Description Adds a catalog entry. An omitted id gets a generated one.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.UpsertServiceRequest  true  "Service payload"
//
// @Success     201  {object}  domain.Service
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Admin access required"
// @Router      /admin/services [post]
func (h *Handlers) CreateService(c *gin.Context) {
	var req UpsertServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	svc, err := h.catalogSvc.Create(c.Request.Context(), req.ID, req.Name, req.Requirements)
	if err != nil {
		failCatalog(c, err)
		return
	}
	ok(c, http.StatusCreated, svc)
}

// UpdateService godoc
// @ID          updateService
// @Summary     Update a registrar service (admin)
// @Description Overwrites name and requirements for an existing catalog entry.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Service ID"  example(birth-cert)
// @Param       body  body  handlers.UpsertServiceRequest  true  "Updated fields"
//
// @Success     200  {object}  domain.Service
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Service not found"
// @Router      /admin/services/{id} [put]
func (h *Handlers) UpdateService(c *gin.Context) {
	var req UpsertServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	svc, err := h.catalogSvc.Update(c.Request.Context(), c.Param("id"), req.Name, req.Requirements)
	if err != nil {
		failCatalog(c, err)
		return
	}
	ok(c, http.StatusOK, svc)
}

// DeleteService godoc
// @ID          deleteService
// @Summary     Delete a registrar service (admin)
// @Description Removes a catalog entry. Existing appointments referencing it are unaffected.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Service ID"  example(birth-cert)
//
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Service not found"
// @Router      /admin/services/{id} [delete]
func (h *Handlers) DeleteService(c *gin.Context) {
	if err := h.catalogSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failCatalog(c, err)
		return
	}
	noContent(c)
}

//
// Availability administration
//

// ListAvailability godoc
// @ID          listAvailability
// @Summary     List slot capacity (admin)
// @Description Returns all availability records ordered by date then time.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  handlers.ListAvailabilityResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Admin access required"
// @Router      /admin/availability [get]
func (h *Handlers) ListAvailability(c *gin.Context) {
	out, err := h.availSvc.List(c.Request.Context())
	if err != nil {
		failAvailability(c, err)
		return
	}
	ok(c, http.StatusOK, ListAvailabilityResponse{Availability: out})
}

// UpsertAvailability godoc
// @ID          upsertAvailability
// @Summary     Set slot capacity (admin)
// @Description Merges capacity by (date, time): a missing key creates a record, an existing one gets its slots overwritten. Omitted slots apply the configured default.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.UpsertAvailabilityRequest  true  "Capacity payload"
//
// @Success     200  {object}  domain.Availability
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Admin access required"
// @Router      /admin/availability [post]
func (h *Handlers) UpsertAvailability(c *gin.Context) {
	var req UpsertAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.availSvc.Upsert(c.Request.Context(), req.Date, req.Time, req.Slots)
	if err != nil {
		failAvailability(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// DeleteAvailability godoc
// @ID          deleteAvailability
// @Summary     Remove a capacity record (admin)
// @Description Deletes an availability record, lifting the capacity constraint for its slot. Existing appointments are unaffected.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Availability ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Availability record not found"
// @Router      /admin/availability/{id} [delete]
func (h *Handlers) DeleteAvailability(c *gin.Context) {
	if err := h.availSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failAvailability(c, err)
		return
	}
	noContent(c)
}
