// Service catalog HTTP handlers (public surface).
//
// This file exposes the read-only catalog endpoints:
//   - GET /services       (list; seeds defaults on first empty read)
//   - GET /services/{id}  (fetch one)
//
// Write operations on the catalog live on the admin surface (see
// admin_handler.go).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civregistry/registrar-backend/internal/domain"
	"github.com/civregistry/registrar-backend/internal/services"
)

// ListServicesResponse wraps the service catalog.
type ListServicesResponse struct {
	Services []domain.Service `json:"services"`
}

// failCatalog maps catalog-service sentinels onto the HTTP error taxonomy.
func failCatalog(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "a service name is required")
	case errors.Is(err, services.ErrServiceNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "service not found")
	case errors.Is(err, services.ErrTimeout):
		fail(c, http.StatusGatewayTimeout, ErrCodeTimeout, "storage deadline exceeded")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// ListServices godoc
// @ID          listServices
// @Summary     List registrar services
// @Description Returns the catalog ordered by name. An empty catalog is seeded with the default registrar services on first read.
// @Tags        Services
// @Produce     json
//
// @Success     200  {object}  handlers.ListServicesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /services [get]
func (h *Handlers) ListServices(c *gin.Context) {
	out, err := h.catalogSvc.List(c.Request.Context())
	if err != nil {
		failCatalog(c, err)
		return
	}
	ok(c, http.StatusOK, ListServicesResponse{Services: out})
}

// GetService godoc
// @ID          getService
// @Summary     Fetch a registrar service
// @Description Returns a single catalog entry with its document requirements.
// @Tags        Services
// @Produce     json
//
// @Param       id  path  string  true  "Service ID"  example(birth-cert)
//
// @Success     200  {object}  domain.Service
// @Failure     404  {object}  handlers.ErrorResponse  "Service not found"
// @Router      /services/{id} [get]
func (h *Handlers) GetService(c *gin.Context) {
	svc, err := h.catalogSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failCatalog(c, err)
		return
	}
	ok(c, http.StatusOK, svc)
}
