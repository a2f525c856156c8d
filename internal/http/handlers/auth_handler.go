// Authentication HTTP handlers.
//
// This file exposes REST endpoints for identity:
//   - POST /auth/signup  (register, role always client)
//   - POST /auth/login   (verify credentials)
//   - GET  /auth/me      (current user)
//
// Signup and login return a signed bearer token plus the user resource;
// passwords never appear in responses.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civregistry/registrar-backend/internal/domain"
	"github.com/civregistry/registrar-backend/internal/services"
)

// SignupRequest is the JSON payload for registering a user.
type SignupRequest struct {
	// Name is the user's display name.
	Name string `json:"name" binding:"required" example:"Juan dela Cruz"`
	// Email must be unique across users.
	Email string `json:"email" binding:"required" example:"juan@example.com"`
	// Password is stored only as a bcrypt hash.
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the JSON payload for logging in.
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"juan@example.com"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse wraps a signed token and the user it identifies.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// failAuth maps identity-service sentinels onto the HTTP error taxonomy.
func failAuth(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, email and password are required")
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusConflict, ErrCodeEmailTaken, "email already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid email or password")
	case errors.Is(err, services.ErrTimeout):
		fail(c, http.StatusGatewayTimeout, ErrCodeTimeout, "storage deadline exceeded")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// Signup godoc
// @ID          signup
// @Summary     Register a new user
// @Description Creates a client account and returns a signed token. Admin accounts are provisioned out of band, never via signup.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SignupRequest  true  "Signup payload"
//
// @Success     201  {object}  handlers.AuthResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already registered"
// @Router      /auth/signup [post]
func (h *Handlers) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, email and a password of at least 8 characters are required")
		return
	}

	token, user, err := h.authSvc.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		failAuth(c, err)
		return
	}
	ok(c, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Verifies credentials and returns a signed token. Unknown email and wrong password are indistinguishable.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Login payload"
//
// @Success     200  {object}  handlers.AuthResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password are required")
		return
	}

	token, user, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failAuth(c, err)
		return
	}
	ok(c, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Description Returns the authenticated caller's user resource.
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.authSvc.Me(c.Request.Context(), userID(c))
	if err != nil {
		failAuth(c, err)
		return
	}
	ok(c, http.StatusOK, user)
}
