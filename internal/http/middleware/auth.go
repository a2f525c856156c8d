// Package middleware – bearer-token authentication.
//
// This file implements JWT authentication for the API. RequireAuth parses the
// Authorization header, verifies the token through a narrow TokenVerifier
// contract, and stashes the caller's identity ("userID", "userEmail", "role")
// in the Gin context for downstream handlers. RequireAdmin layers a role check
// on top for the admin surface.
//
// Design goals:
//   - Keep verification pluggable: middleware depends on a function type, not
//     on the auth service or its JWT library.
//   - Unauthenticated and unauthorized responses use the same envelope shape
//     as handler errors (request_id, code, message).
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Identity is the authenticated caller as resolved from a bearer token.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// TokenVerifier validates a raw bearer token and returns the caller identity.
// Implementations must reject expired, malformed, or badly signed tokens with
// a non-nil error.
type TokenVerifier func(token string) (Identity, error)

// Context keys set by RequireAuth for downstream consumers.
const (
	ctxKeyUserID    = "userID"
	ctxKeyUserEmail = "userEmail"
	ctxKeyUserRole  = "role"
)

// RoleFromCtx returns the authenticated caller's role, or "" when the request
// is unauthenticated.
func RoleFromCtx(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserRole); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RequireAuth authenticates the request via "Authorization: Bearer <token>".
// On success it stores the identity in the context and continues; otherwise it
// aborts with 401 and a structured envelope.
func RequireAuth(verify TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		id, err := verify(raw)
		if err != nil || id.UserID == "" {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		c.Set(ctxKeyUserID, id.UserID)
		c.Set(ctxKeyUserEmail, id.Email)
		c.Set(ctxKeyUserRole, id.Role)
		c.Next()
	}
}

// RequireAdmin allows only callers whose authenticated role equals adminRole.
// It must be mounted after RequireAuth.
func RequireAdmin(adminRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if RoleFromCtx(c) != adminRole {
			abortAuth(c, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header value, accepting
// the "Bearer" scheme case-insensitively. Returns "" when absent or malformed.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// abortAuth writes the standard error envelope without importing the handlers
// package (which would create an import cycle).
func abortAuth(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       code,
		"message":    msg,
	})
}
