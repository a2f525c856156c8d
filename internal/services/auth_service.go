// Package services – AuthService
//
// This file implements the identity surface: signup, login, current-user
// lookup, bearer-token verification, and the explicit admin provisioning
// step run once at process start. Passwords are bcrypt-hashed; sessions are
// stateless JWTs carrying {userId, email, role}.
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/civregistry/registrar-backend/internal/domain"
	"github.com/civregistry/registrar-backend/internal/repo"
)

// ErrInvalidToken is returned when a bearer token fails parsing, signature
// verification, or expiry checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the JWT payload issued at signup/login.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies credentials and provisions the admin
// account.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// Secret signs JWTs (HMAC-SHA256).
	Secret []byte

	// TokenTTL is the token lifetime. Values <= 0 default to 7 days.
	TokenTTL time.Duration

	// BcryptCost is the password hashing cost. Values <= 0 use the bcrypt
	// default.
	BcryptCost int

	// StoreTimeout caps store operations. Values <= 0 default to 5s.
	StoreTimeout time.Duration
}

// NewAuthService constructs an AuthService with sane defaults.
func NewAuthService(db *gorm.DB, secret string) *AuthService {
	return &AuthService{
		DB:           db,
		Secret:       []byte(secret),
		TokenTTL:     7 * 24 * time.Hour,
		BcryptCost:   bcrypt.DefaultCost,
		StoreTimeout: 5 * time.Second,
	}
}

// Signup registers a new user and returns a signed token plus the user row.
// Role defaults to client; signup never grants admin.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (string, *domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return "", nil, ErrValidation
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", nil, ErrValidation
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return "", nil, err
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	u, err := repo.CreateUser(opCtx, s.DB, name, email, string(hash), domain.RoleClient)
	if err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			return "", nil, ErrEmailTaken
		}
		if isTimeout(err) {
			return "", nil, ErrTimeout
		}
		return "", nil, err
	}

	tok, err := s.issue(u)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

// Login verifies credentials and returns a signed token plus the user row.
// Unknown email and wrong password both surface ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, ErrValidation
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	u, err := repo.GetUserByEmail(opCtx, s.DB, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		if isTimeout(err) {
			return "", nil, ErrTimeout
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	tok, err := s.issue(u)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

// Me returns the user row for an authenticated caller.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	u, err := repo.GetUserByID(opCtx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return u, nil
}

// Verify parses and validates a bearer token, returning its claims.
func (s *AuthService) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AdminConfig carries the provisioning inputs for EnsureAdmin.
type AdminConfig struct {
	Name     string
	Email    string
	Password string
	// Reconcile allows rewriting an existing admin's credential. Without it
	// the provisioning step only creates the account or promotes the role —
	// it never silently resets a password on restart.
	Reconcile bool
}

// EnsureAdmin provisions the administrator account idempotently. Invoked
// once at process initialization:
//   - no user for the email: create it with role admin;
//   - user exists with role admin: no-op unless Reconcile is set;
//   - user exists with another role: promote to admin (password untouched
//     unless Reconcile is set).
func (s *AuthService) EnsureAdmin(ctx context.Context, cfg AdminConfig) error {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" || cfg.Password == "" {
		return ErrValidation
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	existing, err := repo.GetUserByEmail(opCtx, s.DB, email)
	switch {
	case err == nil:
		if existing.Role == domain.RoleAdmin && !cfg.Reconcile {
			return nil
		}
		hash := ""
		if cfg.Reconcile {
			h, herr := bcrypt.GenerateFromPassword([]byte(cfg.Password), s.cost())
			if herr != nil {
				return herr
			}
			hash = string(h)
		}
		return repo.PromoteUser(opCtx, s.DB, email, domain.RoleAdmin, hash)
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, herr := bcrypt.GenerateFromPassword([]byte(cfg.Password), s.cost())
		if herr != nil {
			return herr
		}
		name := cfg.Name
		if name == "" {
			name = "Administrator"
		}
		_, cerr := repo.CreateUser(opCtx, s.DB, name, email, string(hash), domain.RoleAdmin)
		return cerr
	default:
		if isTimeout(err) {
			return ErrTimeout
		}
		return err
	}
}

// issue signs a token for u.
func (s *AuthService) issue(u *domain.User) (string, error) {
	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	now := time.Now().UTC()
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   u.ID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

func (s *AuthService) cost() int {
	if s.BcryptCost > 0 {
		return s.BcryptCost
	}
	return bcrypt.DefaultCost
}

func (s *AuthService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.StoreTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(ctx, d)
}
