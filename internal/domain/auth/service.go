// Package auth implements dashboard registration and login: tenant creation,
// password hashing, and JWT issuance.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	pkgauth "github.com/clariohq/clario/pkg/auth"
	"github.com/clariohq/clario/pkg/uuid"
)

// ErrInvalidCredentials is returned by Login for a wrong email or password.
// A single error for both cases avoids leaking whether an email exists.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrEmailAlreadyExists is returned by Register when the email is taken.
var ErrEmailAlreadyExists = errors.New("auth: email already registered")

// RegisterInput creates a new tenant with its first user.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	TenantName  string
}

// LoginInput holds login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// Result is returned after a successful Register or Login. Token is a signed
// JWT carrying the user and tenant claims.
type Result struct {
	Token    string
	UserID   string
	TenantID string
}

// Service implements the authentication operations.
type Service struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewService creates an auth Service.
func NewService(db *sql.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log}
}

// Register creates a tenant and its first user atomically, then issues a JWT.
// The password is hashed with bcrypt; plaintext is never stored.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" || strings.TrimSpace(input.TenantName) == "" {
		return nil, errors.New("auth: email, password and tenant name are required")
	}

	hash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hashing password: %w", err)
	}

	tenantID := uuid.NewV7().String()
	userID := uuid.NewV7().String()
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)
	`, tenantID, strings.TrimSpace(input.TenantName), now); err != nil {
		return nil, fmt.Errorf("auth: creating tenant: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, password_hash, display_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, tenantID, email, hash, input.DisplayName, now); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("auth: creating user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("auth: committing registration: %w", err)
	}

	token, err := pkgauth.GenerateJWT(userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("auth: generating token: %w", err)
	}

	s.log.Info().Str("tenant_id", tenantID).Str("user_id", userID).Msg("tenant registered")
	return &Result{Token: token, UserID: userID, TenantID: tenantID}, nil
}

// Login verifies credentials and issues a JWT. Any failure — unknown email,
// wrong password, query error — surfaces as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, input LoginInput) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var userID, tenantID, passwordHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, password_hash FROM users WHERE email = ? LIMIT 1
	`, email).Scan(&userID, &tenantID, &passwordHash)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !pkgauth.VerifyPassword(passwordHash, input.Password) {
		s.log.Info().Str("user_id", userID).Msg("login rejected: wrong password")
		return nil, ErrInvalidCredentials
	}

	token, err := pkgauth.GenerateJWT(userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("auth: generating token: %w", err)
	}
	return &Result{Token: token, UserID: userID, TenantID: tenantID}, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
