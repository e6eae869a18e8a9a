package auth

import (
	"fmt"
	"time"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

// Operator is a point-of-sale user. The password hash never leaves the
// package.
type Operator struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoginRequest carries the login form.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=60"`
	Password string `json:"password" validate:"required,max=200"`
}

// CreateOperatorRequest registers a new operator.
type CreateOperatorRequest struct {
	Username string `json:"username" validate:"required,alphanum,max=60"`
	Name     string `json:"name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8,max=200"`
}

var (
	// ErrInvalidCredentials covers both unknown username and wrong password.
	ErrInvalidCredentials = fmt.Errorf("auth: %w: invalid credentials", httpx.ErrUnauthorized)
	// ErrOperatorNotFound indicates a missing operator.
	ErrOperatorNotFound = fmt.Errorf("auth: operator %w", httpx.ErrNotFound)
	// ErrDuplicateUsername rejects reuse of a username.
	ErrDuplicateUsername = fmt.Errorf("auth: %w: username taken", httpx.ErrDuplicate)
	// ErrOperatorInactive blocks sign-in of deactivated operators.
	ErrOperatorInactive = fmt.Errorf("auth: %w: operator deactivated", httpx.ErrForbidden)
)
