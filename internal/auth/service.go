package auth

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmapos/farmapos/internal/platform/httpx"
	"github.com/farmapos/farmapos/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, o Operator) (*Operator, error)
	Get(ctx context.Context, id int64) (*Operator, error)
	GetByUsername(ctx context.Context, username string) (*Operator, error)
}

// Service provides operator sign-in and registration.
type Service struct {
	repo     RepositoryPort
	sessions *shared.SessionManager
	validate *validator.Validate
}

// NewService constructs the auth service.
func NewService(repo RepositoryPort, sessions *shared.SessionManager) *Service {
	return &Service{repo: repo, sessions: sessions, validate: validator.New()}
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*shared.Session, *Operator, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, fmt.Errorf("auth: %w: %v", httpx.ErrValidation, err)
	}
	operator, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		// Hide whether the username exists.
		return nil, nil, ErrInvalidCredentials
	}
	if !operator.Active {
		return nil, nil, ErrOperatorInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	sess, err := s.sessions.Create(ctx, operator.ID, operator.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: create session: %w", err)
	}
	return sess, operator, nil
}

// Logout destroys a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// Register creates a new operator with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, req CreateOperatorRequest) (*Operator, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("auth: %w: %v", httpx.ErrValidation, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.Create(ctx, Operator{
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: string(hash),
	})
}

// Operator fetches an operator profile.
func (s *Service) Operator(ctx context.Context, id int64) (*Operator, error) {
	return s.repo.Get(ctx, id)
}
