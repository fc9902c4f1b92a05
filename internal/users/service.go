package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/sitedesk-erp/sitedesk/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, fmt.Errorf("%w: id must be positive", ErrValidation)
	}
	return s.repo.GetUser(ctx, id)
}

// CreateInput describes a new account.
type CreateInput struct {
	Email    string
	Name     string
	Role     shared.Role
	Password string
}

// CreateUser registers an account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, in CreateInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !in.Role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	if len(in.Password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		IsActive:     true,
		PasswordHash: string(hash),
	})
}
