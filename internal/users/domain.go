package users

import (
	"errors"
	"time"

	"github.com/sitedesk-erp/sitedesk/internal/shared"
)

// User represents a staff account able to raise or decide requisitions.
type User struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         shared.Role `json:"role"`
	IsActive     bool        `json:"is_active"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Actor converts the account to the identity attached to request contexts.
func (u User) Actor() shared.Actor {
	return shared.Actor{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("users: invalid input")
	// ErrDuplicate indicates the email is already registered.
	ErrDuplicate = errors.New("users: email already registered")
)
