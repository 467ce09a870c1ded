package repository

import (
	"context"
	"errors"
	"time"

	"nexus-pm/backend/internal/user/domain"
)

// ErrDuplicateEmail is returned by Create when the email is already registered
// (case-insensitive unique index).
var ErrDuplicateEmail = errors.New("email already registered")

// Repository defines persistence for user accounts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateAvatarURL(ctx context.Context, id, avatarURL string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
}
