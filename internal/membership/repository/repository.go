package repository

import (
	"context"
	"errors"

	"nexus-pm/backend/internal/membership/domain"
)

// ErrDuplicateMember is returned by Create when a membership row already exists
// for the (project, user) pair.
var ErrDuplicateMember = errors.New("user is already a member of this project")

// Repository defines persistence for project memberships.
type Repository interface {
	GetByProjectAndUser(ctx context.Context, projectID, userID string) (*domain.Membership, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Membership, error)
	Create(ctx context.Context, m *domain.Membership) error
	Delete(ctx context.Context, projectID, userID string) error
	UpdateRole(ctx context.Context, projectID, userID string, role domain.Role) error
}
