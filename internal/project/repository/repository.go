package repository

import (
	"context"
	"errors"

	membershipdomain "nexus-pm/backend/internal/membership/domain"
	"nexus-pm/backend/internal/project/domain"
)

// ErrDuplicateKey is returned by CreateWithLead when the project key is already
// taken (case-insensitive unique index).
var ErrDuplicateKey = errors.New("project key already exists")

// Repository defines persistence for projects.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	GetByKey(ctx context.Context, key string) (*domain.Project, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Project, error)
	// CreateWithLead inserts the project and its LEAD membership in one
	// transaction, so a project can never exist without a lead member.
	CreateWithLead(ctx context.Context, p *domain.Project, lead *membershipdomain.Membership) error
	Update(ctx context.Context, p *domain.Project) error
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	// Delete removes the project; sprints, issues, and memberships cascade.
	Delete(ctx context.Context, id string) error
}
