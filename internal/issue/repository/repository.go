package repository

import (
	"context"
	"errors"

	"nexus-pm/backend/internal/issue/domain"
)

// ErrProjectNotFound is returned by CreateWithKey when the target project does
// not exist.
var ErrProjectNotFound = errors.New("project not found")

// Repository defines persistence for issues.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	GetByKey(ctx context.Context, projectID, key string) (*domain.Issue, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Issue, error)
	ListBySprint(ctx context.Context, sprintID string) ([]*domain.Issue, error)
	// ListBacklog returns the project's issues with no sprint assigned.
	ListBacklog(ctx context.Context, projectID string) ([]*domain.Issue, error)
	// CreateWithKey allocates the issue's number and key inside one transaction
	// that locks the project row, so concurrent creations in the same project
	// can never produce duplicate keys. The issue's Number and Key fields are
	// filled in on return.
	CreateWithKey(ctx context.Context, i *domain.Issue) error
	Update(ctx context.Context, i *domain.Issue) error
	Delete(ctx context.Context, id string) error
}
