package repository

import (
	"context"

	"nexus-pm/backend/internal/activity/domain"
)

// Repository defines persistence for project activity records.
type Repository interface {
	Create(ctx context.Context, a *domain.Activity) error
	ListByProject(ctx context.Context, projectID string, limit int) ([]*domain.Activity, error)
}
