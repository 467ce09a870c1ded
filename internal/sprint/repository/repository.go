package repository

import (
	"context"
	"errors"

	"nexus-pm/backend/internal/sprint/domain"
)

var (
	// ErrNotPlanned is returned by Activate when the sprint is not in PLANNED.
	ErrNotPlanned = errors.New("sprint is not planned")
	// ErrActiveSprintExists is returned by Activate when the project already
	// has an active sprint.
	ErrActiveSprintExists = errors.New("project already has an active sprint")
	// ErrNotActive is returned by Complete when the sprint is not ACTIVE.
	ErrNotActive = errors.New("sprint is not active")
	// ErrCompleted is returned by Cancel when the sprint is already COMPLETED.
	ErrCompleted = errors.New("sprint is already completed")
	// ErrActive is returned by Delete when the sprint is still ACTIVE.
	ErrActive = errors.New("sprint is active")
)

// Repository defines persistence for sprints. The workflow operations
// (Activate, Complete, Cancel, Delete) enforce their status preconditions at
// the storage boundary so concurrent callers cannot race past them.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Sprint, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Sprint, error)
	GetActiveByProject(ctx context.Context, projectID string) (*domain.Sprint, error)
	Create(ctx context.Context, s *domain.Sprint) error
	Update(ctx context.Context, s *domain.Sprint) error
	// Activate moves the sprint from PLANNED to ACTIVE. At most one sprint per
	// project can be ACTIVE; a partial unique index backs the transactional
	// check.
	Activate(ctx context.Context, id string) error
	// Complete moves the sprint from ACTIVE to COMPLETED and snapshots its
	// velocity as the story-point sum of RESOLVED/CLOSED issues in the sprint.
	Complete(ctx context.Context, id string) (*domain.Sprint, error)
	// Cancel moves any non-COMPLETED sprint to CANCELLED.
	Cancel(ctx context.Context, id string) error
	// Delete removes a non-ACTIVE sprint and detaches its issues back to the
	// backlog.
	Delete(ctx context.Context, id string) error
}
