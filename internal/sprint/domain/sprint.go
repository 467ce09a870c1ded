package domain

import (
	"errors"
	"time"
)

// Sprint is a time-boxed iteration within a project. At most one sprint per
// project may be ACTIVE at any time.
type Sprint struct {
	ID        string
	ProjectID string
	Name      string
	Goal      string
	Status    Status
	StartDate *time.Time
	EndDate   *time.Time
	// Velocity is the sum of story points of RESOLVED/CLOSED issues in the
	// sprint, snapshotted at completion and never recomputed.
	Velocity    *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

type Status string

const (
	StatusPlanned   Status = "PLANNED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Validate checks required fields before persisting.
func (s *Sprint) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.ProjectID == "" {
		return errors.New("project is required")
	}
	return nil
}
