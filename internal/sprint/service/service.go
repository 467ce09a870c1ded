package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	activitydomain "nexus-pm/backend/internal/activity/domain"
	activityrepo "nexus-pm/backend/internal/activity/repository"
	issuedomain "nexus-pm/backend/internal/issue/domain"
	issuerepo "nexus-pm/backend/internal/issue/repository"
	"nexus-pm/backend/internal/platform/rbac"
	"nexus-pm/backend/internal/sprint/domain"
	"nexus-pm/backend/internal/sprint/repository"
)

var (
	// ErrSprintNotFound is returned when the sprint does not exist or the
	// caller cannot see its project.
	ErrSprintNotFound = errors.New("sprint not found")
	// ErrProjectNotFound is returned when the project does not exist or the
	// caller is not a member.
	ErrProjectNotFound = errors.New("project not found")
	// ErrNotPlanned is returned by Start for a sprint not in PLANNED.
	ErrNotPlanned = errors.New("sprint is not planned")
	// ErrSprintAlreadyActive is returned by Start when the project already has
	// an active sprint.
	ErrSprintAlreadyActive = errors.New("project already has an active sprint")
	// ErrSprintNotActive is returned by Complete for a sprint not in ACTIVE.
	ErrSprintNotActive = errors.New("sprint is not active")
	// ErrSprintCompleted is returned by Cancel for a COMPLETED sprint.
	ErrSprintCompleted = errors.New("sprint is already completed")
	// ErrSprintActive is returned by Delete for an ACTIVE sprint.
	ErrSprintActive = errors.New("cannot delete an active sprint")
	// ErrValidation wraps domain validation failures.
	ErrValidation = errors.New("validation failed")
)

// CreateInput carries the fields of a new sprint. Sprints always start PLANNED.
type CreateInput struct {
	ProjectID string
	Name      string
	Goal      string
	StartDate *time.Time
	EndDate   *time.Time
}

// UpdateInput carries a partial sprint edit; nil fields are left unchanged.
type UpdateInput struct {
	Name      *string
	Goal      *string
	StartDate *time.Time
	EndDate   *time.Time
}

// Service owns the sprint workflow. Status preconditions are enforced in the
// repository so two concurrent Start calls cannot both succeed.
type Service struct {
	sprints    repository.Repository
	issues     issuerepo.Repository
	activities activityrepo.Repository
	rbac       *rbac.Checker
	logger     *zap.Logger
}

func NewService(sprints repository.Repository, issues issuerepo.Repository,
	activities activityrepo.Repository, checker *rbac.Checker, logger *zap.Logger) *Service {
	return &Service{sprints: sprints, issues: issues, activities: activities, rbac: checker, logger: logger}
}

// Create makes a PLANNED sprint in the project.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (*domain.Sprint, error) {
	if err := s.requireMember(ctx, in.ProjectID, actorID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sp := &domain.Sprint{
		ID:        uuid.New().String(),
		ProjectID: in.ProjectID,
		Name:      in.Name,
		Goal:      in.Goal,
		Status:    domain.StatusPlanned,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := sp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := s.sprints.Create(ctx, sp); err != nil {
		return nil, err
	}
	s.record(ctx, sp.ProjectID, actorID, "sprint.created", sp.ID, sp.Name)
	return sp, nil
}

// Get returns the sprint if the actor is a member of its project.
func (s *Service) Get(ctx context.Context, actorID, sprintID string) (*domain.Sprint, error) {
	return s.load(ctx, actorID, sprintID)
}

// ListByProject returns the project's sprints.
func (s *Service) ListByProject(ctx context.Context, actorID, projectID string) ([]*domain.Sprint, error) {
	if err := s.requireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}
	return s.sprints.ListByProject(ctx, projectID)
}

// Issues returns the issues attached to the sprint.
func (s *Service) Issues(ctx context.Context, actorID, sprintID string) ([]*issuedomain.Issue, error) {
	if _, err := s.load(ctx, actorID, sprintID); err != nil {
		return nil, err
	}
	return s.issues.ListBySprint(ctx, sprintID)
}

// Update edits name, goal, and dates. Status changes go through the workflow
// operations.
func (s *Service) Update(ctx context.Context, actorID, sprintID string, in UpdateInput) (*domain.Sprint, error) {
	sp, err := s.load(ctx, actorID, sprintID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		sp.Name = *in.Name
	}
	if in.Goal != nil {
		sp.Goal = *in.Goal
	}
	if in.StartDate != nil {
		sp.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		sp.EndDate = in.EndDate
	}
	if err := sp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	sp.UpdatedAt = time.Now().UTC()
	if err := s.sprints.Update(ctx, sp); err != nil {
		return nil, err
	}
	s.record(ctx, sp.ProjectID, actorID, "sprint.updated", sp.ID, "")
	return sp, nil
}

// Start moves the sprint from PLANNED to ACTIVE. Of two concurrent Start
// calls in the same project, exactly one succeeds.
func (s *Service) Start(ctx context.Context, actorID, sprintID string) (*domain.Sprint, error) {
	sp, err := s.load(ctx, actorID, sprintID)
	if err != nil {
		return nil, err
	}
	if err := s.sprints.Activate(ctx, sp.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotPlanned):
			return nil, ErrNotPlanned
		case errors.Is(err, repository.ErrActiveSprintExists):
			return nil, ErrSprintAlreadyActive
		}
		return nil, err
	}
	s.record(ctx, sp.ProjectID, actorID, "sprint.started", sp.ID, sp.Name)
	return s.sprints.GetByID(ctx, sp.ID)
}

// Complete moves the sprint from ACTIVE to COMPLETED. Velocity is snapshotted
// as the story-point sum of RESOLVED/CLOSED issues in the sprint at this
// moment and never recomputed.
func (s *Service) Complete(ctx context.Context, actorID, sprintID string) (*domain.Sprint, error) {
	sp, err := s.load(ctx, actorID, sprintID)
	if err != nil {
		return nil, err
	}
	done, err := s.sprints.Complete(ctx, sp.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotActive) {
			return nil, ErrSprintNotActive
		}
		return nil, err
	}
	s.record(ctx, sp.ProjectID, actorID, "sprint.completed", sp.ID, sp.Name)
	return done, nil
}

// Cancel moves the sprint to CANCELLED from any status except COMPLETED.
func (s *Service) Cancel(ctx context.Context, actorID, sprintID string) (*domain.Sprint, error) {
	sp, err := s.load(ctx, actorID, sprintID)
	if err != nil {
		return nil, err
	}
	if err := s.sprints.Cancel(ctx, sp.ID); err != nil {
		if errors.Is(err, repository.ErrCompleted) {
			return nil, ErrSprintCompleted
		}
		return nil, err
	}
	s.record(ctx, sp.ProjectID, actorID, "sprint.cancelled", sp.ID, sp.Name)
	return s.sprints.GetByID(ctx, sp.ID)
}

// Delete removes a non-ACTIVE sprint; its issues move back to the backlog.
func (s *Service) Delete(ctx context.Context, actorID, sprintID string) error {
	sp, err := s.load(ctx, actorID, sprintID)
	if err != nil {
		return err
	}
	if err := s.sprints.Delete(ctx, sp.ID); err != nil {
		if errors.Is(err, repository.ErrActive) {
			return ErrSprintActive
		}
		return err
	}
	s.record(ctx, sp.ProjectID, actorID, "sprint.deleted", sp.ID, sp.Name)
	return nil
}

func (s *Service) load(ctx context.Context, actorID, sprintID string) (*domain.Sprint, error) {
	sp, err := s.sprints.GetByID(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, ErrSprintNotFound
	}
	if err := s.rbac.RequireMember(ctx, sp.ProjectID, actorID); err != nil {
		if errors.Is(err, rbac.ErrNotAMember) {
			return nil, ErrSprintNotFound
		}
		return nil, err
	}
	return sp, nil
}

func (s *Service) requireMember(ctx context.Context, projectID, actorID string) error {
	if err := s.rbac.RequireMember(ctx, projectID, actorID); err != nil {
		if errors.Is(err, rbac.ErrNotAMember) {
			return ErrProjectNotFound
		}
		return err
	}
	return nil
}

func (s *Service) record(ctx context.Context, projectID, userID, action, targetID, detail string) {
	a := &activitydomain.Activity{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		UserID:     userID,
		Action:     action,
		TargetType: "sprint",
		TargetID:   targetID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.activities.Create(ctx, a); err != nil {
		s.logger.Warn("activity record failed", zap.String("action", action), zap.Error(err))
	}
}
