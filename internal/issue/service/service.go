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
	"nexus-pm/backend/internal/issue/domain"
	"nexus-pm/backend/internal/issue/repository"
	"nexus-pm/backend/internal/platform/rbac"
	sprintdomain "nexus-pm/backend/internal/sprint/domain"
	sprintrepo "nexus-pm/backend/internal/sprint/repository"
)

var (
	// ErrIssueNotFound is returned when the issue does not exist or the caller
	// cannot see its project.
	ErrIssueNotFound = errors.New("issue not found")
	// ErrProjectNotFound is returned when the project does not exist or the
	// caller is not a member.
	ErrProjectNotFound = errors.New("project not found")
	// ErrSprintNotFound is returned by MoveToSprint when the target sprint does
	// not exist or belongs to a different project.
	ErrSprintNotFound = errors.New("sprint not found")
	// ErrSprintClosed is returned by MoveToSprint when the target sprint is
	// COMPLETED or CANCELLED.
	ErrSprintClosed = errors.New("sprint is closed")
	// ErrInvalidDuration is returned by LogTime for a non-positive hour count.
	ErrInvalidDuration = errors.New("hours must be positive")
	// ErrInvalidStatus is returned for an unknown issue status.
	ErrInvalidStatus = errors.New("invalid issue status")
	// ErrAssigneeNotMember is returned by Assign when the assignee does not
	// belong to the issue's project.
	ErrAssigneeNotMember = errors.New("assignee is not a project member")
	// ErrValidation wraps domain validation failures.
	ErrValidation = errors.New("validation failed")
)

// CreateInput carries the fields of a new issue. Key and Number are allocated
// by the service, never supplied.
type CreateInput struct {
	ProjectID     string
	Title         string
	Description   string
	Type          domain.Type
	Priority      domain.Priority
	StoryPoints   *int
	EstimateHours *float64
	AssigneeID    *string
	SprintID      *string
	DueDate       *time.Time
}

// UpdateInput carries a partial issue update; nil fields are left unchanged.
type UpdateInput struct {
	Title         *string
	Description   *string
	Type          *domain.Type
	Priority      *domain.Priority
	StoryPoints   *int
	EstimateHours *float64
	DueDate       *time.Time
}

// Service owns the issue workflow. Every operation requires the actor to be a
// member of the issue's project; non-members get not-found, never forbidden.
type Service struct {
	issues     repository.Repository
	sprints    sprintrepo.Repository
	activities activityrepo.Repository
	rbac       *rbac.Checker
	logger     *zap.Logger
}

func NewService(issues repository.Repository, sprints sprintrepo.Repository,
	activities activityrepo.Repository, checker *rbac.Checker, logger *zap.Logger) *Service {
	return &Service{issues: issues, sprints: sprints, activities: activities, rbac: checker, logger: logger}
}

// Create allocates the issue's key and persists it. Two concurrent creates in
// the same project always get distinct keys; allocation is serialized in the
// repository transaction.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (*domain.Issue, error) {
	if err := s.requireMember(ctx, in.ProjectID, actorID); err != nil {
		return nil, err
	}
	if in.AssigneeID != nil {
		if err := s.rbac.RequireMember(ctx, in.ProjectID, *in.AssigneeID); err != nil {
			return nil, ErrAssigneeNotMember
		}
	}

	now := time.Now().UTC()
	i := &domain.Issue{
		ID:            uuid.New().String(),
		ProjectID:     in.ProjectID,
		SprintID:      in.SprintID,
		Title:         in.Title,
		Description:   in.Description,
		Type:          in.Type,
		Status:        domain.StatusOpen,
		Priority:      in.Priority,
		StoryPoints:   in.StoryPoints,
		EstimateHours: in.EstimateHours,
		ReporterID:    actorID,
		AssigneeID:    in.AssigneeID,
		DueDate:       in.DueDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if i.Type == "" {
		i.Type = domain.TypeTask
	}
	if i.Priority == "" {
		i.Priority = domain.PriorityMedium
	}
	if err := i.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if err := s.issues.CreateWithKey(ctx, i); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	s.record(ctx, i.ProjectID, actorID, "issue.created", i.ID, i.Key)
	return i, nil
}

// Get returns the issue if the actor is a member of its project.
func (s *Service) Get(ctx context.Context, actorID, issueID string) (*domain.Issue, error) {
	return s.load(ctx, actorID, issueID)
}

// ListByProject returns the project's issues.
func (s *Service) ListByProject(ctx context.Context, actorID, projectID string) ([]*domain.Issue, error) {
	if err := s.requireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}
	return s.issues.ListByProject(ctx, projectID)
}

// ListBacklog returns the project's issues with no sprint assigned.
func (s *Service) ListBacklog(ctx context.Context, actorID, projectID string) ([]*domain.Issue, error) {
	if err := s.requireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}
	return s.issues.ListBacklog(ctx, projectID)
}

// Update applies a partial edit to the issue's descriptive fields.
func (s *Service) Update(ctx context.Context, actorID, issueID string, in UpdateInput) (*domain.Issue, error) {
	i, err := s.load(ctx, actorID, issueID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		i.Title = *in.Title
	}
	if in.Description != nil {
		i.Description = *in.Description
	}
	if in.Type != nil {
		i.Type = *in.Type
	}
	if in.Priority != nil {
		i.Priority = *in.Priority
	}
	if in.StoryPoints != nil {
		i.StoryPoints = in.StoryPoints
	}
	if in.EstimateHours != nil {
		i.EstimateHours = in.EstimateHours
	}
	if in.DueDate != nil {
		i.DueDate = in.DueDate
	}
	if err := i.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	i.UpdatedAt = time.Now().UTC()
	if err := s.issues.Update(ctx, i); err != nil {
		return nil, err
	}
	s.record(ctx, i.ProjectID, actorID, "issue.updated", i.ID, i.Key)
	return i, nil
}

// UpdateStatus moves the issue to any known status; transitions are not
// restricted. The first entry into RESOLVED or CLOSED stamps ResolvedAt, and
// that stamp survives reopening.
func (s *Service) UpdateStatus(ctx context.Context, actorID, issueID string, status domain.Status) (*domain.Issue, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	i, err := s.load(ctx, actorID, issueID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	i.Status = status
	if status.Completed() && i.ResolvedAt == nil {
		i.ResolvedAt = &now
	}
	i.UpdatedAt = now
	if err := s.issues.Update(ctx, i); err != nil {
		return nil, err
	}
	s.record(ctx, i.ProjectID, actorID, "issue.status_changed", i.ID, string(status))
	return i, nil
}

// Assign sets the assignee, who must be a member of the issue's project.
func (s *Service) Assign(ctx context.Context, actorID, issueID, assigneeID string) (*domain.Issue, error) {
	i, err := s.load(ctx, actorID, issueID)
	if err != nil {
		return nil, err
	}
	if err := s.rbac.RequireMember(ctx, i.ProjectID, assigneeID); err != nil {
		return nil, ErrAssigneeNotMember
	}

	i.AssigneeID = &assigneeID
	i.UpdatedAt = time.Now().UTC()
	if err := s.issues.Update(ctx, i); err != nil {
		return nil, err
	}
	s.record(ctx, i.ProjectID, actorID, "issue.assigned", i.ID, assigneeID)
	return i, nil
}

// Unassign clears the assignee.
func (s *Service) Unassign(ctx context.Context, actorID, issueID string) (*domain.Issue, error) {
	i, err := s.load(ctx, actorID, issueID)
	if err != nil {
		return nil, err
	}

	i.AssigneeID = nil
	i.UpdatedAt = time.Now().UTC()
	if err := s.issues.Update(ctx, i); err != nil {
		return nil, err
	}
	s.record(ctx, i.ProjectID, actorID, "issue.unassigned", i.ID, "")
	return i, nil
}

// LogTime adds hours to the issue's time spent. Hours must be positive.
func (s *Service) LogTime(ctx context.Context, actorID, issueID string, hours float64) (*domain.Issue, error) {
	if hours <= 0 {
		return nil, ErrInvalidDuration
	}
	i, err := s.load(ctx, actorID, issueID)
	if err != nil {
		return nil, err
	}

	i.TimeSpentHours += hours
	i.UpdatedAt = time.Now().UTC()
	if err := s.issues.Update(ctx, i); err != nil {
		return nil, err
	}
	s.record(ctx, i.ProjectID, actorID, "issue.time_logged", i.ID, "")
	return i, nil
}

// MoveToSprint attaches the issue to a sprint in the same project, or back to
// the backlog when sprintID is nil. Closed sprints cannot take new issues.
func (s *Service) MoveToSprint(ctx context.Context, actorID, issueID string, sprintID *string) (*domain.Issue, error) {
	i, err := s.load(ctx, actorID, issueID)
	if err != nil {
		return nil, err
	}

	if sprintID != nil {
		sp, err := s.sprints.GetByID(ctx, *sprintID)
		if err != nil {
			return nil, err
		}
		if sp == nil || sp.ProjectID != i.ProjectID {
			return nil, ErrSprintNotFound
		}
		if sp.Status == sprintdomain.StatusCompleted || sp.Status == sprintdomain.StatusCancelled {
			return nil, ErrSprintClosed
		}
	}

	i.SprintID = sprintID
	i.UpdatedAt = time.Now().UTC()
	if err := s.issues.Update(ctx, i); err != nil {
		return nil, err
	}
	s.record(ctx, i.ProjectID, actorID, "issue.moved", i.ID, "")
	return i, nil
}

// Delete removes the issue. Its key is not reused; numbering only grows.
func (s *Service) Delete(ctx context.Context, actorID, issueID string) error {
	i, err := s.load(ctx, actorID, issueID)
	if err != nil {
		return err
	}
	if err := s.issues.Delete(ctx, i.ID); err != nil {
		return err
	}
	s.record(ctx, i.ProjectID, actorID, "issue.deleted", i.ID, i.Key)
	return nil
}

// load fetches the issue and checks the actor's membership in its project.
// Both a missing issue and a missing membership come back as ErrIssueNotFound.
func (s *Service) load(ctx context.Context, actorID, issueID string) (*domain.Issue, error) {
	i, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, ErrIssueNotFound
	}
	if err := s.rbac.RequireMember(ctx, i.ProjectID, actorID); err != nil {
		if errors.Is(err, rbac.ErrNotAMember) {
			return nil, ErrIssueNotFound
		}
		return nil, err
	}
	return i, nil
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
		TargetType: "issue",
		TargetID:   targetID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.activities.Create(ctx, a); err != nil {
		s.logger.Warn("activity record failed", zap.String("action", action), zap.Error(err))
	}
}
