package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	activitydomain "nexus-pm/backend/internal/activity/domain"
	activityrepo "nexus-pm/backend/internal/activity/repository"
	membershipdomain "nexus-pm/backend/internal/membership/domain"
	membershiprepo "nexus-pm/backend/internal/membership/repository"
	"nexus-pm/backend/internal/platform/rbac"
	"nexus-pm/backend/internal/project/domain"
	"nexus-pm/backend/internal/project/repository"
	userrepo "nexus-pm/backend/internal/user/repository"
)

var (
	// ErrProjectNotFound is returned when the project does not exist or the
	// caller is not a member. The two cases are indistinguishable on purpose.
	ErrProjectNotFound = errors.New("project not found")
	// ErrDuplicateKey is returned by Create when the project key is taken.
	ErrDuplicateKey = errors.New("project key already exists")
	// ErrAlreadyMember is returned by AddMember for an existing member.
	ErrAlreadyMember = errors.New("user is already a member")
	// ErrMemberNotFound is returned when the target user is not a member.
	ErrMemberNotFound = errors.New("member not found")
	// ErrUserNotFound is returned by AddMember when the target user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrCannotRemoveLead is returned when removing the project lead.
	ErrCannotRemoveLead = errors.New("cannot remove the project lead")
	// ErrInvalidRole is returned for an unknown project role.
	ErrInvalidRole = errors.New("invalid project role")
	// ErrValidation wraps domain validation failures.
	ErrValidation = errors.New("validation failed")
)

// CreateInput carries the fields of a new project. The creator becomes the
// lead and the first member.
type CreateInput struct {
	Name        string
	Key         string
	Description string
	Visibility  domain.Visibility
	StartDate   *time.Time
	EndDate     *time.Time
}

// UpdateInput carries a partial project update; nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Visibility  *domain.Visibility
	StartDate   *time.Time
	EndDate     *time.Time
}

// Service owns project CRUD and membership management. Mutations are gated by
// project role: LEAD and MANAGER may update the project and manage members,
// only LEAD may delete.
type Service struct {
	projects    repository.Repository
	memberships membershiprepo.Repository
	users       userrepo.Repository
	activities  activityrepo.Repository
	rbac        *rbac.Checker
	logger      *zap.Logger
}

func NewService(projects repository.Repository, memberships membershiprepo.Repository,
	users userrepo.Repository, activities activityrepo.Repository,
	checker *rbac.Checker, logger *zap.Logger) *Service {
	return &Service{
		projects:    projects,
		memberships: memberships,
		users:       users,
		activities:  activities,
		rbac:        checker,
		logger:      logger,
	}
}

// Create makes the project and its LEAD membership for the actor in one
// transaction, so the project never exists without a lead.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (*domain.Project, error) {
	now := time.Now().UTC()
	p := &domain.Project{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Key:         strings.ToUpper(in.Key),
		Description: in.Description,
		Status:      domain.StatusActive,
		Visibility:  in.Visibility,
		LeadID:      actorID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Visibility == "" {
		p.Visibility = domain.VisibilityPrivate
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	lead := &membershipdomain.Membership{
		ID:        uuid.New().String(),
		ProjectID: p.ID,
		UserID:    actorID,
		Role:      membershipdomain.RoleLead,
		JoinedAt:  now,
	}
	if err := s.projects.CreateWithLead(ctx, p, lead); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	s.record(ctx, p.ID, actorID, "project.created", "project", p.ID, p.Key)
	return p, nil
}

// Get returns the project if the actor is a member of it.
func (s *Service) Get(ctx context.Context, actorID, projectID string) (*domain.Project, error) {
	if err := s.requireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

// List returns the projects the actor is a member of.
func (s *Service) List(ctx context.Context, actorID string) ([]*domain.Project, error) {
	return s.projects.ListByUser(ctx, actorID)
}

// Update applies a partial update. Requires LEAD or MANAGER.
func (s *Service) Update(ctx context.Context, actorID, projectID string, in UpdateInput) (*domain.Project, error) {
	if err := s.requireRole(ctx, projectID, actorID, membershipdomain.RoleLead, membershipdomain.RoleManager); err != nil {
		return nil, err
	}
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}

	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Visibility != nil {
		p.Visibility = *in.Visibility
	}
	if in.StartDate != nil {
		p.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		p.EndDate = in.EndDate
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := s.projects.Update(ctx, p); err != nil {
		return nil, err
	}
	s.record(ctx, p.ID, actorID, "project.updated", "project", p.ID, "")
	return p, nil
}

// UpdateStatus changes the project lifecycle status. Requires LEAD or MANAGER.
func (s *Service) UpdateStatus(ctx context.Context, actorID, projectID string, status domain.Status) error {
	switch status {
	case domain.StatusActive, domain.StatusCompleted, domain.StatusArchived, domain.StatusOnHold:
	default:
		return fmt.Errorf("%w: invalid project status", ErrValidation)
	}
	if err := s.requireRole(ctx, projectID, actorID, membershipdomain.RoleLead, membershipdomain.RoleManager); err != nil {
		return err
	}
	if err := s.projects.UpdateStatus(ctx, projectID, status); err != nil {
		return err
	}
	s.record(ctx, projectID, actorID, "project.status_changed", "project", projectID, string(status))
	return nil
}

// Archive marks the project ARCHIVED.
func (s *Service) Archive(ctx context.Context, actorID, projectID string) error {
	return s.UpdateStatus(ctx, actorID, projectID, domain.StatusArchived)
}

// Complete marks the project COMPLETED.
func (s *Service) Complete(ctx context.Context, actorID, projectID string) error {
	return s.UpdateStatus(ctx, actorID, projectID, domain.StatusCompleted)
}

// Delete removes the project; sprints, issues, and memberships cascade.
// Requires LEAD.
func (s *Service) Delete(ctx context.Context, actorID, projectID string) error {
	if err := s.requireRole(ctx, projectID, actorID, membershipdomain.RoleLead); err != nil {
		return err
	}
	return s.projects.Delete(ctx, projectID)
}

// Members lists the project's memberships. Any member may call it.
func (s *Service) Members(ctx context.Context, actorID, projectID string) ([]*membershipdomain.Membership, error) {
	if err := s.requireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}
	return s.memberships.ListByProject(ctx, projectID)
}

// AddMember adds an existing user to the project. Requires LEAD or MANAGER.
func (s *Service) AddMember(ctx context.Context, actorID, projectID, userID string, role membershipdomain.Role) (*membershipdomain.Membership, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if err := s.requireRole(ctx, projectID, actorID, membershipdomain.RoleLead, membershipdomain.RoleManager); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	m := &membershipdomain.Membership{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now().UTC(),
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		if errors.Is(err, membershiprepo.ErrDuplicateMember) {
			return nil, ErrAlreadyMember
		}
		return nil, err
	}
	s.record(ctx, projectID, actorID, "member.added", "member", userID, string(role))
	return m, nil
}

// RemoveMember removes a member. The lead cannot be removed; delete the
// project or transfer the lead first. Requires LEAD or MANAGER.
func (s *Service) RemoveMember(ctx context.Context, actorID, projectID, userID string) error {
	if err := s.requireRole(ctx, projectID, actorID, membershipdomain.RoleLead, membershipdomain.RoleManager); err != nil {
		return err
	}
	m, err := s.memberships.GetByProjectAndUser(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrMemberNotFound
	}
	if m.Role == membershipdomain.RoleLead {
		return ErrCannotRemoveLead
	}
	if err := s.memberships.Delete(ctx, projectID, userID); err != nil {
		return err
	}
	s.record(ctx, projectID, actorID, "member.removed", "member", userID, "")
	return nil
}

// ChangeRole changes a member's project role, including to and from LEAD.
// Lead transfer is two calls: assign LEAD to the new member, then demote the
// old lead; the caller owns the ordering. Requires LEAD or MANAGER.
func (s *Service) ChangeRole(ctx context.Context, actorID, projectID, userID string, role membershipdomain.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := s.requireRole(ctx, projectID, actorID, membershipdomain.RoleLead, membershipdomain.RoleManager); err != nil {
		return err
	}
	m, err := s.memberships.GetByProjectAndUser(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrMemberNotFound
	}
	if err := s.memberships.UpdateRole(ctx, projectID, userID, role); err != nil {
		return err
	}
	s.record(ctx, projectID, actorID, "member.role_changed", "member", userID, string(role))
	return nil
}

// Activity lists the project's recent activity. Any member may call it.
func (s *Service) Activity(ctx context.Context, actorID, projectID string, limit int) ([]*activitydomain.Activity, error) {
	if err := s.requireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.activities.ListByProject(ctx, projectID, limit)
}

// requireMember maps a missing membership to ErrProjectNotFound so non-members
// cannot probe which projects exist.
func (s *Service) requireMember(ctx context.Context, projectID, userID string) error {
	if err := s.rbac.RequireMember(ctx, projectID, userID); err != nil {
		if errors.Is(err, rbac.ErrNotAMember) {
			return ErrProjectNotFound
		}
		return err
	}
	return nil
}

func (s *Service) requireRole(ctx context.Context, projectID, userID string, allowed ...membershipdomain.Role) error {
	if err := s.rbac.RequireProjectRole(ctx, projectID, userID, allowed...); err != nil {
		if errors.Is(err, rbac.ErrNotAMember) {
			return ErrProjectNotFound
		}
		return err
	}
	return nil
}

// record writes an activity row; failures are logged and swallowed.
func (s *Service) record(ctx context.Context, projectID, userID, action, targetType, targetID, detail string) {
	a := &activitydomain.Activity{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		UserID:     userID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.activities.Create(ctx, a); err != nil {
		s.logger.Warn("activity record failed", zap.String("action", action), zap.Error(err))
	}
}
