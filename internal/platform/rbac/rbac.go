// Package rbac decides whether a user may perform a project-scoped action,
// based on their membership role. Every check is an explicit allow-list; a
// user with no membership in the project is denied before any role comparison.
package rbac

import (
	"context"
	"errors"

	"nexus-pm/backend/internal/membership/domain"
)

var (
	// ErrNotAMember means the user has no membership in the project. Callers
	// surface this as not-found so non-members cannot probe project existence.
	ErrNotAMember = errors.New("not a project member")
	// ErrForbidden means the user is a member but their role is not in the
	// action's allow-list.
	ErrForbidden = errors.New("forbidden")
)

// MembershipGetter is the single lookup the checker needs.
type MembershipGetter interface {
	GetByProjectAndUser(ctx context.Context, projectID, userID string) (*domain.Membership, error)
}

// Checker answers project-scoped authorization questions.
type Checker struct {
	memberships MembershipGetter
}

func NewChecker(memberships MembershipGetter) *Checker {
	return &Checker{memberships: memberships}
}

// RoleOf returns the user's role in the project, or ErrNotAMember.
func (c *Checker) RoleOf(ctx context.Context, projectID, userID string) (domain.Role, error) {
	m, err := c.memberships.GetByProjectAndUser(ctx, projectID, userID)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", ErrNotAMember
	}
	return m.Role, nil
}

// RequireMember checks that the user belongs to the project at all.
func (c *Checker) RequireMember(ctx context.Context, projectID, userID string) error {
	_, err := c.RoleOf(ctx, projectID, userID)
	return err
}

// RequireProjectRole checks that the user's role in the project is one of the
// allowed roles. Returns ErrNotAMember for non-members and ErrForbidden for
// members whose role is not allowed.
func (c *Checker) RequireProjectRole(ctx context.Context, projectID, userID string, allowed ...domain.Role) error {
	role, err := c.RoleOf(ctx, projectID, userID)
	if err != nil {
		return err
	}
	for _, a := range allowed {
		if role == a {
			return nil
		}
	}
	return ErrForbidden
}
