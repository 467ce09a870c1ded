package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"nexus-pm/backend/internal/membership/domain"
)

type fakeMemberships struct {
	byKey map[string]*domain.Membership
}

func (f *fakeMemberships) GetByProjectAndUser(_ context.Context, projectID, userID string) (*domain.Membership, error) {
	return f.byKey[projectID+"/"+userID], nil
}

func newChecker(members ...*domain.Membership) *Checker {
	f := &fakeMemberships{byKey: map[string]*domain.Membership{}}
	for _, m := range members {
		f.byKey[m.ProjectID+"/"+m.UserID] = m
	}
	return NewChecker(f)
}

func TestRequireProjectRoleAllowed(t *testing.T) {
	c := newChecker(&domain.Membership{
		ID: "m1", ProjectID: "p1", UserID: "u1", Role: domain.RoleManager, JoinedAt: time.Now(),
	})

	if err := c.RequireProjectRole(context.Background(), "p1", "u1", domain.RoleLead, domain.RoleManager); err != nil {
		t.Fatalf("RequireProjectRole: %v", err)
	}
}

func TestRequireProjectRoleForbidden(t *testing.T) {
	c := newChecker(&domain.Membership{
		ID: "m1", ProjectID: "p1", UserID: "u1", Role: domain.RoleDeveloper, JoinedAt: time.Now(),
	})

	err := c.RequireProjectRole(context.Background(), "p1", "u1", domain.RoleLead, domain.RoleManager)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequireProjectRoleNonMember(t *testing.T) {
	c := newChecker()

	err := c.RequireProjectRole(context.Background(), "p1", "ghost", domain.RoleLead)
	if !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
}

func TestRoleOf(t *testing.T) {
	c := newChecker(&domain.Membership{
		ID: "m1", ProjectID: "p1", UserID: "u1", Role: domain.RoleTester, JoinedAt: time.Now(),
	})

	role, err := c.RoleOf(context.Background(), "p1", "u1")
	if err != nil {
		t.Fatalf("RoleOf: %v", err)
	}
	if role != domain.RoleTester {
		t.Fatalf("role = %s, want TESTER", role)
	}

	if err := c.RequireMember(context.Background(), "p1", "u2"); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
}
