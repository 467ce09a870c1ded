package domain

import "time"

// Membership links a user to a project with a role. At most one row exists per
// (project, user) pair; exactly one LEAD is created with the project.
type Membership struct {
	ID        string
	ProjectID string
	UserID    string
	Role      Role
	JoinedAt  time.Time
}

// Role is the member's role within a single project.
type Role string

const (
	RoleLead      Role = "LEAD"
	RoleManager   Role = "MANAGER"
	RoleDeveloper Role = "DEVELOPER"
	RoleDesigner  Role = "DESIGNER"
	RoleTester    Role = "TESTER"
	RoleMember    Role = "MEMBER"
)

// Valid reports whether r is one of the known project roles.
func (r Role) Valid() bool {
	switch r {
	case RoleLead, RoleManager, RoleDeveloper, RoleDesigner, RoleTester, RoleMember:
		return true
	}
	return false
}
