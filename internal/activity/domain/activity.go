package domain

import "time"

// Activity is a project-scoped record of a mutation (member added, issue
// status changed, sprint completed). Recording is best-effort and never fails
// the operation that produced it.
type Activity struct {
	ID         string
	ProjectID  string
	UserID     string
	Action     string // e.g. "issue.status_changed"
	TargetType string // "project", "member", "issue", "sprint"
	TargetID   string
	Detail     string
	CreatedAt  time.Time
}
