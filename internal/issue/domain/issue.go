package domain

import (
	"errors"
	"time"
)

// Issue is a unit of work in a project. Key is unique within the project and
// formatted "<projectKey>-<number>" with a per-project monotonic number.
type Issue struct {
	ID             string
	ProjectID      string
	SprintID       *string
	Key            string
	Number         int
	Title          string
	Description    string
	Type           Type
	Status         Status
	Priority       Priority
	StoryPoints    *int
	EstimateHours  *float64
	TimeSpentHours float64
	ReporterID     string
	AssigneeID     *string
	DueDate        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// ResolvedAt is set the first time the issue enters RESOLVED or CLOSED and
	// is never cleared, even when the issue is reopened.
	ResolvedAt *time.Time
}

type Type string

const (
	TypeEpic    Type = "EPIC"
	TypeStory   Type = "STORY"
	TypeTask    Type = "TASK"
	TypeBug     Type = "BUG"
	TypeSubtask Type = "SUBTASK"
)

type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusInReview   Status = "IN_REVIEW"
	StatusTesting    Status = "TESTING"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
	StatusBlocked    Status = "BLOCKED"
)

// Valid reports whether s is a known status. Transitions between statuses are
// unrestricted; only the set itself is checked.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusInReview, StatusTesting, StatusResolved, StatusClosed, StatusBlocked:
		return true
	}
	return false
}

// Completed reports whether the status counts toward sprint velocity.
func (s Status) Completed() bool {
	return s == StatusResolved || s == StatusClosed
}

type Priority string

const (
	PriorityLowest  Priority = "LOWEST"
	PriorityLow     Priority = "LOW"
	PriorityMedium  Priority = "MEDIUM"
	PriorityHigh    Priority = "HIGH"
	PriorityHighest Priority = "HIGHEST"
)

// Validate checks required fields before persisting.
func (i *Issue) Validate() error {
	if i.Title == "" {
		return errors.New("title is required")
	}
	if i.ProjectID == "" {
		return errors.New("project is required")
	}
	if i.ReporterID == "" {
		return errors.New("reporter is required")
	}
	return nil
}
