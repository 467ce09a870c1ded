package domain

import (
	"errors"
	"regexp"
	"time"
)

// Project owns its sprints and issues; deleting a project cascades to both.
type Project struct {
	ID          string
	Name        string
	Key         string // short uppercase key, unique case-insensitively; issue keys derive from it
	Description string
	Status      Status
	Visibility  Visibility
	LeadID      string
	StartDate   *time.Time
	EndDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusArchived  Status = "ARCHIVED"
	StatusOnHold    Status = "ON_HOLD"
)

type Visibility string

const (
	VisibilityPublic   Visibility = "PUBLIC"
	VisibilityPrivate  Visibility = "PRIVATE"
	VisibilityInternal Visibility = "INTERNAL"
)

var keyRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// Validate checks required fields before persisting.
func (p *Project) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if !keyRe.MatchString(p.Key) {
		return errors.New("key must be 2-10 uppercase letters or digits starting with a letter")
	}
	if p.LeadID == "" {
		return errors.New("lead is required")
	}
	return nil
}
