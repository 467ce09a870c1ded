package domain

import (
	"errors"
	"regexp"
	"time"
)

// User is an account record, local or federated. PasswordHash is empty for
// federated-only accounts.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	FirstName       string
	LastName        string
	AvatarURL       string
	Provider        string // "local", "google", ...
	ProviderID      string
	Role            Role
	IsActive        bool
	IsEmailVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastLoginAt     *time.Time
}

// Role is the user's global role, distinct from per-project membership roles.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
)

// ProviderLocal marks accounts created through password registration.
const ProviderLocal = "local"

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validate checks required fields before persisting.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if !emailRe.MatchString(u.Email) {
		return errors.New("invalid email format")
	}
	switch u.Role {
	case RoleAdmin, RoleManager, RoleMember:
	default:
		return errors.New("invalid role")
	}
	return nil
}

// HasPassword reports whether the account can authenticate with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
