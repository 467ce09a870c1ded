package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nexus-pm/backend/internal/security"
	"nexus-pm/backend/internal/user/domain"
	"nexus-pm/backend/internal/user/repository"
)

var (
	// ErrInvalidCredentials covers every login failure: unknown email, wrong
	// password, inactive account, password login on a federated-only account.
	// Callers cannot tell which one happened.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailAlreadyRegistered is returned by Register when the email is taken.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrInvalidRefreshToken is returned by Refresh for anything that is not a
	// valid, unexpired refresh token bound to an active account.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrUserNotFound is returned when the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden is returned when the actor lacks the global role an
	// operation requires.
	ErrForbidden = errors.New("forbidden")
	// ErrWeakPassword is returned when a new password is shorter than 6 characters.
	ErrWeakPassword = errors.New("password must be at least 6 characters")
	// ErrValidation wraps account validation failures.
	ErrValidation = errors.New("validation failed")
)

// Tokens is an issued access/refresh pair.
type Tokens struct {
	Access           string
	AccessExpiresAt  time.Time
	Refresh          string
	RefreshExpiresAt time.Time
}

// RegisterInput carries the fields of a local registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// FederatedProfile is what an upstream identity provider asserts about a user
// after a successful OAuth2 exchange. The provider has already verified the email.
type FederatedProfile struct {
	Provider   string
	ProviderID string
	Email      string
	FirstName  string
	LastName   string
	AvatarURL  string
}

// AuthService implements login, registration, federated login, token refresh,
// and password management on top of the user repository.
type AuthService struct {
	users  repository.Repository
	hasher *security.Hasher
	tokens *security.TokenProvider
	logger *zap.Logger
}

func NewAuthService(users repository.Repository, hasher *security.Hasher, tokens *security.TokenProvider, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, logger: logger}
}

// Login verifies the password and issues a token pair. Every failure mode maps
// to ErrInvalidCredentials so responses do not leak which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Tokens, *domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if u == nil || !u.IsActive || !u.HasPassword() {
		return nil, nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issue(u)
	if err != nil {
		return nil, nil, err
	}
	s.touchLastLogin(ctx, u)
	return pair, u, nil
}

// Register creates a local account with the MEMBER role and logs it in.
// Tokens are signed before the insert, so a failed insert persists nothing
// and hands out nothing.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Tokens, *domain.User, error) {
	if len(in.Password) < 6 {
		return nil, nil, ErrWeakPassword
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	u := &domain.User{
		ID:              uuid.New().String(),
		Email:           in.Email,
		PasswordHash:    hash,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Provider:        domain.ProviderLocal,
		Role:            domain.RoleMember,
		IsActive:        true,
		IsEmailVerified: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := u.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	pair, err := s.issue(u)
	if err != nil {
		return nil, nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, ErrEmailAlreadyRegistered
		}
		return nil, nil, err
	}
	return pair, u, nil
}

// LoginFederated upserts the account asserted by an identity provider and
// issues a token pair. A lost insert race against a concurrent registration
// for the same email is resolved by reloading the winner's row.
func (s *AuthService) LoginFederated(ctx context.Context, p FederatedProfile) (*Tokens, *domain.User, error) {
	u, err := s.users.GetByEmail(ctx, p.Email)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case u == nil:
		now := time.Now().UTC()
		u = &domain.User{
			ID:              uuid.New().String(),
			Email:           p.Email,
			FirstName:       p.FirstName,
			LastName:        p.LastName,
			AvatarURL:       p.AvatarURL,
			Provider:        p.Provider,
			ProviderID:      p.ProviderID,
			Role:            domain.RoleMember,
			IsActive:        true,
			IsEmailVerified: true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := u.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrValidation, err)
		}
		if err := s.users.Create(ctx, u); err != nil {
			if !errors.Is(err, repository.ErrDuplicateEmail) {
				return nil, nil, err
			}
			u, err = s.users.GetByEmail(ctx, p.Email)
			if err != nil {
				return nil, nil, err
			}
			if u == nil {
				return nil, nil, ErrInvalidCredentials
			}
		}
	case !u.IsActive:
		return nil, nil, ErrInvalidCredentials
	case u.AvatarURL == "" && p.AvatarURL != "":
		if err := s.users.UpdateAvatarURL(ctx, u.ID, p.AvatarURL); err != nil {
			s.logger.Warn("avatar backfill failed", zap.String("user_id", u.ID), zap.Error(err))
		} else {
			u.AvatarURL = p.AvatarURL
		}
	}

	pair, err := s.issue(u)
	if err != nil {
		return nil, nil, err
	}
	s.touchLastLogin(ctx, u)
	return pair, u, nil
}

// Refresh exchanges a valid refresh token for a fresh access token. The role
// claim is re-read from the account, so a role change takes effect on the
// next refresh. The refresh token itself is returned unchanged; pairs are not
// rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Tokens, *domain.User, error) {
	claims, err := s.tokens.Validate(refreshToken)
	if err != nil || claims.Kind != security.KindRefresh {
		return nil, nil, ErrInvalidRefreshToken
	}
	u, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, nil, err
	}
	if u == nil || !u.IsActive {
		return nil, nil, ErrInvalidRefreshToken
	}

	access, accessExp, err := s.tokens.IssueAccess(u.Email, string(u.Role))
	if err != nil {
		return nil, nil, err
	}
	pair := &Tokens{
		Access:           access,
		AccessExpiresAt:  accessExp,
		Refresh:          refreshToken,
		RefreshExpiresAt: claims.ExpiresAt.Time,
	}
	return pair, u, nil
}

// CurrentUser resolves the account behind an authenticated email.
func (s *AuthService) CurrentUser(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// ChangePassword verifies the current password and stores a hash of the new
// one. Federated-only accounts have no password to verify and are rejected.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return ErrWeakPassword
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}
	if !u.HasPassword() || !s.hasher.Verify(oldPassword, u.PasswordHash) {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(ctx, u.ID, hash)
}

// UpdateUserRole changes a user's global role. Only global ADMINs may call it.
// The target's issued tokens keep their old role claim until refresh.
func (s *AuthService) UpdateUserRole(ctx context.Context, actorRole domain.Role, userID string, role domain.Role) (*domain.User, error) {
	if actorRole != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	switch role {
	case domain.RoleAdmin, domain.RoleManager, domain.RoleMember:
	default:
		return nil, fmt.Errorf("%w: invalid role", ErrValidation)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if err := s.users.UpdateRole(ctx, u.ID, role); err != nil {
		return nil, err
	}
	u.Role = role
	return u, nil
}

func (s *AuthService) issue(u *domain.User) (*Tokens, error) {
	access, accessExp, err := s.tokens.IssueAccess(u.Email, string(u.Role))
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(u.Email, string(u.Role))
	if err != nil {
		return nil, err
	}
	return &Tokens{
		Access:           access,
		AccessExpiresAt:  accessExp,
		Refresh:          refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// touchLastLogin is best-effort; a failed timestamp write never fails a login.
func (s *AuthService) touchLastLogin(ctx context.Context, u *domain.User) {
	if err := s.users.UpdateLastLogin(ctx, u.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("last login update failed", zap.String("user_id", u.ID), zap.Error(err))
	}
}
