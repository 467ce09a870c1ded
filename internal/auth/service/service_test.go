package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"nexus-pm/backend/internal/security"
	"nexus-pm/backend/internal/user/domain"
	"nexus-pm/backend/internal/user/repository"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User // by id
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (f *fakeUserRepo) UpdateAvatarURL(_ context.Context, id, avatarURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.AvatarURL = avatarURL
	}
	return nil
}

func (f *fakeUserRepo) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (f *fakeUserRepo) UpdateRole(_ context.Context, id string, role domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Role = role
	}
	return nil
}

func newTestService(repo *fakeUserRepo) *AuthService {
	hasher := security.NewHasher(4)
	tokens := security.NewTokenProvider([]byte("test-secret"), "test", time.Hour, 24*time.Hour)
	return NewAuthService(repo, hasher, tokens, zap.NewNop())
}

func seedUser(t *testing.T, repo *fakeUserRepo, email, password string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := security.NewHasher(4).Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &domain.User{
		ID:           "u-" + email,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Provider:     domain.ProviderLocal,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return u
}

func TestLoginSuccess(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, "alice@example.com", "secret123", domain.RoleMember)
	svc := newTestService(repo)

	pair, u, err := svc.Login(context.Background(), "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatal("expected both tokens")
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("user email = %s", u.Email)
	}

	stored, _ := repo.GetByID(context.Background(), u.ID)
	if stored.LastLoginAt == nil {
		t.Fatal("expected last login timestamp to be set")
	}
}

func TestLoginFailuresCollapse(t *testing.T) {
	repo := newFakeUserRepo()
	alice := seedUser(t, repo, "alice@example.com", "secret123", domain.RoleMember)

	inactive := seedUser(t, repo, "gone@example.com", "secret123", domain.RoleMember)
	inactive.IsActive = false
	_ = repo.Update(context.Background(), inactive)

	federated := &domain.User{
		ID: "u-fed", Email: "fed@example.com", Provider: "google",
		Role: domain.RoleMember, IsActive: true,
	}
	_ = repo.Create(context.Background(), federated)

	svc := newTestService(repo)
	cases := []struct {
		name, email, password string
	}{
		{"unknown email", "nobody@example.com", "secret123"},
		{"wrong password", alice.Email, "wrong"},
		{"inactive account", inactive.Email, "secret123"},
		{"federated only", federated.Email, "anything"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Login(context.Background(), tc.email, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestRegisterIssuesTokensAndPersists(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo)

	pair, u, err := svc.Register(context.Background(), RegisterInput{
		Email: "bob@example.com", Password: "secret123", FirstName: "Bob", LastName: "Builder",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if pair.Access == "" {
		t.Fatal("expected access token")
	}
	if u.Role != domain.RoleMember {
		t.Fatalf("role = %s, want MEMBER", u.Role)
	}

	_, _, err = svc.Login(context.Background(), "bob@example.com", "secret123")
	if err != nil {
		t.Fatalf("login after register: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	seedUser(t, repo, "alice@example.com", "secret123", domain.RoleMember)
	svc := newTestService(repo)

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Email: "Alice@Example.com", Password: "secret123",
	})
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	svc := newTestService(newFakeUserRepo())

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Email: "bob@example.com", Password: "short",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestLoginFederatedCreatesAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestService(repo)

	pair, u, err := svc.LoginFederated(context.Background(), FederatedProfile{
		Provider: "google", ProviderID: "g-1", Email: "carol@example.com",
		FirstName: "Carol", AvatarURL: "https://img.example.com/c.png",
	})
	if err != nil {
		t.Fatalf("LoginFederated: %v", err)
	}
	if pair.Refresh == "" {
		t.Fatal("expected refresh token")
	}
	if u.Provider != "google" || !u.IsEmailVerified {
		t.Fatalf("unexpected account: provider=%s verified=%v", u.Provider, u.IsEmailVerified)
	}
}

func TestLoginFederatedBackfillsAvatar(t *testing.T) {
	repo := newFakeUserRepo()
	existing := seedUser(t, repo, "alice@example.com", "secret123", domain.RoleMember)
	svc := newTestService(repo)

	_, u, err := svc.LoginFederated(context.Background(), FederatedProfile{
		Provider: "google", ProviderID: "g-2", Email: existing.Email,
		AvatarURL: "https://img.example.com/a.png",
	})
	if err != nil {
		t.Fatalf("LoginFederated: %v", err)
	}
	if u.AvatarURL != "https://img.example.com/a.png" {
		t.Fatalf("avatar = %q, want backfilled URL", u.AvatarURL)
	}
	if !u.HasPassword() {
		t.Fatal("password login must survive a federated login")
	}
}

func TestRefreshReflectsRoleChange(t *testing.T) {
	repo := newFakeUserRepo()
	u := seedUser(t, repo, "alice@example.com", "secret123", domain.RoleMember)
	svc := newTestService(repo)

	pair, _, err := svc.Login(context.Background(), u.Email, "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := repo.UpdateRole(context.Background(), u.ID, domain.RoleAdmin); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}

	fresh, freshUser, err := svc.Refresh(context.Background(), pair.Refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if freshUser.Role != domain.RoleAdmin {
		t.Fatalf("role = %s, want ADMIN", freshUser.Role)
	}
	if fresh.Refresh != pair.Refresh {
		t.Fatal("refresh token must not be rotated")
	}

	tokens := security.NewTokenProvider([]byte("test-secret"), "test", time.Hour, 24*time.Hour)
	claims, err := tokens.Validate(fresh.Access)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Role != string(domain.RoleAdmin) {
		t.Fatalf("access role claim = %s, want ADMIN", claims.Role)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	repo := newFakeUserRepo()
	u := seedUser(t, repo, "alice@example.com", "secret123", domain.RoleMember)
	svc := newTestService(repo)

	pair, _, err := svc.Login(context.Background(), u.Email, "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, _, err = svc.Refresh(context.Background(), pair.Access)
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	repo := newFakeUserRepo()
	u := seedUser(t, repo, "alice@example.com", "secret123", domain.RoleMember)
	svc := newTestService(repo)

	if err := svc.ChangePassword(context.Background(), u.ID, "wrong", "newsecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), u.ID, "secret123", "new"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), u.ID, "secret123", "newsecret"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), u.Email, "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("old password still accepted")
	}
	if _, _, err := svc.Login(context.Background(), u.Email, "newsecret"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestUpdateUserRoleRequiresAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	target := seedUser(t, repo, "bob@example.com", "secret123", domain.RoleMember)
	svc := newTestService(repo)

	if _, err := svc.UpdateUserRole(context.Background(), domain.RoleManager, target.ID, domain.RoleManager); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	updated, err := svc.UpdateUserRole(context.Background(), domain.RoleAdmin, target.ID, domain.RoleManager)
	if err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	if updated.Role != domain.RoleManager {
		t.Fatalf("role = %s, want MANAGER", updated.Role)
	}
}
