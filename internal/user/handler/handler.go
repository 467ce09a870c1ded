package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authservice "nexus-pm/backend/internal/auth/service"
	"nexus-pm/backend/internal/server/httperr"
	"nexus-pm/backend/internal/server/middleware"
	"nexus-pm/backend/internal/user/domain"
)

// UserResponse is the public JSON shape of an account. PasswordHash never
// leaves the service.
type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	FullName    string     `json:"fullName"`
	AvatarURL   string     `json:"avatarUrl,omitempty"`
	Provider    string     `json:"provider"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// NewUserResponse converts an account to its public shape.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		AvatarURL:   u.AvatarURL,
		Provider:    u.Provider,
		Role:        string(u.Role),
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// UserGetter is the read side the handler needs.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type UserHandler struct {
	users UserGetter
	auth  *authservice.AuthService
	log   *zap.Logger
}

func NewUserHandler(users UserGetter, auth *authservice.AuthService, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, auth: auth, log: log}
}

// Get returns a user by id. Any authenticated caller may look up accounts;
// the response carries no credentials.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.log.Error("user lookup failed", zap.Error(err))
		httperr.Write(w, err)
		return
	}
	if u == nil {
		httperr.Write(w, authservice.ErrUserNotFound)
		return
	}
	writeJSON(w, http.StatusOK, NewUserResponse(u))
}

// Lookup resolves a user by email, for member pickers.
func (h *UserHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		httperr.BadRequest(w, "email query parameter is required")
		return
	}
	u, err := h.users.GetByEmail(r.Context(), email)
	if err != nil {
		h.log.Error("user lookup failed", zap.Error(err))
		httperr.Write(w, err)
		return
	}
	if u == nil {
		httperr.Write(w, authservice.ErrUserNotFound)
		return
	}
	writeJSON(w, http.StatusOK, NewUserResponse(u))
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole changes a user's global role. Only ADMINs get past the service
// check; the new role reaches the target's tokens on their next refresh.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}

	actor, _ := middleware.IdentityFrom(r.Context())
	u, err := h.auth.UpdateUserRole(r.Context(), actor.Role, chi.URLParam(r, "id"), domain.Role(req.Role))
	if err != nil {
		h.log.Warn("role update rejected",
			zap.String("actor_id", actor.UserID),
			zap.String("target_id", chi.URLParam(r, "id")),
			zap.Error(err),
		)
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewUserResponse(u))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
