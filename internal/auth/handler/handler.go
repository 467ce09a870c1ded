package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"nexus-pm/backend/internal/auth/service"
	"nexus-pm/backend/internal/server/httperr"
	"nexus-pm/backend/internal/server/middleware"
	userdomain "nexus-pm/backend/internal/user/domain"
	userhandler "nexus-pm/backend/internal/user/handler"
)

// ProfileExtractor yields the verified profile from a completed provider
// handshake. The OAuth2 exchange itself happens upstream; by the time the
// callback fires, the profile has already been asserted by the provider.
type ProfileExtractor func(r *http.Request, provider string) (service.FederatedProfile, error)

type AuthHandler struct {
	svc         *service.AuthService
	profile     ProfileExtractor
	redirectURL string
	log         *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, profile ProfileExtractor, redirectURL string, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, profile: profile, redirectURL: redirectURL, log: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type authResponse struct {
	Token        string                   `json:"token"`
	TokenType    string                   `json:"tokenType"`
	ExpiresAt    time.Time                `json:"expiresAt"`
	RefreshToken string                   `json:"refreshToken"`
	User         userhandler.UserResponse `json:"user"`
}

// Login verifies credentials and returns a token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httperr.BadRequest(w, "email and password are required")
		return
	}

	pair, u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.Info("login rejected", zap.Error(err))
		httperr.Write(w, err)
		return
	}
	writeAuth(w, http.StatusOK, pair, u)
}

// Register creates a local account and logs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}

	pair, u, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.log.Info("registration rejected", zap.String("email", req.Email), zap.Error(err))
		httperr.Write(w, err)
		return
	}
	writeAuth(w, http.StatusCreated, pair, u)
}

// Refresh exchanges a refresh token for a fresh access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}

	pair, u, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeAuth(w, http.StatusOK, pair, u)
}

// Me returns the authenticated caller's account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	u, err := h.svc.CurrentUser(r.Context(), id.Email)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userhandler.NewUserResponse(u))
}

// ChangePassword verifies the current password and replaces it.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}

	id, _ := middleware.IdentityFrom(r.Context())
	if err := h.svc.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		httperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OAuth2Callback finishes a federated login. Success redirects the browser to
// the configured client URL with token, refreshToken, and a URL-encoded user
// document; failure redirects with an error parameter.
func (h *AuthHandler) OAuth2Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	profile, err := h.profile(r, provider)
	if err != nil {
		h.log.Warn("federated profile rejected", zap.String("provider", provider), zap.Error(err))
		h.redirectError(w, r, "authentication_failed")
		return
	}

	pair, u, err := h.svc.LoginFederated(r.Context(), profile)
	if err != nil {
		h.log.Warn("federated login failed", zap.String("provider", provider), zap.Error(err))
		h.redirectError(w, r, "authentication_failed")
		return
	}

	userJSON, err := json.Marshal(userhandler.NewUserResponse(u))
	if err != nil {
		h.redirectError(w, r, "authentication_failed")
		return
	}

	q := url.Values{}
	q.Set("token", pair.Access)
	q.Set("refreshToken", pair.Refresh)
	q.Set("user", string(userJSON))
	http.Redirect(w, r, h.redirectURL+"?"+q.Encode(), http.StatusFound)
}

func (h *AuthHandler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	q := url.Values{}
	q.Set("error", code)
	http.Redirect(w, r, h.redirectURL+"?"+q.Encode(), http.StatusFound)
}

func writeAuth(w http.ResponseWriter, status int, pair *service.Tokens, u *userdomain.User) {
	writeJSON(w, status, authResponse{
		Token:        pair.Access,
		TokenType:    "Bearer",
		ExpiresAt:    pair.AccessExpiresAt,
		RefreshToken: pair.Refresh,
		User:         userhandler.NewUserResponse(u),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
