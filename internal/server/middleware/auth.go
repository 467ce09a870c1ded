package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"nexus-pm/backend/internal/security"
	"nexus-pm/backend/internal/server/httperr"
	"nexus-pm/backend/internal/user/domain"
)

// UserResolver turns the token's subject email into the current account row.
type UserResolver interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Auth validates the Bearer token, resolves the subject to a live account,
// and stashes the identity in the request context. Refresh tokens are not
// accepted here; only access tokens authenticate requests.
func Auth(tokens *security.TokenProvider, users UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httperr.Unauthorized(w, "MISSING_TOKEN", "authorization required")
				return
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				if errors.Is(err, security.ErrTokenExpired) {
					httperr.Unauthorized(w, "TOKEN_EXPIRED", "token expired")
				} else {
					httperr.Unauthorized(w, "TOKEN_MALFORMED", "invalid token")
				}
				return
			}
			if claims.Kind != security.KindAccess {
				httperr.Unauthorized(w, "TOKEN_MALFORMED", "invalid token")
				return
			}

			u, err := users.GetByEmail(r.Context(), claims.Subject)
			if err != nil {
				httperr.Write(w, err)
				return
			}
			if u == nil || !u.IsActive {
				httperr.Unauthorized(w, "INVALID_CREDENTIALS", "account unavailable")
				return
			}

			ctx := WithIdentity(r.Context(), Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return h[len(prefix):], true
}
