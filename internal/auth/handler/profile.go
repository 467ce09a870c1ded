package handler

import (
	"errors"
	"net/http"

	"nexus-pm/backend/internal/auth/service"
)

// GatewayProfile reads the verified profile that the OAuth2-terminating
// gateway forwards as query parameters after completing the provider
// handshake. The callback route must only be reachable through that gateway.
func GatewayProfile(r *http.Request, provider string) (service.FederatedProfile, error) {
	q := r.URL.Query()
	p := service.FederatedProfile{
		Provider:   provider,
		ProviderID: q.Get("providerId"),
		Email:      q.Get("email"),
		FirstName:  q.Get("firstName"),
		LastName:   q.Get("lastName"),
		AvatarURL:  q.Get("avatarUrl"),
	}
	if p.Email == "" {
		return service.FederatedProfile{}, errors.New("profile missing email")
	}
	return p, nil
}
