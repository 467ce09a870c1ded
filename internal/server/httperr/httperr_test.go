package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	authservice "nexus-pm/backend/internal/auth/service"
	issueservice "nexus-pm/backend/internal/issue/service"
	"nexus-pm/backend/internal/platform/rbac"
	projectservice "nexus-pm/backend/internal/project/service"
	sprintservice "nexus-pm/backend/internal/sprint/service"
)

func TestMapSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid credentials", authservice.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"non-member reads as not found", rbac.ErrNotAMember, http.StatusNotFound, "NOT_FOUND"},
		{"insufficient project role", rbac.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"duplicate project key", projectservice.ErrDuplicateKey, http.StatusConflict, "PROJECT_KEY_EXISTS"},
		{"sprint already active", sprintservice.ErrSprintAlreadyActive, http.StatusConflict, "SPRINT_ALREADY_ACTIVE"},
		{"negative time log", issueservice.ErrInvalidDuration, http.StatusBadRequest, "INVALID_DURATION"},
		{"wrapped sentinel still maps", fmt.Errorf("load issue: %w", issueservice.ErrIssueNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"unknown error is opaque 500", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := Map(tc.err)
			if status != tc.status {
				t.Errorf("status = %d, want %d", status, tc.status)
			}
			if body.Error.Code != tc.code {
				t.Errorf("code = %q, want %q", body.Error.Code, tc.code)
			}
		})
	}
}

func TestMapHidesInternalDetails(t *testing.T) {
	_, body := Map(errors.New("dial tcp 10.0.0.5:5432: i/o timeout"))
	if body.Error.Message != "internal server error" {
		t.Fatalf("message leaked internals: %q", body.Error.Message)
	}
}
