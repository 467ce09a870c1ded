// Package httperr maps service sentinel errors to HTTP responses so handlers
// never hand-pick status codes.
package httperr

import (
	"encoding/json"
	"errors"
	"net/http"

	authservice "nexus-pm/backend/internal/auth/service"
	issueservice "nexus-pm/backend/internal/issue/service"
	"nexus-pm/backend/internal/platform/rbac"
	projectservice "nexus-pm/backend/internal/project/service"
	"nexus-pm/backend/internal/security"
	sprintservice "nexus-pm/backend/internal/sprint/service"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type mapping struct {
	err    error
	status int
	code   string
}

// Ordering matters only for readability; sentinels never overlap.
var mappings = []mapping{
	{authservice.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{authservice.ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN"},
	{security.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
	{security.ErrTokenMalformed, http.StatusUnauthorized, "TOKEN_MALFORMED"},

	{authservice.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{rbac.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},

	{authservice.ErrUserNotFound, http.StatusNotFound, "NOT_FOUND"},
	{projectservice.ErrProjectNotFound, http.StatusNotFound, "NOT_FOUND"},
	{projectservice.ErrUserNotFound, http.StatusNotFound, "NOT_FOUND"},
	{projectservice.ErrMemberNotFound, http.StatusNotFound, "NOT_FOUND"},
	{issueservice.ErrIssueNotFound, http.StatusNotFound, "NOT_FOUND"},
	{issueservice.ErrProjectNotFound, http.StatusNotFound, "NOT_FOUND"},
	{issueservice.ErrSprintNotFound, http.StatusNotFound, "NOT_FOUND"},
	{sprintservice.ErrSprintNotFound, http.StatusNotFound, "NOT_FOUND"},
	{sprintservice.ErrProjectNotFound, http.StatusNotFound, "NOT_FOUND"},
	{rbac.ErrNotAMember, http.StatusNotFound, "NOT_FOUND"},

	{authservice.ErrEmailAlreadyRegistered, http.StatusConflict, "EMAIL_ALREADY_REGISTERED"},
	{projectservice.ErrDuplicateKey, http.StatusConflict, "PROJECT_KEY_EXISTS"},
	{projectservice.ErrAlreadyMember, http.StatusConflict, "ALREADY_MEMBER"},
	{projectservice.ErrCannotRemoveLead, http.StatusConflict, "CANNOT_REMOVE_LEAD"},
	{issueservice.ErrSprintClosed, http.StatusConflict, "SPRINT_CLOSED"},
	{sprintservice.ErrSprintAlreadyActive, http.StatusConflict, "SPRINT_ALREADY_ACTIVE"},
	{sprintservice.ErrNotPlanned, http.StatusConflict, "SPRINT_NOT_PLANNED"},
	{sprintservice.ErrSprintNotActive, http.StatusConflict, "SPRINT_NOT_ACTIVE"},
	{sprintservice.ErrSprintCompleted, http.StatusConflict, "SPRINT_COMPLETED"},
	{sprintservice.ErrSprintActive, http.StatusConflict, "SPRINT_ACTIVE"},

	{issueservice.ErrInvalidDuration, http.StatusBadRequest, "INVALID_DURATION"},
	{issueservice.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS"},
	{issueservice.ErrAssigneeNotMember, http.StatusBadRequest, "ASSIGNEE_NOT_MEMBER"},
	{projectservice.ErrInvalidRole, http.StatusBadRequest, "INVALID_ROLE"},
	{authservice.ErrWeakPassword, http.StatusBadRequest, "WEAK_PASSWORD"},
	{authservice.ErrValidation, http.StatusBadRequest, "VALIDATION_FAILED"},
	{projectservice.ErrValidation, http.StatusBadRequest, "VALIDATION_FAILED"},
	{issueservice.ErrValidation, http.StatusBadRequest, "VALIDATION_FAILED"},
	{sprintservice.ErrValidation, http.StatusBadRequest, "VALIDATION_FAILED"},
}

// Map resolves an error to its HTTP status and error body. Unmapped errors
// become an opaque 500; their details stay in the logs.
func Map(err error) (int, ErrorResponse) {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status, ErrorResponse{Error: ErrorDetail{Code: m.code, Message: err.Error()}}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Error: ErrorDetail{Code: "INTERNAL_ERROR", Message: "internal server error"},
	}
}

// Write sends the mapped error response for err.
func Write(w http.ResponseWriter, err error) {
	status, body := Map(err)
	WriteStatus(w, status, body)
}

// WriteStatus sends an explicit error response.
func WriteStatus(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// BadRequest sends a 400 with the given message, for request decode and
// parameter failures that never reach a service.
func BadRequest(w http.ResponseWriter, message string) {
	WriteStatus(w, http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{Code: "INVALID_INPUT", Message: message},
	})
}

// Unauthorized sends a 401 with the given code.
func Unauthorized(w http.ResponseWriter, code, message string) {
	WriteStatus(w, http.StatusUnauthorized, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}
