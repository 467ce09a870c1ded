package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	activitydomain "nexus-pm/backend/internal/activity/domain"
	membershipdomain "nexus-pm/backend/internal/membership/domain"
	"nexus-pm/backend/internal/project/domain"
	"nexus-pm/backend/internal/project/service"
	"nexus-pm/backend/internal/server/httperr"
	"nexus-pm/backend/internal/server/middleware"
)

type ProjectResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Key         string     `json:"key"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Visibility  string     `json:"visibility"`
	LeadID      string     `json:"leadId"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func newProjectResponse(p *domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Key:         p.Key,
		Description: p.Description,
		Status:      string(p.Status),
		Visibility:  string(p.Visibility),
		LeadID:      p.LeadID,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type MemberResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
}

func newMemberResponse(m *membershipdomain.Membership) MemberResponse {
	return MemberResponse{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		UserID:    m.UserID,
		Role:      string(m.Role),
		JoinedAt:  m.JoinedAt,
	}
}

type ActivityResponse struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	UserID     string    `json:"userId"`
	Action     string    `json:"action"`
	TargetType string    `json:"targetType"`
	TargetID   string    `json:"targetId"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newActivityResponse(a *activitydomain.Activity) ActivityResponse {
	return ActivityResponse{
		ID:         a.ID,
		ProjectID:  a.ProjectID,
		UserID:     a.UserID,
		Action:     a.Action,
		TargetType: a.TargetType,
		TargetID:   a.TargetID,
		Detail:     a.Detail,
		CreatedAt:  a.CreatedAt,
	}
}

type ProjectHandler struct {
	svc *service.Service
	log *zap.Logger
}

func NewProjectHandler(svc *service.Service, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, log: log}
}

type createProjectRequest struct {
	Name        string     `json:"name"`
	Key         string     `json:"key"`
	Description string     `json:"description"`
	Visibility  string     `json:"visibility"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}

	p, err := h.svc.Create(r.Context(), middleware.UserID(r.Context()), service.CreateInput{
		Name:        req.Name,
		Key:         req.Key,
		Description: req.Description,
		Visibility:  domain.Visibility(req.Visibility),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		h.log.Info("project create rejected", zap.String("key", req.Key), zap.Error(err))
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProjectResponse(p))
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, newProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectResponse(p))
}

type updateProjectRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Visibility  *string    `json:"visibility"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}

	in := service.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if req.Visibility != nil {
		v := domain.Visibility(*req.Visibility)
		in.Visibility = &v
	}
	p, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectResponse(p))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *ProjectHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}
	if err := h.svc.UpdateStatus(r.Context(), middleware.UserID(r.Context()),
		chi.URLParam(r, "id"), domain.Status(req.Status)); err != nil {
		httperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Members(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, newMemberResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

type addMemberRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		httperr.BadRequest(w, "userId is required")
		return
	}
	role := membershipdomain.Role(req.Role)
	if req.Role == "" {
		role = membershipdomain.RoleMember
	}

	m, err := h.svc.AddMember(r.Context(), middleware.UserID(r.Context()),
		chi.URLParam(r, "id"), req.UserID, role)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMemberResponse(m))
}

func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveMember(r.Context(), middleware.UserID(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "userId")); err != nil {
		httperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *ProjectHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}
	if err := h.svc.ChangeRole(r.Context(), middleware.UserID(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "userId"), membershipdomain.Role(req.Role)); err != nil {
		httperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.svc.Activity(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), limit)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	out := make([]ActivityResponse, 0, len(records))
	for _, a := range records {
		out = append(out, newActivityResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
