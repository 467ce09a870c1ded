package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"nexus-pm/backend/internal/issue/domain"
	"nexus-pm/backend/internal/issue/service"
	"nexus-pm/backend/internal/server/httperr"
	"nexus-pm/backend/internal/server/middleware"
)

type IssueResponse struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"projectId"`
	SprintID       *string    `json:"sprintId,omitempty"`
	Key            string     `json:"key"`
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	StoryPoints    *int       `json:"storyPoints,omitempty"`
	EstimateHours  *float64   `json:"estimateHours,omitempty"`
	TimeSpentHours float64    `json:"timeSpentHours"`
	ReporterID     string     `json:"reporterId"`
	AssigneeID     *string    `json:"assigneeId,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

func newIssueResponse(i *domain.Issue) IssueResponse {
	return IssueResponse{
		ID:             i.ID,
		ProjectID:      i.ProjectID,
		SprintID:       i.SprintID,
		Key:            i.Key,
		Number:         i.Number,
		Title:          i.Title,
		Description:    i.Description,
		Type:           string(i.Type),
		Status:         string(i.Status),
		Priority:       string(i.Priority),
		StoryPoints:    i.StoryPoints,
		EstimateHours:  i.EstimateHours,
		TimeSpentHours: i.TimeSpentHours,
		ReporterID:     i.ReporterID,
		AssigneeID:     i.AssigneeID,
		DueDate:        i.DueDate,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
		ResolvedAt:     i.ResolvedAt,
	}
}

type IssueHandler struct {
	svc *service.Service
	log *zap.Logger
}

func NewIssueHandler(svc *service.Service, log *zap.Logger) *IssueHandler {
	return &IssueHandler{svc: svc, log: log}
}

type createIssueRequest struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Type          string     `json:"type"`
	Priority      string     `json:"priority"`
	StoryPoints   *int       `json:"storyPoints"`
	EstimateHours *float64   `json:"estimateHours"`
	AssigneeID    *string    `json:"assigneeId"`
	SprintID      *string    `json:"sprintId"`
	DueDate       *time.Time `json:"dueDate"`
}

// Create makes an issue in the project from the URL. The issue key comes back
// allocated; clients never supply one.
func (h *IssueHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}

	i, err := h.svc.Create(r.Context(), middleware.UserID(r.Context()), service.CreateInput{
		ProjectID:     chi.URLParam(r, "id"),
		Title:         req.Title,
		Description:   req.Description,
		Type:          domain.Type(req.Type),
		Priority:      domain.Priority(req.Priority),
		StoryPoints:   req.StoryPoints,
		EstimateHours: req.EstimateHours,
		AssigneeID:    req.AssigneeID,
		SprintID:      req.SprintID,
		DueDate:       req.DueDate,
	})
	if err != nil {
		h.log.Info("issue create rejected", zap.Error(err))
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newIssueResponse(i))
}

func (h *IssueHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserID(r.Context())
	projectID := chi.URLParam(r, "id")

	var issues []*domain.Issue
	var err error
	if r.URL.Query().Get("backlog") == "true" {
		issues, err = h.svc.ListBacklog(r.Context(), actor, projectID)
	} else {
		issues, err = h.svc.ListByProject(r.Context(), actor, projectID)
	}
	if err != nil {
		httperr.Write(w, err)
		return
	}
	WriteIssueList(w, issues)
}

func (h *IssueHandler) Get(w http.ResponseWriter, r *http.Request) {
	i, err := h.svc.Get(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIssueResponse(i))
}

type updateIssueRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Type          *string    `json:"type"`
	Priority      *string    `json:"priority"`
	StoryPoints   *int       `json:"storyPoints"`
	EstimateHours *float64   `json:"estimateHours"`
	DueDate       *time.Time `json:"dueDate"`
}

func (h *IssueHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}

	in := service.UpdateInput{
		Title:         req.Title,
		Description:   req.Description,
		StoryPoints:   req.StoryPoints,
		EstimateHours: req.EstimateHours,
		DueDate:       req.DueDate,
	}
	if req.Type != nil {
		t := domain.Type(*req.Type)
		in.Type = &t
	}
	if req.Priority != nil {
		p := domain.Priority(*req.Priority)
		in.Priority = &p
	}
	i, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIssueResponse(i))
}

type updateIssueStatusRequest struct {
	Status string `json:"status"`
}

func (h *IssueHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateIssueStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}
	i, err := h.svc.UpdateStatus(r.Context(), middleware.UserID(r.Context()),
		chi.URLParam(r, "id"), domain.Status(req.Status))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIssueResponse(i))
}

type assignRequest struct {
	AssigneeID string `json:"assigneeId"`
}

func (h *IssueHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}
	if req.AssigneeID == "" {
		httperr.BadRequest(w, "assigneeId is required")
		return
	}
	i, err := h.svc.Assign(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), req.AssigneeID)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIssueResponse(i))
}

func (h *IssueHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	i, err := h.svc.Unassign(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIssueResponse(i))
}

type logTimeRequest struct {
	Hours float64 `json:"hours"`
}

func (h *IssueHandler) LogTime(w http.ResponseWriter, r *http.Request) {
	var req logTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}
	i, err := h.svc.LogTime(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), req.Hours)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIssueResponse(i))
}

type moveToSprintRequest struct {
	SprintID *string `json:"sprintId"` // null moves the issue to the backlog
}

func (h *IssueHandler) MoveToSprint(w http.ResponseWriter, r *http.Request) {
	var req moveToSprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}
	i, err := h.svc.MoveToSprint(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), req.SprintID)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIssueResponse(i))
}

func (h *IssueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WriteIssueList writes a JSON array of issues; the sprint handler reuses it
// for sprint-scoped listings.
func WriteIssueList(w http.ResponseWriter, issues []*domain.Issue) {
	out := make([]IssueResponse, 0, len(issues))
	for _, i := range issues {
		out = append(out, newIssueResponse(i))
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
