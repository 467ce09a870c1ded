package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	issuehandler "nexus-pm/backend/internal/issue/handler"
	"nexus-pm/backend/internal/server/httperr"
	"nexus-pm/backend/internal/server/middleware"
	"nexus-pm/backend/internal/sprint/domain"
	"nexus-pm/backend/internal/sprint/service"
)

type SprintResponse struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Name        string     `json:"name"`
	Goal        string     `json:"goal,omitempty"`
	Status      string     `json:"status"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Velocity    *int       `json:"velocity,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func newSprintResponse(s *domain.Sprint) SprintResponse {
	return SprintResponse{
		ID:          s.ID,
		ProjectID:   s.ProjectID,
		Name:        s.Name,
		Goal:        s.Goal,
		Status:      string(s.Status),
		StartDate:   s.StartDate,
		EndDate:     s.EndDate,
		Velocity:    s.Velocity,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		CompletedAt: s.CompletedAt,
	}
}

type SprintHandler struct {
	svc *service.Service
	log *zap.Logger
}

func NewSprintHandler(svc *service.Service, log *zap.Logger) *SprintHandler {
	return &SprintHandler{svc: svc, log: log}
}

type createSprintRequest struct {
	Name      string     `json:"name"`
	Goal      string     `json:"goal"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

func (h *SprintHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}

	s, err := h.svc.Create(r.Context(), middleware.UserID(r.Context()), service.CreateInput{
		ProjectID: chi.URLParam(r, "id"),
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		h.log.Info("sprint create rejected", zap.Error(err))
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSprintResponse(s))
}

func (h *SprintHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	sprints, err := h.svc.ListByProject(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	out := make([]SprintResponse, 0, len(sprints))
	for _, s := range sprints {
		out = append(out, newSprintResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SprintHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSprintResponse(s))
}

// Issues returns the issues attached to the sprint.
func (h *SprintHandler) Issues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.svc.Issues(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	issuehandler.WriteIssueList(w, issues)
}

type updateSprintRequest struct {
	Name      *string    `json:"name"`
	Goal      *string    `json:"goal"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

func (h *SprintHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.BadRequest(w, "invalid request body")
		return
	}
	s, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), service.UpdateInput{
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSprintResponse(s))
}

func (h *SprintHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Start(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSprintResponse(s))
}

func (h *SprintHandler) Complete(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Complete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSprintResponse(s))
}

func (h *SprintHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Cancel(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSprintResponse(s))
}

func (h *SprintHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
