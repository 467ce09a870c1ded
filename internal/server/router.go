package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	authhandler "nexus-pm/backend/internal/auth/handler"
	healthhandler "nexus-pm/backend/internal/health/handler"
	issuehandler "nexus-pm/backend/internal/issue/handler"
	projecthandler "nexus-pm/backend/internal/project/handler"
	"nexus-pm/backend/internal/security"
	"nexus-pm/backend/internal/server/middleware"
	sprinthandler "nexus-pm/backend/internal/sprint/handler"
	userhandler "nexus-pm/backend/internal/user/handler"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth    *authhandler.AuthHandler
	User    *userhandler.UserHandler
	Project *projecthandler.ProjectHandler
	Issue   *issuehandler.IssueHandler
	Sprint  *sprinthandler.SprintHandler
	Health  *healthhandler.HealthHandler
}

// NewRouter wires middleware and routes. Login, registration, refresh, the
// OAuth2 callback, health, and metrics are public; everything else requires a
// Bearer access token.
func NewRouter(h Handlers, tokens *security.TokenProvider, users middleware.UserResolver,
	tracer trace.Tracer, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Recovery first so panics in other middleware are caught too.
	r.Use(middleware.Recovery(log))
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Tracing(tracer))
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics)

	r.Get("/health", h.Health.Check)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Auth.Login)
			r.Post("/register", h.Auth.Register)
			r.Post("/signup", h.Auth.Register)
			r.Post("/refresh", h.Auth.Refresh)
			r.Get("/oauth2/callback/{provider}", h.Auth.OAuth2Callback)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(tokens, users))
				r.Get("/me", h.Auth.Me)
				r.Post("/change-password", h.Auth.ChangePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens, users))

			r.Route("/users", func(r chi.Router) {
				r.Get("/lookup", h.User.Lookup)
				r.Get("/{id}", h.User.Get)
				r.Put("/{id}/role", h.User.UpdateRole)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Post("/", h.Project.Create)
				r.Get("/", h.Project.List)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Project.Get)
					r.Put("/", h.Project.Update)
					r.Delete("/", h.Project.Delete)
					r.Put("/status", h.Project.UpdateStatus)
					r.Get("/activity", h.Project.Activity)

					r.Route("/members", func(r chi.Router) {
						r.Get("/", h.Project.Members)
						r.Post("/", h.Project.AddMember)
						r.Delete("/{userId}", h.Project.RemoveMember)
						r.Put("/{userId}/role", h.Project.ChangeRole)
					})

					r.Post("/issues", h.Issue.Create)
					r.Get("/issues", h.Issue.ListByProject)
					r.Post("/sprints", h.Sprint.Create)
					r.Get("/sprints", h.Sprint.ListByProject)
				})
			})

			r.Route("/issues/{id}", func(r chi.Router) {
				r.Get("/", h.Issue.Get)
				r.Put("/", h.Issue.Update)
				r.Delete("/", h.Issue.Delete)
				r.Put("/status", h.Issue.UpdateStatus)
				r.Put("/assign", h.Issue.Assign)
				r.Put("/unassign", h.Issue.Unassign)
				r.Post("/time", h.Issue.LogTime)
				r.Put("/sprint", h.Issue.MoveToSprint)
			})

			r.Route("/sprints/{id}", func(r chi.Router) {
				r.Get("/", h.Sprint.Get)
				r.Put("/", h.Sprint.Update)
				r.Delete("/", h.Sprint.Delete)
				r.Get("/issues", h.Sprint.Issues)
				r.Post("/start", h.Sprint.Start)
				r.Post("/complete", h.Sprint.Complete)
				r.Post("/cancel", h.Sprint.Cancel)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	return r
}
