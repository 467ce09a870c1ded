package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	activityrepo "nexus-pm/backend/internal/activity/repository"
	authhandler "nexus-pm/backend/internal/auth/handler"
	authservice "nexus-pm/backend/internal/auth/service"
	"nexus-pm/backend/internal/config"
	"nexus-pm/backend/internal/db"
	"nexus-pm/backend/internal/db/migrate"
	healthhandler "nexus-pm/backend/internal/health/handler"
	issuehandler "nexus-pm/backend/internal/issue/handler"
	issuerepo "nexus-pm/backend/internal/issue/repository"
	issueservice "nexus-pm/backend/internal/issue/service"
	membershiprepo "nexus-pm/backend/internal/membership/repository"
	"nexus-pm/backend/internal/platform/rbac"
	projecthandler "nexus-pm/backend/internal/project/handler"
	projectrepo "nexus-pm/backend/internal/project/repository"
	projectservice "nexus-pm/backend/internal/project/service"
	"nexus-pm/backend/internal/security"
	"nexus-pm/backend/internal/server"
	sprinthandler "nexus-pm/backend/internal/sprint/handler"
	sprintrepo "nexus-pm/backend/internal/sprint/repository"
	sprintservice "nexus-pm/backend/internal/sprint/service"
	"nexus-pm/backend/internal/telemetry/otel"
	userhandler "nexus-pm/backend/internal/user/handler"
	userrepo "nexus-pm/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer pool.Close()

	tracing, err := otel.NewProvider(ctx, cfg.OTLPEndpoint, "nexus-pm-backend", false)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}
	tracing.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL())

	users := userrepo.NewPostgresRepository(pool)
	projects := projectrepo.NewPostgresRepository(pool)
	memberships := membershiprepo.NewPostgresRepository(pool)
	issues := issuerepo.NewPostgresRepository(pool)
	sprints := sprintrepo.NewPostgresRepository(pool)
	activities := activityrepo.NewPostgresRepository(pool)

	checker := rbac.NewChecker(memberships)

	authSvc := authservice.NewAuthService(users, hasher, tokens, logger)
	projectSvc := projectservice.NewService(projects, memberships, users, activities, checker, logger)
	issueSvc := issueservice.NewService(issues, sprints, activities, checker, logger)
	sprintSvc := sprintservice.NewService(sprints, issues, activities, checker, logger)

	handlers := server.Handlers{
		Auth:    authhandler.NewAuthHandler(authSvc, authhandler.GatewayProfile, cfg.OAuthRedirectURL, logger),
		User:    userhandler.NewUserHandler(users, authSvc, logger),
		Project: projecthandler.NewProjectHandler(projectSvc, logger),
		Issue:   issuehandler.NewIssueHandler(issueSvc, logger),
		Sprint:  sprinthandler.NewSprintHandler(sprintSvc, logger),
		Health:  healthhandler.NewHealthHandler(pool, logger),
	}

	tracer := tracing.TracerProvider.Tracer("nexus-pm/backend")
	router := server.NewRouter(handlers, tokens, users, tracer, logger)
	srv := server.New(cfg.HTTPAddr, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown incomplete", zap.Error(err))
		}
	}
	logger.Info("server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "dev" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
