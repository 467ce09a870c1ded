// seed inserts demo accounts and a sample project for local development.
// Idempotent: skips everything if the demo admin (admin@demo.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"nexus-pm/backend/internal/config"
	"nexus-pm/backend/internal/db"
	membershipdomain "nexus-pm/backend/internal/membership/domain"
	membershiprepo "nexus-pm/backend/internal/membership/repository"
	projectdomain "nexus-pm/backend/internal/project/domain"
	projectrepo "nexus-pm/backend/internal/project/repository"
	"nexus-pm/backend/internal/security"
	userdomain "nexus-pm/backend/internal/user/domain"
	userrepo "nexus-pm/backend/internal/user/repository"
)

const demoPassword = "demo123"

type demoUser struct {
	email     string
	firstName string
	lastName  string
	role      userdomain.Role
}

var demoUsers = []demoUser{
	{"admin@demo.com", "Ada", "Admin", userdomain.RoleAdmin},
	{"manager@demo.com", "Morgan", "Manager", userdomain.RoleManager},
	{"member@demo.com", "Mel", "Member", userdomain.RoleMember},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)
	projects := projectrepo.NewPostgresRepository(pool)
	memberships := membershiprepo.NewPostgresRepository(pool)
	hasher := security.NewHasher(cfg.BcryptCost)

	existing, err := users.GetByEmail(ctx, demoUsers[0].email)
	if err != nil {
		log.Fatalf("lookup: %v", err)
	}
	if existing != nil {
		log.Println("demo data already present; nothing to do")
		return
	}

	hash, err := hasher.Hash(demoPassword)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}

	now := time.Now().UTC()
	ids := make(map[string]string, len(demoUsers))
	for _, d := range demoUsers {
		u := &userdomain.User{
			ID:              uuid.New().String(),
			Email:           d.email,
			PasswordHash:    hash,
			FirstName:       d.firstName,
			LastName:        d.lastName,
			Provider:        userdomain.ProviderLocal,
			Role:            d.role,
			IsActive:        true,
			IsEmailVerified: true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create %s: %v", d.email, err)
		}
		ids[d.email] = u.ID
		log.Printf("created %s (%s)", d.email, d.role)
	}

	p := &projectdomain.Project{
		ID:          uuid.New().String(),
		Name:        "Demo Project",
		Key:         "DEMO",
		Description: "Sample project seeded for local development",
		Status:      projectdomain.StatusActive,
		Visibility:  projectdomain.VisibilityPrivate,
		LeadID:      ids["manager@demo.com"],
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	lead := &membershipdomain.Membership{
		ID:        uuid.New().String(),
		ProjectID: p.ID,
		UserID:    p.LeadID,
		Role:      membershipdomain.RoleLead,
		JoinedAt:  now,
	}
	if err := projects.CreateWithLead(ctx, p, lead); err != nil {
		log.Fatalf("create project: %v", err)
	}
	if err := memberships.Create(ctx, &membershipdomain.Membership{
		ID:        uuid.New().String(),
		ProjectID: p.ID,
		UserID:    ids["member@demo.com"],
		Role:      membershipdomain.RoleDeveloper,
		JoinedAt:  now,
	}); err != nil {
		log.Fatalf("add member: %v", err)
	}
	log.Printf("created project %s with 2 members; all demo passwords are %q", p.Key, demoPassword)
}
