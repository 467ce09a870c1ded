package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nexus-pm/backend/internal/db"
	membershipdomain "nexus-pm/backend/internal/membership/domain"
	"nexus-pm/backend/internal/project/domain"
)

const projectColumns = `id, name, key, COALESCE(description, ''), status, visibility,
lead_id, start_date, end_date, created_at, updated_at`

const (
	getProjectQuery = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	getProjectByKeyQuery = `SELECT ` + projectColumns + ` FROM projects WHERE LOWER(key) = LOWER($1)`

	listProjectsByUserQuery = `
SELECT ` + projectColumns + `
FROM projects p
WHERE EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = $1)
ORDER BY p.created_at DESC`

	createProjectQuery = `
INSERT INTO projects (id, name, key, description, status, visibility, lead_id,
                      start_date, end_date, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`

	createLeadMembershipQuery = `
INSERT INTO project_members (id, project_id, user_id, role, joined_at)
VALUES ($1, $2, $3, $4, $5)`

	updateProjectQuery = `
UPDATE projects
SET name = $2, description = NULLIF($3, ''), visibility = $4, lead_id = $5,
    start_date = $6, end_date = $7, updated_at = $8
WHERE id = $1`

	updateProjectStatusQuery = `UPDATE projects SET status = $2, updated_at = $3 WHERE id = $1`

	deleteProjectQuery = `DELETE FROM projects WHERE id = $1`
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a project repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByID returns the project for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	return scanProject(r.pool.QueryRow(ctx, getProjectQuery, id))
}

// GetByKey returns the project with the given key, matched case-insensitively,
// or nil if not found.
func (r *PostgresRepository) GetByKey(ctx context.Context, key string) (*domain.Project, error) {
	return scanProject(r.pool.QueryRow(ctx, getProjectByKeyQuery, key))
}

// ListByUser returns the projects the user is a member of, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Project, error) {
	rows, err := r.pool.Query(ctx, listProjectsByUserQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateWithLead inserts the project and its LEAD membership in one transaction.
// Returns ErrDuplicateKey when the project key is taken.
func (r *PostgresRepository) CreateWithLead(ctx context.Context, p *domain.Project, lead *membershipdomain.Membership) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, createProjectQuery,
		p.ID, p.Name, p.Key, p.Description, string(p.Status), string(p.Visibility),
		p.LeadID, p.StartDate, p.EndDate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return err
	}
	_, err = tx.Exec(ctx, createLeadMembershipQuery,
		lead.ID, lead.ProjectID, lead.UserID, string(lead.Role), lead.JoinedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update updates the project's mutable fields.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.Project) error {
	_, err := r.pool.Exec(ctx, updateProjectQuery,
		p.ID, p.Name, p.Description, string(p.Visibility), p.LeadID,
		p.StartDate, p.EndDate, time.Now().UTC())
	return err
}

// UpdateStatus changes the project's lifecycle status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	_, err := r.pool.Exec(ctx, updateProjectStatusQuery, id, string(status), time.Now().UTC())
	return err
}

// Delete removes the project; dependent rows cascade via foreign keys.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, deleteProjectQuery, id)
	return err
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	var status, visibility string
	err := row.Scan(
		&p.ID, &p.Name, &p.Key, &p.Description, &status, &visibility,
		&p.LeadID, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Status = domain.Status(status)
	p.Visibility = domain.Visibility(visibility)
	return &p, nil
}
