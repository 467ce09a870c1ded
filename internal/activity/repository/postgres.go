package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"nexus-pm/backend/internal/activity/domain"
)

const (
	createActivityQuery = `
INSERT INTO activities (id, project_id, user_id, action, target_type, target_id, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`

	listActivitiesQuery = `
SELECT id, project_id, user_id, action, target_type, target_id, COALESCE(detail, ''), created_at
FROM activities
WHERE project_id = $1
ORDER BY created_at DESC
LIMIT $2`
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an activity repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the activity record.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Activity) error {
	_, err := r.pool.Exec(ctx, createActivityQuery,
		a.ID, a.ProjectID, a.UserID, a.Action, a.TargetType, a.TargetID, a.Detail, a.CreatedAt)
	return err
}

// ListByProject returns the project's newest activity records, capped at limit.
func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string, limit int) ([]*domain.Activity, error) {
	rows, err := r.pool.Query(ctx, listActivitiesQuery, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.UserID, &a.Action, &a.TargetType,
			&a.TargetID, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
