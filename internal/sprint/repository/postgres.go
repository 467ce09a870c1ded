package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nexus-pm/backend/internal/db"
	"nexus-pm/backend/internal/sprint/domain"
)

const sprintColumns = `id, project_id, name, COALESCE(goal, ''), status, start_date, end_date,
velocity, created_at, updated_at, completed_at`

const (
	getSprintQuery = `SELECT ` + sprintColumns + ` FROM sprints WHERE id = $1`

	getSprintForUpdateQuery = `SELECT ` + sprintColumns + ` FROM sprints WHERE id = $1 FOR UPDATE`

	listSprintsByProjectQuery = `SELECT ` + sprintColumns + ` FROM sprints WHERE project_id = $1 ORDER BY created_at`

	getActiveSprintQuery = `SELECT ` + sprintColumns + ` FROM sprints WHERE project_id = $1 AND status = 'ACTIVE'`

	createSprintQuery = `
INSERT INTO sprints (id, project_id, name, goal, status, start_date, end_date,
                     velocity, created_at, updated_at, completed_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`

	updateSprintQuery = `
UPDATE sprints
SET name = $2, goal = NULLIF($3, ''), start_date = $4, end_date = $5, updated_at = $6
WHERE id = $1`

	activateSprintQuery = `
UPDATE sprints
SET status = 'ACTIVE', start_date = COALESCE(start_date, $2), updated_at = $2
WHERE id = $1`

	// Velocity is computed inside the same statement that flips the status, so
	// the snapshot and the transition are atomic.
	completeSprintQuery = `
UPDATE sprints
SET status = 'COMPLETED',
    velocity = (SELECT COALESCE(SUM(story_points), 0)
                FROM issues
                WHERE sprint_id = $1 AND status IN ('RESOLVED', 'CLOSED')),
    completed_at = $2,
    updated_at = $2
WHERE id = $1 AND status = 'ACTIVE'`

	cancelSprintQuery = `
UPDATE sprints SET status = 'CANCELLED', updated_at = $2
WHERE id = $1 AND status != 'COMPLETED'`

	detachSprintIssuesQuery = `UPDATE issues SET sprint_id = NULL, updated_at = $2 WHERE sprint_id = $1`

	deleteSprintQuery = `DELETE FROM sprints WHERE id = $1`
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a sprint repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByID returns the sprint for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Sprint, error) {
	return scanSprint(r.pool.QueryRow(ctx, getSprintQuery, id))
}

// ListByProject returns the project's sprints, oldest first.
func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Sprint, error) {
	rows, err := r.pool.Query(ctx, listSprintsByProjectQuery, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Sprint
	for rows.Next() {
		s, err := scanSprint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetActiveByProject returns the project's active sprint, or nil if none.
func (r *PostgresRepository) GetActiveByProject(ctx context.Context, projectID string) (*domain.Sprint, error) {
	return scanSprint(r.pool.QueryRow(ctx, getActiveSprintQuery, projectID))
}

// Create persists a new sprint.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Sprint) error {
	_, err := r.pool.Exec(ctx, createSprintQuery,
		s.ID, s.ProjectID, s.Name, s.Goal, string(s.Status), s.StartDate, s.EndDate,
		s.Velocity, s.CreatedAt, s.UpdatedAt, s.CompletedAt)
	return err
}

// Update writes the sprint's editable fields. Status transitions go through the
// workflow operations instead.
func (r *PostgresRepository) Update(ctx context.Context, s *domain.Sprint) error {
	_, err := r.pool.Exec(ctx, updateSprintQuery,
		s.ID, s.Name, s.Goal, s.StartDate, s.EndDate, time.Now().UTC())
	return err
}

// Activate moves the sprint from PLANNED to ACTIVE and stamps start_date if it
// was never planned. The sprint row is locked for the precondition check; the
// partial unique index on (project_id) WHERE status = 'ACTIVE' backs the
// single-active-sprint invariant against writers outside this transaction.
func (r *PostgresRepository) Activate(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s, err := scanSprint(tx.QueryRow(ctx, getSprintForUpdateQuery, id))
	if err != nil {
		return err
	}
	if s == nil || s.Status != domain.StatusPlanned {
		return ErrNotPlanned
	}

	_, err = tx.Exec(ctx, activateSprintQuery, id, time.Now().UTC())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrActiveSprintExists
		}
		return err
	}
	return tx.Commit(ctx)
}

// Complete moves the sprint from ACTIVE to COMPLETED, snapshotting velocity in
// the same statement. Returns ErrNotActive when the sprint is missing or not
// active, and the updated sprint otherwise.
func (r *PostgresRepository) Complete(ctx context.Context, id string) (*domain.Sprint, error) {
	tag, err := r.pool.Exec(ctx, completeSprintQuery, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotActive
	}
	return r.GetByID(ctx, id)
}

// Cancel moves the sprint to CANCELLED unless it is already COMPLETED.
func (r *PostgresRepository) Cancel(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, cancelSprintQuery, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCompleted
	}
	return nil
}

// Delete removes the sprint after detaching its issues back to the backlog,
// all in one transaction. Active sprints cannot be deleted.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s, err := scanSprint(tx.QueryRow(ctx, getSprintForUpdateQuery, id))
	if err != nil {
		return err
	}
	if s == nil {
		return tx.Commit(ctx)
	}
	if s.Status == domain.StatusActive {
		return ErrActive
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, detachSprintIssuesQuery, id, now); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, deleteSprintQuery, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanSprint(row pgx.Row) (*domain.Sprint, error) {
	var s domain.Sprint
	var status string
	err := row.Scan(
		&s.ID, &s.ProjectID, &s.Name, &s.Goal, &status, &s.StartDate, &s.EndDate,
		&s.Velocity, &s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Status = domain.Status(status)
	return &s, nil
}
