package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nexus-pm/backend/internal/issue/domain"
)

const issueColumns = `id, project_id, sprint_id, key, number, title, COALESCE(description, ''),
type, status, priority, story_points, estimate_hours, time_spent_hours,
reporter_id, assignee_id, due_date, created_at, updated_at, resolved_at`

const (
	getIssueQuery = `SELECT ` + issueColumns + ` FROM issues WHERE id = $1`

	getIssueByKeyQuery = `SELECT ` + issueColumns + ` FROM issues WHERE project_id = $1 AND key = $2`

	listIssuesByProjectQuery = `SELECT ` + issueColumns + ` FROM issues WHERE project_id = $1 ORDER BY number`

	listIssuesBySprintQuery = `SELECT ` + issueColumns + ` FROM issues WHERE sprint_id = $1 ORDER BY number`

	listBacklogQuery = `SELECT ` + issueColumns + ` FROM issues WHERE project_id = $1 AND sprint_id IS NULL ORDER BY number`

	lockProjectKeyQuery = `SELECT key FROM projects WHERE id = $1 FOR UPDATE`

	maxIssueNumberQuery = `SELECT COALESCE(MAX(number), 0) FROM issues WHERE project_id = $1`

	createIssueQuery = `
INSERT INTO issues (id, project_id, sprint_id, key, number, title, description,
                    type, status, priority, story_points, estimate_hours,
                    time_spent_hours, reporter_id, assignee_id, due_date,
                    created_at, updated_at, resolved_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	updateIssueQuery = `
UPDATE issues
SET sprint_id = $2, title = $3, description = NULLIF($4, ''), type = $5,
    status = $6, priority = $7, story_points = $8, estimate_hours = $9,
    time_spent_hours = $10, assignee_id = $11, due_date = $12, updated_at = $13,
    resolved_at = $14
WHERE id = $1`

	deleteIssueQuery = `DELETE FROM issues WHERE id = $1`
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an issue repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByID returns the issue for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	return scanIssue(r.pool.QueryRow(ctx, getIssueQuery, id))
}

// GetByKey returns the issue with the given key within the project, or nil if not found.
func (r *PostgresRepository) GetByKey(ctx context.Context, projectID, key string) (*domain.Issue, error) {
	return scanIssue(r.pool.QueryRow(ctx, getIssueByKeyQuery, projectID, key))
}

// ListByProject returns the project's issues in key order.
func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Issue, error) {
	return r.list(ctx, listIssuesByProjectQuery, projectID)
}

// ListBySprint returns the sprint's issues in key order.
func (r *PostgresRepository) ListBySprint(ctx context.Context, sprintID string) ([]*domain.Issue, error) {
	return r.list(ctx, listIssuesBySprintQuery, sprintID)
}

// ListBacklog returns the project's issues with no sprint assigned.
func (r *PostgresRepository) ListBacklog(ctx context.Context, projectID string) ([]*domain.Issue, error) {
	return r.list(ctx, listBacklogQuery, projectID)
}

// CreateWithKey inserts the issue with a freshly allocated per-project number.
// Allocation locks the project row for the duration of the transaction, which
// serializes concurrent creations in the same project. Returns
// ErrProjectNotFound when the project does not exist.
func (r *PostgresRepository) CreateWithKey(ctx context.Context, i *domain.Issue) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var projectKey string
	if err := tx.QueryRow(ctx, lockProjectKeyQuery, i.ProjectID).Scan(&projectKey); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProjectNotFound
		}
		return err
	}

	var maxNumber int
	if err := tx.QueryRow(ctx, maxIssueNumberQuery, i.ProjectID).Scan(&maxNumber); err != nil {
		return err
	}
	i.Number = maxNumber + 1
	i.Key = fmt.Sprintf("%s-%d", projectKey, i.Number)

	_, err = tx.Exec(ctx, createIssueQuery,
		i.ID, i.ProjectID, i.SprintID, i.Key, i.Number, i.Title, i.Description,
		string(i.Type), string(i.Status), string(i.Priority), i.StoryPoints,
		i.EstimateHours, i.TimeSpentHours, i.ReporterID, i.AssigneeID, i.DueDate,
		i.CreatedAt, i.UpdatedAt, i.ResolvedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update writes all mutable issue fields.
func (r *PostgresRepository) Update(ctx context.Context, i *domain.Issue) error {
	_, err := r.pool.Exec(ctx, updateIssueQuery,
		i.ID, i.SprintID, i.Title, i.Description, string(i.Type), string(i.Status),
		string(i.Priority), i.StoryPoints, i.EstimateHours, i.TimeSpentHours,
		i.AssigneeID, i.DueDate, i.UpdatedAt, i.ResolvedAt)
	return err
}

// Delete removes the issue.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, deleteIssueQuery, id)
	return err
}

func (r *PostgresRepository) list(ctx context.Context, query, arg string) ([]*domain.Issue, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var i domain.Issue
	var typ, status, priority string
	err := row.Scan(
		&i.ID, &i.ProjectID, &i.SprintID, &i.Key, &i.Number, &i.Title, &i.Description,
		&typ, &status, &priority, &i.StoryPoints, &i.EstimateHours, &i.TimeSpentHours,
		&i.ReporterID, &i.AssigneeID, &i.DueDate, &i.CreatedAt, &i.UpdatedAt, &i.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.Type = domain.Type(typ)
	i.Status = domain.Status(status)
	i.Priority = domain.Priority(priority)
	return &i, nil
}
