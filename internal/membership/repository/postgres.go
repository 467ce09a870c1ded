package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nexus-pm/backend/internal/db"
	"nexus-pm/backend/internal/membership/domain"
)

const (
	getMembershipQuery = `
SELECT id, project_id, user_id, role, joined_at
FROM project_members
WHERE project_id = $1 AND user_id = $2`

	listMembershipsQuery = `
SELECT id, project_id, user_id, role, joined_at
FROM project_members
WHERE project_id = $1
ORDER BY joined_at`

	createMembershipQuery = `
INSERT INTO project_members (id, project_id, user_id, role, joined_at)
VALUES ($1, $2, $3, $4, $5)`

	deleteMembershipQuery = `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`

	updateMembershipRoleQuery = `UPDATE project_members SET role = $3 WHERE project_id = $1 AND user_id = $2`
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a membership repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByProjectAndUser returns the membership for the pair, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByProjectAndUser(ctx context.Context, projectID, userID string) (*domain.Membership, error) {
	var m domain.Membership
	var role string
	err := r.pool.QueryRow(ctx, getMembershipQuery, projectID, userID).Scan(
		&m.ID, &m.ProjectID, &m.UserID, &role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.Role = domain.Role(role)
	return &m, nil
}

// ListByProject returns all memberships for the project in join order.
func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Membership, error) {
	rows, err := r.pool.Query(ctx, listMembershipsQuery, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Membership
	for rows.Next() {
		var m domain.Membership
		var role string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &role, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Create persists the membership. Returns ErrDuplicateMember when a row already
// exists for the (project, user) pair.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Membership) error {
	_, err := r.pool.Exec(ctx, createMembershipQuery,
		m.ID, m.ProjectID, m.UserID, string(m.Role), m.JoinedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateMember
	}
	return err
}

// Delete removes the membership row for the pair, if any.
func (r *PostgresRepository) Delete(ctx context.Context, projectID, userID string) error {
	_, err := r.pool.Exec(ctx, deleteMembershipQuery, projectID, userID)
	return err
}

// UpdateRole changes the member's project role.
func (r *PostgresRepository) UpdateRole(ctx context.Context, projectID, userID string, role domain.Role) error {
	_, err := r.pool.Exec(ctx, updateMembershipRoleQuery, projectID, userID, string(role))
	return err
}
