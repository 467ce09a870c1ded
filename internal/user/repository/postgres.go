package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nexus-pm/backend/internal/db"
	"nexus-pm/backend/internal/user/domain"
)

const userColumns = `id, email, COALESCE(password_hash, ''), first_name, last_name,
COALESCE(avatar_url, ''), provider, COALESCE(provider_id, ''), role, is_active,
is_email_verified, created_at, updated_at, last_login_at`

const (
	getUserQuery = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	getUserByEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	createUserQuery = `
INSERT INTO users (id, email, password_hash, first_name, last_name, avatar_url,
                   provider, provider_id, role, is_active, is_email_verified,
                   created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9, $10, $11, $12, $13)`

	updateUserQuery = `
UPDATE users
SET first_name = $2, last_name = $3, avatar_url = NULLIF($4, ''), is_active = $5, updated_at = $6
WHERE id = $1`

	updateLastLoginQuery   = `UPDATE users SET last_login_at = $2 WHERE id = $1`
	updateAvatarQuery      = `UPDATE users SET avatar_url = NULLIF($2, ''), updated_at = now() WHERE id = $1`
	updatePasswordQuery    = `UPDATE users SET password_hash = NULLIF($2, ''), updated_at = now() WHERE id = $1`
	updateUserRoleQuery    = `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a user repository that uses the given pool for persistence.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx, getUserQuery, id))
}

// GetByEmail returns the user with the given email, matched case-insensitively,
// or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx, getUserByEmailQuery, email))
}

// Create persists the user. The user must have ID set. Returns ErrDuplicateEmail
// when the email is already taken.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx, createUserQuery,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.AvatarURL,
		u.Provider, u.ProviderID, string(u.Role), u.IsActive, u.IsEmailVerified,
		u.CreatedAt, u.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

// Update updates the user's profile fields.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx, updateUserQuery,
		u.ID, u.FirstName, u.LastName, u.AvatarURL, u.IsActive, time.Now().UTC())
	return err
}

// UpdateLastLogin stamps the user's last successful login time.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, updateLastLoginQuery, id, at)
	return err
}

// UpdateAvatarURL sets the user's avatar.
func (r *PostgresRepository) UpdateAvatarURL(ctx context.Context, id, avatarURL string) error {
	_, err := r.pool.Exec(ctx, updateAvatarQuery, id, avatarURL)
	return err
}

// UpdatePasswordHash replaces the stored password hash.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.pool.Exec(ctx, updatePasswordQuery, id, passwordHash)
	return err
}

// UpdateRole changes the user's global role.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	_, err := r.pool.Exec(ctx, updateUserRoleQuery, id, string(role))
	return err
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role string
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.AvatarURL, &u.Provider, &u.ProviderID, &role, &u.IsActive,
		&u.IsEmailVerified, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}
