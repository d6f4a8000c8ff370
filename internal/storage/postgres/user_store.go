package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codequest-dev/codequest/internal/domain"
)

// UserStore implements user and auth-token persistence backed by Postgres.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new Postgres-backed user store.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, username, email, mobile, password_hash, level, current_xp,
	total_xp, streak, last_active, is_admin, created_at`

// Create inserts a new user. Username and email collisions map to the
// corresponding sentinel errors.
func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, mobile, password_hash, level,
			current_xp, total_xp, streak, last_active, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Username, u.Email, u.Mobile, u.PasswordHash, u.Level,
		u.CurrentXP, u.TotalXP, u.Streak, u.LastActive, u.IsAdmin, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "users_username_key":
				return domain.ErrUsernameTaken
			case "users_email_key":
				return domain.ErrEmailTaken
			}
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

// GetByUsername retrieves a user by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username)
	return scanUser(row)
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return scanUser(row)
}

// List returns all users ordered by registration time.
func (s *UserStore) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Count returns the number of registered users.
func (s *UserStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CountActiveSince returns the number of users active since the cutoff.
func (s *UserStore) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM users WHERE last_active >= $1", since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return n, nil
}

// SetAdmin grants or revokes admin rights.
func (s *UserStore) SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE users SET is_admin = $1 WHERE id = $2", isAdmin, id)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdatePassword replaces a user's password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE users SET password_hash = $1 WHERE id = $2", hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdateProfile updates the mutable profile fields.
func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, email, mobile string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE users SET email = $1, mobile = $2 WHERE id = $3", email, mobile, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// AwardXP adds amount to a user's lifetime XP and rederives level and
// current_xp in the same statement, so the level invariant can never be
// violated by concurrent awards.
func (s *UserStore) AwardXP(ctx context.Context, id uuid.UUID, amount int) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET
			total_xp   = total_xp + $1,
			level      = (total_xp + $1) / $2 + 1,
			current_xp = (total_xp + $1) % $2
		WHERE id = $3
		RETURNING `+userColumns,
		amount, domain.XPPerLevel, id)
	return scanUser(row)
}

// UpdateStreak sets a user's streak counter and last-active timestamp.
func (s *UserStore) UpdateStreak(ctx context.Context, id uuid.UUID, streak int, lastActive time.Time) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE users SET streak = $1, last_active = $2 WHERE id = $3",
		streak, lastActive, id)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Delete removes a user and all cascaded rows.
func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// CreateToken persists an issued bearer token.
func (s *UserStore) CreateToken(ctx context.Context, t *domain.AuthToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_tokens (id, user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.UserID, t.Token, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetToken looks up a token by its opaque value.
func (s *UserStore) GetToken(ctx context.Context, token string) (*domain.AuthToken, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token, expires_at, created_at
		FROM auth_tokens WHERE token = $1`, token)

	var t domain.AuthToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

// DeleteToken revokes a single token.
func (s *UserStore) DeleteToken(ctx context.Context, token string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM auth_tokens WHERE token = $1", token)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

// DeleteExpiredTokens purges tokens past their expiry.
func (s *UserStore) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM auth_tokens WHERE expires_at < now()")
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Mobile, &u.PasswordHash,
		&u.Level, &u.CurrentXP, &u.TotalXP, &u.Streak, &u.LastActive,
		&u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
