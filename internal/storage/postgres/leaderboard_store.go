package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codequest-dev/codequest/internal/domain"
)

// LeaderboardStore computes XP rankings backed by Postgres.
//
// Rank is standard competition ranking over total_xp (RANK() OVER): users
// with equal XP share a rank and the following rank is skipped. The same
// window query serves both the board and a single user's rank, so the two
// can never disagree.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

// NewLeaderboardStore creates a new Postgres-backed leaderboard store.
func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

const rankedUsers = `
	SELECT u.id, u.username, u.email, u.mobile, u.password_hash, u.level,
		u.current_xp, u.total_xp, u.streak, u.last_active, u.is_admin,
		u.created_at,
		RANK() OVER (ORDER BY u.total_xp DESC) AS rank,
		(SELECT COUNT(*) FROM user_progress up
			WHERE up.user_id = u.id AND up.status = 'completed') AS solved
	FROM users u`

// Top returns the highest-ranked users. Ties share a rank and are ordered
// by username for stable display.
func (s *LeaderboardStore) Top(ctx context.Context, limit int) ([]*domain.UserWithStats, error) {
	rows, err := s.pool.Query(ctx,
		rankedUsers+" ORDER BY rank, u.username LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard top: %w", err)
	}
	defer rows.Close()

	var entries []*domain.UserWithStats
	for rows.Next() {
		e, err := scanRankedUser(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RankFor returns one user's ranked entry.
func (s *LeaderboardStore) RankFor(ctx context.Context, userID uuid.UUID) (*domain.UserWithStats, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT * FROM ("+rankedUsers+") ranked WHERE id = $1", userID)
	e, err := scanRankedUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	return e, err
}

func scanRankedUser(row pgx.Row) (*domain.UserWithStats, error) {
	var (
		e    domain.UserWithStats
		rank int64
	)
	err := row.Scan(&e.ID, &e.Username, &e.Email, &e.Mobile, &e.PasswordHash,
		&e.Level, &e.CurrentXP, &e.TotalXP, &e.Streak, &e.LastActive,
		&e.IsAdmin, &e.CreatedAt, &rank, &e.SolvedCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ranked user: %w", err)
	}
	e.Rank = int(rank)
	return &e, nil
}
