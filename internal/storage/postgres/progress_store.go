package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codequest-dev/codequest/internal/domain"
)

// ProgressStore implements per-user puzzle progress backed by Postgres.
type ProgressStore struct {
	pool *pgxpool.Pool
}

// NewProgressStore creates a new Postgres-backed progress store.
func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

const progressColumns = `id, user_id, puzzle_id, status, best_solution, language,
	hints_used, attempts, time_spent_secs, completed_at, created_at`

// Get retrieves the progress record for one (user, puzzle) pair.
func (s *ProgressStore) Get(ctx context.Context, userID, puzzleID uuid.UUID) (*domain.UserProgress, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+progressColumns+" FROM user_progress WHERE user_id = $1 AND puzzle_id = $2",
		userID, puzzleID)
	return scanProgress(row)
}

// ListByUser returns all progress records for a user.
func (s *ProgressStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.UserProgress, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+progressColumns+" FROM user_progress WHERE user_id = $1 ORDER BY created_at",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var records []*domain.UserProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

// Start ensures an in_progress record exists for the pair. If a record
// already exists (any status) it is left untouched.
func (s *ProgressStore) Start(ctx context.Context, userID, puzzleID uuid.UUID, language string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_progress (id, user_id, puzzle_id, status, language)
		VALUES ($1, $2, $3, 'in_progress', $4)
		ON CONFLICT (user_id, puzzle_id) DO NOTHING`,
		uuid.New(), userID, puzzleID, language)
	if err != nil {
		return fmt.Errorf("start progress: %w", err)
	}
	return nil
}

// AddHintUsed increments the hints counter for the pair, creating the
// record if the user peeked at a hint before ever running code.
func (s *ProgressStore) AddHintUsed(ctx context.Context, userID, puzzleID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_progress (id, user_id, puzzle_id, status, hints_used)
		VALUES ($1, $2, $3, 'in_progress', 1)
		ON CONFLICT (user_id, puzzle_id) DO UPDATE SET
			hints_used = user_progress.hints_used + 1`,
		uuid.New(), userID, puzzleID)
	if err != nil {
		return fmt.Errorf("add hint used: %w", err)
	}
	return nil
}

// AddTimeSpent accumulates editor time onto the record.
func (s *ProgressStore) AddTimeSpent(ctx context.Context, userID, puzzleID uuid.UUID, secs int) error {
	if secs <= 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_progress (id, user_id, puzzle_id, status, time_spent_secs)
		VALUES ($1, $2, $3, 'in_progress', $4)
		ON CONFLICT (user_id, puzzle_id) DO UPDATE SET
			time_spent_secs = user_progress.time_spent_secs + $4`,
		uuid.New(), userID, puzzleID, secs)
	if err != nil {
		return fmt.Errorf("add time spent: %w", err)
	}
	return nil
}

// RecordSubmission applies the durable effects of one graded submission in
// a single transaction: the attempt is counted, and on a pass the record
// is promoted to completed and XP is awarded to the user. The completed
// promotion is guarded on the previous status, so exactly one submission
// per pair can ever observe first == true, even under concurrency.
func (s *ProgressStore) RecordSubmission(ctx context.Context, userID, puzzleID uuid.UUID, code, language string, passed bool, xpAmount int) (first bool, user *domain.User, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("begin submission tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO user_progress (id, user_id, puzzle_id, status, language, attempts)
		VALUES ($1, $2, $3, 'in_progress', $4, 1)
		ON CONFLICT (user_id, puzzle_id) DO UPDATE SET
			attempts = user_progress.attempts + 1,
			language = excluded.language`,
		uuid.New(), userID, puzzleID, language)
	if err != nil {
		return false, nil, fmt.Errorf("count attempt: %w", err)
	}

	if passed {
		tag, err := tx.Exec(ctx, `
			UPDATE user_progress SET status = 'completed', completed_at = now()
			WHERE user_id = $1 AND puzzle_id = $2 AND status <> 'completed'`,
			userID, puzzleID)
		if err != nil {
			return false, nil, fmt.Errorf("complete progress: %w", err)
		}
		first = tag.RowsAffected() == 1

		// Keep the latest passing solution regardless of first completion.
		_, err = tx.Exec(ctx, `
			UPDATE user_progress SET best_solution = $1, language = $2
			WHERE user_id = $3 AND puzzle_id = $4`,
			code, language, userID, puzzleID)
		if err != nil {
			return false, nil, fmt.Errorf("save solution: %w", err)
		}

		if first && xpAmount > 0 {
			row := tx.QueryRow(ctx, `
				UPDATE users SET
					total_xp   = total_xp + $1,
					level      = (total_xp + $1) / $2 + 1,
					current_xp = (total_xp + $1) % $2
				WHERE id = $3
				RETURNING `+userColumns,
				xpAmount, domain.XPPerLevel, userID)
			user, err = scanUser(row)
			if err != nil {
				return false, nil, fmt.Errorf("award xp: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, nil, fmt.Errorf("commit submission tx: %w", err)
	}
	return first, user, nil
}

// Stats returns solved/total counts for a user along with their streak.
func (s *ProgressStore) Stats(ctx context.Context, userID uuid.UUID) (*domain.ProgressStats, error) {
	var stats domain.ProgressStats
	row := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM user_progress
				WHERE user_id = $1 AND status = 'completed'),
			(SELECT COUNT(*) FROM puzzles),
			(SELECT streak FROM users WHERE id = $1)`,
		userID)
	if err := row.Scan(&stats.Solved, &stats.Total, &stats.Streak); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("progress stats: %w", err)
	}
	return &stats, nil
}

// CountCompletionsSince returns how many puzzles were completed since the
// cutoff, across all users.
func (s *ProgressStore) CountCompletionsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM user_progress WHERE completed_at >= $1", since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return n, nil
}

// SolvedByDifficulty returns completed-puzzle counts keyed by difficulty.
func (s *ProgressStore) SolvedByDifficulty(ctx context.Context, userID uuid.UUID) (map[domain.Difficulty]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.difficulty, COUNT(*)
		FROM user_progress up
		JOIN puzzles p ON p.id = up.puzzle_id
		WHERE up.user_id = $1 AND up.status = 'completed'
		GROUP BY p.difficulty`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("solved by difficulty: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Difficulty]int)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("scan difficulty count: %w", err)
		}
		counts[domain.Difficulty(d)] = n
	}
	return counts, rows.Err()
}

// LastCompletionBefore returns the most recent completion time strictly
// before the given instant, or nil if the user has none.
func (s *ProgressStore) LastCompletionBefore(ctx context.Context, userID uuid.UUID, before time.Time) (*time.Time, error) {
	var t *time.Time
	row := s.pool.QueryRow(ctx, `
		SELECT MAX(completed_at) FROM user_progress
		WHERE user_id = $1 AND completed_at < $2`,
		userID, before)
	if err := row.Scan(&t); err != nil {
		return nil, fmt.Errorf("last completion: %w", err)
	}
	return t, nil
}

func scanProgress(row pgx.Row) (*domain.UserProgress, error) {
	var (
		p      domain.UserProgress
		status string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.PuzzleID, &status, &p.BestSolution,
		&p.Language, &p.HintsUsed, &p.Attempts, &p.TimeSpentSecs,
		&p.CompletedAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan progress: %w", err)
	}
	p.Status = domain.ProgressStatus(status)
	return &p, nil
}
