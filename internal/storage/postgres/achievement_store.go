package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codequest-dev/codequest/internal/domain"
)

// AchievementStore implements achievement persistence backed by Postgres.
type AchievementStore struct {
	pool *pgxpool.Pool
}

// NewAchievementStore creates a new Postgres-backed achievement store.
func NewAchievementStore(pool *pgxpool.Pool) *AchievementStore {
	return &AchievementStore{pool: pool}
}

const achievementColumns = `id, name, description, icon, type, condition, xp_reward, sort_order`

// Create inserts a new achievement definition.
func (s *AchievementStore) Create(ctx context.Context, a *domain.Achievement) error {
	cond, err := json.Marshal(a.Condition)
	if err != nil {
		return fmt.Errorf("marshal condition: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO achievements (id, name, description, icon, type, condition,
			xp_reward, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Name, a.Description, a.Icon, string(a.Type), cond,
		a.XPReward, a.SortOrder)
	if err != nil {
		return fmt.Errorf("insert achievement: %w", err)
	}
	return nil
}

// Update replaces an achievement definition.
func (s *AchievementStore) Update(ctx context.Context, a *domain.Achievement) error {
	cond, err := json.Marshal(a.Condition)
	if err != nil {
		return fmt.Errorf("marshal condition: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE achievements SET name = $1, description = $2, icon = $3,
			type = $4, condition = $5, xp_reward = $6, sort_order = $7
		WHERE id = $8`,
		a.Name, a.Description, a.Icon, string(a.Type), cond, a.XPReward,
		a.SortOrder, a.ID)
	if err != nil {
		return fmt.Errorf("update achievement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAchievementNotFound
	}
	return nil
}

// Get retrieves an achievement by ID.
func (s *AchievementStore) Get(ctx context.Context, id uuid.UUID) (*domain.Achievement, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+achievementColumns+" FROM achievements WHERE id = $1", id)
	return scanAchievement(row)
}

// ListAll returns every achievement definition in display order.
func (s *AchievementStore) ListAll(ctx context.Context) ([]*domain.Achievement, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+achievementColumns+" FROM achievements ORDER BY sort_order, name")
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*domain.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// Delete removes an achievement definition and its cascaded unlocks.
func (s *AchievementStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM achievements WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete achievement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAchievementNotFound
	}
	return nil
}

// ListUnlocked returns the unlock records for a user, newest first.
func (s *AchievementStore) ListUnlocked(ctx context.Context, userID uuid.UUID) ([]*domain.UserAchievement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, achievement_id, unlocked_at
		FROM user_achievements WHERE user_id = $1 ORDER BY unlocked_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list unlocked: %w", err)
	}
	defer rows.Close()

	var unlocks []*domain.UserAchievement
	for rows.Next() {
		var ua domain.UserAchievement
		if err := rows.Scan(&ua.ID, &ua.UserID, &ua.AchievementID, &ua.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan unlock: %w", err)
		}
		unlocks = append(unlocks, &ua)
	}
	return unlocks, rows.Err()
}

// Unlock records an achievement grant. The UNIQUE constraint makes the
// insert a no-op on repeat; inserted reports whether this call created
// the record.
func (s *AchievementStore) Unlock(ctx context.Context, userID, achievementID uuid.UUID) (inserted bool, err error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO user_achievements (id, user_id, achievement_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		uuid.New(), userID, achievementID)
	if err != nil {
		return false, fmt.Errorf("unlock achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanAchievement(row pgx.Row) (*domain.Achievement, error) {
	var (
		a     domain.Achievement
		atype string
		cond  []byte
	)
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Icon, &atype, &cond,
		&a.XPReward, &a.SortOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAchievementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan achievement: %w", err)
	}
	a.Type = domain.AchievementType(atype)
	if err := json.Unmarshal(cond, &a.Condition); err != nil {
		return nil, fmt.Errorf("unmarshal condition: %w", err)
	}
	return &a, nil
}
