package achievement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/domain"
)

// Store is the persistence surface the evaluator needs for achievements.
type Store interface {
	ListAll(ctx context.Context) ([]*domain.Achievement, error)
	ListUnlocked(ctx context.Context, userID uuid.UUID) ([]*domain.UserAchievement, error)
	Unlock(ctx context.Context, userID, achievementID uuid.UUID) (bool, error)
}

// UserStore reads and rewards the user being evaluated.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	AwardXP(ctx context.Context, id uuid.UUID, amount int) (*domain.User, error)
}

// ProgressStore supplies solve counts for condition metrics.
type ProgressStore interface {
	Stats(ctx context.Context, userID uuid.UUID) (*domain.ProgressStats, error)
	SolvedByDifficulty(ctx context.Context, userID uuid.UUID) (map[domain.Difficulty]int, error)
}

// Evaluator checks a user's stats against every achievement condition and
// unlocks what they have earned. Unlocks are at-most-once: the store's
// uniqueness guarantee makes re-evaluation safe to call after every
// submission.
type Evaluator struct {
	achievements Store
	users        UserStore
	progress     ProgressStore
	logger       *slog.Logger
}

// NewEvaluator creates an achievement evaluator.
func NewEvaluator(achievements Store, users UserStore, progress ProgressStore, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		achievements: achievements,
		users:        users,
		progress:     progress,
		logger:       logger,
	}
}

// Evaluate unlocks every achievement the user now qualifies for and
// returns the newly unlocked ones. XP rewards from unlocks count toward
// further conditions, so evaluation repeats until a pass unlocks nothing;
// the loop is bounded by the number of achievement definitions.
func (e *Evaluator) Evaluate(ctx context.Context, userID uuid.UUID) ([]*domain.Achievement, error) {
	all, err := e.achievements.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}

	unlockedRecs, err := e.achievements.ListUnlocked(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unlocked: %w", err)
	}
	unlocked := make(map[uuid.UUID]bool, len(unlockedRecs))
	for _, rec := range unlockedRecs {
		unlocked[rec.AchievementID] = true
	}

	var newly []*domain.Achievement
	for pass := 0; pass < len(all)+1; pass++ {
		metrics, err := e.metrics(ctx, userID)
		if err != nil {
			return nil, err
		}

		var unlockedThisPass bool
		for _, a := range all {
			if unlocked[a.ID] {
				continue
			}
			// special achievements are granted by admins, never automatically
			if a.Type == domain.AchievementSpecial {
				continue
			}
			value, known := metrics[a.Condition.Metric]
			if !known || value < a.Condition.Target {
				continue
			}

			inserted, err := e.achievements.Unlock(ctx, userID, a.ID)
			if err != nil {
				return newly, fmt.Errorf("unlock %s: %w", a.Name, err)
			}
			unlocked[a.ID] = true
			if !inserted {
				// Lost a race with a concurrent evaluation; the other
				// winner reports and rewards it.
				continue
			}

			if a.XPReward > 0 {
				if _, err := e.users.AwardXP(ctx, userID, a.XPReward); err != nil {
					return newly, fmt.Errorf("award achievement xp: %w", err)
				}
			}

			if e.logger != nil {
				e.logger.Info("achievement unlocked",
					"user_id", userID, "achievement", a.Name, "xp_reward", a.XPReward)
			}
			newly = append(newly, a)
			unlockedThisPass = true
		}

		if !unlockedThisPass {
			break
		}
	}

	return newly, nil
}

// metrics snapshots every value a condition can reference.
func (e *Evaluator) metrics(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	stats, err := e.progress.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("progress stats: %w", err)
	}
	byDifficulty, err := e.progress.SolvedByDifficulty(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("solved by difficulty: %w", err)
	}

	return map[string]int{
		domain.MetricPuzzlesSolved: stats.Solved,
		domain.MetricStreakDays:    user.Streak,
		domain.MetricTotalXP:       user.TotalXP,
		domain.MetricLevel:         user.Level,
		domain.MetricEasySolved:    byDifficulty[domain.DifficultyEasy],
		domain.MetricMediumSolved:  byDifficulty[domain.DifficultyMedium],
		domain.MetricHardSolved:    byDifficulty[domain.DifficultyHard],
	}, nil
}
