package domain

import (
	"time"

	"github.com/google/uuid"
)

// AchievementType groups achievements for display purposes.
type AchievementType string

const (
	AchievementPuzzle    AchievementType = "puzzle"
	AchievementStreak    AchievementType = "streak"
	AchievementMilestone AchievementType = "milestone"
	AchievementSpecial   AchievementType = "special"
)

// Condition metrics understood by the achievement evaluator.
const (
	MetricPuzzlesSolved = "puzzles_solved"
	MetricStreakDays    = "streak_days"
	MetricTotalXP       = "total_xp"
	MetricLevel         = "level"
	MetricEasySolved    = "easy_solved"
	MetricMediumSolved  = "medium_solved"
	MetricHardSolved    = "hard_solved"
)

// Condition is an achievement's unlock rule: a metric reaching a threshold.
type Condition struct {
	Metric string `json:"metric"`
	Target int    `json:"target"`
}

// Achievement is a named milestone with an unlock condition and an XP
// reward, granted at most once per user. special-typed achievements are
// never auto-granted by the evaluator.
type Achievement struct {
	ID          uuid.UUID
	Name        string
	Description string
	Icon        string
	Type        AchievementType
	Condition   Condition
	XPReward    int
	SortOrder   int
}

// UserAchievement is the unlock join record, created exactly once per
// (user, achievement) pair.
type UserAchievement struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	AchievementID uuid.UUID
	UnlockedAt    time.Time
}
