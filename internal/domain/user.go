package domain

import (
	"time"

	"github.com/google/uuid"
)

// XPPerLevel is the width of one level band: a user's level is derived from
// lifetime XP, and CurrentXP tracks progress inside the current band.
const XPPerLevel = 1000

// User represents a registered user with their gamification state.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	Mobile       string
	PasswordHash string
	Level        int
	CurrentXP    int
	TotalXP      int
	Streak       int
	LastActive   *time.Time
	IsAdmin      bool
	CreatedAt    time.Time
}

// LevelForXP returns the level a user with the given lifetime XP holds.
func LevelForXP(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP/XPPerLevel + 1
}

// CurrentXPForTotal returns progress within the current level band.
func CurrentXPForTotal(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP % XPPerLevel
}

// NextStreak applies the daily-streak rule at a new activity moment:
// more activity the same calendar day keeps the streak, activity the
// next day extends it, any longer gap resets it to one.
func NextStreak(streak int, lastActive *time.Time, now time.Time) int {
	if lastActive == nil {
		return 1
	}
	switch daysBetween(*lastActive, now) {
	case 0:
		return max(streak, 1)
	case 1:
		return streak + 1
	default:
		return 1
	}
}

// daysBetween counts the calendar days from a to b in b's location.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, b.Location())
	end := time.Date(by, bm, bd, 0, 0, 0, 0, b.Location())
	return int(end.Sub(start) / (24 * time.Hour))
}

// AuthToken represents an issued bearer token.
type AuthToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the token has expired.
func (t *AuthToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// UserWithStats is a user joined with derived progression figures.
type UserWithStats struct {
	User
	SolvedCount int
	Rank        int
}
