package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProgressStatus is the lifecycle state of a user's work on one puzzle.
// completed is terminal: resubmission never regresses it.
type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
)

// UserProgress is the single durable record per (user, puzzle) pair.
type UserProgress struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	PuzzleID      uuid.UUID
	Status        ProgressStatus
	BestSolution  string
	Language      string
	HintsUsed     int
	Attempts      int
	TimeSpentSecs int
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

// ProgressStats summarizes a user's overall puzzle progress.
type ProgressStats struct {
	Solved int
	Total  int
	Streak int
}
