package domain

import (
	"time"

	"github.com/google/uuid"
)

// EditorSession is a transient per (user, puzzle) code snapshot kept as an
// autosave convenience. It is a cache, never authoritative progress.
type EditorSession struct {
	UserID    uuid.UUID `json:"user_id"`
	PuzzleID  uuid.UUID `json:"puzzle_id"`
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	StartedAt time.Time `json:"started_at"`
	LastSaved time.Time `json:"last_saved"`
}
