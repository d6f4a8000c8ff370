package domain

import (
	"github.com/google/uuid"
)

// Difficulty grades a puzzle.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks if the difficulty is a known value.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// Category groups puzzles for browsing.
type Category struct {
	ID          uuid.UUID
	Name        string
	Description string
	Icon        string
	Color       string
	SortOrder   int
}

// Example is a worked example shown with the problem statement.
type Example struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

// TestCase is one input/expected-output pair used to grade a submission.
// Hidden cases are graded but their data is never shown to the user.
type TestCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Hidden   bool   `json:"hidden"`
}

// Puzzle is a single coding challenge. Content is admin-managed and
// immutable from the end-user's perspective.
type Puzzle struct {
	ID               uuid.UUID
	Title            string
	Description      string
	Difficulty       Difficulty
	CategoryID       uuid.UUID
	Points           int
	Stars            int
	ProblemStatement string
	Examples         []Example
	Constraints      string
	Hints            []string
	StarterCode      map[string]string
	Solution         map[string]string
	TestCases        []TestCase
	SortOrder        int
	UnlockLevel      int
}

// VisibleTestCases returns only the cases a user may see.
func (p *Puzzle) VisibleTestCases() []TestCase {
	visible := make([]TestCase, 0, len(p.TestCases))
	for _, tc := range p.TestCases {
		if !tc.Hidden {
			visible = append(visible, tc)
		}
	}
	return visible
}

// PuzzleWithProgress is a puzzle joined with the caller's progress record.
type PuzzleWithProgress struct {
	Puzzle
	Progress   *UserProgress
	IsUnlocked bool
}
