package progression

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/domain"
	"github.com/codequest-dev/codequest/internal/grader"
)

// PuzzleStore supplies puzzle content for grading.
type PuzzleStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Puzzle, error)
}

// ProgressStore persists the durable effects of runs and submissions.
type ProgressStore interface {
	Start(ctx context.Context, userID, puzzleID uuid.UUID, language string) error
	AddHintUsed(ctx context.Context, userID, puzzleID uuid.UUID) error
	RecordSubmission(ctx context.Context, userID, puzzleID uuid.UUID, code, language string, passed bool, xpAmount int) (first bool, user *domain.User, err error)
	Stats(ctx context.Context, userID uuid.UUID) (*domain.ProgressStats, error)
}

// UserStore updates streak state after a passing submission.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateStreak(ctx context.Context, id uuid.UUID, streak int, lastActive time.Time) error
}

// Grader grades code against test cases.
type Grader interface {
	Grade(ctx context.Context, language, code string, cases []domain.TestCase) (*grader.Result, error)
}

// AchievementEvaluator unlocks whatever the user just earned.
type AchievementEvaluator interface {
	Evaluate(ctx context.Context, userID uuid.UUID) ([]*domain.Achievement, error)
}

// Service implements the run and submit workflows. Run is a scratchpad:
// it grades against the visible cases only and changes nothing durable
// beyond marking the puzzle in progress. Submit grades against every
// case and, on a first-ever pass, awards XP, advances the streak, and
// triggers achievement evaluation.
type Service struct {
	puzzles      PuzzleStore
	progress     ProgressStore
	users        UserStore
	grader       Grader
	achievements AchievementEvaluator
	logger       *slog.Logger
	now          func() time.Time
}

// NewService creates a progression service.
func NewService(puzzles PuzzleStore, progress ProgressStore, users UserStore, g Grader, achievements AchievementEvaluator, logger *slog.Logger) *Service {
	return &Service{
		puzzles:      puzzles,
		progress:     progress,
		users:        users,
		grader:       g,
		achievements: achievements,
		logger:       logger,
		now:          time.Now,
	}
}

// RunResult is the outcome of a scratch run against visible cases.
type RunResult struct {
	Grade *grader.Result
}

// Run grades code against the puzzle's visible test cases. Hidden cases
// are reserved for submission.
func (s *Service) Run(ctx context.Context, user *domain.User, puzzleID uuid.UUID, language, code string) (*RunResult, error) {
	puzzle, err := s.puzzles.Get(ctx, puzzleID)
	if err != nil {
		return nil, err
	}
	if err := s.checkUnlocked(user, puzzle); err != nil {
		return nil, err
	}

	result, err := s.grader.Grade(ctx, language, code, puzzle.VisibleTestCases())
	if err != nil {
		return nil, err
	}

	// Running code is starting the puzzle; a no-op if already started.
	if err := s.progress.Start(ctx, user.ID, puzzleID, language); err != nil && s.logger != nil {
		s.logger.Warn("mark puzzle started", "user_id", user.ID, "puzzle_id", puzzleID, "error", err)
	}

	return &RunResult{Grade: result}, nil
}

// SubmitResult is the outcome of one graded submission.
type SubmitResult struct {
	Grade           *grader.Result
	FirstCompletion bool
	XPAwarded       int
	User            *domain.User
	NewAchievements []*domain.Achievement
}

// Submit grades code against all of the puzzle's test cases and records
// the attempt. A puzzle completes at most once: repeat passes keep the
// record completed but award nothing.
func (s *Service) Submit(ctx context.Context, user *domain.User, puzzleID uuid.UUID, language, code string) (*SubmitResult, error) {
	puzzle, err := s.puzzles.Get(ctx, puzzleID)
	if err != nil {
		return nil, err
	}
	if err := s.checkUnlocked(user, puzzle); err != nil {
		return nil, err
	}

	grade, err := s.grader.Grade(ctx, language, code, puzzle.TestCases)
	if err != nil {
		// Grading never happened; nothing may be recorded from it.
		return nil, err
	}

	if grade.CompileError != "" {
		// Code that never compiled never ran against the tests; the
		// caller gets the compiler's verdict and nothing is recorded.
		return &SubmitResult{Grade: grade, User: user}, nil
	}

	first, updatedUser, err := s.progress.RecordSubmission(ctx, user.ID, puzzleID, code, language, grade.Passed, puzzle.Points)
	if err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}

	result := &SubmitResult{
		Grade:           grade,
		FirstCompletion: first,
		User:            user,
	}
	if updatedUser != nil {
		result.User = updatedUser
	}

	if grade.Passed {
		if u, err := s.advanceStreak(ctx, result.User); err != nil {
			if s.logger != nil {
				s.logger.Warn("advance streak", "user_id", user.ID, "error", err)
			}
		} else {
			result.User = u
		}
	}

	if first {
		result.XPAwarded = puzzle.Points

		// Best effort: a failed evaluation must never fail the submission.
		newly, err := s.achievements.Evaluate(ctx, user.ID)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("evaluate achievements", "user_id", user.ID, "error", err)
			}
		} else {
			result.NewAchievements = newly
			if len(newly) > 0 {
				// Re-read so achievement XP rewards show in the response.
				if u, err := s.users.GetByID(ctx, user.ID); err == nil {
					result.User = u
				}
			}
		}
	}

	return result, nil
}

// UseHint counts a hint peek against the pair's progress record.
func (s *Service) UseHint(ctx context.Context, user *domain.User, puzzleID uuid.UUID) error {
	if _, err := s.puzzles.Get(ctx, puzzleID); err != nil {
		return err
	}
	return s.progress.AddHintUsed(ctx, user.ID, puzzleID)
}

// Stats returns the user's solved/total/streak summary.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*domain.ProgressStats, error) {
	return s.progress.Stats(ctx, userID)
}

func (s *Service) checkUnlocked(user *domain.User, puzzle *domain.Puzzle) error {
	if puzzle.UnlockLevel > user.Level {
		return fmt.Errorf("%w: requires level %d", domain.ErrPuzzleLocked, puzzle.UnlockLevel)
	}
	return nil
}

// advanceStreak moves the daily streak forward based on the user's last
// activity: same day keeps it, consecutive days extend it, a gap resets
// it to one.
func (s *Service) advanceStreak(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := s.now()
	streak := domain.NextStreak(user.Streak, user.LastActive, now)

	if err := s.users.UpdateStreak(ctx, user.ID, streak, now); err != nil {
		return nil, err
	}

	updated := *user
	updated.Streak = streak
	updated.LastActive = &now
	return &updated, nil
}
