package progression

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/domain"
	"github.com/codequest-dev/codequest/internal/grader"
)

type fixture struct {
	puzzle      *domain.Puzzle
	user        *domain.User
	progress    map[uuid.UUID]*domain.UserProgress // by puzzle ID
	gradePassed bool
	compileErr  string
	gradeErr    error
	gradedCases []domain.TestCase
	evaluations int
	evalErr     error
	streaks     []int
}

func (f *fixture) Get(_ context.Context, id uuid.UUID) (*domain.Puzzle, error) {
	if f.puzzle == nil || f.puzzle.ID != id {
		return nil, domain.ErrPuzzleNotFound
	}
	return f.puzzle, nil
}

func (f *fixture) Start(_ context.Context, _, puzzleID uuid.UUID, language string) error {
	if _, ok := f.progress[puzzleID]; !ok {
		f.progress[puzzleID] = &domain.UserProgress{
			PuzzleID: puzzleID,
			Status:   domain.StatusInProgress,
			Language: language,
		}
	}
	return nil
}

func (f *fixture) AddHintUsed(_ context.Context, _, puzzleID uuid.UUID) error {
	p, ok := f.progress[puzzleID]
	if !ok {
		p = &domain.UserProgress{PuzzleID: puzzleID, Status: domain.StatusInProgress}
		f.progress[puzzleID] = p
	}
	p.HintsUsed++
	return nil
}

func (f *fixture) RecordSubmission(_ context.Context, _, puzzleID uuid.UUID, code, language string, passed bool, xpAmount int) (bool, *domain.User, error) {
	p, ok := f.progress[puzzleID]
	if !ok {
		p = &domain.UserProgress{PuzzleID: puzzleID, Status: domain.StatusInProgress}
		f.progress[puzzleID] = p
	}
	p.Attempts++
	p.Language = language

	if !passed {
		return false, nil, nil
	}

	first := p.Status != domain.StatusCompleted
	p.Status = domain.StatusCompleted
	p.BestSolution = code
	if !first {
		return false, nil, nil
	}

	f.user.TotalXP += xpAmount
	f.user.Level = domain.LevelForXP(f.user.TotalXP)
	f.user.CurrentXP = domain.CurrentXPForTotal(f.user.TotalXP)
	return true, f.user, nil
}

func (f *fixture) Stats(_ context.Context, _ uuid.UUID) (*domain.ProgressStats, error) {
	solved := 0
	for _, p := range f.progress {
		if p.Status == domain.StatusCompleted {
			solved++
		}
	}
	return &domain.ProgressStats{Solved: solved, Streak: f.user.Streak}, nil
}

func (f *fixture) GetByID(_ context.Context, _ uuid.UUID) (*domain.User, error) {
	return f.user, nil
}

func (f *fixture) UpdateStreak(_ context.Context, _ uuid.UUID, streak int, lastActive time.Time) error {
	f.user.Streak = streak
	la := lastActive
	f.user.LastActive = &la
	f.streaks = append(f.streaks, streak)
	return nil
}

func (f *fixture) Grade(_ context.Context, _, _ string, cases []domain.TestCase) (*grader.Result, error) {
	if f.gradeErr != nil {
		return nil, f.gradeErr
	}
	if f.compileErr != "" {
		return &grader.Result{CompileError: f.compileErr, TotalCount: len(cases)}, nil
	}
	f.gradedCases = cases
	passed := 0
	if f.gradePassed {
		passed = len(cases)
	}
	return &grader.Result{
		Passed:      f.gradePassed,
		PassedCount: passed,
		TotalCount:  len(cases),
	}, nil
}

func (f *fixture) Evaluate(_ context.Context, _ uuid.UUID) ([]*domain.Achievement, error) {
	f.evaluations++
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	return nil, nil
}

func newFixture() *fixture {
	return &fixture{
		puzzle: &domain.Puzzle{
			ID:          uuid.New(),
			Title:       "Sum Two Numbers",
			Difficulty:  domain.DifficultyEasy,
			Points:      100,
			UnlockLevel: 1,
			TestCases: []domain.TestCase{
				{Input: "1 2", Expected: "3"},
				{Input: "5 5", Expected: "10", Hidden: true},
			},
		},
		user: &domain.User{
			ID:    uuid.New(),
			Level: 1,
		},
		progress: make(map[uuid.UUID]*domain.UserProgress),
	}
}

func newService(f *fixture) *Service {
	return NewService(f, f, f, f, f, nil)
}

func TestRunGradesVisibleCasesOnly(t *testing.T) {
	f := newFixture()
	f.gradePassed = true
	svc := newService(f)

	if _, err := svc.Run(context.Background(), f.user, f.puzzle.ID, "python", "code"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.gradedCases) != 1 {
		t.Fatalf("graded %d cases, want 1 (hidden excluded)", len(f.gradedCases))
	}
	if f.gradedCases[0].Hidden {
		t.Error("hidden case leaked into a run")
	}
	if f.user.TotalXP != 0 {
		t.Error("run must not award XP")
	}
	if f.progress[f.puzzle.ID].Status != domain.StatusInProgress {
		t.Error("run should mark the puzzle in progress")
	}
}

func TestSubmitFirstPassAwardsEverything(t *testing.T) {
	f := newFixture()
	f.gradePassed = true
	svc := newService(f)

	result, err := svc.Submit(context.Background(), f.user, f.puzzle.ID, "python", "code")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if !result.FirstCompletion {
		t.Error("FirstCompletion = false, want true")
	}
	if result.XPAwarded != 100 {
		t.Errorf("XPAwarded = %d, want 100", result.XPAwarded)
	}
	if result.User.TotalXP != 100 {
		t.Errorf("user total XP = %d, want 100", result.User.TotalXP)
	}
	if result.User.Streak != 1 {
		t.Errorf("streak = %d, want 1", result.User.Streak)
	}
	if f.evaluations != 1 {
		t.Errorf("achievement evaluations = %d, want 1", f.evaluations)
	}
	if len(f.gradedCases) != 2 {
		t.Errorf("graded %d cases, want all 2 on submit", len(f.gradedCases))
	}
}

func TestSubmitRepeatPassAwardsNothing(t *testing.T) {
	f := newFixture()
	f.gradePassed = true
	svc := newService(f)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, f.user, f.puzzle.ID, "python", "code"); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	xpAfterFirst := f.user.TotalXP

	result, err := svc.Submit(ctx, f.user, f.puzzle.ID, "python", "better code")
	if err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}

	if result.FirstCompletion {
		t.Error("second pass reported as first completion")
	}
	if result.XPAwarded != 0 {
		t.Errorf("XPAwarded = %d, want 0 on repeat", result.XPAwarded)
	}
	if f.user.TotalXP != xpAfterFirst {
		t.Errorf("total XP changed on repeat: %d -> %d", xpAfterFirst, f.user.TotalXP)
	}
	if f.progress[f.puzzle.ID].BestSolution != "better code" {
		t.Error("latest passing solution not kept")
	}
	if f.evaluations != 1 {
		t.Errorf("achievement evaluations = %d, want 1 (not re-run)", f.evaluations)
	}
}

func TestSubmitFailedRunCountsAttemptOnly(t *testing.T) {
	f := newFixture()
	f.gradePassed = false
	svc := newService(f)

	result, err := svc.Submit(context.Background(), f.user, f.puzzle.ID, "python", "bad code")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if result.FirstCompletion {
		t.Error("failed submission reported as completion")
	}
	if f.user.TotalXP != 0 {
		t.Error("failed submission awarded XP")
	}
	if f.progress[f.puzzle.ID].Attempts != 1 {
		t.Errorf("attempts = %d, want 1", f.progress[f.puzzle.ID].Attempts)
	}
	if f.progress[f.puzzle.ID].Status == domain.StatusCompleted {
		t.Error("failed submission completed the puzzle")
	}
}

func TestSubmitCompileErrorMutatesNothing(t *testing.T) {
	f := newFixture()
	f.compileErr = "syntax error on line 3"
	svc := newService(f)

	result, err := svc.Submit(context.Background(), f.user, f.puzzle.ID, "go", "func {")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if result.Grade.CompileError == "" {
		t.Fatal("compiler verdict lost from the result")
	}
	if len(result.Grade.Tests) != 0 {
		t.Errorf("per-test results = %d, want 0 on compile error", len(result.Grade.Tests))
	}
	if _, ok := f.progress[f.puzzle.ID]; ok {
		t.Error("progress recorded for code that never compiled")
	}
	if f.user.TotalXP != 0 || f.user.Streak != 0 {
		t.Errorf("user mutated: xp=%d streak=%d, want 0/0", f.user.TotalXP, f.user.Streak)
	}
	if len(f.streaks) != 0 {
		t.Error("streak advanced on compile error")
	}
	if f.evaluations != 0 {
		t.Error("achievements evaluated on compile error")
	}
}

func TestSubmitGraderErrorRecordsNothing(t *testing.T) {
	f := newFixture()
	f.gradeErr = domain.ErrExecutionUnavailable
	svc := newService(f)

	_, err := svc.Submit(context.Background(), f.user, f.puzzle.ID, "python", "code")
	if !errors.Is(err, domain.ErrExecutionUnavailable) {
		t.Fatalf("Submit() error = %v, want ErrExecutionUnavailable", err)
	}

	if _, ok := f.progress[f.puzzle.ID]; ok {
		t.Error("attempt recorded although grading never happened")
	}
}

func TestSubmitLockedPuzzle(t *testing.T) {
	f := newFixture()
	f.puzzle.UnlockLevel = 5
	f.gradePassed = true
	svc := newService(f)

	_, err := svc.Submit(context.Background(), f.user, f.puzzle.ID, "python", "code")
	if !errors.Is(err, domain.ErrPuzzleLocked) {
		t.Errorf("Submit() error = %v, want ErrPuzzleLocked", err)
	}
}

func TestSubmitAchievementFailureDoesNotFailSubmission(t *testing.T) {
	f := newFixture()
	f.gradePassed = true
	f.evalErr = errors.New("db down")
	svc := newService(f)

	result, err := svc.Submit(context.Background(), f.user, f.puzzle.ID, "python", "code")
	if err != nil {
		t.Fatalf("Submit() error = %v, want nil despite evaluator failure", err)
	}
	if !result.FirstCompletion {
		t.Error("completion lost to evaluator failure")
	}
}

func TestStreakProgression(t *testing.T) {
	f := newFixture()
	f.gradePassed = true
	svc := newService(f)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return day }

	// First ever solve starts the streak.
	if _, err := svc.Submit(ctx, f.user, f.puzzle.ID, "python", "code"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if f.user.Streak != 1 {
		t.Fatalf("streak = %d, want 1", f.user.Streak)
	}

	// Another solve the same day keeps it.
	f.progress = make(map[uuid.UUID]*domain.UserProgress)
	day = day.Add(2 * time.Hour)
	if _, err := svc.Submit(ctx, f.user, f.puzzle.ID, "python", "code"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if f.user.Streak != 1 {
		t.Errorf("same-day streak = %d, want 1", f.user.Streak)
	}

	// A solve the next day extends it.
	f.progress = make(map[uuid.UUID]*domain.UserProgress)
	day = day.Add(24 * time.Hour)
	if _, err := svc.Submit(ctx, f.user, f.puzzle.ID, "python", "code"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if f.user.Streak != 2 {
		t.Errorf("next-day streak = %d, want 2", f.user.Streak)
	}

	// A gap resets it to one.
	f.progress = make(map[uuid.UUID]*domain.UserProgress)
	day = day.Add(72 * time.Hour)
	if _, err := svc.Submit(ctx, f.user, f.puzzle.ID, "python", "code"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if f.user.Streak != 1 {
		t.Errorf("post-gap streak = %d, want 1", f.user.Streak)
	}
}
