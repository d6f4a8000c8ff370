package achievement

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/domain"
)

type fakeStores struct {
	achievements []*domain.Achievement
	unlocked     map[uuid.UUID]bool
	user         *domain.User
	stats        *domain.ProgressStats
	byDifficulty map[domain.Difficulty]int
}

func (f *fakeStores) ListAll(_ context.Context) ([]*domain.Achievement, error) {
	return f.achievements, nil
}

func (f *fakeStores) ListUnlocked(_ context.Context, userID uuid.UUID) ([]*domain.UserAchievement, error) {
	var recs []*domain.UserAchievement
	for id := range f.unlocked {
		recs = append(recs, &domain.UserAchievement{
			ID: uuid.New(), UserID: userID, AchievementID: id,
		})
	}
	return recs, nil
}

func (f *fakeStores) Unlock(_ context.Context, _, achievementID uuid.UUID) (bool, error) {
	if f.unlocked[achievementID] {
		return false, nil
	}
	f.unlocked[achievementID] = true
	return true, nil
}

func (f *fakeStores) GetByID(_ context.Context, _ uuid.UUID) (*domain.User, error) {
	return f.user, nil
}

func (f *fakeStores) AwardXP(_ context.Context, _ uuid.UUID, amount int) (*domain.User, error) {
	f.user.TotalXP += amount
	f.user.Level = domain.LevelForXP(f.user.TotalXP)
	f.user.CurrentXP = domain.CurrentXPForTotal(f.user.TotalXP)
	return f.user, nil
}

func (f *fakeStores) Stats(_ context.Context, _ uuid.UUID) (*domain.ProgressStats, error) {
	return f.stats, nil
}

func (f *fakeStores) SolvedByDifficulty(_ context.Context, _ uuid.UUID) (map[domain.Difficulty]int, error) {
	return f.byDifficulty, nil
}

func achievementDef(name, metric string, target, xp int) *domain.Achievement {
	return &domain.Achievement{
		ID:        uuid.New(),
		Name:      name,
		Type:      domain.AchievementMilestone,
		Condition: domain.Condition{Metric: metric, Target: target},
		XPReward:  xp,
	}
}

func newFixture(solved, streak, totalXP int) *fakeStores {
	return &fakeStores{
		unlocked: make(map[uuid.UUID]bool),
		user: &domain.User{
			ID:      uuid.New(),
			TotalXP: totalXP,
			Level:   domain.LevelForXP(totalXP),
			Streak:  streak,
		},
		stats:        &domain.ProgressStats{Solved: solved, Streak: streak},
		byDifficulty: map[domain.Difficulty]int{},
	}
}

func TestEvaluateUnlocksWhenConditionMet(t *testing.T) {
	f := newFixture(1, 0, 100)
	f.achievements = []*domain.Achievement{
		achievementDef("First Blood", domain.MetricPuzzlesSolved, 1, 50),
		achievementDef("Ten Solver", domain.MetricPuzzlesSolved, 10, 200),
	}
	ev := NewEvaluator(f, f, f, nil)

	newly, err := ev.Evaluate(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if len(newly) != 1 {
		t.Fatalf("newly unlocked = %d, want 1", len(newly))
	}
	if newly[0].Name != "First Blood" {
		t.Errorf("unlocked %q, want First Blood", newly[0].Name)
	}
	if f.user.TotalXP != 150 {
		t.Errorf("total XP = %d, want 150 after reward", f.user.TotalXP)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	f := newFixture(5, 0, 0)
	f.achievements = []*domain.Achievement{
		achievementDef("First Blood", domain.MetricPuzzlesSolved, 1, 50),
	}
	ev := NewEvaluator(f, f, f, nil)
	ctx := context.Background()

	first, err := ev.Evaluate(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first run unlocked %d, want 1", len(first))
	}

	second, err := ev.Evaluate(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("Evaluate() second run error = %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second run unlocked %d, want 0", len(second))
	}
	if f.user.TotalXP != 50 {
		t.Errorf("total XP = %d, want 50 (reward granted once)", f.user.TotalXP)
	}
}

func TestEvaluateNeverGrantsSpecial(t *testing.T) {
	f := newFixture(100, 100, 100000)
	special := &domain.Achievement{
		ID:        uuid.New(),
		Name:      "Founder",
		Type:      domain.AchievementSpecial,
		Condition: domain.Condition{Metric: domain.MetricPuzzlesSolved, Target: 1},
	}
	f.achievements = []*domain.Achievement{special}
	ev := NewEvaluator(f, f, f, nil)

	newly, err := ev.Evaluate(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(newly) != 0 {
		t.Errorf("special achievement auto-granted")
	}
}

func TestEvaluateCascadesXPRewards(t *testing.T) {
	// Solving condition awards enough XP to satisfy the XP condition in
	// the same evaluation.
	f := newFixture(1, 0, 900)
	f.achievements = []*domain.Achievement{
		achievementDef("First Blood", domain.MetricPuzzlesSolved, 1, 200),
		achievementDef("Grinder", domain.MetricTotalXP, 1000, 0),
	}
	ev := NewEvaluator(f, f, f, nil)

	newly, err := ev.Evaluate(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(newly) != 2 {
		t.Fatalf("newly unlocked = %d, want 2 (cascade)", len(newly))
	}
}

func TestEvaluateUnknownMetricSkipped(t *testing.T) {
	f := newFixture(50, 0, 0)
	f.achievements = []*domain.Achievement{
		achievementDef("Mystery", "puzzles_breathed", 1, 10),
	}
	ev := NewEvaluator(f, f, f, nil)

	newly, err := ev.Evaluate(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(newly) != 0 {
		t.Error("achievement with unknown metric must never unlock")
	}
}

func TestEvaluateDifficultyMetrics(t *testing.T) {
	f := newFixture(3, 0, 0)
	f.byDifficulty = map[domain.Difficulty]int{
		domain.DifficultyHard: 3,
	}
	f.achievements = []*domain.Achievement{
		achievementDef("Hard Case", domain.MetricHardSolved, 3, 0),
		achievementDef("Easy Does It", domain.MetricEasySolved, 1, 0),
	}
	ev := NewEvaluator(f, f, f, nil)

	newly, err := ev.Evaluate(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(newly) != 1 || newly[0].Name != "Hard Case" {
		t.Errorf("newly = %v, want only Hard Case", newly)
	}
}
