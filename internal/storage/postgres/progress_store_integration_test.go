//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/codequest-dev/codequest/internal/domain"
	"github.com/codequest-dev/codequest/internal/storage/postgres"
)

// setupPostgres starts a disposable database and runs the migrations.
func setupPostgres(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("codequest"),
		tcpostgres.WithUsername("codequest"),
		tcpostgres.WithPassword("codequest"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := postgres.Connect(ctx, url)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to connect: %v", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("failed to migrate: %v", err)
	}

	cleanup := func() {
		pool.Close()
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return pool, cleanup
}

func seedUserAndPuzzle(t *testing.T, ctx context.Context, pool *pgxpool.Pool, points int) (*domain.User, *domain.Puzzle) {
	t.Helper()

	users := postgres.NewUserStore(pool)
	puzzles := postgres.NewPuzzleStore(pool)

	user := &domain.User{
		ID:           uuid.New(),
		Username:     "solver-" + uuid.NewString()[:8],
		Email:        uuid.NewString()[:8] + "@example.com",
		PasswordHash: "x",
		Level:        1,
		CreatedAt:    time.Now(),
	}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	category := &domain.Category{ID: uuid.New(), Name: "Arrays " + uuid.NewString()[:8]}
	if err := puzzles.CreateCategory(ctx, category); err != nil {
		t.Fatalf("create category: %v", err)
	}
	puzzle := &domain.Puzzle{
		ID:         uuid.New(),
		Title:      "Sum Two Numbers",
		Difficulty: domain.DifficultyEasy,
		CategoryID: category.ID,
		Points:     points,
		TestCases: []domain.TestCase{
			{Input: "1 2", Expected: "3"},
		},
		UnlockLevel: 1,
	}
	if err := puzzles.Create(ctx, puzzle); err != nil {
		t.Fatalf("create puzzle: %v", err)
	}
	return user, puzzle
}

func TestIntegration_RecordSubmission_FirstCompletionOnly(t *testing.T) {
	pool, cleanup := setupPostgres(t)
	defer cleanup()
	ctx := context.Background()

	user, puzzle := seedUserAndPuzzle(t, ctx, pool, 100)
	progress := postgres.NewProgressStore(pool)
	users := postgres.NewUserStore(pool)

	// A failing submission counts the attempt and nothing else.
	first, awarded, err := progress.RecordSubmission(ctx, user.ID, puzzle.ID, "bad", "python", false, puzzle.Points)
	if err != nil {
		t.Fatalf("RecordSubmission() error = %v", err)
	}
	if first || awarded != nil {
		t.Errorf("failed submission: first = %v user = %v, want false/nil", first, awarded)
	}

	// The first pass completes and awards.
	first, awarded, err = progress.RecordSubmission(ctx, user.ID, puzzle.ID, "good", "python", true, puzzle.Points)
	if err != nil {
		t.Fatalf("RecordSubmission() error = %v", err)
	}
	if !first {
		t.Error("first pass not reported as first completion")
	}
	if awarded == nil || awarded.TotalXP != 100 || awarded.Level != 1 || awarded.CurrentXP != 100 {
		t.Errorf("awarded user = %+v, want total=100 level=1 current=100", awarded)
	}

	// A repeat pass keeps the record completed but awards nothing.
	first, awarded, err = progress.RecordSubmission(ctx, user.ID, puzzle.ID, "better", "python", true, puzzle.Points)
	if err != nil {
		t.Fatalf("RecordSubmission() error = %v", err)
	}
	if first || awarded != nil {
		t.Errorf("repeat pass: first = %v user = %v, want false/nil", first, awarded)
	}

	stored, err := users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.TotalXP != 100 {
		t.Errorf("total XP = %d after three submissions, want 100", stored.TotalXP)
	}

	rec, err := progress.Get(ctx, user.ID, puzzle.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", rec.Attempts)
	}
	if rec.Status != domain.StatusCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
	if rec.BestSolution != "better" {
		t.Errorf("best solution = %q, want latest passing code", rec.BestSolution)
	}
}

func TestIntegration_RecordSubmission_ConcurrentPassesAwardOnce(t *testing.T) {
	pool, cleanup := setupPostgres(t)
	defer cleanup()
	ctx := context.Background()

	user, puzzle := seedUserAndPuzzle(t, ctx, pool, 250)
	progress := postgres.NewProgressStore(pool)
	users := postgres.NewUserStore(pool)

	const racers = 8
	firsts := make(chan bool, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, _, err := progress.RecordSubmission(ctx, user.ID, puzzle.ID, "good", "python", true, puzzle.Points)
			if err != nil {
				t.Errorf("RecordSubmission() error = %v", err)
				return
			}
			firsts <- first
		}()
	}
	wg.Wait()
	close(firsts)

	firstCount := 0
	for first := range firsts {
		if first {
			firstCount++
		}
	}
	if firstCount != 1 {
		t.Errorf("first completions = %d across %d concurrent passes, want exactly 1", firstCount, racers)
	}

	stored, err := users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.TotalXP != 250 {
		t.Errorf("total XP = %d, want 250 (awarded exactly once)", stored.TotalXP)
	}
}
