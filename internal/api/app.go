package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/codequest-dev/codequest/internal/achievement"
	"github.com/codequest-dev/codequest/internal/auth"
	"github.com/codequest-dev/codequest/internal/config"
	"github.com/codequest-dev/codequest/internal/domain"
	"github.com/codequest-dev/codequest/internal/grader"
	"github.com/codequest-dev/codequest/internal/leaderboard"
	"github.com/codequest-dev/codequest/internal/progression"
	"github.com/codequest-dev/codequest/internal/queue"
	"github.com/codequest-dev/codequest/internal/sandbox"
	"github.com/codequest-dev/codequest/internal/session"
	"github.com/codequest-dev/codequest/internal/storage/postgres"
)

// Grader is the grading contract shared by the in-process sandbox
// grader and the queue-backed remote grader.
type Grader interface {
	Grade(ctx context.Context, language, code string, cases []domain.TestCase) (*grader.Result, error)
}

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client

	Users        *postgres.UserStore
	Puzzles      *postgres.PuzzleStore
	Progress     *postgres.ProgressStore
	Achievements *postgres.AchievementStore
	Leaderboards *postgres.LeaderboardStore
	Messages     *postgres.MessageStore

	Auth        *auth.Service
	Grader      Grader
	Progression *progression.Service
	Achievement *achievement.Evaluator
	Leaderboard *leaderboard.Service
	Sessions    *session.Cache

	Queue   *queue.Connection
	results *queue.ResultConsumer
	cancel  context.CancelFunc
}

// NewApp creates a new application instance with all dependencies wired
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	app := &App{
		Config: cfg,
		DB:     pool,
		Redis:  rdb,

		Users:        postgres.NewUserStore(pool),
		Puzzles:      postgres.NewPuzzleStore(pool),
		Progress:     postgres.NewProgressStore(pool),
		Achievements: postgres.NewAchievementStore(pool),
		Leaderboards: postgres.NewLeaderboardStore(pool),
		Messages:     postgres.NewMessageStore(pool),
	}

	log := slog.Default()

	app.Auth = auth.NewService(app.Users,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour, cfg.Auth.BcryptCost)
	app.Sessions = session.NewCache(rdb, time.Duration(cfg.Redis.SessionTTL)*time.Second)
	app.Achievement = achievement.NewEvaluator(app.Achievements, app.Users, app.Progress, log)
	app.Leaderboard = leaderboard.NewService(app.Leaderboards)

	bgCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	if err := app.initGrader(bgCtx, cfg); err != nil {
		app.Close()
		return nil, err
	}

	app.Progression = progression.NewService(
		app.Puzzles, app.Progress, app.Users, app.Grader, app.Achievement, log)

	go app.tokenCleanupLoop(bgCtx, log)

	return app, nil
}

// tokenCleanupLoop purges expired auth tokens hourly. Authenticate
// also drops expired tokens on sight; this keeps the table from
// accumulating tokens nobody presents again.
func (a *App) tokenCleanupLoop(ctx context.Context, log *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Auth.CleanupExpiredTokens(ctx)
			if err != nil {
				log.Warn("token cleanup failed", "error", err)
			} else if n > 0 {
				log.Debug("purged expired tokens", "count", n)
			}
		}
	}
}

// initGrader wires either the queue-backed remote grader or the local
// Docker-backed one, per configuration.
func (a *App) initGrader(ctx context.Context, cfg *config.Config) error {
	if cfg.Queue.Enabled {
		conn, err := queue.NewConnection(cfg.Queue.URL)
		if err != nil {
			return fmt.Errorf("connect queue: %w", err)
		}
		a.Queue = conn

		a.results = queue.NewResultConsumer(conn)
		if err := a.results.Start(ctx); err != nil {
			return fmt.Errorf("start result consumer: %w", err)
		}

		a.Grader = queue.NewRemoteGrader(queue.NewProducer(conn), a.results,
			time.Duration(cfg.Sandbox.TestTimeoutSec)*time.Second*time.Duration(maxTestCases))
		return nil
	}

	backend, err := sandbox.NewDockerBackend()
	if err != nil {
		return fmt.Errorf("create sandbox backend: %w", err)
	}

	graderCfg := grader.Config{
		MemoryMB:       cfg.Sandbox.MemoryMB,
		CPULimit:       cfg.Sandbox.CPULimit,
		PidsLimit:      int64(cfg.Sandbox.PidsLimit),
		TestTimeout:    time.Duration(cfg.Sandbox.TestTimeoutSec) * time.Second,
		CompileTimeout: time.Duration(cfg.Sandbox.CompileTimeout) * time.Second,
		MaxConcurrent:  cfg.Sandbox.MaxConcurrent,
		NetworkOff:     cfg.Sandbox.NetworkOff,
	}
	a.Grader = grader.NewService(backend, graderCfg, slog.Default())
	return nil
}

// maxTestCases bounds the remote grading wait: a generous ceiling on
// per-puzzle test case counts, not a hard limit.
const maxTestCases = 25

// Close cleans up application resources
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.results != nil {
		a.results.Stop()
	}
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
	return nil
}
