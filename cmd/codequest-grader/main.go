package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codequest-dev/codequest/internal/config"
	"github.com/codequest-dev/codequest/internal/grader"
	"github.com/codequest-dev/codequest/internal/queue"
	"github.com/codequest-dev/codequest/internal/sandbox"
)

func main() {
	if err := run(); err != nil {
		slog.Error("grader worker error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "codequest.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	})
	slog.SetDefault(slog.New(handler))

	backend, err := sandbox.NewDockerBackend()
	if err != nil {
		return fmt.Errorf("create sandbox backend: %w", err)
	}
	defer backend.Close()

	graderSvc := grader.NewService(backend, grader.Config{
		MemoryMB:       cfg.Sandbox.MemoryMB,
		CPULimit:       cfg.Sandbox.CPULimit,
		PidsLimit:      int64(cfg.Sandbox.PidsLimit),
		TestTimeout:    time.Duration(cfg.Sandbox.TestTimeoutSec) * time.Second,
		CompileTimeout: time.Duration(cfg.Sandbox.CompileTimeout) * time.Second,
		MaxConcurrent:  cfg.Queue.Workers,
		NetworkOff:     cfg.Sandbox.NetworkOff,
	}, slog.Default())

	conn, err := queue.NewConnection(cfg.Queue.URL)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer conn.Close()

	handleJob := func(ctx context.Context, job *queue.GradeJob) (*queue.GradeResult, error) {
		start := time.Now()
		result, err := graderSvc.Grade(ctx, job.Language, job.Code, job.TestCases)
		if err != nil {
			return nil, err
		}
		return &queue.GradeResult{
			JobID:    job.ID,
			Status:   "completed",
			Result:   result,
			Duration: time.Since(start),
		}, nil
	}

	consumerCfg := queue.DefaultConsumerConfig()
	consumerCfg.Workers = cfg.Queue.Workers
	consumer := queue.NewConsumer(conn, handleJob, consumerCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	slog.Info("grader worker running", "workers", cfg.Queue.Workers, "queue", queue.JobQueueName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("received signal, shutting down", "signal", sig.String())
	cancel()
	consumer.Stop()
	slog.Info("grader worker stopped")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
