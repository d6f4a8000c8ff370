package grader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"

	"github.com/codequest-dev/codequest/internal/domain"
	"github.com/codequest-dev/codequest/internal/sandbox"
)

// TestResult is the graded outcome of one test case.
type TestResult struct {
	Index    int           `json:"index"`
	Passed   bool          `json:"passed"`
	Hidden   bool          `json:"hidden"`
	Input    string        `json:"input,omitempty"`
	Expected string        `json:"expected,omitempty"`
	Actual   string        `json:"actual,omitempty"`
	Error    string        `json:"error,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the full grading outcome for one submission. A compile
// failure carries the compiler output and no per-test results.
type Result struct {
	Passed       bool         `json:"passed"`
	CompileError string       `json:"compile_error,omitempty"`
	Tests        []TestResult `json:"tests"`
	PassedCount  int          `json:"passed_count"`
	TotalCount   int          `json:"total_count"`
}

// Config holds grading resource limits and timeouts.
type Config struct {
	MemoryMB       int
	CPULimit       float64
	PidsLimit      int64
	TestTimeout    time.Duration
	CompileTimeout time.Duration
	MaxConcurrent  int
	NetworkOff     bool
}

// DefaultConfig returns the limits applied unless configured otherwise.
func DefaultConfig() Config {
	return Config{
		MemoryMB:       256,
		CPULimit:       0.5,
		PidsLimit:      64,
		TestTimeout:    5 * time.Second,
		CompileTimeout: 30 * time.Second,
		MaxConcurrent:  4,
		NetworkOff:     true,
	}
}

// Service grades submissions in throwaway containers. Concurrency is
// capped with a bulkhead and repeated backend failures trip a circuit
// breaker, so a broken Docker daemon degrades to fast failures instead of
// a pile-up of hung requests.
type Service struct {
	backend  sandbox.Backend
	cfg      Config
	logger   *slog.Logger
	breaker  circuitbreaker.CircuitBreaker[*Result]
	bulkhead bulkhead.Bulkhead[*Result]
}

// NewService creates a grading service on top of a container backend.
func NewService(backend sandbox.Backend, cfg Config, logger *slog.Logger) *Service {
	s := &Service{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
	}

	s.breaker = circuitbreaker.New[*Result](circuitbreaker.Config{
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			if s.logger != nil {
				s.logger.Warn("grader circuit breaker state change",
					"from", from.String(), "to", to.String())
			}
		},
	})

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	s.bulkhead = bulkhead.New[*Result](bulkhead.Config{
		MaxConcurrent: maxConcurrent,
		MaxQueue:      maxConcurrent * 2,
		QueueTimeout:  30 * time.Second,
	})

	return s
}

// Grade compiles and runs a submission against the given test cases.
// Compile failures and per-test timeouts are reported inside the Result;
// an error return means grading never happened and nothing may be
// recorded from it.
func (s *Service) Grade(ctx context.Context, language, code string, cases []domain.TestCase) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, domain.ErrEmptyCode
	}
	lang, err := ParseLanguage(language)
	if err != nil {
		return nil, err
	}

	result, err := s.breaker.Execute(ctx, func(ctx context.Context) (*Result, error) {
		return s.bulkhead.Execute(ctx, func(ctx context.Context) (*Result, error) {
			return s.grade(ctx, lang, code, cases)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExecutionUnavailable, err)
	}
	return result, nil
}

func (s *Service) grade(ctx context.Context, lang Language, code string, cases []domain.TestCase) (*Result, error) {
	spec := Specs()[lang]

	files, err := BuildFiles(lang, code)
	if err != nil {
		return nil, err
	}
	for i, tc := range cases {
		files[inputFile(i)] = tc.Input
	}

	containerID, err := s.backend.CreateContainer(ctx, sandbox.Config{
		Image:      spec.DockerImage,
		MemoryMB:   s.cfg.MemoryMB,
		CPULimit:   s.cfg.CPULimit,
		PidsLimit:  s.cfg.PidsLimit,
		NetworkOff: s.cfg.NetworkOff,
	})
	if err != nil {
		return nil, fmt.Errorf("create grading container: %w", err)
	}
	defer func() {
		// The request context may already be dead; destruction must not be.
		destroyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.backend.DestroyContainer(destroyCtx, containerID); err != nil && s.logger != nil {
			s.logger.Warn("destroy grading container", "container", containerID, "error", err)
		}
	}()

	if err := s.backend.CopyFiles(ctx, containerID, files); err != nil {
		return nil, fmt.Errorf("copy submission: %w", err)
	}

	if len(spec.CompileCmd) > 0 {
		compile, err := s.backend.Exec(ctx, containerID, spec.CompileCmd, s.cfg.CompileTimeout)
		if err != nil {
			return nil, fmt.Errorf("compile submission: %w", err)
		}
		if compile.TimedOut {
			return &Result{
				CompileError: "compilation timed out",
				TotalCount:   len(cases),
			}, nil
		}
		if compile.ExitCode != 0 {
			return &Result{
				CompileError: strings.TrimSpace(compile.Stderr + compile.Stdout),
				TotalCount:   len(cases),
			}, nil
		}
	}

	result := &Result{TotalCount: len(cases)}
	for i, tc := range cases {
		tr := s.runCase(ctx, containerID, spec, i, tc)
		if tr.Passed {
			result.PassedCount++
		}
		result.Tests = append(result.Tests, tr)
	}
	// An empty case list passes vacuously; compile failures returned
	// above never reach this point.
	result.Passed = result.PassedCount == result.TotalCount

	return result, nil
}

func (s *Service) runCase(ctx context.Context, containerID string, spec LanguageSpec, index int, tc domain.TestCase) TestResult {
	tr := TestResult{
		Index:    index,
		Hidden:   tc.Hidden,
		Input:    tc.Input,
		Expected: tc.Expected,
	}

	cmd := []string{"sh", "-c", fmt.Sprintf("%s < %s", spec.RunCmd, inputFile(index))}
	res, err := s.backend.Exec(ctx, containerID, cmd, s.cfg.TestTimeout)
	if err != nil {
		tr.Error = "execution failed"
		return tr
	}
	tr.Duration = res.Duration

	if res.TimedOut {
		tr.TimedOut = true
		tr.Error = "time limit exceeded"
		return tr
	}
	if res.ExitCode != 0 {
		tr.Error = strings.TrimSpace(res.Stderr)
		if tr.Error == "" {
			tr.Error = fmt.Sprintf("exited with code %d", res.ExitCode)
		}
		return tr
	}

	tr.Actual = strings.TrimRight(res.Stdout, "\n")
	tr.Passed = OutputMatches(res.Stdout, tc.Expected)
	return tr
}

func inputFile(i int) string {
	return fmt.Sprintf("input_%d.txt", i)
}
