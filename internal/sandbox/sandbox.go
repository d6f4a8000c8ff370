package sandbox

import (
	"context"
	"errors"
	"time"
)

// Config holds container creation parameters for one grading run.
type Config struct {
	Image      string  `json:"image"`
	MemoryMB   int     `json:"memory_mb"`
	CPULimit   float64 `json:"cpu_limit"`
	PidsLimit  int64   `json:"pids_limit"`
	NetworkOff bool    `json:"network_off"`
}

// DefaultConfig returns the resource limits applied to grading containers
// unless the server is configured otherwise.
func DefaultConfig(image string) Config {
	return Config{
		Image:      image,
		MemoryMB:   256,
		CPULimit:   0.5,
		PidsLimit:  64,
		NetworkOff: true,
	}
}

// ExecResult holds the output from one command executed in a container.
type ExecResult struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

var (
	ErrContainerNotFound = errors.New("container not found")
	ErrBackendDown       = errors.New("container backend unreachable")
)

// Backend abstracts the container runtime so grading logic can be tested
// without Docker.
type Backend interface {
	CreateContainer(ctx context.Context, cfg Config) (string, error)
	CopyFiles(ctx context.Context, containerID string, files map[string]string) error
	Exec(ctx context.Context, containerID string, cmd []string, timeout time.Duration) (*ExecResult, error)
	DestroyContainer(ctx context.Context, containerID string) error
	Close() error
}
