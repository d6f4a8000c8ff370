package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/domain"
	"github.com/codequest-dev/codequest/internal/grader"
)

// RemoteGrader dispatches grading jobs to queue workers and waits for
// the matching result. It satisfies the same Grade contract as the
// in-process grader service.
type RemoteGrader struct {
	producer *Producer
	results  *ResultConsumer
	timeout  time.Duration
}

// NewRemoteGrader creates a grader backed by the job queue. The result
// consumer must be started by the caller.
func NewRemoteGrader(producer *Producer, results *ResultConsumer, timeout time.Duration) *RemoteGrader {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &RemoteGrader{producer: producer, results: results, timeout: timeout}
}

// Grade publishes a job and blocks until a worker reports back or the
// timeout passes. Worker unavailability surfaces as
// domain.ErrExecutionUnavailable, same as a local sandbox outage.
func (g *RemoteGrader) Grade(ctx context.Context, language, code string, cases []domain.TestCase) (*grader.Result, error) {
	if _, err := grader.ParseLanguage(language); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, domain.ErrEmptyCode
	}

	job := &GradeJob{
		ID:        uuid.New(),
		Language:  language,
		Code:      code,
		TestCases: cases,
		CreatedAt: time.Now(),
	}

	// Subscribe before publishing so a fast worker cannot slip the
	// result past us.
	done := make(chan *GradeResult, 1)
	g.results.Subscribe(job.ID.String(), func(result *GradeResult) {
		done <- result
	})
	defer g.results.Unsubscribe(job.ID.String())

	if err := g.producer.PublishGradeJob(ctx, job); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExecutionUnavailable, err)
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case result := <-done:
		if result.Status != "completed" || result.Result == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrExecutionUnavailable, result.Error)
		}
		return result.Result, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no worker responded in %s", domain.ErrExecutionUnavailable, g.timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrExecutionUnavailable, ctx.Err())
	}
}
