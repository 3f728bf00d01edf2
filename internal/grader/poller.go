package grader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/capsulelabs/gradeq/internal/store"
)

// ErrPollDeadline means a job did not reach a terminal status within the
// poller's deadline. The job itself keeps running; only the wait gives up.
var ErrPollDeadline = errors.New("timed out waiting for job result")

// Poller waits for a job to reach a terminal status by polling its record.
// The clock and sleep hooks exist so tests can drive time.
type Poller struct {
	Interval time.Duration
	Deadline time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPoller(interval, deadline time.Duration) *Poller {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	return &Poller{
		Interval: interval,
		Deadline: deadline,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait polls until the job is terminal, the deadline passes, or ctx is done.
func (p *Poller) Wait(ctx context.Context, runner Runner, jobID string) (*store.Job, error) {
	deadline := p.now().Add(p.Deadline)
	for {
		job, err := runner.Status(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("poll job %s: %w", jobID, err)
		}
		if job.Status.Terminal() {
			return job, nil
		}
		if p.now().After(deadline) {
			return nil, ErrPollDeadline
		}
		if err := p.sleep(ctx, p.Interval); err != nil {
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
