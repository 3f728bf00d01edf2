package store

import (
	"context"
	"errors"
	"time"

	"github.com/capsulelabs/gradeq/internal/runtime"
)

// Status is a job's position in its lifecycle. Transitions are monotonic
// under the order queued < running < {completed, failed}.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a job in this status will never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses for the monotonicity guard.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Error kinds attached to failed jobs. Timeouts are always distinguishable
// from infrastructure faults.
const (
	ErrKindTimeout        = "timeout"
	ErrKindInfrastructure = "infrastructure"
)

// JobError classifies why a job failed.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Job is one execution request and its lifecycle record.
type Job struct {
	ID          string                   `json:"jobId"`
	Language    runtime.Language         `json:"language"`
	Code        string                   `json:"code"`
	Input       string                   `json:"input,omitempty"`
	TimeoutMs   int64                    `json:"timeoutMs"`
	Status      Status                   `json:"status"`
	Error       *JobError                `json:"error,omitempty"`
	Result      *runtime.ExecutionResult `json:"result,omitempty"`
	CreatedAt   time.Time                `json:"createdAt"`
	StartedAt   *time.Time               `json:"startedAt,omitempty"`
	CompletedAt *time.Time               `json:"completedAt,omitempty"`
}

var (
	// ErrNotFound covers both unknown job ids and ids past their retention
	// window; callers cannot tell the two apart.
	ErrNotFound = errors.New("job not found")
	// ErrNoJobs means the backlog is empty.
	ErrNoJobs = errors.New("no jobs queued")
	// ErrConflict means a transition would violate monotonicity, e.g. a
	// second worker finishing an already-terminal job.
	ErrConflict = errors.New("conflicting job transition")
)

// Store is the job-state store: the single shared mutable resource in the
// core. Every mutation is atomic from a reader's point of view; in
// particular a terminal status and its result are always written together.
type Store interface {
	// Create persists a new job in StatusQueued and adds it to the backlog.
	Create(ctx context.Context, job *Job) error
	// Claim atomically pops the oldest queued job and moves it to
	// StatusRunning. At most one caller ever claims a given job.
	Claim(ctx context.Context) (*Job, error)
	// Finish moves a running job to a terminal status, attaching the result
	// or error in the same write.
	Finish(ctx context.Context, id string, status Status, result *runtime.ExecutionResult, jobErr *JobError) error
	// Get returns a read-only snapshot of a job.
	Get(ctx context.Context, id string) (*Job, error)
	// ActiveCount counts jobs currently queued or running.
	ActiveCount(ctx context.Context) (int, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
