package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/capsulelabs/gradeq/internal/runtime"
	"github.com/capsulelabs/gradeq/internal/store"
)

const (
	maxCodeBytes = 50 * 1024
	maxSQLBytes  = 10 * 1024
)

var (
	// ErrEmptyCode is a synchronous validation error: no job is created.
	ErrEmptyCode = errors.New("code must not be empty")
	// ErrCodeTooLarge rejects oversized submissions before enqueue.
	ErrCodeTooLarge = errors.New("code too large")
)

// Options bound the wall-clock budget a job may request.
type Options struct {
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
}

func defaultOptions() Options {
	return Options{
		DefaultTimeout: 10 * time.Second,
		MaxTimeout:     30 * time.Second,
	}
}

// Queue accepts submissions, assigns job ids, and persists job state.
// Enqueue never blocks on execution: jobs land in the store's backlog and
// workers pick them up independently.
type Queue struct {
	store store.Store
	opts  Options
}

func New(s store.Store, opts Options) *Queue {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = defaultOptions().DefaultTimeout
	}
	if opts.MaxTimeout <= 0 {
		opts.MaxTimeout = defaultOptions().MaxTimeout
	}
	return &Queue{store: s, opts: opts}
}

// Enqueue validates the submission, creates the job in StatusQueued, and
// returns its id immediately.
func (q *Queue) Enqueue(ctx context.Context, language, code, input string, timeoutMs int64) (string, error) {
	lang, err := runtime.ParseLanguage(language)
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", ErrEmptyCode
	}

	limit := maxCodeBytes
	if lang == runtime.SQL {
		limit = maxSQLBytes
	}
	if len(code) > limit {
		return "", fmt.Errorf("%w: max %d bytes", ErrCodeTooLarge, limit)
	}

	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = q.opts.DefaultTimeout
	}
	if timeout > q.opts.MaxTimeout {
		timeout = q.opts.MaxTimeout
	}

	job := &store.Job{
		ID:        uuid.NewString(),
		Language:  lang,
		Code:      code,
		Input:     input,
		TimeoutMs: timeout.Milliseconds(),
		Status:    store.StatusQueued,
		CreatedAt: time.Now(),
	}
	if err := q.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}
	return job.ID, nil
}

// Status returns a read-only snapshot of a job. It never mutates state.
func (q *Queue) Status(ctx context.Context, jobID string) (*store.Job, error) {
	return q.store.Get(ctx, jobID)
}

// Depth counts jobs currently queued or running.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	return q.store.ActiveCount(ctx)
}
