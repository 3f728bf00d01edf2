package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/capsulelabs/gradeq/internal/runtime"
	"github.com/capsulelabs/gradeq/internal/store"
)

// Workers pull jobs from the shared backlog and execute them. Each worker
// claims a job (so no job is ever executed twice), runs it against the
// backend the dispatcher selects, and writes the terminal status together
// with the result.
type Workers struct {
	store       store.Store
	runtimes    *runtime.Registry
	concurrency int
	interval    time.Duration
}

func NewWorkers(s store.Store, runtimes *runtime.Registry, concurrency int) *Workers {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Workers{
		store:       s,
		runtimes:    runtimes,
		concurrency: concurrency,
		interval:    200 * time.Millisecond,
	}
}

// Start spawns the worker goroutines and blocks until ctx is cancelled.
func (w *Workers) Start(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		go w.loop(ctx)
	}
	<-ctx.Done()
}

func (w *Workers) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processNext(ctx)
		}
	}
}

func (w *Workers) processNext(ctx context.Context) {
	job, err := w.store.Claim(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoJobs) {
			return
		}
		log.Printf("worker: claim error: %v", err)
		return
	}

	backend, err := w.runtimes.Resolve(ctx, job.Language)
	if err != nil {
		w.finish(ctx, job.ID, store.StatusFailed, nil, &store.JobError{
			Kind:    store.ErrKindInfrastructure,
			Message: fmt.Sprintf("no backend for %s: %v", job.Language, err),
		})
		return
	}

	timeout := time.Duration(job.TimeoutMs) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	result, err := backend.Run(runCtx, runtime.RunRequest{
		Language: job.Language,
		Code:     job.Code,
		Input:    job.Input,
		Timeout:  timeout,
	})
	cancel()

	switch {
	case err == nil:
		w.finish(ctx, job.ID, store.StatusCompleted, &result, nil)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded):
		// The context cancels the backend where it supports cancellation;
		// otherwise the handle is abandoned and backend-level resource caps
		// bound the stray process.
		w.finish(ctx, job.ID, store.StatusFailed, nil, &store.JobError{
			Kind:    store.ErrKindTimeout,
			Message: fmt.Sprintf("execution exceeded %dms", job.TimeoutMs),
		})
	default:
		w.finish(ctx, job.ID, store.StatusFailed, nil, &store.JobError{
			Kind:    store.ErrKindInfrastructure,
			Message: err.Error(),
		})
	}
}

func (w *Workers) finish(ctx context.Context, id string, status store.Status, result *runtime.ExecutionResult, jobErr *store.JobError) {
	if err := w.store.Finish(ctx, id, status, result, jobErr); err != nil {
		log.Printf("worker: finish %s error: %v", id, err)
	}
}
