package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/capsulelabs/gradeq/internal/runtime"
	"github.com/capsulelabs/gradeq/internal/store"
)

func newJob(id string) *store.Job {
	return &store.Job{
		ID:        id,
		Language:  runtime.Python,
		Code:      "print(1)",
		TimeoutMs: 5000,
		Status:    store.StatusQueued,
		CreatedAt: time.Now(),
	}
}

func TestMemoryStore_ClaimIsFIFO(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(time.Hour)

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Create(ctx, newJob(id)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		job, err := s.Claim(ctx)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if job.ID != want {
			t.Errorf("expected job %s, got %s", want, job.ID)
		}
		if job.Status != store.StatusRunning {
			t.Errorf("claimed job should be running, got %s", job.Status)
		}
		if job.StartedAt == nil {
			t.Error("claimed job should have StartedAt set")
		}
	}

	if _, err := s.Claim(ctx); !errors.Is(err, store.ErrNoJobs) {
		t.Errorf("expected ErrNoJobs on empty backlog, got %v", err)
	}
}

func TestMemoryStore_FinishWritesStatusAndResultTogether(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(time.Hour)

	if err := s.Create(ctx, newJob("j1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	result := &runtime.ExecutionResult{Success: true, Stdout: "1\n", RuntimeUsed: runtime.BackendEdge}
	if err := s.Finish(ctx, "j1", store.StatusCompleted, result, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}

	job, err := s.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != store.StatusCompleted {
		t.Errorf("expected completed, got %s", job.Status)
	}
	if job.Result == nil || job.Result.Stdout != "1\n" {
		t.Errorf("expected result attached, got %+v", job.Result)
	}
	if job.CompletedAt == nil {
		t.Error("expected CompletedAt set")
	}
}

func TestMemoryStore_FinishRejectsNonTerminalAndDoubleFinish(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(time.Hour)

	if err := s.Create(ctx, newJob("j1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := s.Finish(ctx, "j1", store.StatusRunning, nil, nil); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict for non-terminal target, got %v", err)
	}

	jobErr := &store.JobError{Kind: store.ErrKindTimeout, Message: "too slow"}
	if err := s.Finish(ctx, "j1", store.StatusFailed, nil, jobErr); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := s.Finish(ctx, "j1", store.StatusCompleted, nil, nil); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict on double finish, got %v", err)
	}

	// The first terminal write wins.
	job, err := s.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != store.StatusFailed || job.Error == nil || job.Error.Kind != store.ErrKindTimeout {
		t.Errorf("expected failed/timeout to survive, got %s %+v", job.Status, job.Error)
	}
}

func TestMemoryStore_ExpiredJobIndistinguishableFromUnknown(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(time.Minute)
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	if err := s.Create(ctx, newJob("j1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.Finish(ctx, "j1", store.StatusCompleted, &runtime.ExecutionResult{Success: true}, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if _, err := s.Get(ctx, "j1"); err != nil {
		t.Fatalf("get within retention: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "j1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after retention, got %v", err)
	}
	if _, err := s.Get(ctx, "never-existed"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestMemoryStore_ActiveCountExcludesTerminalJobs(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(time.Hour)

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Create(ctx, newJob(id)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := s.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.Finish(ctx, "a", store.StatusCompleted, &runtime.ExecutionResult{Success: true}, nil); err != nil {
		t.Fatalf("finish: %v", err)
	}

	count, err := s.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("active count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 active jobs, got %d", count)
	}
}

func TestMemoryStore_GetReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(time.Hour)

	if err := s.Create(ctx, newJob("j1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	job, _ := s.Get(ctx, "j1")
	job.Status = store.StatusFailed

	again, _ := s.Get(ctx, "j1")
	if again.Status != store.StatusQueued {
		t.Errorf("mutating a returned job leaked into the store: %s", again.Status)
	}
}
