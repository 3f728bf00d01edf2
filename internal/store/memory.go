package store

import (
	"context"
	"sync"
	"time"

	"github.com/capsulelabs/gradeq/internal/runtime"
)

// MemoryStore keeps jobs in a mutex-guarded map with a FIFO backlog.
// Terminal jobs expire after the retention window; expired lookups report
// ErrNotFound exactly like unknown ids.
type MemoryStore struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	backlog   []string
	retention time.Duration
	now       func() time.Time
}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*Job),
		retention: retention,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Tests use it to drive retention.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *job
	s.jobs[job.ID] = &stored
	s.backlog = append(s.backlog, job.ID)
	return nil
}

func (s *MemoryStore) Claim(ctx context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.backlog) > 0 {
		id := s.backlog[0]
		s.backlog = s.backlog[1:]

		job, ok := s.jobs[id]
		if !ok || job.Status != StatusQueued {
			continue
		}
		now := s.now()
		job.Status = StatusRunning
		job.StartedAt = &now
		return snapshot(job), nil
	}
	return nil, ErrNoJobs
}

func (s *MemoryStore) Finish(ctx context.Context, id string, status Status, result *runtime.ExecutionResult, jobErr *JobError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if !status.Terminal() || status.rank() <= job.Status.rank() {
		return ErrConflict
	}

	now := s.now()
	job.Status = status
	job.Result = result
	job.Error = jobErr
	job.CompletedAt = &now
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(job) {
		delete(s.jobs, id)
		return nil, ErrNotFound
	}
	return snapshot(job), nil
}

func (s *MemoryStore) ActiveCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, job := range s.jobs {
		if job.Status == StatusQueued || job.Status == StatusRunning {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) expired(job *Job) bool {
	if !job.Status.Terminal() || job.CompletedAt == nil || s.retention <= 0 {
		return false
	}
	return s.now().After(job.CompletedAt.Add(s.retention))
}

// snapshot copies a job so callers never share memory with the store.
func snapshot(job *Job) *Job {
	copied := *job
	return &copied
}
