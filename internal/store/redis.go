package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/capsulelabs/gradeq/internal/runtime"
)

const (
	jobKeyPrefix = "gradeq:job:"
	backlogKey   = "gradeq:backlog"
	runningKey   = "gradeq:running"
)

// RedisStore persists job records as JSON values and keeps the backlog in a
// list. Claiming pops the backlog atomically, so no two workers ever receive
// the same job. Retention is enforced with a TTL applied on the terminal
// write.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func (s *RedisStore) Create(ctx context.Context, job *Job) error {
	if err := s.writeJob(ctx, job, 0); err != nil {
		return err
	}
	if err := s.client.LPush(ctx, backlogKey, job.ID).Err(); err != nil {
		return fmt.Errorf("push backlog: %w", err)
	}
	return nil
}

func (s *RedisStore) Claim(ctx context.Context) (*Job, error) {
	id, err := s.client.RPop(ctx, backlogKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoJobs
	}
	if err != nil {
		return nil, fmt.Errorf("pop backlog: %w", err)
	}

	job, err := s.readJob(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job.Status = StatusRunning
	job.StartedAt = &now
	if err := s.writeJob(ctx, job, 0); err != nil {
		return nil, err
	}
	if err := s.client.SAdd(ctx, runningKey, id).Err(); err != nil {
		return nil, fmt.Errorf("track running job: %w", err)
	}
	return job, nil
}

func (s *RedisStore) Finish(ctx context.Context, id string, status Status, result *runtime.ExecutionResult, jobErr *JobError) error {
	job, err := s.readJob(ctx, id)
	if err != nil {
		return err
	}
	if !status.Terminal() || job.Status.Terminal() {
		return ErrConflict
	}

	now := time.Now()
	job.Status = status
	job.Result = result
	job.Error = jobErr
	job.CompletedAt = &now

	if err := s.writeJob(ctx, job, s.retention); err != nil {
		return err
	}
	if err := s.client.SRem(ctx, runningKey, id).Err(); err != nil {
		return fmt.Errorf("untrack running job: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	return s.readJob(ctx, id)
}

func (s *RedisStore) ActiveCount(ctx context.Context) (int, error) {
	queued, err := s.client.LLen(ctx, backlogKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count backlog: %w", err)
	}
	running, err := s.client.SCard(ctx, runningKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count running: %w", err)
	}
	return int(queued + running), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) writeJob(ctx context.Context, job *Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.client.Set(ctx, jobKeyPrefix+job.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("write job: %w", err)
	}
	return nil
}

func (s *RedisStore) readJob(ctx context.Context, id string) (*Job, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}
