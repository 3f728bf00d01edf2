package grader_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/capsulelabs/gradeq/internal/grader"
	"github.com/capsulelabs/gradeq/internal/runtime"
	"github.com/capsulelabs/gradeq/internal/store"
)

// stubRunner implements grader.Runner. Enqueued programs are recorded; Status
// answers from the results map keyed by job id.
type stubRunner struct {
	mu       sync.Mutex
	programs []string
	results  map[string]*store.Job

	enqueueFn func(program string) (*store.Job, error)
}

func newStubRunner() *stubRunner {
	return &stubRunner{results: map[string]*store.Job{}}
}

func (s *stubRunner) Enqueue(ctx context.Context, language, code, input string, timeoutMs int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.enqueueFn(code)
	if err != nil {
		return "", err
	}
	id := fmt.Sprintf("job-%d", len(s.programs))
	s.programs = append(s.programs, code)
	job.ID = id
	s.results[id] = job
	return id, nil
}

func (s *stubRunner) Status(ctx context.Context, jobID string) (*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.results[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func (s *stubRunner) enqueueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.programs)
}

func completedJob(stdout string) *store.Job {
	return &store.Job{
		Status: store.StatusCompleted,
		Result: &runtime.ExecutionResult{Success: true, Stdout: stdout, RuntimeUsed: runtime.BackendEdge},
	}
}

func fastEngine(r grader.Runner) *grader.Engine {
	return grader.NewEngine(r, grader.NewPoller(time.Millisecond, time.Second), 4)
}

func TestGrade_ResultsKeepInputOrder(t *testing.T) {
	r := newStubRunner()
	// Answer from the harnessed call embedded in each program, so completion
	// order cannot matter.
	r.enqueueFn = func(program string) (*store.Job, error) {
		switch {
		case strings.Contains(program, "add(2, 3)"):
			return completedJob("5\n"), nil
		case strings.Contains(program, "add(-1, -2)"):
			return completedJob("-3\n"), nil
		default:
			return completedJob("?"), nil
		}
	}

	summary, err := fastEngine(r).Grade(context.Background(), grader.Submission{
		Language: "python",
		Code:     "def add(a, b):\n    return a + b",
		Tests: []grader.TestCase{
			{Description: "small numbers", InputArgs: []any{2, 3}, Expected: 5},
			{Description: "negatives", InputArgs: []any{-1, -2}, Expected: -3},
		},
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}

	if summary.Total != 2 || summary.Passed != 2 || !summary.Success {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.Results[0].Description != "small numbers" || summary.Results[1].Description != "negatives" {
		t.Errorf("results out of input order: %+v", summary.Results)
	}
}

func TestGrade_WrongAnswerIsNotAnError(t *testing.T) {
	r := newStubRunner()
	r.enqueueFn = func(program string) (*store.Job, error) {
		return completedJob("42"), nil
	}

	summary, err := fastEngine(r).Grade(context.Background(), grader.Submission{
		Language: "python",
		Code:     "def f():\n    return 42",
		Tests:    []grader.TestCase{{Description: "expects 41", Expected: 41}},
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}

	res := summary.Results[0]
	if res.Passed {
		t.Error("expected failure")
	}
	if res.Error != nil {
		t.Errorf("wrong answer must not carry an error, got %+v", res.Error)
	}
	if res.Actual != "42" {
		t.Errorf("expected actual output recorded, got %v", res.Actual)
	}
}

func TestGrade_CrashIsAnExecutionError(t *testing.T) {
	r := newStubRunner()
	r.enqueueFn = func(program string) (*store.Job, error) {
		return &store.Job{
			Status: store.StatusCompleted,
			Result: &runtime.ExecutionResult{
				Success: false,
				Stderr:  "ZeroDivisionError: division by zero",
			},
		}, nil
	}

	summary, err := fastEngine(r).Grade(context.Background(), grader.Submission{
		Language: "python",
		Code:     "def f():\n    return 1 / 0",
		Tests:    []grader.TestCase{{Description: "crashes", Expected: 1}},
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}

	res := summary.Results[0]
	if res.Passed {
		t.Error("expected failure")
	}
	if res.Error == nil || res.Error.Kind != "execution" {
		t.Errorf("expected execution error, got %+v", res.Error)
	}
	if !strings.Contains(res.Error.Message, "ZeroDivisionError") {
		t.Errorf("expected stderr in message, got %q", res.Error.Message)
	}
}

func TestGrade_TimeoutKindPropagates(t *testing.T) {
	r := newStubRunner()
	r.enqueueFn = func(program string) (*store.Job, error) {
		return &store.Job{
			Status: store.StatusFailed,
			Error:  &store.JobError{Kind: store.ErrKindTimeout, Message: "execution exceeded 5000ms"},
		}, nil
	}

	summary, err := fastEngine(r).Grade(context.Background(), grader.Submission{
		Language: "python",
		Code:     "def f():\n    while True: pass",
		Tests:    []grader.TestCase{{Description: "loops forever", Expected: 1}},
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res := summary.Results[0]; res.Error == nil || res.Error.Kind != store.ErrKindTimeout {
		t.Errorf("expected timeout kind, got %+v", summary.Results[0].Error)
	}
}

func TestGrade_HiddenTestsRedactAnswers(t *testing.T) {
	r := newStubRunner()
	r.enqueueFn = func(program string) (*store.Job, error) {
		return completedJob("99"), nil
	}

	summary, err := fastEngine(r).Grade(context.Background(), grader.Submission{
		Language: "python",
		Code:     "def f():\n    return 99",
		Tests:    []grader.TestCase{{Description: "secret", Expected: 100, IsHidden: true}},
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}

	res := summary.Results[0]
	if res.Passed {
		t.Error("expected failure")
	}
	if res.Expected != nil || res.Actual != nil {
		t.Errorf("hidden test leaked answers: %+v", res)
	}
	if !res.Hidden {
		t.Error("expected hidden flag")
	}
}

func TestGrade_HarnessFailureIsPerTest(t *testing.T) {
	r := newStubRunner()
	r.enqueueFn = func(program string) (*store.Job, error) {
		return completedJob("ok"), nil
	}

	// No function definition anywhere: inference fails, nothing is enqueued.
	summary, err := fastEngine(r).Grade(context.Background(), grader.Submission{
		Language: "python",
		Code:     "x = 1",
		Tests:    []grader.TestCase{{Description: "t", Expected: 1}},
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res := summary.Results[0]; res.Error == nil || res.Error.Kind != "harness" {
		t.Errorf("expected harness error, got %+v", summary.Results[0].Error)
	}
	if r.enqueueCount() != 0 {
		t.Errorf("expected no jobs enqueued, got %d", r.enqueueCount())
	}
}

func TestGrade_UnsupportedLanguageIsSynchronous(t *testing.T) {
	r := newStubRunner()
	_, err := fastEngine(r).Grade(context.Background(), grader.Submission{
		Language: "cobol",
		Code:     "DISPLAY 'HI'",
		Tests:    []grader.TestCase{{Expected: 1}},
	})
	if !errors.Is(err, runtime.ErrUnsupportedLanguage) {
		t.Errorf("expected ErrUnsupportedLanguage, got %v", err)
	}
	if r.enqueueCount() != 0 {
		t.Error("validation failure must not enqueue")
	}
}
