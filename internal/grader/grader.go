// Package grader runs a submission against its test cases through the job
// queue and scores the outcomes. Each code test becomes one independent job;
// a SQL submission runs once and is compared against every test's expected
// rows. Structural SQL checks happen before anything executes.
package grader

import (
	"context"
	"strings"
	"sync"

	"github.com/capsulelabs/gradeq/internal/analyze"
	"github.com/capsulelabs/gradeq/internal/harness"
	"github.com/capsulelabs/gradeq/internal/runtime"
	"github.com/capsulelabs/gradeq/internal/store"
)

// Runner is the slice of the queue the grader needs. *queue.Queue satisfies
// it; tests substitute a stub.
type Runner interface {
	Enqueue(ctx context.Context, language, code, input string, timeoutMs int64) (string, error)
	Status(ctx context.Context, jobID string) (*store.Job, error)
}

// TestCase is one check against the submission. For code languages InputArgs
// feed the harnessed function call and Expected is its return value. For SQL,
// Setup seeds the database and Expected describes the result rows.
type TestCase struct {
	Description string   `json:"description"`
	InputArgs   []any    `json:"inputArgs,omitempty"`
	Expected    any      `json:"expected"`
	IsHidden    bool     `json:"isHidden,omitempty"`
	Setup       []string `json:"setup,omitempty"`
}

const (
	errKindExecution      = "execution"
	errKindEnvironment    = "environment"
	errKindInfrastructure = store.ErrKindInfrastructure
	errKindTimeout        = store.ErrKindTimeout
	errKindStructural     = "structural"
	errKindHarness        = "harness"
)

// TestError explains why a test did not pass cleanly. A plain wrong answer
// carries no TestError; Expected and Actual tell the story.
type TestError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// TestResult is the graded outcome of one test case. Hidden tests redact
// Expected and Actual so learners cannot reverse-engineer them.
type TestResult struct {
	Description string     `json:"description"`
	Passed      bool       `json:"passed"`
	Hidden      bool       `json:"hidden,omitempty"`
	Expected    any        `json:"expected,omitempty"`
	Actual      any        `json:"actual,omitempty"`
	Error       *TestError `json:"error,omitempty"`
}

// Summary is the full grading report for one submission.
type Summary struct {
	Total    int             `json:"total"`
	Passed   int             `json:"passed"`
	Success  bool            `json:"success"`
	Results  []TestResult    `json:"results"`
	Analysis *analyze.Report `json:"analysis,omitempty"`
}

// Submission is everything needed to grade one piece of learner code.
type Submission struct {
	Language     string     `json:"language"`
	Code         string     `json:"code"`
	FunctionName string     `json:"functionName,omitempty"`
	Reference    string     `json:"reference,omitempty"`
	TimeoutMs    int64      `json:"timeoutMs,omitempty"`
	Tests        []TestCase `json:"tests"`
}

// Engine grades submissions. fanOut bounds how many test jobs run at once.
type Engine struct {
	runner Runner
	poller *Poller
	fanOut int
}

func NewEngine(runner Runner, poller *Poller, fanOut int) *Engine {
	if fanOut <= 0 {
		fanOut = 4
	}
	if poller == nil {
		poller = NewPoller(0, 0)
	}
	return &Engine{runner: runner, poller: poller, fanOut: fanOut}
}

// Grade runs every test case and returns the summary. Results come back in
// the order the tests were given regardless of completion order.
func (e *Engine) Grade(ctx context.Context, sub Submission) (Summary, error) {
	lang, err := runtime.ParseLanguage(sub.Language)
	if err != nil {
		return Summary{}, err
	}
	if lang == runtime.SQL {
		return e.gradeSQL(ctx, sub)
	}
	return e.gradeCode(ctx, lang, sub)
}

func (e *Engine) gradeCode(ctx context.Context, lang runtime.Language, sub Submission) (Summary, error) {
	results := make([]TestResult, len(sub.Tests))
	sem := make(chan struct{}, e.fanOut)
	var wg sync.WaitGroup

	for i, tc := range sub.Tests {
		wg.Add(1)
		go func(i int, tc TestCase) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.runCodeTest(ctx, lang, sub, tc)
		}(i, tc)
	}
	wg.Wait()

	return summarize(results), nil
}

func (e *Engine) runCodeTest(ctx context.Context, lang runtime.Language, sub Submission, tc TestCase) TestResult {
	res := TestResult{Description: tc.Description, Hidden: tc.IsHidden}

	program, err := harness.Synthesize(lang, sub.Code, sub.FunctionName, tc.InputArgs)
	if err != nil {
		res.Error = &TestError{Kind: errKindHarness, Message: err.Error()}
		return redact(res)
	}

	jobID, err := e.runner.Enqueue(ctx, string(lang), program, "", sub.TimeoutMs)
	if err != nil {
		res.Error = &TestError{Kind: errKindInfrastructure, Message: err.Error()}
		return redact(res)
	}

	job, err := e.poller.Wait(ctx, e.runner, jobID)
	if err != nil {
		res.Error = &TestError{Kind: errKindInfrastructure, Message: err.Error()}
		return redact(res)
	}

	switch {
	case job.Status == store.StatusFailed:
		kind := errKindInfrastructure
		msg := "job failed"
		if job.Error != nil {
			kind = job.Error.Kind
			msg = job.Error.Message
		}
		res.Error = &TestError{Kind: kind, Message: msg}
	case job.Result == nil:
		res.Error = &TestError{Kind: errKindInfrastructure, Message: "completed job has no result"}
	case !job.Result.Success:
		res.Error = &TestError{Kind: errKindExecution, Message: strings.TrimSpace(job.Result.Stderr)}
	default:
		actual := strings.TrimSpace(job.Result.Stdout)
		res.Expected = tc.Expected
		res.Actual = actual
		res.Passed = matchExpected(actual, tc.Expected)
	}
	return redact(res)
}

// redact strips answer details from hidden tests while keeping pass/fail.
func redact(res TestResult) TestResult {
	if res.Hidden {
		res.Expected = nil
		res.Actual = nil
	}
	return res
}

func summarize(results []TestResult) Summary {
	s := Summary{Total: len(results), Results: results}
	for _, r := range results {
		if r.Passed {
			s.Passed++
		}
	}
	s.Success = s.Total > 0 && s.Passed == s.Total
	return s
}
