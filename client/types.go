package client

import "time"

// ExecuteRequest is the body of POST /execute/:language.
type ExecuteRequest struct {
	Code      string `json:"code"`
	Input     string `json:"input,omitempty"`
	TimeoutMs int64  `json:"timeoutMs,omitempty"`
}

// ExecuteResponse acknowledges an accepted job.
type ExecuteResponse struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	StatusURL string `json:"statusUrl"`
}

// ExecutionResult mirrors the server's result payload.
type ExecutionResult struct {
	Success         bool   `json:"success"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	ExitCode        *int   `json:"exitCode,omitempty"`
	ExecutionTimeMs int64  `json:"executionTimeMs,omitempty"`
	MemoryUsedMb    *int   `json:"memoryUsedMb,omitempty"`
	RuntimeUsed     string `json:"runtimeUsed"`
}

// JobError explains why a job failed.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Job is the record returned by GET /status/:jobId.
type Job struct {
	ID          string           `json:"jobId"`
	Language    string           `json:"language"`
	Status      string           `json:"status"`
	Error       *JobError        `json:"error,omitempty"`
	Result      *ExecutionResult `json:"result,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// GradeTestCase is one test in a grading request.
type GradeTestCase struct {
	Description string   `json:"description"`
	InputArgs   []any    `json:"inputArgs,omitempty"`
	Expected    any      `json:"expected"`
	IsHidden    bool     `json:"isHidden,omitempty"`
	Setup       []string `json:"setup,omitempty"`
}

// GradeRequest is the body of POST /grade.
type GradeRequest struct {
	Language     string          `json:"language"`
	Code         string          `json:"code"`
	FunctionName string          `json:"functionName,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	TimeoutMs    int64           `json:"timeoutMs,omitempty"`
	Tests        []GradeTestCase `json:"tests"`
}

// GradeTestError explains a non-passing test outcome.
type GradeTestError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// GradeTestResult is one graded test.
type GradeTestResult struct {
	Description string          `json:"description"`
	Passed      bool            `json:"passed"`
	Hidden      bool            `json:"hidden,omitempty"`
	Expected    any             `json:"expected,omitempty"`
	Actual      any             `json:"actual,omitempty"`
	Error       *GradeTestError `json:"error,omitempty"`
}

// AnalysisIssue is one structural finding from SQL analysis.
type AnalysisIssue struct {
	Message  string `json:"message"`
	Blocking bool   `json:"blocking"`
}

// Analysis summarizes the structural review of a SQL submission.
type Analysis struct {
	Techniques []string        `json:"techniques"`
	Complexity string          `json:"complexity"`
	Score      int             `json:"score"`
	Issues     []AnalysisIssue `json:"issues"`
}

// GradeSummary is the response of POST /grade.
type GradeSummary struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Success  bool              `json:"success"`
	Results  []GradeTestResult `json:"results"`
	Analysis *Analysis         `json:"analysis,omitempty"`
}

// StatsResponse is the response of GET /queue/stats.
type StatsResponse struct {
	QueueDepth         int      `json:"queueDepth"`
	SupportedLanguages []string `json:"supportedLanguages"`
}

// HealthResponse is the response of GET /queue/health.
type HealthResponse struct {
	Status   string          `json:"status"`
	Backends map[string]bool `json:"backends"`
}
