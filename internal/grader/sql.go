package grader

import (
	"context"
	"regexp"
	"strings"

	"github.com/capsulelabs/gradeq/internal/analyze"
	"github.com/capsulelabs/gradeq/internal/runtime"
	"github.com/capsulelabs/gradeq/internal/store"
)

var orderByPattern = regexp.MustCompile(`(?i)\border\s+by\b`)

// gradeSQL grades a SQL submission. The query executes once against the
// seeded schema; every test case is a comparison against that single result
// set. Structural issues short-circuit before any job is enqueued.
func (e *Engine) gradeSQL(ctx context.Context, sub Submission) (Summary, error) {
	var report *analyze.Report
	if sub.Reference != "" {
		r := analyze.Analyze(sub.Code, sub.Reference)
		report = &r
		if r.Blocked() {
			return structuralFailure(sub.Tests, r), nil
		}
	}

	script, err := runtime.EncodeScript(setupStatements(sub.Tests), sub.Code)
	if err != nil {
		return Summary{}, err
	}

	jobID, err := e.runner.Enqueue(ctx, string(runtime.SQL), script, "", sub.TimeoutMs)
	if err != nil {
		return Summary{}, err
	}
	job, err := e.poller.Wait(ctx, e.runner, jobID)
	if err != nil {
		return Summary{}, err
	}

	if testErr := jobFailure(job); testErr != nil {
		results := make([]TestResult, len(sub.Tests))
		for i, tc := range sub.Tests {
			results[i] = redact(TestResult{Description: tc.Description, Hidden: tc.IsHidden, Error: testErr})
		}
		s := summarize(results)
		s.Analysis = report
		return s, nil
	}

	rs, err := runtime.DecodeResultSet(job.Result.Stdout)
	if err != nil {
		return Summary{}, err
	}

	ordered := orderByPattern.MatchString(sub.Reference)
	results := make([]TestResult, len(sub.Tests))
	for i, tc := range sub.Tests {
		results[i] = redact(compareResultSet(tc, rs, ordered))
	}
	s := summarize(results)
	s.Analysis = report
	return s, nil
}

// setupStatements collects the schema and seed statements across test cases,
// deduplicated in order. Tests typically share one setup block.
func setupStatements(tests []TestCase) []string {
	seen := map[string]bool{}
	var setup []string
	for _, tc := range tests {
		for _, stmt := range tc.Setup {
			if seen[stmt] {
				continue
			}
			seen[stmt] = true
			setup = append(setup, stmt)
		}
	}
	return setup
}

// jobFailure translates a failed or errored SQL job into a per-test error.
// Setup collisions (objects that already exist) are an environment problem,
// not the learner's.
func jobFailure(job *store.Job) *TestError {
	switch {
	case job.Status == store.StatusFailed:
		kind := errKindInfrastructure
		msg := "job failed"
		if job.Error != nil {
			kind = job.Error.Kind
			msg = job.Error.Message
		}
		return &TestError{Kind: kind, Message: msg}
	case job.Result == nil:
		return &TestError{Kind: errKindInfrastructure, Message: "completed job has no result"}
	case !job.Result.Success:
		msg := strings.TrimSpace(job.Result.Stderr)
		kind := errKindExecution
		if strings.Contains(strings.ToLower(msg), "already exists") {
			kind = errKindEnvironment
		}
		return &TestError{Kind: kind, Message: msg}
	default:
		return nil
	}
}

func structuralFailure(tests []TestCase, report analyze.Report) Summary {
	results := make([]TestResult, len(tests))
	msg := "query structure does not match the exercise requirements"
	for _, issue := range report.Issues {
		if issue.Blocking {
			msg = issue.Message
			break
		}
	}
	for i, tc := range tests {
		results[i] = redact(TestResult{
			Description: tc.Description,
			Hidden:      tc.IsHidden,
			Error:       &TestError{Kind: errKindStructural, Message: msg},
		})
	}
	s := summarize(results)
	s.Analysis = &report
	return s
}

// compareResultSet checks one test's expectation against the executed result
// set. Row order only matters when the reference solution orders its output.
func compareResultSet(tc TestCase, rs runtime.ResultSet, ordered bool) TestResult {
	res := TestResult{Description: tc.Description, Hidden: tc.IsHidden}

	wantCols, wantRows, ok := expectedResult(tc.Expected)
	if !ok {
		res.Error = &TestError{Kind: errKindStructural, Message: "test case has no usable expected result"}
		return res
	}
	res.Expected = tc.Expected
	res.Actual = rs

	if len(wantCols) > 0 && !equalColumns(wantCols, rs.Columns) {
		return res
	}
	if ordered {
		res.Passed = equalRowsOrdered(wantRows, rs.Rows)
	} else {
		res.Passed = equalRowsUnordered(wantRows, rs.Rows)
	}
	return res
}

// expectedResult accepts either a bare row list or an object with "columns"
// and "rows" keys.
func expectedResult(expected any) (cols []string, rows []map[string]any, ok bool) {
	switch val := expected.(type) {
	case []any:
		rows, ok = toRows(val)
		return nil, rows, ok
	case map[string]any:
		rawRows, found := val["rows"].([]any)
		if !found {
			return nil, nil, false
		}
		rows, ok = toRows(rawRows)
		if !ok {
			return nil, nil, false
		}
		if rawCols, found := val["columns"].([]any); found {
			for _, c := range rawCols {
				name, isStr := c.(string)
				if !isStr {
					return nil, nil, false
				}
				cols = append(cols, name)
			}
		}
		return cols, rows, true
	default:
		return nil, nil, false
	}
}

func toRows(raw []any) ([]map[string]any, bool) {
	rows := make([]map[string]any, len(raw))
	for i, r := range raw {
		row, ok := r.(map[string]any)
		if !ok {
			return nil, false
		}
		rows[i] = row
	}
	return rows, true
}

func equalColumns(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if !strings.EqualFold(want[i], got[i]) {
			return false
		}
	}
	return true
}

func equalRowsOrdered(want, got []map[string]any) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if canonicalRow(want[i]) != canonicalRow(got[i]) {
			return false
		}
	}
	return true
}

func equalRowsUnordered(want, got []map[string]any) bool {
	if len(want) != len(got) {
		return false
	}
	counts := make(map[string]int, len(want))
	for _, row := range want {
		counts[canonicalRow(row)]++
	}
	for _, row := range got {
		key := canonicalRow(row)
		counts[key]--
		if counts[key] < 0 {
			return false
		}
	}
	return true
}

// canonicalRow folds a row to a comparable key: lowercase column names and
// value renderings that do not distinguish 1 from 1.0 or "1".
func canonicalRow(row map[string]any) string {
	folded := make(map[string]any, len(row))
	for k, v := range row {
		folded[strings.ToLower(k)] = canonicalValue(v)
	}
	return jsonString(folded)
}

func canonicalValue(v any) any {
	switch val := v.(type) {
	case float64:
		return formatNumber(val)
	case int:
		return formatNumber(float64(val))
	case int64:
		return formatNumber(float64(val))
	case string:
		return val
	case nil:
		return nil
	default:
		return jsonString(val)
	}
}
