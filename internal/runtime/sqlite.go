package runtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend runs SQL scripts against a fresh in-memory database per job.
// Every execution starts from an empty schema, so setup statements never
// collide across jobs.
type SQLiteBackend struct{}

func NewSQLiteBackend() *SQLiteBackend { return &SQLiteBackend{} }

func (b *SQLiteBackend) ID() BackendID { return BackendDatabase }

func (b *SQLiteBackend) Available(ctx context.Context) bool { return true }

func (b *SQLiteBackend) Run(ctx context.Context, req RunRequest) (ExecutionResult, error) {
	started := time.Now()
	script := DecodeScript(req.Code)

	if err := screenQuery(script.Query); err != nil {
		return executionFailure(fmt.Sprintf("security violation: %s", err), started), nil
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	for _, stmt := range script.Setup {
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return executionFailure(friendlySQLError(err), started), nil
		}
	}

	rows, err := db.QueryContext(ctx, script.Query)
	if err != nil {
		return executionFailure(friendlySQLError(err), started), nil
	}
	defer rows.Close()

	rs, err := collectRows(rows)
	if err != nil {
		return executionFailure(friendlySQLError(err), started), nil
	}

	return resultSetSuccess(rs, started)
}

func collectRows(rows *sql.Rows) (ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return ResultSet{}, err
	}

	rs := ResultSet{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		if len(rs.Rows) >= maxResultRows {
			rs.Truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ResultSet{}, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, err
	}
	rs.RowCount = len(rs.Rows)
	return rs, nil
}

func resultSetSuccess(rs ResultSet, started time.Time) (ExecutionResult, error) {
	payload, err := json.Marshal(rs)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("encode result set: %w", err)
	}
	exitCode := 0
	return ExecutionResult{
		Success:         true,
		Stdout:          string(payload),
		ExitCode:        &exitCode,
		ExecutionTimeMs: time.Since(started).Milliseconds(),
		RuntimeUsed:     BackendDatabase,
	}, nil
}

// executionFailure reports a SQL error as a completed job whose program
// failed: the learner's query is at fault, not the infrastructure.
func executionFailure(stderr string, started time.Time) ExecutionResult {
	exitCode := 1
	return ExecutionResult{
		Success:         false,
		Stderr:          stderr,
		ExitCode:        &exitCode,
		ExecutionTimeMs: time.Since(started).Milliseconds(),
		RuntimeUsed:     BackendDatabase,
	}
}
