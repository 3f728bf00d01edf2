package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend runs SQL scripts inside a transaction that is always
// rolled back, so setup statements and the learner's query leave no trace.
// Used for exercises needing Postgres-only features the SQLite runner lacks.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (b *PostgresBackend) ID() BackendID { return BackendDatabase }

func (b *PostgresBackend) Available(ctx context.Context) bool {
	if b.pool == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return b.pool.Ping(probeCtx) == nil
}

func (b *PostgresBackend) Run(ctx context.Context, req RunRequest) (ExecutionResult, error) {
	started := time.Now()
	script := DecodeScript(req.Code)

	if err := screenQuery(script.Query); err != nil {
		return executionFailure(fmt.Sprintf("security violation: %s", err), started), nil
	}

	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	// Nothing a job does may persist.
	defer tx.Rollback(context.Background())

	for _, stmt := range script.Setup {
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return executionFailure(friendlySQLError(err), started), nil
		}
	}

	rows, err := tx.Query(ctx, script.Query)
	if err != nil {
		return executionFailure(friendlySQLError(err), started), nil
	}
	defer rows.Close()

	rs, err := collectPgxRows(rows)
	if err != nil {
		return executionFailure(friendlySQLError(err), started), nil
	}

	return resultSetSuccess(rs, started)
}

func collectPgxRows(rows pgx.Rows) (ResultSet, error) {
	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	rs := ResultSet{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		if len(rs.Rows) >= maxResultRows {
			rs.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
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
