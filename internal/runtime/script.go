package runtime

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// maxResultRows caps the rows returned from a SQL job to keep result
// payloads bounded.
const maxResultRows = 1000

// Script is the unit of work for the database backend: schema and seed
// statements followed by the learner's query. A raw SQL string submitted
// directly to /execute/sql becomes a Script with no setup.
type Script struct {
	Setup []string `json:"setup"`
	Query string   `json:"query"`
}

// EncodeScript serializes a script for transport through the job queue.
func EncodeScript(setup []string, query string) (string, error) {
	data, err := json.Marshal(Script{Setup: setup, Query: query})
	if err != nil {
		return "", fmt.Errorf("encode sql script: %w", err)
	}
	return string(data), nil
}

// DecodeScript accepts either an encoded Script or a bare SQL query.
func DecodeScript(code string) Script {
	trimmed := strings.TrimSpace(code)
	if strings.HasPrefix(trimmed, "{") {
		var s Script
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil && s.Query != "" {
			return s
		}
	}
	return Script{Query: code}
}

// ResultSet is the stdout payload of a completed SQL job.
type ResultSet struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"rowCount"`
	Truncated bool             `json:"truncated,omitempty"`
}

// DecodeResultSet parses the stdout of a SQL job back into rows.
func DecodeResultSet(stdout string) (ResultSet, error) {
	var rs ResultSet
	if err := json.Unmarshal([]byte(stdout), &rs); err != nil {
		return ResultSet{}, fmt.Errorf("decode result set: %w", err)
	}
	return rs, nil
}

var dangerousStatements = []string{
	"DROP", "CREATE", "ALTER", "INSERT", "UPDATE", "DELETE",
	"TRUNCATE", "GRANT", "REVOKE", "EXEC", "EXECUTE",
	"CALL", "DO", "LOAD", "COPY",
}

var dangerousFunctions = []string{
	"PG_SLEEP", "PG_TERMINATE_BACKEND", "PG_CANCEL_BACKEND",
	"LO_CREATE", "LO_UNLINK", "LO_IMPORT", "LO_EXPORT",
}

// screenQuery rejects statements a learner query must not contain. Setup
// statements are exempt; they legitimately create and seed tables.
func screenQuery(query string) error {
	upper := strings.ToUpper(query)
	for _, stmt := range dangerousStatements {
		if regexp.MustCompile(`\b` + stmt + `\b`).MatchString(upper) {
			return fmt.Errorf("%s statements are not allowed in read-only mode", stmt)
		}
	}
	for _, fn := range dangerousFunctions {
		if regexp.MustCompile(`\b` + fn + `\s*\(`).MatchString(upper) {
			return fmt.Errorf("%s function is not allowed", fn)
		}
	}
	return nil
}

// friendlySQLError rewrites driver errors into learner-facing messages.
func friendlySQLError(err error) string {
	msg := strings.TrimSpace(err.Error())
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission denied"):
		return "permission denied - this query requires privileges not available in the exercise environment"
	case strings.Contains(lower, "syntax error"):
		return fmt.Sprintf("SQL syntax error: %s", msg)
	case strings.Contains(lower, "does not exist") || strings.Contains(lower, "no such table") || strings.Contains(lower, "no such column"):
		return fmt.Sprintf("database object does not exist: %s", msg)
	default:
		return msg
	}
}

// normalizeValue converts driver-specific scan values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}
