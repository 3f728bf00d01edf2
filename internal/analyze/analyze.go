// Package analyze inspects the shape of a learner's SQL query against the
// reference solution. It is deliberately regex-based: the goal is catching
// structural shortcuts (copying the reference, skipping a required GROUP BY)
// and scoring technique use, not parsing SQL.
package analyze

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Issue is one structural finding. Blocking issues fail grading before any
// query is executed; advisory issues only inform the report.
type Issue struct {
	Message  string `json:"message"`
	Blocking bool   `json:"blocking"`
}

// Report summarizes the structural comparison of a learner query with the
// reference.
type Report struct {
	Techniques []string `json:"techniques"`
	Complexity string   `json:"complexity"`
	Score      int      `json:"score"`
	Issues     []Issue  `json:"issues"`
}

// Blocked reports whether any issue prevents execution-based grading.
func (r Report) Blocked() bool {
	for _, issue := range r.Issues {
		if issue.Blocking {
			return true
		}
	}
	return false
}

type technique struct {
	name   string
	weight int
	detect *regexp.Regexp
}

var techniques = []technique{
	{"JOIN", 20, regexp.MustCompile(`(?i)\bjoin\b`)},
	{"GROUP BY", 15, regexp.MustCompile(`(?i)\bgroup\s+by\b`)},
	{"HAVING", 15, regexp.MustCompile(`(?i)\bhaving\b`)},
	{"subquery", 25, regexp.MustCompile(`(?i)\(\s*select\b`)},
	{"aggregate", 10, regexp.MustCompile(`(?i)\b(count|sum|avg|min|max)\s*\(`)},
	{"ORDER BY", 5, regexp.MustCompile(`(?i)\border\s+by\b`)},
	{"LIMIT", 5, regexp.MustCompile(`(?i)\blimit\b`)},
}

var (
	wherePattern = regexp.MustCompile(`(?i)\bwhere\b`)
	tablePattern = regexp.MustCompile(`(?i)\b(?:from|join)\s+([A-Za-z_]\w*)`)
)

// Analyze compares the learner's query with the reference and returns the
// structural report. Execution order and row limits are cosmetic, so ORDER BY
// and LIMIT mismatches never raise issues.
func Analyze(query, reference string) Report {
	report := Report{}

	for _, t := range techniques {
		if t.detect.MatchString(query) {
			report.Techniques = append(report.Techniques, t.name)
			report.Score += t.weight
		}
	}
	report.Complexity = complexity(report.Techniques)

	if normalize(query) == normalize(reference) {
		report.Issues = append(report.Issues, Issue{
			Message:  "query is identical to the reference solution",
			Blocking: true,
		})
		return report
	}

	for _, required := range []string{"GROUP BY", "aggregate"} {
		t := techniqueByName(required)
		if t.detect.MatchString(reference) && !t.detect.MatchString(query) {
			report.Issues = append(report.Issues, Issue{
				Message:  fmt.Sprintf("expected the query to use %s", required),
				Blocking: true,
			})
		}
	}
	if wherePattern.MatchString(reference) && !wherePattern.MatchString(query) {
		report.Issues = append(report.Issues, Issue{
			Message:  "expected the query to filter rows with WHERE",
			Blocking: true,
		})
	}

	for _, table := range tables(reference) {
		if !containsTable(query, table) {
			report.Issues = append(report.Issues, Issue{
				Message:  fmt.Sprintf("expected the query to read from table %q", table),
				Blocking: true,
			})
		}
	}
	return report
}

func techniqueByName(name string) technique {
	for _, t := range techniques {
		if t.name == name {
			return t
		}
	}
	return technique{detect: regexp.MustCompile(`$^`)}
}

func complexity(used []string) string {
	has := func(name string) bool {
		for _, t := range used {
			if t == name {
				return true
			}
		}
		return false
	}
	switch {
	case has("subquery"):
		return "advanced"
	case has("JOIN") || has("GROUP BY") || has("HAVING"):
		return "intermediate"
	default:
		return "basic"
	}
}

// normalize collapses whitespace and case so trivial reformatting does not
// dodge the anti-copy check.
func normalize(query string) string {
	fields := strings.Fields(strings.ToLower(query))
	joined := strings.Join(fields, " ")
	return strings.TrimSuffix(joined, ";")
}

func tables(query string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range tablePattern.FindAllStringSubmatch(query, -1) {
		name := strings.ToLower(m[1])
		if name == "select" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func containsTable(query, table string) bool {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(table) + `\b`)
	return re.MatchString(query)
}
