package grader

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// matchExpected compares a program's trimmed stdout against the expected
// return value. Different runtimes print the same value differently (true vs
// True, null vs None), so the comparison accepts any of the canonical
// renderings rather than forcing one language's convention on all of them.
func matchExpected(actual string, expected any) bool {
	for _, want := range expectedRenderings(expected) {
		if actual == want {
			return true
		}
	}
	return false
}

func expectedRenderings(v any) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range []string{jsString(v), pyString(v), jsonString(v)} {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// jsString mirrors what console.log prints for a value: bare strings,
// lowercase booleans, arrays joined with commas.
func jsString(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	case float64:
		return formatNumber(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = jsString(item)
		}
		return strings.Join(parts, ",")
	default:
		return jsonString(v)
	}
}

// pyString mirrors what print() shows: True/False/None and repr-style
// collections with quoted strings.
func pyString(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return val
	case float64:
		return formatNumber(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = pyRepr(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = "'" + k + "': " + pyRepr(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return jsonString(v)
	}
}

// pyRepr is pyString except strings keep their quotes, as inside containers.
func pyRepr(v any) string {
	if s, ok := v.(string); ok {
		return "'" + s + "'"
	}
	return pyString(v)
}

func jsonString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
