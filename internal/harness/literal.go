package harness

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// jsonLiteral serializes an argument as a JavaScript/TypeScript literal.
// JSON is a syntactic subset of both, so marshalling is enough.
func jsonLiteral(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize argument: %w", err)
	}
	return string(data), nil
}

// pythonLiteral serializes an argument as a Python literal. Map keys are
// sorted so the generated program is deterministic.
func pythonLiteral(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "None", nil
	case bool:
		if val {
			return "True", nil
		}
		return "False", nil
	case string:
		return quoteString(val), nil
	case float64:
		return formatNumber(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			lit, err := pythonLiteral(item)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case map[string]any:
		keys := sortedKeys(val)
		parts := make([]string, len(keys))
		for i, k := range keys {
			lit, err := pythonLiteral(val[k])
			if err != nil {
				return "", err
			}
			parts[i] = quoteString(k) + ": " + lit
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", fmt.Errorf("unsupported argument type %T", v)
	}
}

// rubyLiteral serializes an argument as a Ruby literal. Hashes use string
// keys with the hash-rocket form.
func rubyLiteral(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "nil", nil
	case bool:
		return strconv.FormatBool(val), nil
	case string:
		return quoteString(val), nil
	case float64:
		return formatNumber(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			lit, err := rubyLiteral(item)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case map[string]any:
		keys := sortedKeys(val)
		parts := make([]string, len(keys))
		for i, k := range keys {
			lit, err := rubyLiteral(val[k])
			if err != nil {
				return "", err
			}
			parts[i] = quoteString(k) + " => " + lit
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", fmt.Errorf("unsupported argument type %T", v)
	}
}

// formatNumber prints integral floats without the trailing ".0" that
// strconv would otherwise omit anyway, and keeps fractional values exact.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// quoteString produces a double-quoted literal valid in Python, Ruby, and
// the JS family alike.
func quoteString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
