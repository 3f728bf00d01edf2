// Package harness turns a user-submitted function plus one test case into a
// runnable program: the user's code, untouched, followed by an invocation of
// the target function and a print of its return value. Appending (never
// rewriting) preserves the user's line numbers in error messages.
package harness

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/capsulelabs/gradeq/internal/runtime"
)

var (
	// ErrNoHarness means the language has no function-style template;
	// such languages run raw programs only.
	ErrNoHarness = errors.New("no harness template for language")
	// ErrFunctionNotFound means no function name was supplied and none
	// could be inferred from the code. Failing here beats silently grading
	// the wrong thing.
	ErrFunctionNotFound = errors.New("could not infer function name")
)

type template struct {
	infer  []*regexp.Regexp
	render func(userCode, fn string, args []any) (string, error)
}

var templates = map[runtime.Language]template{
	runtime.Python: {
		infer: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^\s*def\s+([A-Za-z_]\w*)\s*\(`),
			regexp.MustCompile(`(?m)^\s*([A-Za-z_]\w*)\s*=\s*lambda\b`),
		},
		render: func(userCode, fn string, args []any) (string, error) {
			list, err := literalList(args, pythonLiteral)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s\n\nprint(%s(%s))\n", userCode, fn, list), nil
		},
	},
	runtime.JavaScript: {
		infer: jsInferPatterns,
		render: func(userCode, fn string, args []any) (string, error) {
			list, err := literalList(args, jsonLiteral)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s\n\nconsole.log(%s(%s));\n", userCode, fn, list), nil
		},
	},
	runtime.TypeScript: {
		infer: jsInferPatterns,
		render: func(userCode, fn string, args []any) (string, error) {
			list, err := literalList(args, jsonLiteral)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s\n\nconsole.log(%s(%s));\n", userCode, fn, list), nil
		},
	},
	runtime.Ruby: {
		infer: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^\s*def\s+([a-z_]\w*[?!]?)`),
		},
		render: func(userCode, fn string, args []any) (string, error) {
			list, err := literalList(args, rubyLiteral)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s\n\nputs(%s(%s))\n", userCode, fn, list), nil
		},
	},
}

var jsInferPatterns = []*regexp.Regexp{
	regexp.MustCompile(`function\s+([A-Za-z_$][\w$]*)\s*\(`),
	regexp.MustCompile(`(?m)^\s*(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?(?:function\b|\()`),
}

// Synthesize builds the program for one test case. functionName may be empty,
// in which case it is inferred from the first matching definition in the
// code. The result is deterministic: identical inputs yield identical text.
func Synthesize(lang runtime.Language, userCode, functionName string, args []any) (string, error) {
	tpl, ok := templates[lang]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoHarness, lang)
	}

	fn := functionName
	if fn == "" {
		fn = inferFunctionName(tpl, userCode)
		if fn == "" {
			return "", ErrFunctionNotFound
		}
	}
	return tpl.render(userCode, fn, args)
}

// Supported reports whether function-style grading is available for lang.
func Supported(lang runtime.Language) bool {
	_, ok := templates[lang]
	return ok
}

func inferFunctionName(tpl template, code string) string {
	for _, re := range tpl.infer {
		if m := re.FindStringSubmatch(code); m != nil {
			return m[1]
		}
	}
	return ""
}

func literalList(args []any, literal func(any) (string, error)) (string, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		lit, err := literal(arg)
		if err != nil {
			return "", err
		}
		parts[i] = lit
	}
	return strings.Join(parts, ", "), nil
}
