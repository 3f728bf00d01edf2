package runtime

import "fmt"

// Language identifies a submission language accepted by the queue.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Ruby       Language = "ruby"
	Go         Language = "go"
	Java       Language = "java"
	CPP        Language = "cpp"
	CSharp     Language = "csharp"
	SQL        Language = "sql"
)

// edgeLanguages are safe to run on the constrained edge interpreter:
// no filesystem, no network, fast cold start.
var edgeLanguages = map[Language]bool{
	Python:     true,
	JavaScript: true,
}

var containerLanguages = map[Language]bool{
	TypeScript: true,
	Ruby:       true,
	Go:         true,
	Java:       true,
	CPP:        true,
	CSharp:     true,
}

// SupportedLanguages returns every language the queue accepts, in a fixed order.
func SupportedLanguages() []Language {
	return []Language{Python, JavaScript, TypeScript, Ruby, Go, Java, CPP, CSharp, SQL}
}

// ParseLanguage validates a raw language identifier.
func ParseLanguage(raw string) (Language, error) {
	lang := Language(raw)
	if lang == SQL || edgeLanguages[lang] || containerLanguages[lang] {
		return lang, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, raw)
}
