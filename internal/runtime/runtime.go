package runtime

import (
	"context"
	"errors"
	"time"
)

// BackendID names an execution backend.
type BackendID string

const (
	// BackendEdge is the constrained in-process/edge interpreter.
	BackendEdge BackendID = "edge"
	// BackendContainer is the heavyweight container runtime.
	BackendContainer BackendID = "container"
	// BackendDatabase is the SQL script runner.
	BackendDatabase BackendID = "database"
)

// ErrUnsupportedLanguage is a caller-visible validation error. It is raised
// before any job is created.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ErrBackendUnavailable is returned when no backend can serve a request.
var ErrBackendUnavailable = errors.New("backend unavailable")

// RunRequest is a single program (or SQL script) to execute.
type RunRequest struct {
	Language Language
	Code     string
	Input    string
	Timeout  time.Duration
}

// ExecutionResult is the outcome of running one program. Success reports
// whether the program ran to completion without an infrastructure-level
// error; a program that exits non-zero still yields Success=false with the
// job itself completed.
type ExecutionResult struct {
	Success         bool      `json:"success"`
	Stdout          string    `json:"stdout"`
	Stderr          string    `json:"stderr"`
	ExitCode        *int      `json:"exitCode,omitempty"`
	ExecutionTimeMs int64     `json:"executionTimeMs,omitempty"`
	MemoryUsedMb    *int      `json:"memoryUsedMb,omitempty"`
	RuntimeUsed     BackendID `json:"runtimeUsed"`
}

// Backend is an execution capability the queue can hand a job to.
type Backend interface {
	ID() BackendID
	// Available reports whether the backend can currently serve requests.
	Available(ctx context.Context) bool
	Run(ctx context.Context, req RunRequest) (ExecutionResult, error)
}

// Dispatch maps a language to its preferred backend. Pure and deterministic:
// SQL always goes to the database runner, the constrained set to the edge
// interpreter, every other supported language to the container runtime.
func Dispatch(lang Language) (BackendID, error) {
	switch {
	case lang == SQL:
		return BackendDatabase, nil
	case edgeLanguages[lang]:
		return BackendEdge, nil
	case containerLanguages[lang]:
		return BackendContainer, nil
	default:
		return "", ErrUnsupportedLanguage
	}
}

// Registry resolves a dispatch decision to a live backend, applying the
// one-way fallback policy: a constrained language may be downgraded to the
// container runtime when the edge interpreter is missing or unavailable,
// never the reverse.
type Registry struct {
	backends map[BackendID]Backend
}

func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[BackendID]Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.ID()] = b
	}
	return r
}

// Resolve picks the backend that will actually run a job for lang.
func (r *Registry) Resolve(ctx context.Context, lang Language) (Backend, error) {
	id, err := Dispatch(lang)
	if err != nil {
		return nil, err
	}

	b, ok := r.backends[id]
	if ok && b.Available(ctx) {
		return b, nil
	}

	if id == BackendEdge {
		if fallback, ok := r.backends[BackendContainer]; ok && fallback.Available(ctx) {
			return fallback, nil
		}
	}

	return nil, ErrBackendUnavailable
}

// Backend returns the registered backend for id, if any.
func (r *Registry) Backend(id BackendID) (Backend, bool) {
	b, ok := r.backends[id]
	return b, ok
}

// Health reports per-backend availability flags for the health endpoint.
func (r *Registry) Health(ctx context.Context) map[string]bool {
	flags := make(map[string]bool, len(r.backends))
	for id, b := range r.backends {
		flags[string(id)] = b.Available(ctx)
	}
	return flags
}
