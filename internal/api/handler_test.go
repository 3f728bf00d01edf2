package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/capsulelabs/gradeq/internal/grader"
	"github.com/capsulelabs/gradeq/internal/queue"
	"github.com/capsulelabs/gradeq/internal/runtime"
	"github.com/capsulelabs/gradeq/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubBackend implements runtime.Backend for health flags.
type stubBackend struct {
	id        runtime.BackendID
	available bool
}

func (b *stubBackend) ID() runtime.BackendID              { return b.id }
func (b *stubBackend) Available(ctx context.Context) bool { return b.available }
func (b *stubBackend) Run(ctx context.Context, req runtime.RunRequest) (runtime.ExecutionResult, error) {
	return runtime.ExecutionResult{Success: true, RuntimeUsed: b.id}, nil
}

// downStore fails every operation; used to drive the 503 path.
type downStore struct{}

func (downStore) Create(ctx context.Context, job *store.Job) error { return errors.New("down") }
func (downStore) Claim(ctx context.Context) (*store.Job, error)    { return nil, errors.New("down") }
func (downStore) Finish(ctx context.Context, id string, status store.Status, result *runtime.ExecutionResult, jobErr *store.JobError) error {
	return errors.New("down")
}
func (downStore) Get(ctx context.Context, id string) (*store.Job, error) {
	return nil, errors.New("down")
}
func (downStore) ActiveCount(ctx context.Context) (int, error) { return 0, errors.New("down") }
func (downStore) Ping(ctx context.Context) error               { return errors.New("down") }

func newTestRouter(s store.Store) *gin.Engine {
	q := queue.New(s, queue.Options{})
	engine := grader.NewEngine(q, grader.NewPoller(time.Millisecond, time.Second), 2)
	registry := runtime.NewRegistry(
		&stubBackend{id: runtime.BackendEdge, available: true},
		&stubBackend{id: runtime.BackendDatabase, available: false},
	)

	router := gin.New()
	RegisterRoutes(router, q, engine, s, registry)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestExecute_Returns202WithStatusURL(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore(time.Hour))

	w := doJSON(router, "POST", "/execute/python", map[string]any{"code": "print(1)"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		JobID     string `json:"jobId"`
		Status    string `json:"status"`
		StatusURL string `json:"statusUrl"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" || resp.Status != "queued" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.StatusURL != "/status/"+resp.JobID {
		t.Errorf("unexpected status url: %s", resp.StatusURL)
	}
}

func TestExecute_ValidationErrorsAre400(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore(time.Hour))

	cases := []struct {
		name string
		path string
		body map[string]any
	}{
		{"unsupported language", "/execute/cobol", map[string]any{"code": "DISPLAY 'HI'"}},
		{"missing code", "/execute/python", map[string]any{}},
	}
	for _, tc := range cases {
		w := doJSON(router, "POST", tc.path, tc.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", tc.name, w.Code, w.Body.String())
		}
	}
}

func TestStatus_RoundTripAndNotFound(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore(time.Hour))

	w := doJSON(router, "POST", "/execute/python", map[string]any{"code": "print(1)"})
	var created struct {
		JobID string `json:"jobId"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)

	w = doJSON(router, "GET", "/status/"+created.JobID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var job struct {
		ID     string `json:"jobId"`
		Status string `json:"status"`
	}
	json.Unmarshal(w.Body.Bytes(), &job)
	if job.ID != created.JobID || job.Status != "queued" {
		t.Errorf("unexpected job: %+v", job)
	}

	w = doJSON(router, "GET", "/status/does-not-exist", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", w.Code)
	}
}

func TestGrade_StructuralSQLShortCircuitNeedsNoWorker(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore(time.Hour))

	w := doJSON(router, "POST", "/grade", map[string]any{
		"language":  "sql",
		"code":      "SELECT name FROM users WHERE active = 1",
		"reference": "select name from USERS where active = 1",
		"tests": []map[string]any{
			{"description": "rows", "expected": []any{}},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var summary struct {
		Success  bool `json:"success"`
		Analysis *struct {
			Issues []struct {
				Blocking bool `json:"blocking"`
			} `json:"issues"`
		} `json:"analysis"`
	}
	json.Unmarshal(w.Body.Bytes(), &summary)
	if summary.Success {
		t.Error("copied reference should not succeed")
	}
	if summary.Analysis == nil || len(summary.Analysis.Issues) == 0 {
		t.Error("expected analysis with issues")
	}
}

func TestGrade_RejectsEmptySubmissions(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore(time.Hour))

	w := doJSON(router, "POST", "/grade", map[string]any{"language": "python", "code": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	w = doJSON(router, "POST", "/grade", map[string]any{
		"language": "cobol",
		"code":     "DISPLAY",
		"tests":    []map[string]any{{"expected": 1}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported language, got %d", w.Code)
	}
}

func TestStats_ReportsDepthAndLanguages(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore(time.Hour))

	doJSON(router, "POST", "/execute/python", map[string]any{"code": "print(1)"})
	doJSON(router, "POST", "/execute/sql", map[string]any{"code": "SELECT 1"})

	w := doJSON(router, "GET", "/queue/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats struct {
		QueueDepth         int      `json:"queueDepth"`
		SupportedLanguages []string `json:"supportedLanguages"`
	}
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.QueueDepth != 2 {
		t.Errorf("expected depth 2, got %d", stats.QueueDepth)
	}
	if len(stats.SupportedLanguages) != 9 {
		t.Errorf("expected 9 languages, got %v", stats.SupportedLanguages)
	}
}

func TestHealth_ReflectsBackendFlags(t *testing.T) {
	router := newTestRouter(store.NewMemoryStore(time.Hour))

	w := doJSON(router, "GET", "/queue/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var health struct {
		Status   string          `json:"status"`
		Backends map[string]bool `json:"backends"`
	}
	json.Unmarshal(w.Body.Bytes(), &health)
	if health.Status != "ok" {
		t.Errorf("expected ok, got %s", health.Status)
	}
	if !health.Backends["edge"] || health.Backends["database"] {
		t.Errorf("unexpected backend flags: %v", health.Backends)
	}
}

func TestHealth_DeadStoreIs503(t *testing.T) {
	router := newTestRouter(downStore{})

	w := doJSON(router, "GET", "/queue/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
