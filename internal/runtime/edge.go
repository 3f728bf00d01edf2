package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// EdgeBackend calls the per-language serverless interpreter over HTTP.
// The endpoint contract is {"code", "testInput", "timeout"} in and
// {"success", "stdout", "stderr", "executionTime", "memoryUsed", "exitCode"}
// out; timeouts are expressed in whole seconds on the wire.
type EdgeBackend struct {
	baseURL string
	client  *http.Client
}

func NewEdgeBackend(baseURL string) *EdgeBackend {
	return &EdgeBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (b *EdgeBackend) ID() BackendID { return BackendEdge }

// Available probes the interpreter's health endpoint. A short deadline keeps
// the fallback decision cheap.
func (b *EdgeBackend) Available(ctx context.Context) bool {
	if b.baseURL == "" {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

func (b *EdgeBackend) Run(ctx context.Context, req RunRequest) (ExecutionResult, error) {
	payload := map[string]any{
		"code":    req.Code,
		"timeout": int(req.Timeout.Round(time.Second).Seconds()),
	}
	if req.Input != "" {
		payload["testInput"] = req.Input
	}

	bodyJSON, err := json.Marshal(payload)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/run/%s", b.baseURL, req.Language)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyJSON))
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("submit to edge runtime: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return ExecutionResult{}, fmt.Errorf("edge runtime returned HTTP %d", resp.StatusCode)
	}

	var raw struct {
		Success       bool   `json:"success"`
		Stdout        string `json:"stdout"`
		Stderr        string `json:"stderr"`
		ExecutionTime int64  `json:"executionTime"`
		MemoryUsed    int    `json:"memoryUsed"`
		ExitCode      int    `json:"exitCode"`
		Error         string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return ExecutionResult{}, fmt.Errorf("decode edge response: %w", err)
	}

	stderr := raw.Stderr
	if stderr == "" && raw.Error != "" {
		stderr = raw.Error
	}

	exitCode := raw.ExitCode
	memory := raw.MemoryUsed
	return ExecutionResult{
		Success:         raw.Success,
		Stdout:          raw.Stdout,
		Stderr:          stderr,
		ExitCode:        &exitCode,
		ExecutionTimeMs: raw.ExecutionTime,
		MemoryUsedMb:    &memory,
		RuntimeUsed:     BackendEdge,
	}, nil
}
