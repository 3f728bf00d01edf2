// Package client provides a Go client for the gradeq API.
//
// Usage:
//
//	c := client.New("http://localhost:8080")
//
//	// Submit a program
//	exec, err := c.Execute(ctx, "python", client.ExecuteRequest{
//	    Code: "print('hello')",
//	})
//
//	// Wait for it to finish
//	job, err := c.WaitForResult(ctx, exec.JobID, nil)
//	fmt.Println(job.Result.Stdout)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a gradeq server. The API is unauthenticated; deployments
// front it with their own gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client. baseURL should be the server root URL
// (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Execute submits a program for asynchronous execution. The returned job id
// feeds Status or WaitForResult.
func (c *Client) Execute(ctx context.Context, language string, req ExecuteRequest) (*ExecuteResponse, error) {
	path := fmt.Sprintf("/execute/%s", url.PathEscape(language))
	return doRequest[ExecuteResponse](ctx, c, http.MethodPost, path, req, http.StatusAccepted)
}

// Status fetches the current job record. Unknown or expired jobs yield an
// APIError with StatusCode 404.
func (c *Client) Status(ctx context.Context, jobID string) (*Job, error) {
	path := fmt.Sprintf("/status/%s", url.PathEscape(jobID))
	return doRequest[Job](ctx, c, http.MethodGet, path, nil, http.StatusOK)
}

// Grade runs a submission against its test cases and returns the summary.
func (c *Client) Grade(ctx context.Context, req GradeRequest) (*GradeSummary, error) {
	return doRequest[GradeSummary](ctx, c, http.MethodPost, "/grade", req, http.StatusOK)
}

// Stats returns queue depth and the supported language list.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	return doRequest[StatsResponse](ctx, c, http.MethodGet, "/queue/stats", nil, http.StatusOK)
}

// Health checks that the server and its backends are reachable.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	return doRequest[HealthResponse](ctx, c, http.MethodGet, "/queue/health", nil, http.StatusOK)
}

// WaitOptions tune WaitForResult's polling loop.
type WaitOptions struct {
	// Interval between polls. Defaults to 250ms.
	Interval time.Duration
	// Deadline for the whole wait. Defaults to 60s.
	Deadline time.Duration
}

// WaitForResult polls the job until it reaches a terminal status.
func (c *Client) WaitForResult(ctx context.Context, jobID string, opts *WaitOptions) (*Job, error) {
	interval := 250 * time.Millisecond
	deadline := 60 * time.Second
	if opts != nil {
		if opts.Interval > 0 {
			interval = opts.Interval
		}
		if opts.Deadline > 0 {
			deadline = opts.Deadline
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.Status(waitCtx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status == "completed" || job.Status == "failed" {
			return job, nil
		}
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("gradeq: job %s not finished before deadline", jobID)
		case <-ticker.C:
		}
	}
}

// --- internal helpers ---

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gradeq: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func doRequest[T any](ctx context.Context, c *Client, method, path string, body any, expectedStatus int) (*T, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != expectedStatus {
		return nil, parseError(resp)
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("gradeq: decode response: %w", err)
	}
	return &out, nil
}

func parseError(resp *http.Response) *APIError {
	e := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		e.Message = body.Error
	} else {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
