package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/capsulelabs/gradeq/internal/grader"
	"github.com/capsulelabs/gradeq/internal/queue"
	"github.com/capsulelabs/gradeq/internal/runtime"
	"github.com/capsulelabs/gradeq/internal/store"
)

type Handler struct {
	queue    *queue.Queue
	engine   *grader.Engine
	store    store.Store
	runtimes *runtime.Registry
}

// Execute queues a code execution job and returns its id immediately.
//
// Request body:
//
//	{
//	  "code":      "print('hello')",
//	  "input":     "optional stdin",
//	  "timeoutMs": 5000
//	}
//
// Returns 202 {"jobId": "...", "status": "queued", "statusUrl": "..."}.
// Poll the status URL until the job reports completed or failed.
func (h *Handler) Execute(c *gin.Context) {
	language := c.Param("language")

	var body struct {
		Code      string `json:"code" binding:"required"`
		Input     string `json:"input"`
		TimeoutMs int64  `json:"timeoutMs"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := h.queue.Enqueue(c.Request.Context(), language, body.Code, body.Input, body.TimeoutMs)
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"jobId":     jobID,
		"status":    string(store.StatusQueued),
		"statusUrl": fmt.Sprintf("/status/%s", jobID),
	})
}

// Status returns the current job record. Unknown and expired jobs are
// indistinguishable: both answer 404.
func (h *Handler) Status(c *gin.Context) {
	job, err := h.queue.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Grade runs a submission's test cases and returns the scored summary.
func (h *Handler) Grade(c *gin.Context) {
	var sub grader.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sub.Code == "" || len(sub.Tests) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and tests are required"})
		return
	}

	summary, err := h.engine.Grade(c.Request.Context(), sub)
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "grading failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Stats reports queue depth and the supported language set.
func (h *Handler) Stats(c *gin.Context) {
	depth, err := h.queue.Depth(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue depth"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"queueDepth":         depth,
		"supportedLanguages": runtime.SupportedLanguages(),
	})
}

// Health reports store reachability and per-backend availability. A dead
// store answers 503; a missing backend only flips its flag.
func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "job store unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"backends": h.runtimes.Health(ctx),
	})
}

func isValidationError(err error) bool {
	return errors.Is(err, runtime.ErrUnsupportedLanguage) ||
		errors.Is(err, queue.ErrEmptyCode) ||
		errors.Is(err, queue.ErrCodeTooLarge)
}
