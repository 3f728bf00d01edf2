package api

import (
	"github.com/gin-gonic/gin"

	"github.com/capsulelabs/gradeq/internal/grader"
	"github.com/capsulelabs/gradeq/internal/queue"
	"github.com/capsulelabs/gradeq/internal/runtime"
	"github.com/capsulelabs/gradeq/internal/store"
)

func RegisterRoutes(r *gin.Engine, q *queue.Queue, engine *grader.Engine, s store.Store, runtimes *runtime.Registry) {
	h := &Handler{
		queue:    q,
		engine:   engine,
		store:    s,
		runtimes: runtimes,
	}

	r.POST("/execute/:language", h.Execute)
	r.GET("/status/:jobId", h.Status)
	r.POST("/grade", h.Grade)

	r.GET("/queue/stats", h.Stats)
	r.GET("/queue/health", h.Health)
}
