package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noveltoon/backend/internal/jobs"
	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/types"
)

const heartbeatInterval = 15 * time.Second

// JobHandler is the thin HTTP surface over the engine.
type JobHandler struct {
	engine *jobs.Engine
	log    *logger.Logger
}

func NewJobHandler(engine *jobs.Engine, log *logger.Logger) *JobHandler {
	return &JobHandler{engine: engine, log: log.With("service", "job_handler")}
}

type submitRequest struct {
	InputText string        `json:"input_text"`
	Options   types.Options `json:"options"`
}

func (h *JobHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.InputText == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input_text is required"})
		return
	}
	id := h.engine.Submit(req.InputText, req.Options)
	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

func (h *JobHandler) Get(c *gin.Context) {
	job, ok := h.engine.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.engine.List()})
}

func (h *JobHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.engine.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if !h.engine.Cancel(id) {
		c.JSON(http.StatusConflict, gin.H{"error": "job already finished"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

// Events streams a job's progress over SSE until the terminal event.
func (h *JobHandler) Events(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.engine.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.engine.Subscribe(id)
	defer h.engine.Unsubscribe(id, sub)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		case ev, open := <-sub.C:
			if !open {
				if reason := sub.Reason(); reason != "" {
					h.log.Warn("Subscriber dropped", "job_id", id, "reason", reason)
				}
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("Failed to marshal event", "job_id", id, "error", err)
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
