// Package api exposes run history and metrics over a read-only HTTP API.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Promptonauts/convey/pkg/models"
	"github.com/Promptonauts/convey/pkg/observability"
	"github.com/Promptonauts/convey/pkg/store"
)

type Server struct {
	store   store.Store
	metrics *observability.MetricsRegistry
	engine  *gin.Engine
	events  <-chan store.RunEvent
}

func NewServer(st store.Store, metrics *observability.MetricsRegistry) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:   st,
		metrics: metrics,
		engine:  gin.New(),
		events:  st.Watch(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	v1 := s.engine.Group("/v1")
	{
		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:id", s.getRun)
		v1.GET("/runs/:id/logs", s.getRunLogs)
		v1.GET("/events", s.nextEvent)
		v1.GET("/metrics", s.metricsSnapshot)
	}
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Serve(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listRuns(c *gin.Context) {
	channel := models.Channel(c.Query("channel"))
	if channel != "" && !channel.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(channel, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.store.GetRun(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) getRunLogs(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.GetRun(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	logs, err := s.store.GetCommandLogs(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// nextEvent long-polls the store's watch feed for the next run event.
func (s *Server) nextEvent(c *gin.Context) {
	timeout := 30 * time.Second
	if raw := c.Query("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout"})
			return
		}
		timeout = d
	}

	select {
	case event := <-s.events:
		c.JSON(http.StatusOK, gin.H{"type": event.Type, "run": event.Run})
	case <-time.After(timeout):
		c.Status(http.StatusNoContent)
	case <-c.Request.Context().Done():
		c.Status(http.StatusRequestTimeout)
	}
}

func (s *Server) metricsSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}
