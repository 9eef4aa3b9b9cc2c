// Package server exposes an HTTP trigger for runs, for setups where the
// surrounding automation calls a webhook instead of executing the binary.
package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/harveywai/expirywatch/pkg/actions"
	"github.com/harveywai/expirywatch/pkg/database"
	"github.com/harveywai/expirywatch/pkg/middleware"
	"github.com/harveywai/expirywatch/pkg/runner"
)

// RunFunc executes one reconciliation.
type RunFunc func(ctx context.Context) (*runner.Summary, error)

// Server serves the trigger API.
type Server struct {
	Run        RunFunc
	History    *database.Store
	Secret     string
	Repository string
	Log        *actions.Logger

	// mu serializes runs so two triggers cannot race on the same issue.
	mu sync.Mutex
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(s.Secret, s.Repository))
	{
		v1.POST("/runs", s.handleRun)
		v1.GET("/runs", s.handleListRuns)
	}

	return r
}

func (s *Server) handleRun(c *gin.Context) {
	if !s.mu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}
	defer s.mu.Unlock()

	if claims, ok := middleware.ClaimsFrom(c); ok {
		s.Log.Infof("run triggered by %s", claims.Subject)
	}

	summary, err := s.Run(c.Request.Context())
	if err != nil {
		s.Log.Errorf("triggered run failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run history is not enabled"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.History.RecentRuns(c.Request.Context(), s.Repository, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
