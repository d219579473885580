// Package api serves process diagnostics over HTTP: a health probe for
// the orchestrator and a status summary for humans. It exposes nothing
// about individual stored events.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ifi-progsys/sam/pkg/database"
	"github.com/ifi-progsys/sam/pkg/version"
)

// EngineStats is the slice of the engine the diagnostics server reads.
type EngineStats interface {
	Snapshot() int
	QueueDepth() int
	LastTick() time.Time
}

// Server is the diagnostics HTTP server.
type Server struct {
	db         *database.Client
	engine     EngineStats
	httpServer *http.Server
}

// NewServer creates a diagnostics server.
func NewServer(db *database.Client, engine EngineStats) *Server {
	return &Server{db: db, engine: engine}
}

// Router builds the gin handler. Exposed for tests.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.health)
	router.GET("/status", s.status)
	return router
}

// Start runs the server on addr. Blocks until Shutdown or failure.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// health handles GET /health: database connectivity plus engine
// liveness (a tick observed within the last three cadences).
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.db.DB())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": dbHealth,
			"error":    err.Error(),
		})
		return
	}

	status := "healthy"
	httpStatus := http.StatusOK
	lastTick := s.engine.LastTick()
	if lastTick.IsZero() || time.Since(lastTick) > 3*time.Minute {
		status = "degraded"
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"database":  dbHealth,
		"last_tick": lastTick,
	})
}

// status handles GET /status: version and engine counters.
func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":        version.Full(),
		"tracked_events": s.engine.Snapshot(),
		"queue_depth":    s.engine.QueueDepth(),
		"last_tick":      s.engine.LastTick(),
	})
}
