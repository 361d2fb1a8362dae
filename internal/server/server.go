// Package server exposes the bead-road state over REST, a websocket push
// channel, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"bead-road-feed/internal/config"
	"bead-road-feed/internal/feed"
	"bead-road-feed/internal/trend"
	"bead-road-feed/internal/version"
)

// Server wraps the gin engine and its http.Server lifecycle.
type Server struct {
	cfg    config.ServerConfig
	feed   *feed.Feed
	engine *gin.Engine
	logger zerolog.Logger
}

// New builds the router over a feed.
func New(cfg config.ServerConfig, f *feed.Feed, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		feed:   f,
		engine: engine,
		logger: logger.With().Str("component", "server").Logger(),
	}

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	api.GET("/road", s.handleRoad)
	api.GET("/road/records", s.handleRecords)
	api.GET("/road/summary", s.handleSummary)
	api.GET("/rules", s.handleRules)
	api.PUT("/rules/active", s.handleActivateRule)

	engine.GET("/ws", s.handleWebsocket)

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.cfg.Listen).Msg("http server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Msg("http server stopped")
	return ctx.Err()
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
	})
}

func (s *Server) handleRoad(c *gin.Context) {
	snap, err := s.feed.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	switch dim := c.Query("dim"); dim {
	case "":
		c.JSON(http.StatusOK, gin.H{
			"seq":        snap.Seq,
			"rule":       snap.Rule,
			"layout":     snap.Layout,
			"parity":     snap.Parity,
			"size":       snap.Size,
			"windowSize": len(snap.Records),
		})
	case "parity":
		c.JSON(http.StatusOK, gin.H{
			"seq":        snap.Seq,
			"rule":       snap.Rule,
			"layout":     snap.Layout,
			"grid":       snap.Parity,
			"windowSize": len(snap.Records),
		})
	case "size":
		c.JSON(http.StatusOK, gin.H{
			"seq":        snap.Seq,
			"rule":       snap.Rule,
			"layout":     snap.Layout,
			"grid":       snap.Size,
			"windowSize": len(snap.Records),
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "dim must be parity or size"})
	}
}

func (s *Server) handleRecords(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	snap, err := s.feed.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	records := snap.Records
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	c.JSON(http.StatusOK, gin.H{
		"seq":     snap.Seq,
		"rule":    snap.Rule.ID,
		"records": records,
	})
}

func (s *Server) handleSummary(c *gin.Context) {
	snap, err := s.feed.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"seq":     snap.Seq,
		"rule":    snap.Rule.ID,
		"summary": trend.Summarize(snap.Records),
	})
}

func (s *Server) handleRules(c *gin.Context) {
	snap, err := s.feed.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active": snap.Rule.ID,
		"rules":  s.feed.Rules(),
	})
}

func (s *Server) handleActivateRule(c *gin.Context) {
	var body struct {
		ID string `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"id\": \"<rule id>\"}"})
		return
	}

	snap, err := s.feed.SwitchRule(c.Request.Context(), body.ID)
	if err != nil {
		if errors.Is(err, feed.ErrUnknownRule) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active":     snap.Rule.ID,
		"seq":        snap.Seq,
		"windowSize": len(snap.Records),
	})
}
