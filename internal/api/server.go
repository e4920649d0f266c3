package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"solarwatch/internal/monitor"
	"solarwatch/internal/storage"
)

// Server exposes the monitor's latest state and history as JSON, plus
// prometheus metrics.
type Server struct {
	router  *gin.Engine
	server  *http.Server
	monitor *monitor.Monitor
	db      *storage.Database
	port    int
	log     zerolog.Logger
}

type ServerConfig struct {
	Port     int
	Monitor  *monitor.Monitor
	Database *storage.Database
	Log      zerolog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:  router,
		monitor: cfg.Monitor,
		db:      cfg.Database,
		port:    cfg.Port,
		log:     cfg.Log.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	{
		api.GET("/status", s.statusHandler)
		api.GET("/health/latest", s.latestHealthHandler)
		api.GET("/readings/latest", s.latestReadingsHandler)
		api.GET("/alerts/recent", s.recentAlertsHandler)
		api.GET("/runs/recent", s.recentRunsHandler)
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) statusHandler(c *gin.Context) {
	last := s.monitor.Last()
	if last == nil {
		c.JSON(http.StatusOK, gin.H{"ran": false})
		return
	}

	status := gin.H{
		"ran":    true,
		"at":     last.At,
		"phase":  last.Daylight.Phase,
		"alerts": len(last.Alerts),
	}
	if last.Health != nil {
		status["system_ok"] = last.Health.OK
		status["reason"] = last.Health.Reason
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) latestHealthHandler(c *gin.Context) {
	last := s.monitor.Last()
	if last == nil || last.Health == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no health evaluation yet"})
		return
	}
	c.JSON(http.StatusOK, last.Health)
}

func (s *Server) latestReadingsHandler(c *gin.Context) {
	last := s.monitor.Last()
	if last == nil || last.Readings == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no readings yet"})
		return
	}
	c.JSON(http.StatusOK, last.Readings)
}

func (s *Server) recentAlertsHandler(c *gin.Context) {
	limit := queryLimit(c, 50)
	alerts, err := s.db.RecentAlerts(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) recentRunsHandler(c *gin.Context) {
	limit := queryLimit(c, 50)
	runs, err := s.db.RecentHealthRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

func queryLimit(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 1000 {
		return fallback
	}
	return limit
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	s.log.Info().Int("port", s.port).Msg("api server starting")
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
