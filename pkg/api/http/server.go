package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/omokpang/omokpang/pkg/ports"
)

// Server represents the HTTP API server
type Server struct {
	router   *gin.Engine
	server   *http.Server
	accounts Accounts
	ranking  Ranking
	cards    Cards
	rooms    ports.RoomStore
	counter  RoomCounter
	gatherer prometheus.Gatherer
	limiter  *ipLimiter
	logger   *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port     int
	Accounts Accounts
	Ranking  Ranking
	Cards    Cards
	Rooms    ports.RoomStore
	// Counter reports live rooms on /health. Optional.
	Counter RoomCounter
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer  prometheus.Gatherer
	AuthRate  float64
	AuthBurst int
	Logger    *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router:   router,
		accounts: cfg.Accounts,
		ranking:  cfg.Ranking,
		cards:    cfg.Cards,
		rooms:    cfg.Rooms,
		counter:  cfg.Counter,
		gatherer: gatherer,
		limiter:  newIPLimiter(cfg.AuthRate, cfg.AuthBurst),
		logger:   cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		auth := v1.Group("/auth", rateLimit(s.limiter, s.logger))
		auth.POST("/signup", s.handleSignup)
		auth.POST("/login", s.handleLogin)

		v1.GET("/ranking", s.handleRanking)
		v1.GET("/users/:nickname", s.handleGetUser)

		v1.GET("/cards", s.handleCatalog)
		v1.POST("/cards/draw", s.handleDraw)
		v1.POST("/cards/reroll", s.handleReroll)

		v1.GET("/rooms", s.handleListRooms)
		v1.GET("/rooms/:id", s.handleGetRoom)
	}
}

// SetupWebSocket mounts the game WebSocket endpoint
func (s *Server) SetupWebSocket(handler gin.HandlerFunc) {
	s.router.GET("/ws", handler)
}

// Handler returns the server's router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}
