package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video-incident-service/config"
	"video-incident-service/handlers"
	"video-incident-service/intelligence"
	"video-incident-service/metrics"
	"video-incident-service/middleware"
	"video-incident-service/session"
	ws "video-incident-service/websocket"

	"github.com/apex/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set log level
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Infof("Starting video incident service with %s analysis provider", cfg.AnalysisProvider)

	// Register metrics
	metrics.Register()

	// Initialize the analysis client and WebSocket hub
	analyzer := intelligence.NewAnalyzer(cfg)
	hub := ws.NewHub()
	go hub.Run()

	// Initialize the session manager and its expiry reaper
	manager := session.NewManager(cfg, analyzer, hub)
	manager.Start()

	// Setup HTTP server
	h := handlers.NewHandlers(manager, hub, cfg)
	router := setupRouter(h, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop the session reaper
	manager.Stop()

	// Shutdown the HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.Default()

	// Add gzip compression middleware
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", cfg.AllowedOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// API routes
	api := router.Group("/api/v1")
	{
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions/:id", h.GetSession)

		// Upload and preview streaming
		api.POST("/sessions/:id/video", h.UploadVideo)
		api.GET("/sessions/:id/video", h.StreamVideo)

		// Analysis start is the only throttled endpoint
		api.POST("/sessions/:id/analyze",
			middleware.RateLimitMiddleware(cfg.AnalyzeRateLimit, cfg.AnalyzeRateWindow),
			h.StartAnalysis)

		// Incident list interactions
		api.POST("/sessions/:id/filters/toggle", h.ToggleFilter)
		api.POST("/sessions/:id/seek", h.Seek)
		api.POST("/sessions/:id/playback/events", h.PlaybackEvent)

		// Exports
		api.GET("/sessions/:id/export/csv", h.ExportCSV)
		api.GET("/sessions/:id/export/text", h.ExportText)

		// Screen transitions
		api.POST("/sessions/:id/reset", h.Reset)
		api.POST("/sessions/:id/back", h.Back)

		// WebSocket event stream
		api.GET("/sessions/:id/listen", h.Listen)
	}

	// Root health check and metrics
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
