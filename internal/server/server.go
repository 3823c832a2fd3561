package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Porthole/backend/internal/config"
	"github.com/GriffinCanCode/Porthole/backend/internal/logging"
	"github.com/GriffinCanCode/Porthole/backend/internal/middleware"
	"github.com/GriffinCanCode/Porthole/backend/internal/monitoring"
	"github.com/GriffinCanCode/Porthole/backend/internal/proxy"
	"github.com/GriffinCanCode/Porthole/backend/internal/reader"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg     *config.Config
	router  *gin.Engine
	metrics *monitoring.Metrics
	log     *logging.Logger
	httpSrv *http.Server
}

// New creates a server instance with the full middleware stack and all
// routes registered.
func New(cfg *config.Config, log *logging.Logger) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := monitoring.NewMetrics()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(requestLogger(log))
	router.Use(monitoring.Middleware(metrics))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Host-app surface. The proxy route family handles CORS itself by
	// reflecting the caller's origin.
	router.GET("/", root)
	router.GET("/health", health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	readerProvider := reader.NewProvider(cfg.Reader, metrics, log)
	readerGroup := router.Group("/reader")
	readerGroup.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	readerGroup.POST("", readerProvider.Handle)

	var guard func(string) error
	if cfg.Proxy.SSRFGuard {
		g := reader.NewGuard()
		guard = func(target string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return g.Check(ctx, target)
		}
	}
	proxyHandler := proxy.NewHandler(cfg.Proxy, metrics, log, guard)
	proxyHandler.Register(router)

	return &Server{
		cfg:     cfg,
		router:  router,
		metrics: metrics,
		log:     log,
	}
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Porthole Proxy (Go)",
		"version": "0.3.0",
	})
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// requestLogger logs each completed request with its correlation ID.
func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
