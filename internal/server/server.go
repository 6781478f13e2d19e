// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkutano/hotspot/internal/api"
	"github.com/mkutano/hotspot/internal/auth"
	"github.com/mkutano/hotspot/internal/checkout"
	"github.com/mkutano/hotspot/internal/circuitbreaker"
	"github.com/mkutano/hotspot/internal/config"
	"github.com/mkutano/hotspot/internal/health"
	"github.com/mkutano/hotspot/internal/logging"
	"github.com/mkutano/hotspot/internal/metrics"
	"github.com/mkutano/hotspot/internal/payment"
	"github.com/mkutano/hotspot/internal/plan"
	"github.com/mkutano/hotspot/internal/portal"
	"github.com/mkutano/hotspot/internal/ratelimit"
	"github.com/mkutano/hotspot/internal/security"
	"github.com/mkutano/hotspot/internal/session"
	"github.com/mkutano/hotspot/internal/sms"
	"github.com/mkutano/hotspot/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg       *config.Config
	tokens    auth.TokenStore
	backend   *api.Client
	plans     *plan.FallbackSource
	gateway   payment.Gateway
	poller    *payment.Poller
	checkouts *checkout.Manager
	sessions  *session.Client
	sms       *sms.Client
	healthReg *health.Registry
	limiter   *ratelimit.Limiter
	router    *gin.Engine
	httpSrv   *http.Server
	logger    *slog.Logger

	stopCollector chan struct{}

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGateway sets a custom payment gateway (for testing)
func WithGateway(g payment.Gateway) Option {
	return func(s *Server) {
		s.gateway = g
	}
}

// WithTokenStore sets a custom token store (for testing)
func WithTokenStore(store auth.TokenStore) Option {
	return func(s *Server) {
		s.tokens = store
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set gateway/tokens/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Token store: file-backed so logins survive restarts
	if s.tokens == nil {
		s.tokens = auth.NewFileStore(cfg.StateFile)
	}

	// Gateway client to the billing backend
	s.backend = api.New(cfg.BackendURL, s.tokens,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(s.logger),
	)

	// Plan catalogue with demo fallback behind a circuit breaker
	breaker := circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerOpenFor)
	s.plans = plan.NewFallbackSource(plan.NewRemoteSource(s.backend), breaker, s.logger)

	// Payment rail: Stripe when a key is configured, M-Pesa via the
	// backend otherwise
	if s.gateway == nil {
		if cfg.StripeSecretKey != "" {
			s.gateway = payment.NewStripeGateway(cfg.StripeSecretKey, cfg.Currency)
			s.logger.Info("card payments enabled", "gateway", s.gateway.Name())
		} else {
			s.gateway = payment.NewRESTGateway(s.backend)
			s.logger.Info("mobile money payments enabled", "gateway", s.gateway.Name())
		}
	}
	s.poller = payment.NewPoller(s.gateway, cfg.PollInterval, cfg.PollTimeout, s.logger)

	// Checkout flows
	s.checkouts = checkout.NewManager(
		s.plans,
		s.gateway,
		s.poller,
		checkout.Config{Optimistic: cfg.OptimisticProcessing},
		cfg.CheckoutTTL,
		s.logger,
	)

	// Admin-side clients
	s.sessions = session.NewClient(s.backend, s.logger)
	s.sms = sms.NewClient(s.backend, s.logger)

	// Health checks
	s.healthReg = health.NewRegistry()
	s.healthReg.Register("backend", health.Backend(s.backend))

	if cfg.AdminToken == "" {
		s.logger.Warn("ADMIN_TOKEN not set, admin API disabled")
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS: the portal is served same-origin; keep open for off-box admin UIs
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting, with a tight budget on payment submissions
	s.limiter = ratelimit.New(ratelimit.DefaultConfig())
	s.router.Use(s.limiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/healthz", s.livenessHandler)
	s.router.GET("/readyz", s.readinessHandler)
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/metrics", metrics.Handler())

	s.router.GET("/", s.infoHandler)

	handler := portal.NewHandler(
		s.checkouts,
		s.plans,
		plan.NewAdmin(s.backend),
		s.sessions,
		s.sms,
		s.healthReg,
		s.cfg.Currency,
	)

	// Customer-facing checkout (anonymous)
	portalGroup := s.router.Group("/portal")
	handler.RegisterPortalRoutes(portalGroup)

	// Admin console (bearer-guarded)
	adminGroup := s.router.Group("/admin")
	adminGroup.Use(portal.AdminAuthMiddleware(s.cfg.AdminToken))
	handler.RegisterAdminRoutes(adminGroup)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse is the detailed health payload
type HealthResponse struct {
	Status    string          `json:"status"`
	Checks    []health.Status `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, checks := s.healthReg.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":     "hotspot-portal",
		"gateway":  s.gateway.Name(),
		"currency": s.cfg.Currency,
		"endpoints": gin.H{
			"plans":    "/portal/plans",
			"checkout": "/portal/checkout",
			"health":   "/health",
			"metrics":  "/metrics",
		},
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"backend", s.cfg.BackendURL,
			"gateway", s.gateway.Name(),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Runtime metrics collector
	s.stopCollector = make(chan struct{})
	go metrics.StartRuntimeCollector(s.stopCollector, 15*time.Second)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop in-flight checkout sweeping
	s.checkouts.Close()

	if s.limiter != nil {
		s.limiter.Stop()
	}

	if s.stopCollector != nil {
		close(s.stopCollector)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
