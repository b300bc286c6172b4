// Package server sets up the HTTP server with all routes.
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/zenofund/companion/internal/admin"
	"github.com/zenofund/companion/internal/adminlog"
	"github.com/zenofund/companion/internal/auth"
	"github.com/zenofund/companion/internal/booking"
	"github.com/zenofund/companion/internal/companion"
	"github.com/zenofund/companion/internal/config"
	"github.com/zenofund/companion/internal/events"
	"github.com/zenofund/companion/internal/health"
	"github.com/zenofund/companion/internal/logging"
	"github.com/zenofund/companion/internal/metrics"
	"github.com/zenofund/companion/internal/payment"
	"github.com/zenofund/companion/internal/paystack"
	"github.com/zenofund/companion/internal/ratelimit"
	"github.com/zenofund/companion/internal/realtime"
	"github.com/zenofund/companion/internal/security"
	"github.com/zenofund/companion/internal/stripegw"
	"github.com/zenofund/companion/internal/traces"
	"github.com/zenofund/companion/internal/validation"
)

// Server wraps the HTTP server and dependencies.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	db             *sql.DB // nil if using in-memory
	companionStore companion.Store
	auditStore     adminlog.Store
	feePolicy      *payment.FeePolicy
	paymentService *payment.Service
	bookingService *booking.Service
	bookingTimer   *booking.Timer
	realtimeHub    *realtime.Hub
	amqpPublisher  *events.AMQPPublisher
	verifier       *auth.Verifier
	rateLimiter    *ratelimit.Limiter
	healthReg      *health.Registry
	paystackClient *paystack.Client

	router         *gin.Engine
	httpSrv        *http.Server
	tracesShutdown func(context.Context) error
	cancelRunCtx   context.CancelFunc

	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Storage: Postgres if DATABASE_URL is set, otherwise in-memory.
	var (
		bookingStore booking.Store
		paymentStore payment.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		bookingStore = booking.NewPostgresStore(db)
		paymentStore = payment.NewPostgresStore(db)
		s.companionStore = companion.NewPostgresStore(db)
		s.auditStore = adminlog.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		bookingStore = booking.NewMemoryStore()
		paymentStore = payment.NewMemoryStore()
		s.companionStore = companion.NewMemoryStore()
		s.auditStore = adminlog.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Tracing (no-op without an OTLP endpoint).
	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.tracesShutdown = shutdown
	}

	// Payment gateway.
	var gateway payment.Gateway
	switch cfg.GatewayProvider {
	case config.ProviderStripe:
		gateway = stripegw.New(cfg.StripeSecretKey, cfg.PaymentCallbackURL)
		s.logger.Info("payment gateway configured", "provider", "stripe")
	default:
		s.paystackClient = paystack.NewClient(cfg.PaystackSecretKey, cfg.PaystackBaseURL, cfg.GatewayTimeout)
		gateway = s.paystackClient
		s.logger.Info("payment gateway configured", "provider", "paystack")
	}

	s.feePolicy = payment.NewFeePolicy(cfg.PlatformFeePercent)
	s.paymentService = payment.NewService(paymentStore, gateway, s.feePolicy,
		cfg.GatewayProvider, cfg.PaymentCallbackURL)
	// A charge that completes after its booking was cancelled, rejected,
	// or expired must not settle; Verify records the refund instead.
	s.paymentService.SetBookingOpen(func(ctx context.Context, bookingID string) (bool, error) {
		b, err := bookingStore.Get(ctx, bookingID)
		if err != nil {
			return false, err
		}
		switch b.Status {
		case booking.StatusCancelled, booking.StatusRejected, booking.StatusExpired:
			return false, nil
		}
		return true, nil
	})

	// Event fan-out: realtime hub always, AMQP when a broker is configured.
	s.realtimeHub = realtime.NewHub(s.logger)
	emitter := events.Multi{s.realtimeHub}
	if cfg.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, s.logger)
		if err != nil {
			s.logger.Warn("event broker unavailable, continuing without it", "error", err)
		} else {
			s.amqpPublisher = publisher
			emitter = append(emitter, publisher)
			s.logger.Info("event broker connected", "exchange", cfg.AMQPExchange)
		}
	}

	s.bookingService = booking.NewService(booking.ServiceConfig{
		Store:            bookingStore,
		Directory:        &companionDirectoryAdapter{s.companionStore},
		Payments:         s.paymentService,
		Emitter:          emitter,
		Audit:            s.auditStore,
		RequestExpiry:    cfg.RequestExpiryWindow,
		CompletionWindow: cfg.CompletionWindow,
	})
	s.bookingTimer = booking.NewTimer(s.bookingService, cfg.SweepInterval, s.logger)

	s.verifier = auth.NewVerifier(cfg.JWTSecret)

	s.healthReg = health.NewRegistry()
	if s.db != nil {
		s.healthReg.Register("database", health.DatabaseChecker(s.db))
	}
	s.healthReg.Register("sweeper", health.SweeperChecker(s.bookingTimer.Running))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes(emitter)

	s.healthy.Store(true)
	return s, nil
}

// maskDSN hides the password in a connection string for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware([]string{"*"}))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	limiterCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		limiterCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	s.rateLimiter = ratelimit.New(limiterCfg)
	s.router.Use(s.rateLimiter.Middleware())

	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

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

func (s *Server) setupRoutes(emitter events.Emitter) {
	// Health & metrics endpoints.
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// WebSocket for real-time booking updates. Browsers cannot set
	// headers on the upgrade request, so the token may ride in a query
	// parameter instead.
	s.router.GET("/ws", s.websocketHandler)

	s.router.GET("/api", s.infoHandler)

	v1 := s.router.Group("/v1")
	// Attach identity when a token is present; individual groups decide
	// whether it is required.
	v1.Use(auth.Middleware(s.verifier))

	// Companion directory.
	var subaccounts companion.SubaccountCreator
	if s.paystackClient != nil {
		subaccounts = &subaccountAdapter{s.paystackClient}
	}
	companionHandler := companion.NewHandler(s.companionStore, subaccounts)
	companionHandler.RegisterRoutes(v1)

	companionOnly := v1.Group("")
	companionOnly.Use(auth.RequireRole(auth.RoleCompanion))
	companionHandler.RegisterProtectedRoutes(companionOnly)

	// Booking lifecycle.
	bookingHandler := booking.NewHandler(s.bookingService)
	authed := v1.Group("")
	authed.Use(auth.RequireAuth())
	bookingHandler.RegisterRoutes(authed)

	// Payments: verification for clients, webhook for the provider.
	paymentHandler := payment.NewHandler(
		s.paymentService,
		emitter,
		s.webhookValidator(),
		s.webhookParser(),
		paystack.SignatureHeader,
	)
	paymentHandler.RegisterRoutes(authed)
	if s.cfg.GatewayProvider == config.ProviderPaystack {
		paymentHandler.RegisterWebhookRoutes(v1)
	}

	// Admin surface.
	adminHandler := admin.NewHandler(s.bookingService, s.companionStore,
		s.auditStore, s.feePolicy, s.bookingTimer)
	adminOnly := v1.Group("")
	adminOnly.Use(auth.RequireRole(auth.RoleAdmin))
	adminHandler.RegisterRoutes(adminOnly)
}

func (s *Server) webhookValidator() payment.WebhookValidator {
	secret := s.cfg.PaystackSecretKey
	return func(body []byte, signature string) bool {
		return paystack.ValidSignature(secret, body, signature)
	}
}

func (s *Server) webhookParser() payment.WebhookParser {
	return func(body []byte) (string, bool) {
		event, err := paystack.ParseWebhook(body)
		if err != nil {
			return "", false
		}
		if event.Event != "charge.success" {
			return "", false
		}
		return event.Data.Reference, true
	}
}

func (s *Server) websocketHandler(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	id, err := s.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Valid token required for realtime stream",
		})
		return
	}
	s.realtimeHub.HandleWebSocket(c.Writer, c.Request, id.UserID)
}

// HealthResponse for health check endpoints.
type HealthResponse struct {
	Status    string          `json:"status"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)
	resp := HealthResponse{
		Status:    "healthy",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
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
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "companion booking api",
		"version":     "v1",
		"environment": s.cfg.Env,
	})
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)
	go s.bookingTimer.Start(runCtx)
	if s.db != nil {
		go metrics.CollectDBStats(runCtx, s.db, 15*time.Second)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

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

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel background goroutines (hub, sweep timer, stat collectors).
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.bookingTimer.Stop()
	s.logger.Info("sweep timer stopped")

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.amqpPublisher != nil {
		if err := s.amqpPublisher.Close(); err != nil {
			s.logger.Error("event broker close error", "error", err)
		}
	}

	if s.tracesShutdown != nil {
		if err := s.tracesShutdown(ctx); err != nil {
			s.logger.Error("trace exporter close error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
