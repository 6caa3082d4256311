// Package server sets up the HTTP server with all routes
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

	"github.com/mbd888/trackrate/internal/admin"
	"github.com/mbd888/trackrate/internal/auth"
	"github.com/mbd888/trackrate/internal/config"
	"github.com/mbd888/trackrate/internal/deposits"
	"github.com/mbd888/trackrate/internal/health"
	"github.com/mbd888/trackrate/internal/holdband"
	"github.com/mbd888/trackrate/internal/logging"
	"github.com/mbd888/trackrate/internal/metrics"
	"github.com/mbd888/trackrate/internal/notify"
	"github.com/mbd888/trackrate/internal/packs"
	"github.com/mbd888/trackrate/internal/payout"
	"github.com/mbd888/trackrate/internal/products"
	"github.com/mbd888/trackrate/internal/ratelimit"
	"github.com/mbd888/trackrate/internal/realtime"
	"github.com/mbd888/trackrate/internal/reset"
	"github.com/mbd888/trackrate/internal/security"
	"github.com/mbd888/trackrate/internal/settings"
	"github.com/mbd888/trackrate/internal/tasks"
	"github.com/mbd888/trackrate/internal/traces"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/validation"
	"github.com/mbd888/trackrate/internal/wallet"
	"github.com/mbd888/trackrate/internal/withdrawals"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	users        *users.Service
	wallets      *wallet.Service
	packs        *packs.Service
	settings     *settings.Service
	notify       *notify.Service
	products     *products.Service
	engine       *tasks.Service
	deposits     *deposits.Service
	withdrawals  *withdrawals.Service
	holdBands    *holdband.Service
	admin        *admin.Service
	reset        *reset.Service
	authMgr      *auth.Manager
	payout       withdrawals.Payout
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	healthReg    *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	shutdownTraces func(context.Context) error

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

// WithPayout sets a custom payout sender (for testing)
func WithPayout(p withdrawals.Payout) Option {
	return func(s *Server) {
		s.payout = p
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
	}

	// Apply options first (may set payout/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Realtime hub carries per-user notification streams. It is created
	// before the stores because the notify service publishes into it.
	s.realtimeHub = realtime.NewHub(s.logger)

	// Stripe checkout is optional; without it deposits fall back to
	// manual review of submitted references.
	var checkout deposits.CheckoutProvider
	if cfg.StripeEnabled() {
		checkout = deposits.NewStripeCheckout(cfg.StripeSecretKey, cfg.StripeSuccessURL, cfg.StripeCancelURL)
		s.logger.Info("stripe checkout enabled")
	}

	// On-chain payout sender is optional; without it processed
	// withdrawals settle off-platform.
	if s.payout == nil && cfg.PayoutEnabled() {
		payoutCfg := payout.DefaultConfig()
		payoutCfg.RPCURL = cfg.PayoutRPCURL
		payoutCfg.TokenContract = cfg.TokenContract
		payoutCfg.PrivateKey = strings.TrimPrefix(cfg.PayoutPrivateKey, "0x")
		payoutCfg.ChainID = cfg.PayoutChainID

		sender, err := payout.NewSender(payoutCfg, s.logger)
		if err != nil {
			s.logger.Warn("failed to initialize payout sender, on-chain payouts disabled", "error", err)
		} else {
			s.payout = sender
			s.logger.Info("on-chain payouts enabled", "from", sender.From(), "token", cfg.TokenContract)
		}
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		settingsStore := settings.NewPostgresStore(db)
		if err := settingsStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate settings store", "error", err)
		}
		s.settings = settings.NewService(settingsStore)

		// The Postgres wallet store reads the packs table inside its own
		// transactions, so the wallet service carries no pack source here
		// and can be built before the pack service.
		walletStore := wallet.NewPostgresStore(db)
		if err := walletStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate wallet store", "error", err)
		}
		s.wallets = wallet.NewService(walletStore)

		packsStore := packs.NewPostgresStore(db)
		if err := packsStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate packs store", "error", err)
		}
		s.packs = packs.NewService(packsStore, s.wallets)

		usersStore := users.NewPostgresStore(db)
		if err := usersStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate users store", "error", err)
		}
		s.users = users.NewService(usersStore, s.wallets, s.settings, s.packs, s.logger)

		notifyStore := notify.NewPostgresStore(db)
		if err := notifyStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate notify store", "error", err)
		}
		s.notify = notify.NewService(notifyStore, s.realtimeHub, s.logger)

		productsStore := products.NewPostgresStore(db)
		if err := productsStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate products store", "error", err)
		}
		s.products = products.NewService(productsStore)

		holdbandStore := holdband.NewPostgresStore(db)
		if err := holdbandStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate hold band store", "error", err)
		}
		s.holdBands = holdband.NewService(holdbandStore)

		tasksStore := tasks.NewPostgresStore(db)
		if err := tasksStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate tasks store", "error", err)
		}
		s.engine = tasks.NewService(tasksStore, s.products, s.wallets, s.packs, s.holdBands, s.users, s.settings, s.notify, s.logger)

		depositsStore := deposits.NewPostgresStore(db)
		if err := depositsStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate deposits store", "error", err)
		}
		s.deposits = deposits.NewService(depositsStore, s.wallets, s.users, s.notify, checkout, s.logger)

		withdrawalsStore := withdrawals.NewPostgresStore(db)
		if err := withdrawalsStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate withdrawals store", "error", err)
		}
		s.withdrawals = withdrawals.NewService(withdrawalsStore, s.wallets, s.users, s.packs, s.settings, s.notify, s.payout, s.logger)

		resetStore := reset.NewPostgresStore(db)
		if err := resetStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate reset store", "error", err)
		}
		s.reset = reset.NewService(resetStore, s.users, s.wallets, s.engine, s.settings, s.logger)
	} else {
		s.logger.Info("using in-memory storage (data will not persist)")

		s.settings = settings.NewService(settings.NewMemoryStore())

		// The memory wallet store needs the pack service to auto-assign
		// packs on balance changes, so the pack service comes first and
		// skips wallet reassignment on pack deactivation.
		s.packs = packs.NewService(packs.NewMemoryStore(), nil)
		s.wallets = wallet.NewService(wallet.NewMemoryStore(s.packs))
		s.users = users.NewService(users.NewMemoryStore(), s.wallets, s.settings, s.packs, s.logger)
		s.notify = notify.NewService(notify.NewMemoryStore(), s.realtimeHub, s.logger)
		s.products = products.NewService(products.NewMemoryStore())
		s.holdBands = holdband.NewService(holdband.NewMemoryStore())
		s.engine = tasks.NewService(tasks.NewMemoryStore(), s.products, s.wallets, s.packs, s.holdBands, s.users, s.settings, s.notify, s.logger)
		s.deposits = deposits.NewService(deposits.NewMemoryStore(), s.wallets, s.users, s.notify, checkout, s.logger)
		s.withdrawals = withdrawals.NewService(withdrawals.NewMemoryStore(), s.wallets, s.users, s.packs, s.settings, s.notify, s.payout, s.logger)
		s.reset = reset.NewService(reset.NewMemoryStore(), s.users, s.wallets, s.engine, s.settings, s.logger)
	}

	s.admin = admin.NewService(s.users, s.wallets, s.packs, s.engine, s.products, s.notify, s.settings, s.logger)

	s.authMgr = auth.NewManager([]byte(cfg.JWTSecret), s.users, s.settings)

	// Bootstrap the staff account so the admin surface is reachable on
	// a fresh deployment. Existing accounts are never overwritten.
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if _, err := s.users.EnsureStaff(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			s.logger.Warn("failed to ensure staff account", "username", cfg.AdminUsername, "error", err)
		} else {
			s.logger.Info("staff account ensured", "username", cfg.AdminUsername)
		}
	}

	s.setupHealthChecks()

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

// maskDSN hides password in connection string for logging
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

	// CORS
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(security.CORSMiddleware(origins))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

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
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	usersHandler := users.NewHandler(s.users)
	authHandler := auth.NewHandler(s.authMgr, s.users)
	packsHandler := packs.NewHandler(s.packs)
	settingsHandler := settings.NewHandler(s.settings)
	notifyHandler := notify.NewHandler(s.notify)
	productsHandler := products.NewHandler(s.products)
	tasksHandler := tasks.NewHandler(s.engine)
	depositsHandler := deposits.NewHandler(s.deposits)
	withdrawalsHandler := withdrawals.NewHandler(s.withdrawals)
	holdbandHandler := holdband.NewHandler(s.holdBands)
	adminHandler := admin.NewHandler(s.admin)
	resetHandler := reset.NewHandler(s.reset)

	v1 := s.router.Group("/v1")

	// PUBLIC ROUTES (no auth required)
	// Signup needs an invitation code; login and refresh mint tokens.
	authGroup := v1.Group("/auth")
	usersHandler.RegisterPublicRoutes(authGroup)
	authHandler.RegisterRoutes(authGroup)

	// The active pack catalog is browsable before signup.
	packsHandler.RegisterRoutes(v1)

	// WORKER ROUTES (user-surface token)
	// The reset middleware runs the day rollover before any worker
	// request so counters are never served stale.
	worker := v1.Group("")
	worker.Use(auth.Middleware(s.authMgr, users.SurfaceUser), s.reset.Middleware())
	{
		usersHandler.RegisterRoutes(worker)
		tasksHandler.RegisterRoutes(worker)
		depositsHandler.RegisterRoutes(worker)
		withdrawalsHandler.RegisterRoutes(worker)
		notifyHandler.RegisterRoutes(worker)

		// Workers read platform settings (service hours, withdrawal
		// bounds) but never write them.
		worker.GET("/settings", settingsHandler.Get)

		// WebSocket for per-user notification streaming
		worker.GET("/ws", func(c *gin.Context) {
			s.realtimeHub.HandleWebSocket(c.Writer, c.Request, auth.GetUserID(c))
		})
	}

	// ADMIN ROUTES (admin-surface token + staff flag)
	adminGroup := v1.Group("/admin")

	adminAuth := adminGroup.Group("/auth")
	authHandler.RegisterAdminRoutes(adminAuth)

	protected := adminGroup.Group("")
	protected.Use(auth.Middleware(s.authMgr, users.SurfaceAdmin), auth.RequireStaff())
	{
		adminHandler.RegisterRoutes(protected)
		packsHandler.RegisterAdminRoutes(protected)
		productsHandler.RegisterAdminRoutes(protected)
		tasksHandler.RegisterAdminRoutes(protected)
		depositsHandler.RegisterAdminRoutes(protected)
		withdrawalsHandler.RegisterAdminRoutes(protected)
		holdbandHandler.RegisterRoutes(protected)
		notifyHandler.RegisterAdminRoutes(protected)
		settingsHandler.RegisterRoutes(protected)
		resetHandler.RegisterAdminRoutes(protected)
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) setupHealthChecks() {
	s.healthReg = health.NewRegistry()

	if s.db != nil {
		db := s.db
		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Fail("database", err.Error())
			}
			return health.OK("database")
		})
	}

	hub := s.realtimeHub
	s.healthReg.Register("realtime", func(ctx context.Context) health.Status {
		st := health.OK("realtime")
		st.Detail = fmt.Sprintf("%v clients", hub.Stats()["clients"])
		return st
	})
}

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		if st.Healthy {
			checks[st.Name] = "healthy"
		} else {
			checks[st.Name] = "unhealthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
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
		"name":        "TrackRate",
		"description": "Paid album-review task platform",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Initialize tracing (no-op when no OTLP endpoint configured)
	shutdownTraces, err := traces.Init(ctx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTraces = shutdownTraces
	}

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
			"env", s.cfg.Env,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start the daily reset ticker. The per-request middleware also
	// fires the rollover, so this only covers idle nights.
	go s.reset.Run(runCtx, s.cfg.ResetCheckInterval)

	// Sample DB pool stats into gauges
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

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

	// Cancel the context for all background goroutines (hub, reset ticker)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	// Flush any buffered spans
	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
