package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/notebook/internal"
	"github.com/DukeRupert/notebook/internal/auth"
	"github.com/DukeRupert/notebook/internal/csrf"
	"github.com/DukeRupert/notebook/internal/handler"
	"github.com/DukeRupert/notebook/internal/metrics"
	"github.com/DukeRupert/notebook/internal/middleware"
	"github.com/DukeRupert/notebook/internal/oauth"
	"github.com/DukeRupert/notebook/internal/repository"
	"github.com/DukeRupert/notebook/internal/service"
	"github.com/DukeRupert/notebook/internal/worker"
	"github.com/DukeRupert/notebook/web"
)

func run() error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Client IPs feed the login throttle, so forwarding headers are only
	// believed from configured proxies.
	if err := auth.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	if len(cfg.TrustedProxies) > 0 {
		logger.Info("Trusting forwarding headers", "proxies", cfg.TrustedProxies)
	}

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize template renderer. Development reads templates from disk
	// so edits show up without a rebuild.
	rendererCfg := handler.RendererConfig{FS: web.Templates(), Logger: logger}
	if cfg.Env == "development" {
		if _, err := os.Stat("web/templates"); err == nil {
			rendererCfg.TemplatesDir = "web/templates"
			rendererCfg.IsDev = true
		}
	}
	renderer, err := handler.NewRenderer(rendererCfg)
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	logger.Info("Templates loaded", "count", len(renderer.ListTemplates()))

	isSecure := cfg.IsSecure()

	// ==========================================================================
	// Authentication
	// ==========================================================================

	encoder := service.NewBCryptPasswordEncoder(cfg.BcryptCost)
	userDetails := service.NewUserDetailService(repo, logger)
	authManager := service.NewAuthenticationManager(userDetails, encoder, logger)
	sessions := service.NewSessionService(repo, service.SessionServiceConfig{
		Duration: cfg.SessionDuration,
	}, logger)

	registry, err := loadRegistry(cfg)
	if err != nil {
		return fmt.Errorf("oauth2 registrations: %w", err)
	}
	logger.Info("OAuth2 providers configured", "providers", registry.IDs())

	userInfo := oauth.NewUserInfoClient(registry, oauth.DefaultUserInfoClientConfig(), logger)
	oauth2Users := service.NewPrincipalOAuth2UserService(repo, userInfo, logger)

	authRequests, err := oauth.NewAuthorizationRequestRepository(oauth.DefaultRequestTTL)
	if err != nil {
		return fmt.Errorf("authorization request store: %w", err)
	}
	defer authRequests.Close()

	authLimiter := middleware.NewAuthRateLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow, logger)
	defer authLimiter.Close()

	// ==========================================================================
	// Security filter chain
	// ==========================================================================

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.CSRFEnabled = cfg.CSRFEnabled
	securityCfg.Secure = isSecure

	chainOpts := []middleware.ChainOption{
		middleware.WithSecurityHeaders(middleware.NewSecurityHeadersMiddleware(isSecure)),
	}
	if cfg.CSRFEnabled {
		chainOpts = append(chainOpts, middleware.WithCSRFProtector(csrf.NewProtector(isSecure, logger)))
	}

	chain, err := middleware.NewSecurityFilterChain(securityCfg, sessions, logger, chainOpts...)
	if err != nil {
		return fmt.Errorf("security chain: %w", err)
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	authHandler := handler.NewAuthHandler(authManager, sessions, registry, authLimiter, renderer, logger, isSecure)
	oauth2Handler := handler.NewOAuth2Handler(registry, authRequests, oauth2Users, sessions, userInfo.HTTPClient(), logger, isSecure)
	homeHandler := handler.NewHomeHandler(renderer, logger)

	mux := http.NewServeMux()

	// Static files (ignored by the security chain)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	authHandler.RegisterRoutes(mux)
	oauth2Handler.RegisterRoutes(mux, authLimiter.LimitAuthorization)
	homeHandler.RegisterRoutes(mux)

	requestLogger := middleware.NewRequestLoggingMiddleware(logger)
	appHandler := metrics.Middleware(requestLogger.Handler(chain.Handler(mux)))

	// ==========================================================================
	// Background worker
	// ==========================================================================

	var bg *worker.Worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Interval = cfg.SessionCleanupInterval
		bg, err = worker.New(workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		bg.Register(worker.NewSessionCleanupTask(sessions, logger), 0)
		bg.Start(ctx)
	}

	// ==========================================================================
	// Start servers
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           appHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsServer := newMetricsServer(cfg, db, logger)

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 2)

	// Start servers in goroutines
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "csrf_enabled", cfg.CSRFEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()
	go func() {
		logger.Info("Metrics server started", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("metrics server failed: %w", err)
		}
	}()

	// Wait for interrupt signal or a listener failure
	var runErr error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case runErr = <-serverErr:
		logger.Error("Server error, shutting down", "error", runErr)
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown error", "error", err)
	}

	if bg != nil {
		bg.Stop()
	}
	stop()

	logger.Info("Graceful shutdown complete")
	return runErr
}

// loadRegistry builds the OAuth2 registry from environment credentials and,
// if configured, the registrations file. File entries override env entries
// with the same id.
func loadRegistry(cfg *internal.Config) (*oauth.Registry, error) {
	var regs []oauth.ClientRegistration

	envClients := []struct {
		id, clientID, secret string
	}{
		{"google", cfg.GoogleClientID, cfg.GoogleClientSecret},
		{"github", cfg.GitHubClientID, cfg.GitHubClientSecret},
		{"naver", cfg.NaverClientID, cfg.NaverClientSecret},
		{"kakao", cfg.KakaoClientID, cfg.KakaoClientSecret},
	}
	for _, c := range envClients {
		if c.clientID == "" {
			continue
		}
		regs = append(regs, oauth.ClientRegistration{
			RegistrationID: c.id,
			ClientID:       c.clientID,
			ClientSecret:   c.secret,
		})
	}

	if cfg.OAuth2ClientsFile != "" {
		f, err := os.Open(cfg.OAuth2ClientsFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		fromFile, err := oauth.LoadRegistrations(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.OAuth2ClientsFile, err)
		}
		regs = append(regs, fromFile...)
	}

	return oauth.NewRegistry(cfg.BaseURL, regs...)
}

// newMetricsServer serves /metrics and /health on the operator listener so
// the application listener exposes nothing outside the security chain.
func newMetricsServer(cfg *internal.Config, db *sql.DB, logger *slog.Logger) *http.Server {
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	if !metricsAuth.Enabled() {
		logger.Warn("Metrics endpoint is not protected; set METRICS_USERNAME and METRICS_PASSWORD")
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
