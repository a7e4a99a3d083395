package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/notebook/internal/csrf"
	"github.com/DukeRupert/notebook/internal/metrics"
	"github.com/DukeRupert/notebook/internal/session"
)

// Chain decisions recorded in metrics.
const (
	decisionIgnored       = "ignored"
	decisionPermitted     = "permitted"
	decisionAuthenticated = "authenticated"
	decisionDenied        = "denied"
)

// SecurityConfig declares how the security filter chain treats requests.
type SecurityConfig struct {
	// IgnoredPaths bypass the chain entirely: no session lookup, no
	// security headers, no CSRF, no authorization.
	IgnoredPaths []string

	// PermitAll paths are reachable without a session.
	PermitAll []string

	LoginPage         string
	DefaultSuccessURL string
	LogoutURL         string
	LogoutSuccessURL  string

	// DeleteCookies are expired on logout.
	DeleteCookies     []string
	InvalidateSession bool

	CSRFEnabled bool

	OAuth2AuthorizationBase string
	OAuth2RedirectBase      string

	// Secure sets the Secure flag on cookies and enables HSTS.
	Secure bool
}

// DefaultSecurityConfig returns the notebook's security rules.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		IgnoredPaths:            []string{"/static/**", "/error"},
		PermitAll:               []string{"/login"},
		LoginPage:               "/login",
		DefaultSuccessURL:       "/",
		LogoutURL:               "/logout",
		LogoutSuccessURL:        "/login",
		DeleteCookies:           []string{session.CookieName},
		InvalidateSession:       true,
		CSRFEnabled:             false,
		OAuth2AuthorizationBase: "/oauth2/authorization",
		OAuth2RedirectBase:      "/login/oauth2/code",
	}
}

// SessionStore resolves and invalidates server-side sessions.
type SessionStore interface {
	SessionResolver
	Invalidate(ctx context.Context, token string) error
}

// ChainOption customises a SecurityFilterChain.
type ChainOption func(*SecurityFilterChain)

// WithCSRFProtector sets the protector used when CSRF is enabled.
func WithCSRFProtector(p *csrf.Protector) ChainOption {
	return func(c *SecurityFilterChain) {
		c.csrf = p
	}
}

// WithSecurityHeaders replaces the default security headers middleware.
func WithSecurityHeaders(h *SecurityHeadersMiddleware) ChainOption {
	return func(c *SecurityFilterChain) {
		c.headers = h
	}
}

// SecurityFilterChain is the request pipeline guarding the application.
//
// For every request not on an ignored path it runs, in order: security
// headers, session load, CSRF validation (when enabled), logout, and
// authorization.
type SecurityFilterChain struct {
	cfg    SecurityConfig
	logger *slog.Logger

	ignored   matchers
	permitted matchers
	logoutAt  matchers

	auth    *AuthMiddleware
	logout  *LogoutHandler
	headers *SecurityHeadersMiddleware
	csrf    *csrf.Protector
}

// NewSecurityFilterChain compiles cfg into a chain.
func NewSecurityFilterChain(cfg SecurityConfig, sessions SessionStore, logger *slog.Logger, opts ...ChainOption) (*SecurityFilterChain, error) {
	if sessions == nil {
		return nil, errors.New("security chain: session store is required")
	}
	if cfg.LoginPage == "" || cfg.LogoutURL == "" || cfg.LogoutSuccessURL == "" || cfg.DefaultSuccessURL == "" {
		return nil, errors.New("security chain: login, logout and success URLs are required")
	}

	ignored, err := compileMatchers(cfg.IgnoredPaths)
	if err != nil {
		return nil, fmt.Errorf("security chain: ignored paths: %w", err)
	}

	permitExprs := append([]string{}, cfg.PermitAll...)
	if cfg.OAuth2AuthorizationBase != "" {
		permitExprs = append(permitExprs, "GET "+cfg.OAuth2AuthorizationBase+"/*")
	}
	if cfg.OAuth2RedirectBase != "" {
		permitExprs = append(permitExprs, "GET "+cfg.OAuth2RedirectBase+"/*")
	}
	permitted, err := compileMatchers(permitExprs)
	if err != nil {
		return nil, fmt.Errorf("security chain: permitted paths: %w", err)
	}

	// With CSRF protection on only a token-carrying POST may log out. With
	// it off any of POST, PUT, DELETE or GET does.
	logoutExprs := []string{http.MethodPost + " " + cfg.LogoutURL}
	if !cfg.CSRFEnabled {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			logoutExprs = append(logoutExprs, method+" "+cfg.LogoutURL)
		}
	}
	logoutAt, err := compileMatchers(logoutExprs)
	if err != nil {
		return nil, fmt.Errorf("security chain: logout url: %w", err)
	}

	c := &SecurityFilterChain{
		cfg:       cfg,
		logger:    logger,
		ignored:   ignored,
		permitted: permitted,
		logoutAt:  logoutAt,
		auth:      NewAuthMiddleware(sessions, logger, cfg.Secure, cfg.LoginPage),
		logout:    NewLogoutHandler(sessions, cfg, logger),
		headers:   NewSecurityHeadersMiddleware(cfg.Secure),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.CSRFEnabled {
		if c.csrf == nil {
			c.csrf = csrf.NewProtector(cfg.Secure, logger)
		}
	} else {
		c.csrf = nil
		logger.Warn("CSRF protection is disabled; state-changing requests are accepted without a token")
	}

	return c, nil
}

// Config returns the configuration the chain was built from.
func (c *SecurityFilterChain) Config() SecurityConfig {
	return c.cfg
}

// Handler wraps next with the security filter chain.
func (c *SecurityFilterChain) Handler(next http.Handler) http.Handler {
	guarded := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.logoutAt.Matches(r) {
			c.logout.ServeHTTP(w, r)
			return
		}
		c.authorize(w, r, next)
	}))
	if c.csrf != nil {
		guarded = c.csrf.Handler(guarded)
	}
	secured := c.headers.Handler(c.auth.WithUser(guarded))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.ignored.Matches(r) {
			metrics.ChainDecision(decisionIgnored)
			next.ServeHTTP(w, r)
			return
		}
		secured.ServeHTTP(w, r)
	})
}

// authorize lets permitted and authenticated requests through and denies
// the rest.
func (c *SecurityFilterChain) authorize(w http.ResponseWriter, r *http.Request, next http.Handler) {
	switch {
	case c.permitted.Matches(r):
		metrics.ChainDecision(decisionPermitted)
	case GetUser(r.Context()) != nil:
		metrics.ChainDecision(decisionAuthenticated)
	default:
		metrics.ChainDecision(decisionDenied)
		c.logger.Debug("unauthenticated request denied",
			"method", r.Method,
			"path", r.URL.Path,
		)
		c.auth.deny(w, r)
		return
	}
	next.ServeHTTP(w, r)
}
