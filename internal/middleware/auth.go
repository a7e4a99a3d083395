// Package middleware contains HTTP middleware for the notebook application.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach; the
// security filter chain in chain.go is the main composition.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/DukeRupert/notebook/internal/auth"
	"github.com/DukeRupert/notebook/internal/domain"
	"github.com/DukeRupert/notebook/internal/handler"
	"github.com/DukeRupert/notebook/internal/session"
)

// SessionResolver turns a session token into a principal.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Principal, error)
}

// GetUser retrieves the authenticated principal from the request context.
//
// Returns nil if the request is anonymous.
func GetUser(ctx context.Context) *domain.Principal {
	return auth.GetUser(ctx)
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware loads the session principal and enforces authentication.
type AuthMiddleware struct {
	sessions  SessionResolver
	logger    *slog.Logger
	isSecure  bool // Whether to set Secure flag on cookies (true in production)
	loginPage string
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
//
// Parameters:
// - sessions: resolves session cookies to principals
// - logger: Structured logger for auth events
// - isSecure: Set to true in production to enable Secure cookie flag
// - loginPage: where unauthenticated browsers are sent
func NewAuthMiddleware(sessions SessionResolver, logger *slog.Logger, isSecure bool, loginPage string) *AuthMiddleware {
	if loginPage == "" {
		loginPage = "/login"
	}
	return &AuthMiddleware{
		sessions:  sessions,
		logger:    logger,
		isSecure:  isSecure,
		loginPage: loginPage,
	}
}

// WithUser loads the principal from the session cookie, if any, and always
// continues to the next handler.
//
// Flow:
//
//	Request -> WithUser -> Handler
//	           |
//	           +-> Read JSESSIONID
//	           +-> Resolve session (if cookie exists)
//	           +-> Clear cookie (if invalid or expired)
//	           +-> Set principal in context (if valid)
//	           +-> Call next handler (always)
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := session.Token(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := m.sessions.Resolve(r.Context(), token)
		if err != nil {
			if domain.ErrorCode(err) != domain.EUNAUTHORIZED {
				m.logger.Error("failed to resolve session", "error", err)
			}
			// Invalid or expired session - clear the cookie and continue
			session.ExpireCookie(w, session.CookieName, m.isSecure)
			next.ServeHTTP(w, r)
			return
		}

		ctx := auth.SetUser(r.Context(), principal)
		ctx = auth.SetSessionToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser requires an authenticated principal (set by WithUser).
//
// Unauthenticated browsers are redirected to the login page with a return_to
// parameter; API callers get 401 JSON.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r.Context()) == nil {
			m.deny(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// deny sends the unauthenticated response for r.
func (m *AuthMiddleware) deny(w http.ResponseWriter, r *http.Request) {
	if handler.AcceptsJSON(r) {
		handler.UnauthorizedResponse(w, r, m.logger)
		return
	}

	returnTo := r.URL.Path
	if r.URL.RawQuery != "" {
		returnTo += "?" + r.URL.RawQuery
	}

	// A cookie that WithUser could not resolve means the session timed out
	// or was invalidated elsewhere.
	if session.Token(r) != "" {
		session.SetFlash(w, session.FlashExpired, m.isSecure)
	}

	target := m.loginPage
	if returnTo != "/" && r.Method == http.MethodGet {
		target += "?return_to=" + url.QueryEscape(returnTo)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw.Handler, chain.Handler)
//	server.Handler = stack(mux)
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
)
