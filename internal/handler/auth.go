// Package handler contains HTTP handlers for the notebook application.
//
// This file implements the login page and form login. Logout is answered by
// the security filter chain before requests reach a handler.
package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/notebook/internal/auth"
	"github.com/DukeRupert/notebook/internal/csrf"
	"github.com/DukeRupert/notebook/internal/domain"
	"github.com/DukeRupert/notebook/internal/metrics"
	"github.com/DukeRupert/notebook/internal/oauth"
	"github.com/DukeRupert/notebook/internal/service"
	"github.com/DukeRupert/notebook/internal/session"
)

// loginMethodForm labels form logins in metrics; OAuth2 logins use the
// registration id.
const loginMethodForm = "form"

// =============================================================================
// Handler Configuration
// =============================================================================

// TemplateRenderer is the interface for rendering HTML templates.
// This interface allows for mocking in tests.
type TemplateRenderer interface {
	RenderHTTP(w http.ResponseWriter, name string, data interface{})
	RenderHTTPStatus(w http.ResponseWriter, status int, name string, data interface{})
}

// LoginThrottle limits failed form logins per client.
//
// middleware.AuthRateLimiter satisfies it; the interface lives here because
// middleware imports handler.
type LoginThrottle interface {
	LoginBlocked(ip string) (bool, time.Duration)
	RecordFailedLogin(ip string)
	ResetLogin(ip string)
}

// AuthHandler handles the login page and form login.
//
// Routes handled:
// - GET  /login -> ShowLogin
// - POST /login -> Login
type AuthHandler struct {
	authManager       service.AuthenticationManager
	sessions          service.SessionService
	registry          *oauth.Registry
	throttle          LoginThrottle
	renderer          TemplateRenderer
	logger            *slog.Logger
	isSecure          bool
	defaultSuccessURL string
}

// NewAuthHandler creates a new AuthHandler with the required dependencies.
//
// Parameters:
// - authManager: Authenticates username/password credentials
// - sessions: Opens a session after a successful login
// - registry: OAuth2 registrations listed on the login page (may be nil)
// - throttle: Failed login limiter (may be nil to disable)
// - renderer: Template renderer for HTML pages
// - logger: Structured logger for request logging
// - isSecure: Set to true in production (enables Secure cookie flag)
func NewAuthHandler(
	authManager service.AuthenticationManager,
	sessions service.SessionService,
	registry *oauth.Registry,
	throttle LoginThrottle,
	renderer TemplateRenderer,
	logger *slog.Logger,
	isSecure bool,
) *AuthHandler {
	return &AuthHandler{
		authManager:       authManager,
		sessions:          sessions,
		registry:          registry,
		throttle:          throttle,
		renderer:          renderer,
		logger:            logger,
		isSecure:          isSecure,
		defaultSuccessURL: "/",
	}
}

// =============================================================================
// Template Data Types
// =============================================================================

// Flash represents a flash message to display to the user.
//
// The Type field determines styling in templates:
// - "success" -> green background
// - "error"   -> red background
// - "info"    -> blue background
type Flash struct {
	Type    string // "success", "error", or "info"
	Message string
}

// ProviderLink is an OAuth2 login button on the login page.
type ProviderLink struct {
	ID   string
	Name string
	URL  string
}

// AuthPageData contains the data for the login page.
type AuthPageData struct {
	CurrentPath string            // Current URL path for navigation highlighting
	CSRFToken   string            // CSRF token, empty while protection is off
	Form        map[string]string // Form field values for re-populating on error
	Errors      map[string]string // Field-level validation errors
	Flash       *Flash            // Flash message to display
	ReturnTo    string            // URL to redirect to after successful login
	Providers   []ProviderLink    // OAuth2 login options
	User        *domain.Principal // Set when an authenticated user opens /login
}

// =============================================================================
// GET /login - Show Login Page
// =============================================================================

// ShowLogin renders the login page.
//
// Query Parameters:
// - logout: shown after the security chain ended the session
// - error: shown after a failed OAuth2 login ("disabled" for disabled accounts)
// - expired: shown when a session ran out
// - return_to: carried into the form and provider links
//
// The page is served to everyone, including users who are already signed in.
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Always consume the one-shot notice so it does not outlive this page.
	notice := session.PopFlash(w, r, h.isSecure)

	var flash *Flash
	switch {
	case q.Has("error"):
		flash = &Flash{Type: "error", Message: loginErrorMessage(q.Get("error"))}
	case notice == session.FlashLoggedOut:
		flash = &Flash{Type: "success", Message: "You have been signed out."}
	case notice == session.FlashExpired:
		flash = &Flash{Type: "info", Message: "Your session has expired. Please sign in again."}
	}

	returnTo := q.Get("return_to")
	if !isSafeRedirectURL(returnTo) {
		returnTo = ""
	}

	h.renderer.RenderHTTP(w, "auth/login", h.pageData(r, returnTo, nil, nil, flash))
}

// loginErrorMessage maps the ?error value set by the OAuth2 callback.
func loginErrorMessage(code string) string {
	switch code {
	case "disabled":
		return "Your account has been disabled."
	case "denied":
		return "Sign in was cancelled."
	default:
		return "Sign in failed. Please try again."
	}
}

// =============================================================================
// POST /login - Process Login
// =============================================================================

// Login processes the login form submission.
//
// Form Fields:
// - username (required)
// - password (required)
// - return_to (optional): URL to redirect to after successful login
//
// Success Flow:
// 1. Authenticate through the AuthenticationManager
// 2. Replace any previous session with a new one and set JSESSIONID
// 3. Redirect to return_to URL or /
//
// Error Flow:
// Re-render the form with the username preserved and a generic message.
// Repeated failures from one client are answered with 429.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Error("failed to parse form", "error", err)
		h.renderLoginError(w, r, http.StatusBadRequest, nil, nil, &Flash{
			Type:    "error",
			Message: "Invalid form submission. Please try again.",
		})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	formValues := map[string]string{
		"Username": username,
	}

	clientIP := auth.ClientIP(r)
	if h.throttle != nil {
		if blocked, retryAfter := h.throttle.LoginBlocked(clientIP); blocked {
			metrics.LoginAttempt(loginMethodForm, metrics.ResultLimited)
			h.logger.Warn("login rate limited", "ip", clientIP)
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(retryAfter.Seconds()))))
			h.renderLoginError(w, r, http.StatusTooManyRequests, formValues, nil, &Flash{
				Type:    "error",
				Message: "Too many failed sign in attempts. Please try again later.",
			})
			return
		}
	}

	errors := make(map[string]string)
	if username == "" {
		errors["username"] = "Username is required"
	}
	if password == "" {
		errors["password"] = "Password is required"
	}
	if len(errors) > 0 {
		h.renderLoginError(w, r, http.StatusOK, formValues, errors, nil)
		return
	}

	principal, err := h.authManager.Authenticate(r.Context(), service.Credentials{
		Username: username,
		Password: password,
	})
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.EUNAUTHORIZED:
			metrics.LoginAttempt(loginMethodForm, metrics.ResultFailure)
			if h.throttle != nil {
				h.throttle.RecordFailedLogin(clientIP)
			}
			h.renderLoginError(w, r, http.StatusOK, formValues, nil, &Flash{
				Type:    "error",
				Message: "Invalid username or password",
			})
		case domain.EFORBIDDEN:
			metrics.LoginAttempt(loginMethodForm, metrics.ResultDisabled)
			h.renderLoginError(w, r, http.StatusOK, formValues, nil, &Flash{
				Type:    "error",
				Message: "Your account has been disabled.",
			})
		default:
			metrics.LoginAttempt(loginMethodForm, metrics.ResultError)
			h.logger.Error("login failed", "error", err, "username", username)
			h.renderLoginError(w, r, http.StatusOK, formValues, nil, &Flash{
				Type:    "error",
				Message: "Login failed. Please try again later.",
			})
		}
		return
	}

	if h.throttle != nil {
		h.throttle.ResetLogin(clientIP)
	}

	if err := startSession(w, r, h.sessions, principal, h.isSecure); err != nil {
		metrics.LoginAttempt(loginMethodForm, metrics.ResultError)
		h.logger.Error("failed to create session", "error", err, "user_id", principal.UserID)
		h.renderLoginError(w, r, http.StatusOK, formValues, nil, &Flash{
			Type:    "error",
			Message: "Login failed. Please try again later.",
		})
		return
	}

	metrics.LoginAttempt(loginMethodForm, metrics.ResultSuccess)
	h.logger.Info("user logged in",
		"user_id", principal.UserID,
		"username", principal.Username,
		"method", loginMethodForm,
	)

	redirectURL := h.defaultSuccessURL
	if returnTo := r.FormValue("return_to"); isSafeRedirectURL(returnTo) {
		redirectURL = returnTo
	}
	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}

// renderLoginError re-renders the login form with errors.
func (h *AuthHandler) renderLoginError(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	formValues map[string]string,
	errors map[string]string,
	flash *Flash,
) {
	returnTo := r.FormValue("return_to")
	if !isSafeRedirectURL(returnTo) {
		returnTo = ""
	}
	h.renderer.RenderHTTPStatus(w, status, "auth/login", h.pageData(r, returnTo, formValues, errors, flash))
}

func (h *AuthHandler) pageData(r *http.Request, returnTo string, form, errors map[string]string, flash *Flash) AuthPageData {
	if form == nil {
		form = make(map[string]string)
	}
	if errors == nil {
		errors = make(map[string]string)
	}
	return AuthPageData{
		CurrentPath: "/login",
		CSRFToken:   csrf.Token(r.Context()),
		Form:        form,
		Errors:      errors,
		Flash:       flash,
		ReturnTo:    returnTo,
		Providers:   h.providerLinks(returnTo),
		User:        auth.GetUser(r.Context()),
	}
}

func (h *AuthHandler) providerLinks(returnTo string) []ProviderLink {
	if h.registry == nil {
		return nil
	}
	regs := h.registry.List()
	links := make([]ProviderLink, 0, len(regs))
	for _, reg := range regs {
		link := oauth.AuthorizationBase + "/" + reg.RegistrationID
		if returnTo != "" {
			link += "?return_to=" + url.QueryEscape(returnTo)
		}
		name := reg.ClientName
		if name == "" {
			name = ProviderName(reg.RegistrationID)
		}
		links = append(links, ProviderLink{ID: reg.RegistrationID, Name: name, URL: link})
	}
	return links
}

// =============================================================================
// Session Helpers
// =============================================================================

// startSession replaces the request's session, if any, with a new one for
// principal and sets the session cookie.
func startSession(w http.ResponseWriter, r *http.Request, sessions service.SessionService, principal *domain.Principal, isSecure bool) error {
	if old := session.Token(r); old != "" {
		_ = sessions.Invalidate(r.Context(), old)
	}

	token, err := sessions.Create(r.Context(), principal.UserID, service.SessionMeta{
		IPAddress: auth.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		return err
	}

	session.SetCookie(w, token, sessions.Duration(), isSecure)
	return nil
}

// isSafeRedirectURL checks if a URL is safe to redirect to.
//
// A URL is considered safe if:
// - URL is relative (starts with /)
// - URL is not a protocol-relative URL (not // or /\)
// - URL does not redirect to external domain
//
// Examples:
// - "/notes"                  -> true (relative URL)
// - "/notes?page=2"           -> true (relative URL with query)
// - "//evil.com"              -> false (protocol-relative, could be external)
// - "https://evil.com"        -> false (absolute URL to external domain)
// - "javascript:alert(1)"     -> false (javascript URL)
func isSafeRedirectURL(rawURL string) bool {
	// Must start with /
	if !strings.HasPrefix(rawURL, "/") {
		return false
	}

	// Must not start with // or /\ (browsers treat both as protocol-relative)
	if strings.HasPrefix(rawURL, "//") || strings.HasPrefix(rawURL, `/\`) {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	// Must not have a scheme or host
	return parsed.Scheme == "" && parsed.Host == ""
}

// =============================================================================
// Route Registration Helper
// =============================================================================

// RegisterRoutes registers the login routes on the provided ServeMux.
//
// Routes registered:
// - GET  /login -> ShowLogin
// - POST /login -> Login
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /login", h.ShowLogin)
	mux.HandleFunc("POST /login", h.Login)
}
