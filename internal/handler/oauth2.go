package handler

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/DukeRupert/notebook/internal/domain"
	"github.com/DukeRupert/notebook/internal/metrics"
	"github.com/DukeRupert/notebook/internal/oauth"
	"github.com/DukeRupert/notebook/internal/service"
)

// AuthorizationRequestStore keeps pending OAuth2 authorization requests.
type AuthorizationRequestStore interface {
	Save(req *oauth.AuthorizationRequest) error
	Remove(state string) (*oauth.AuthorizationRequest, error)
}

// OAuth2Handler runs the authorization code flow against the configured
// providers.
//
// Routes handled:
// - GET /oauth2/authorization/{registrationId} -> Authorize
// - GET /login/oauth2/code/{registrationId}    -> Callback
type OAuth2Handler struct {
	registry          *oauth.Registry
	requests          AuthorizationRequestStore
	users             service.OAuth2UserService
	sessions          service.SessionService
	httpClient        *http.Client
	logger            *slog.Logger
	isSecure          bool
	loginPage         string
	defaultSuccessURL string
}

// NewOAuth2Handler creates an OAuth2Handler.
//
// httpClient is used for the token exchange; nil uses http.DefaultClient.
func NewOAuth2Handler(
	registry *oauth.Registry,
	requests AuthorizationRequestStore,
	users service.OAuth2UserService,
	sessions service.SessionService,
	httpClient *http.Client,
	logger *slog.Logger,
	isSecure bool,
) *OAuth2Handler {
	return &OAuth2Handler{
		registry:          registry,
		requests:          requests,
		users:             users,
		sessions:          sessions,
		httpClient:        httpClient,
		logger:            logger,
		isSecure:          isSecure,
		loginPage:         "/login",
		defaultSuccessURL: "/",
	}
}

// =============================================================================
// GET /oauth2/authorization/{registrationId}
// =============================================================================

// Authorize redirects the browser to the provider's consent page.
//
// A state value and PKCE verifier are stored for the callback. An optional
// return_to query parameter is remembered and honoured after login.
func (h *OAuth2Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("registrationId")

	config, ok := h.registry.Config(id)
	if !ok {
		NotFoundResponse(w, r, h.logger)
		return
	}

	returnTo := r.URL.Query().Get("return_to")
	if !isSafeRedirectURL(returnTo) {
		returnTo = ""
	}

	req, err := oauth.NewAuthorizationRequest(id, returnTo)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	if err := h.requests.Save(req); err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	authURL := config.AuthCodeURL(req.State, oauth2.S256ChallengeOption(req.CodeVerifier))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// =============================================================================
// GET /login/oauth2/code/{registrationId}
// =============================================================================

// Callback completes the login: it checks the state, exchanges the code,
// resolves the principal and opens a session.
//
// Every failure sends the browser back to the login page with ?error.
func (h *OAuth2Handler) Callback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("registrationId")
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Info("provider returned an error",
			"registration_id", id,
			"error", providerErr,
			"error_description", q.Get("error_description"),
		)
		reason := ""
		if providerErr == "access_denied" {
			reason = "denied"
		}
		h.fail(w, r, id, metrics.ResultFailure, reason)
		return
	}

	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		h.logger.Warn("callback without state or code", "registration_id", id)
		h.fail(w, r, id, metrics.ResultFailure, "")
		return
	}

	authReq, err := h.requests.Remove(state)
	if err != nil {
		h.logger.Warn("unknown or expired authorization state", "registration_id", id)
		h.fail(w, r, id, metrics.ResultFailure, "")
		return
	}
	if authReq.RegistrationID != id {
		h.logger.Warn("authorization state issued for another registration",
			"registration_id", id,
			"state_registration_id", authReq.RegistrationID,
		)
		h.fail(w, r, id, metrics.ResultFailure, "")
		return
	}

	config, ok := h.registry.Config(id)
	if !ok {
		h.fail(w, r, id, metrics.ResultFailure, "")
		return
	}

	ctx := r.Context()
	if h.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
	}

	token, err := config.Exchange(ctx, code, oauth2.VerifierOption(authReq.CodeVerifier))
	if err != nil {
		h.logger.Error("authorization code exchange failed", "registration_id", id, "error", err)
		h.fail(w, r, id, metrics.ResultError, "")
		return
	}

	principal, err := h.users.LoadUser(ctx, service.OAuth2UserRequest{
		RegistrationID: id,
		Token:          token,
	})
	if err != nil {
		if domain.ErrorCode(err) == domain.EFORBIDDEN {
			h.logger.Info("oauth2 login for disabled account", "registration_id", id)
			h.fail(w, r, id, metrics.ResultDisabled, "disabled")
			return
		}
		h.logger.Error("failed to load oauth2 user", "registration_id", id, "error", err)
		h.fail(w, r, id, metrics.ResultError, "")
		return
	}

	if err := startSession(w, r, h.sessions, principal, h.isSecure); err != nil {
		h.logger.Error("failed to create session", "error", err, "user_id", principal.UserID)
		h.fail(w, r, id, metrics.ResultError, "")
		return
	}

	metrics.LoginAttempt(id, metrics.ResultSuccess)
	h.logger.Info("user logged in",
		"user_id", principal.UserID,
		"username", principal.Username,
		"method", id,
	)

	redirectURL := h.defaultSuccessURL
	if authReq.ReturnTo != "" {
		redirectURL = authReq.ReturnTo
	}
	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}

// fail records the outcome and redirects to the login page with ?error.
func (h *OAuth2Handler) fail(w http.ResponseWriter, r *http.Request, id, result, reason string) {
	// Unregistered ids come straight from the URL; keep them out of metric labels.
	if _, ok := h.registry.Get(id); !ok {
		id = "unknown"
	}
	metrics.LoginAttempt(id, result)

	target := h.loginPage + "?error"
	if reason != "" {
		target += "=" + reason
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// RegisterRoutes registers the OAuth2 login routes. authorize wraps the
// authorization endpoint, typically with a rate limiter; nil leaves it bare.
func (h *OAuth2Handler) RegisterRoutes(mux *http.ServeMux, authorize func(http.Handler) http.Handler) {
	var start http.Handler = http.HandlerFunc(h.Authorize)
	if authorize != nil {
		start = authorize(start)
	}
	mux.Handle("GET "+oauth.AuthorizationBase+"/{registrationId}", start)
	mux.HandleFunc("GET "+oauth.RedirectBase+"/{registrationId}", h.Callback)
}
