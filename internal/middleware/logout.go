package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/notebook/internal/auth"
	"github.com/DukeRupert/notebook/internal/metrics"
	"github.com/DukeRupert/notebook/internal/session"
)

// LogoutHandler ends the current session.
type LogoutHandler struct {
	sessions   SessionStore
	invalidate bool
	cookies    []string
	successURL string
	isSecure   bool
	logger     *slog.Logger
}

// NewLogoutHandler creates the logout endpoint for cfg.
func NewLogoutHandler(sessions SessionStore, cfg SecurityConfig, logger *slog.Logger) *LogoutHandler {
	return &LogoutHandler{
		sessions:   sessions,
		invalidate: cfg.InvalidateSession,
		cookies:    cfg.DeleteCookies,
		successURL: cfg.LogoutSuccessURL,
		isSecure:   cfg.Secure,
		logger:     logger,
	}
}

// ServeHTTP invalidates the session, expires the configured cookies and
// redirects to the logout success URL unchanged. The "signed out" notice
// travels in a one-shot flash cookie. Logging out without a session is not
// an error.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.GetSessionToken(r.Context())
	if token == "" {
		// Unresolvable cookie: still drop its row if one exists.
		token = session.Token(r)
	}
	if token != "" && h.invalidate {
		if err := h.sessions.Invalidate(r.Context(), token); err != nil {
			h.logger.Warn("failed to invalidate session on logout", "error", err)
		}
	}

	for _, name := range h.cookies {
		session.ExpireCookie(w, name, h.isSecure)
	}

	if p := GetUser(r.Context()); p != nil {
		h.logger.Info("user logged out", "user_id", p.UserID, "username", p.Username)
	}
	metrics.LogoutsTotal.Inc()

	session.SetFlash(w, session.FlashLoggedOut, h.isSecure)
	http.Redirect(w, r, h.successURL, http.StatusSeeOther)
}
