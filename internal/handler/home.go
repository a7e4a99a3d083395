package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/notebook/internal/auth"
	"github.com/DukeRupert/notebook/internal/csrf"
	"github.com/DukeRupert/notebook/internal/domain"
)

// HomeHandler serves the authenticated pages and the error page.
//
// Routes handled:
// - GET /       -> Home
// - GET /api/me -> Me
// - GET /error  -> Error
type HomeHandler struct {
	renderer TemplateRenderer
	logger   *slog.Logger
}

// NewHomeHandler creates a HomeHandler.
func NewHomeHandler(renderer TemplateRenderer, logger *slog.Logger) *HomeHandler {
	return &HomeHandler{
		renderer: renderer,
		logger:   logger,
	}
}

// HomePageData is passed to app/home.
type HomePageData struct {
	CurrentPath string
	CSRFToken   string
	User        *domain.Principal
}

// Home renders the notebook home page for the signed-in user.
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		// The security chain guarantees a principal; reaching here without
		// one means the handler was mounted outside the chain.
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	h.renderer.RenderHTTP(w, "app/home", HomePageData{
		CurrentPath: r.URL.Path,
		CSRFToken:   csrf.Token(r.Context()),
		User:        user,
	})
}

// MeResponse is the JSON view of the current principal.
type MeResponse struct {
	ID         string         `json:"id"`
	Username   string         `json:"username"`
	Name       string         `json:"name"`
	Email      string         `json:"email,omitempty"`
	Picture    string         `json:"picture,omitempty"`
	Provider   string         `json:"provider"`
	Roles      []string       `json:"roles"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Me returns the current principal as JSON.
func (h *HomeHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(MeResponse{
		ID:         user.UserID.String(),
		Username:   user.Username,
		Name:       user.Name,
		Email:      user.Email,
		Picture:    user.Picture,
		Provider:   string(user.Provider),
		Roles:      user.Roles,
		Attributes: user.Attributes,
	})
}

// ErrorPageData is passed to auth/error.
type ErrorPageData struct {
	CurrentPath string
	Status      int
	StatusText  string
}

// Error renders the generic error page. It runs outside the security chain,
// so it never depends on a session. The optional status query parameter
// selects a 4xx/5xx status; anything else renders 500.
func (h *HomeHandler) Error(w http.ResponseWriter, r *http.Request) {
	status := http.StatusInternalServerError
	if s, err := strconv.Atoi(r.URL.Query().Get("status")); err == nil && s >= 400 && s <= 599 {
		status = s
	}

	h.renderer.RenderHTTPStatus(w, status, "auth/error", ErrorPageData{
		CurrentPath: r.URL.Path,
		Status:      status,
		StatusText:  http.StatusText(status),
	})
}

// RegisterRoutes registers the home, API and error routes.
func (h *HomeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /api/me", h.Me)
	mux.HandleFunc("GET /error", h.Error)
}
