package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/notebook/internal/domain"
	"github.com/DukeRupert/notebook/internal/service"
)

// =============================================================================
// Mock AuthenticationManager
// =============================================================================

type mockAuthManager struct {
	AuthenticateFunc func(ctx context.Context, creds service.Credentials) (*domain.Principal, error)
}

func (m *mockAuthManager) Authenticate(ctx context.Context, creds service.Credentials) (*domain.Principal, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, creds)
	}
	return nil, errors.New("AuthenticateFunc not implemented")
}

// =============================================================================
// Mock SessionService
// =============================================================================

type mockSessionService struct {
	CreateFunc     func(ctx context.Context, userID uuid.UUID, meta service.SessionMeta) (string, error)
	ResolveFunc    func(ctx context.Context, token string) (*domain.Principal, error)
	InvalidateFunc func(ctx context.Context, token string) error

	mu          sync.Mutex
	created     []uuid.UUID
	metas       []service.SessionMeta
	invalidated []string
}

func (m *mockSessionService) Create(ctx context.Context, userID uuid.UUID, meta service.SessionMeta) (string, error) {
	m.mu.Lock()
	m.created = append(m.created, userID)
	m.metas = append(m.metas, meta)
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, meta)
	}
	return "new-session-token", nil
}

func (m *mockSessionService) Resolve(ctx context.Context, token string) (*domain.Principal, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, token)
	}
	return nil, domain.Unauthorized("SessionService.Resolve", "Invalid session")
}

func (m *mockSessionService) Invalidate(ctx context.Context, token string) error {
	m.mu.Lock()
	m.invalidated = append(m.invalidated, token)
	m.mu.Unlock()
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, token)
	}
	return nil
}

func (m *mockSessionService) InvalidateAll(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (m *mockSessionService) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockSessionService) Duration() time.Duration {
	return 24 * time.Hour
}

// =============================================================================
// Mock LoginThrottle
// =============================================================================

type mockThrottle struct {
	blocked  bool
	failures int
	resets   int
}

func (m *mockThrottle) LoginBlocked(ip string) (bool, time.Duration) {
	if m.blocked {
		return true, 90 * time.Second
	}
	return false, 0
}

func (m *mockThrottle) RecordFailedLogin(ip string) { m.failures++ }

func (m *mockThrottle) ResetLogin(ip string) { m.resets++ }

// =============================================================================
// Mock OAuth2UserService
// =============================================================================

type mockOAuth2UserService struct {
	LoadUserFunc func(ctx context.Context, req service.OAuth2UserRequest) (*domain.Principal, error)
}

func (m *mockOAuth2UserService) LoadUser(ctx context.Context, req service.OAuth2UserRequest) (*domain.Principal, error) {
	if m.LoadUserFunc != nil {
		return m.LoadUserFunc(ctx, req)
	}
	return nil, errors.New("LoadUserFunc not implemented")
}

// =============================================================================
// Mock TemplateRenderer
// =============================================================================

type mockRenderer struct {
	name   string
	status int
	data   interface{}
}

func (m *mockRenderer) RenderHTTP(w http.ResponseWriter, name string, data interface{}) {
	m.RenderHTTPStatus(w, http.StatusOK, name, data)
}

func (m *mockRenderer) RenderHTTPStatus(w http.ResponseWriter, status int, name string, data interface{}) {
	m.name = name
	m.status = status
	m.data = data
	w.WriteHeader(status)
}

// =============================================================================
// Test Helpers
// =============================================================================

// newTestLogger creates a logger that discards output for testing.
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}))
}

func testPrincipal() *domain.Principal {
	return &domain.Principal{
		UserID:   uuid.New(),
		Username: "kim",
		Name:     "Kim Minsu",
		Provider: domain.ProviderLocal,
		Roles:    []string{domain.RoleUser},
	}
}
