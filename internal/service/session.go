package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/DukeRupert/notebook/internal/domain"
	"github.com/DukeRupert/notebook/internal/metrics"
	"github.com/DukeRupert/notebook/internal/repository"
)

const (
	// DefaultSessionDuration is how long a session remains valid.
	DefaultSessionDuration = 24 * time.Hour

	// MinSessionDuration is the shortest allowed session.
	MinSessionDuration = 15 * time.Minute

	// MaxSessionDuration is the longest allowed session.
	MaxSessionDuration = 30 * 24 * time.Hour
)

// SessionMeta describes the client that opened a session.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

// SessionService manages server-side sessions keyed by an opaque token.
type SessionService interface {
	// Create opens a session for userID and returns the raw token.
	// The token is only returned once; the database stores its hash.
	Create(ctx context.Context, userID uuid.UUID, meta SessionMeta) (string, error)

	// Resolve returns the principal for a raw session token.
	// Returns domain.EUNAUTHORIZED if the token is invalid or expired, or if
	// the account has been disabled since the session was created.
	Resolve(ctx context.Context, token string) (*domain.Principal, error)

	// Invalidate deletes the session for token. Idempotent.
	Invalidate(ctx context.Context, token string) error

	// InvalidateAll deletes every session belonging to userID.
	InvalidateAll(ctx context.Context, userID uuid.UUID) error

	// DeleteExpired removes expired sessions and returns how many were deleted.
	DeleteExpired(ctx context.Context) (int64, error)

	// Duration is the lifetime of new sessions, used for the cookie Max-Age.
	Duration() time.Duration
}

// SessionServiceConfig holds configuration for the session service.
type SessionServiceConfig struct {
	// Duration is how long a session remains valid.
	// Defaults to 24 hours; clamped to 15 minutes..30 days.
	Duration time.Duration
}

type sessionService struct {
	queries  repository.Querier
	duration time.Duration
	logger   *slog.Logger
}

// NewSessionService creates a SessionService instance.
func NewSessionService(queries repository.Querier, cfg SessionServiceConfig, logger *slog.Logger) SessionService {
	return &sessionService{
		queries:  queries,
		duration: normalizeSessionDuration(cfg.Duration),
		logger:   logger,
	}
}

// normalizeSessionDuration applies the default and the allowed bounds.
func normalizeSessionDuration(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultSessionDuration
	case d < MinSessionDuration:
		return MinSessionDuration
	case d > MaxSessionDuration:
		return MaxSessionDuration
	}
	return d
}

func (s *sessionService) Duration() time.Duration {
	return s.duration
}

func (s *sessionService) Create(ctx context.Context, userID uuid.UUID, meta SessionMeta) (string, error) {
	const op = "SessionService.Create"

	token, err := generateSessionToken()
	if err != nil {
		return "", domain.Internal(err, op, "Failed to generate session token")
	}

	_, err = s.queries.CreateSession(ctx, repository.CreateSessionParams{
		UserID:    userID,
		TokenHash: hashSessionToken(token),
		IpAddress: parseInet(meta.IPAddress),
		UserAgent: domain.ToNullString(meta.UserAgent),
		ExpiresAt: time.Now().Add(s.duration),
	})
	if err != nil {
		return "", domain.Internal(err, op, "Failed to create session")
	}

	metrics.SessionsCreated.Inc()
	s.logger.Debug("session created", "user_id", userID)

	return token, nil
}

func (s *sessionService) Resolve(ctx context.Context, token string) (*domain.Principal, error) {
	const op = "SessionService.Resolve"

	if !validTokenFormat(token) {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	// Expired sessions are filtered by the query
	session, err := s.queries.GetSessionByTokenHash(ctx, hashSessionToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve session")
	}

	repoUser, err := s.queries.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if !repoUser.Enabled {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	return repoUserToDomain(repoUser).Principal(), nil
}

func (s *sessionService) Invalidate(ctx context.Context, token string) error {
	if !validTokenFormat(token) {
		return nil
	}

	if err := s.queries.DeleteSession(ctx, hashSessionToken(token)); err != nil {
		// Logout must still complete for the client; the row expires on its own
		s.logger.Warn("failed to delete session", "error", err)
		return nil
	}

	s.logger.Debug("session invalidated")
	return nil
}

func (s *sessionService) InvalidateAll(ctx context.Context, userID uuid.UUID) error {
	const op = "SessionService.InvalidateAll"

	if err := s.queries.DeleteUserSessions(ctx, userID); err != nil {
		return domain.Internal(err, op, "Failed to delete sessions")
	}

	s.logger.Info("all sessions invalidated", "user_id", userID)
	return nil
}

func (s *sessionService) DeleteExpired(ctx context.Context) (int64, error) {
	const op = "SessionService.DeleteExpired"

	n, err := s.queries.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to delete expired sessions")
	}

	if n > 0 {
		metrics.SessionsPurged.Add(float64(n))
	}
	s.logger.Info("expired sessions cleaned up", "count", n)

	return n, nil
}

// parseInet converts a client IP to an inet column value. Unparseable input
// is stored as NULL.
func parseInet(ip string) pqtype.Inet {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return pqtype.Inet{}
	}

	bits := 128
	if v4 := parsed.To4(); v4 != nil {
		parsed = v4
		bits = 32
	}

	return pqtype.Inet{
		IPNet: net.IPNet{IP: parsed, Mask: net.CIDRMask(bits, bits)},
		Valid: true,
	}
}
