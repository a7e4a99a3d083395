package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/notebook/internal/domain"
	"github.com/DukeRupert/notebook/internal/repository"
)

// UserDetailService looks up accounts for username/password authentication.
type UserDetailService interface {
	// LoadUserByUsername returns the account including its password hash.
	// Returns domain.ENOTFOUND if no account has that username.
	LoadUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

// PasswordUpdater is implemented by user-detail services that can persist a
// re-encoded password hash.
type PasswordUpdater interface {
	UpdatePassword(ctx context.Context, user *domain.User, newHash string) error
}

type userDetailService struct {
	queries repository.Querier
	logger  *slog.Logger
}

// NewUserDetailService creates a UserDetailService backed by the users table.
// The returned service also implements PasswordUpdater.
func NewUserDetailService(queries repository.Querier, logger *slog.Logger) UserDetailService {
	return &userDetailService{
		queries: queries,
		logger:  logger,
	}
}

var (
	_ UserDetailService = (*userDetailService)(nil)
	_ PasswordUpdater   = (*userDetailService)(nil)
)

func (s *userDetailService) LoadUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const op = "UserDetailService.LoadUserByUsername"

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.NotFound(op, "user", username)
	}

	repoUser, err := s.queries.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", username)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	return repoUserToDomain(repoUser), nil
}

func (s *userDetailService) UpdatePassword(ctx context.Context, user *domain.User, newHash string) error {
	const op = "UserDetailService.UpdatePassword"

	err := s.queries.UpdateUserPassword(ctx, repository.UpdateUserPasswordParams{
		ID:           user.ID,
		PasswordHash: domain.ToNullString(newHash),
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update password")
	}

	user.PasswordHash = newHash
	s.logger.Debug("password hash upgraded", "user_id", user.ID)
	return nil
}
