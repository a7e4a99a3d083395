package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DukeRupert/notebook/internal/repository"
)

// mockQuerier implements repository.Querier for testing.
// Unset functions behave as "no rows".
type mockQuerier struct {
	CreateSessionFunc         func(ctx context.Context, arg repository.CreateSessionParams) (repository.Session, error)
	CreateUserFunc            func(ctx context.Context, arg repository.CreateUserParams) (repository.User, error)
	DeleteExpiredSessionsFunc func(ctx context.Context) (int64, error)
	DeleteSessionFunc         func(ctx context.Context, tokenHash string) error
	DeleteUserSessionsFunc    func(ctx context.Context, userID uuid.UUID) error
	GetSessionByTokenHashFunc func(ctx context.Context, tokenHash string) (repository.Session, error)
	GetUserByIDFunc           func(ctx context.Context, id uuid.UUID) (repository.User, error)
	GetUserByProviderFunc     func(ctx context.Context, arg repository.GetUserByProviderParams) (repository.User, error)
	GetUserByUsernameFunc     func(ctx context.Context, username string) (repository.User, error)
	SetUserEnabledFunc        func(ctx context.Context, arg repository.SetUserEnabledParams) (int64, error)
	UpdateUserPasswordFunc    func(ctx context.Context, arg repository.UpdateUserPasswordParams) error
	UpdateUserProfileFunc     func(ctx context.Context, arg repository.UpdateUserProfileParams) error
}

var _ repository.Querier = (*mockQuerier)(nil)

func (m *mockQuerier) CreateSession(ctx context.Context, arg repository.CreateSessionParams) (repository.Session, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, arg)
	}
	return repository.Session{ID: uuid.New(), UserID: arg.UserID, TokenHash: arg.TokenHash, ExpiresAt: arg.ExpiresAt}, nil
}

func (m *mockQuerier) CreateUser(ctx context.Context, arg repository.CreateUserParams) (repository.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, arg)
	}
	return repository.User{}, sql.ErrConnDone
}

func (m *mockQuerier) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	if m.DeleteExpiredSessionsFunc != nil {
		return m.DeleteExpiredSessionsFunc(ctx)
	}
	return 0, nil
}

func (m *mockQuerier) DeleteSession(ctx context.Context, tokenHash string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, tokenHash)
	}
	return nil
}

func (m *mockQuerier) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	if m.DeleteUserSessionsFunc != nil {
		return m.DeleteUserSessionsFunc(ctx, userID)
	}
	return nil
}

func (m *mockQuerier) GetSessionByTokenHash(ctx context.Context, tokenHash string) (repository.Session, error) {
	if m.GetSessionByTokenHashFunc != nil {
		return m.GetSessionByTokenHashFunc(ctx, tokenHash)
	}
	return repository.Session{}, sql.ErrNoRows
}

func (m *mockQuerier) GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error) {
	if m.GetUserByIDFunc != nil {
		return m.GetUserByIDFunc(ctx, id)
	}
	return repository.User{}, sql.ErrNoRows
}

func (m *mockQuerier) GetUserByProvider(ctx context.Context, arg repository.GetUserByProviderParams) (repository.User, error) {
	if m.GetUserByProviderFunc != nil {
		return m.GetUserByProviderFunc(ctx, arg)
	}
	return repository.User{}, sql.ErrNoRows
}

func (m *mockQuerier) GetUserByUsername(ctx context.Context, username string) (repository.User, error) {
	if m.GetUserByUsernameFunc != nil {
		return m.GetUserByUsernameFunc(ctx, username)
	}
	return repository.User{}, sql.ErrNoRows
}

func (m *mockQuerier) SetUserEnabled(ctx context.Context, arg repository.SetUserEnabledParams) (int64, error) {
	if m.SetUserEnabledFunc != nil {
		return m.SetUserEnabledFunc(ctx, arg)
	}
	return 0, nil
}

func (m *mockQuerier) UpdateUserPassword(ctx context.Context, arg repository.UpdateUserPasswordParams) error {
	if m.UpdateUserPasswordFunc != nil {
		return m.UpdateUserPasswordFunc(ctx, arg)
	}
	return nil
}

func (m *mockQuerier) UpdateUserProfile(ctx context.Context, arg repository.UpdateUserProfileParams) error {
	if m.UpdateUserProfileFunc != nil {
		return m.UpdateUserProfileFunc(ctx, arg)
	}
	return nil
}

// newTestLogger creates a logger that discards output.
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
