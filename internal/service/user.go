// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/notebook/internal/domain"
	"github.com/DukeRupert/notebook/internal/repository"
)

// UserService manages local accounts. It backs the operator CLI.
type UserService interface {
	// CreateLocalUser creates an account that signs in with a password.
	// Returns domain.EINVALID for validation errors.
	// Returns domain.ECONFLICT if the username is taken.
	CreateLocalUser(ctx context.Context, params domain.CreateUserParams) (*domain.User, error)

	// SetEnabled enables or disables an account. Disabling an account also
	// ends all of its sessions.
	// Returns domain.ENOTFOUND if no account has that username.
	SetEnabled(ctx context.Context, username string, enabled bool) error
}

type userService struct {
	queries repository.Querier
	encoder PasswordEncoder
	logger  *slog.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(queries repository.Querier, encoder PasswordEncoder, logger *slog.Logger) UserService {
	return &userService{
		queries: queries,
		encoder: encoder,
		logger:  logger,
	}
}

func (s *userService) CreateLocalUser(ctx context.Context, params domain.CreateUserParams) (*domain.User, error) {
	const op = "UserService.CreateLocalUser"

	params.Username = strings.TrimSpace(params.Username)
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Name = strings.TrimSpace(params.Name)

	if err := validateUsername(params.Username); err != nil {
		return nil, domain.Invalid(op, err.Error())
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, domain.Invalid(op, err.Error())
	}

	hash, err := s.encoder.Encode(params.Password)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to encode password")
	}

	roles := params.Roles
	if len(roles) == 0 {
		roles = []string{domain.RoleUser}
	}

	repoUser, err := s.queries.CreateUser(ctx, repository.CreateUserParams{
		Username:     params.Username,
		Email:        domain.ToNullString(params.Email),
		PasswordHash: domain.ToNullString(hash),
		Name:         domain.ToNullString(params.Name),
		Provider:     string(domain.ProviderLocal),
		Roles:        roles,
	})
	if err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, domain.Conflict(op, "An account with this username already exists")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("local user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *userService) SetEnabled(ctx context.Context, username string, enabled bool) error {
	const op = "UserService.SetEnabled"

	n, err := s.queries.SetUserEnabled(ctx, repository.SetUserEnabledParams{
		Username: username,
		Enabled:  enabled,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update user")
	}
	if n == 0 {
		return domain.NotFound(op, "user", username)
	}

	if !enabled {
		repoUser, err := s.queries.GetUserByUsername(ctx, username)
		if err != nil {
			return domain.Internal(err, op, "Failed to retrieve user")
		}
		if err := s.queries.DeleteUserSessions(ctx, repoUser.ID); err != nil {
			return domain.Internal(err, op, "Failed to delete sessions")
		}
	}

	s.logger.Info("user enabled state changed", "username", username, "enabled", enabled)
	return nil
}

var (
	errUsernameRequired   = errors.New("username is required")
	errUsernameTooLong    = errors.New("username must be at most 64 characters")
	errUsernameWhitespace = errors.New("username must not contain whitespace")
)

// validateUsername checks the form login username policy. Usernames of the
// form "{provider}_{id}" are allowed so operators can pre-create accounts.
func validateUsername(username string) error {
	if username == "" {
		return errUsernameRequired
	}
	if len(username) > 64 {
		return errUsernameTooLong
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return errUsernameWhitespace
	}
	return nil
}
