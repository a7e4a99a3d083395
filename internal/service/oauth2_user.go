package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/DukeRupert/notebook/internal/domain"
	"github.com/DukeRupert/notebook/internal/repository"
)

// providerIdentityConstraint is the unique constraint on (provider, provider_id).
const providerIdentityConstraint = "users_provider_identity"

// OAuth2UserRequest carries what is known after a successful code exchange.
type OAuth2UserRequest struct {
	RegistrationID string
	Token          *oauth2.Token
}

// UserInfoFetcher retrieves and normalises a provider profile.
type UserInfoFetcher interface {
	FetchUserInfo(ctx context.Context, registrationID string, token *oauth2.Token) (*domain.OAuth2UserInfo, error)
}

// OAuth2UserService resolves a provider login into a local principal.
type OAuth2UserService interface {
	// LoadUser fetches the provider profile and maps it onto a local account,
	// creating the account on first login.
	// Returns domain.EINVALID if the profile has no subject.
	// Returns domain.EFORBIDDEN if the local account is disabled.
	// Returns domain.ECONFLICT if the generated username is already taken.
	LoadUser(ctx context.Context, req OAuth2UserRequest) (*domain.Principal, error)
}

type principalOAuth2UserService struct {
	queries  repository.Querier
	userInfo UserInfoFetcher
	logger   *slog.Logger
}

// NewPrincipalOAuth2UserService creates the OAuth2UserService used by the
// OAuth2 login callback.
func NewPrincipalOAuth2UserService(queries repository.Querier, userInfo UserInfoFetcher, logger *slog.Logger) OAuth2UserService {
	return &principalOAuth2UserService{
		queries:  queries,
		userInfo: userInfo,
		logger:   logger,
	}
}

func (s *principalOAuth2UserService) LoadUser(ctx context.Context, req OAuth2UserRequest) (*domain.Principal, error) {
	const op = "OAuth2UserService.LoadUser"

	info, err := s.userInfo.FetchUserInfo(ctx, req.RegistrationID, req.Token)
	if err != nil {
		var appErr *domain.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, domain.Internal(err, op, "Failed to fetch user info")
	}

	if info.Subject == "" {
		return nil, domain.Invalid(op, "Provider did not return a user identifier")
	}

	user, err := s.findOrCreate(ctx, info)
	if err != nil {
		return nil, err
	}

	if !user.Enabled {
		s.logger.Info("oauth2 login for disabled account", "user_id", user.ID, "provider", info.Provider)
		return nil, domain.Forbidden(op, "User account is disabled")
	}

	s.refreshProfile(ctx, user, info)

	principal := user.Principal()
	principal.Attributes = info.Attributes
	return principal, nil
}

func (s *principalOAuth2UserService) findOrCreate(ctx context.Context, info *domain.OAuth2UserInfo) (*domain.User, error) {
	const op = "OAuth2UserService.LoadUser"

	lookup := repository.GetUserByProviderParams{
		Provider:   string(info.Provider),
		ProviderID: domain.ToNullString(info.Subject),
	}

	repoUser, err := s.queries.GetUserByProvider(ctx, lookup)
	if err == nil {
		return repoUserToDomain(repoUser), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	repoUser, err = s.queries.CreateUser(ctx, repository.CreateUserParams{
		Username:   info.Username(),
		Email:      domain.ToNullString(info.Email),
		Name:       domain.ToNullString(info.Name),
		PictureUrl: domain.ToNullString(info.PictureURL),
		Provider:   string(info.Provider),
		ProviderID: domain.ToNullString(info.Subject),
		Roles:      []string{domain.RoleUser},
	})
	if err != nil {
		switch {
		case repository.IsUniqueViolation(err, providerIdentityConstraint):
			// Concurrent first login for the same identity
			repoUser, err = s.queries.GetUserByProvider(ctx, lookup)
			if err != nil {
				return nil, domain.Internal(err, op, "Failed to retrieve user")
			}
			return repoUserToDomain(repoUser), nil
		case repository.IsUniqueViolation(err, ""):
			return nil, domain.Conflict(op, "An account with this username already exists")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	s.logger.Info("user registered via oauth2",
		"user_id", repoUser.ID,
		"provider", info.Provider,
		"username", repoUser.Username,
	)

	return repoUserToDomain(repoUser), nil
}

// refreshProfile copies changed profile fields onto the account. Failures are
// logged; the login itself still succeeds with the fresh values.
func (s *principalOAuth2UserService) refreshProfile(ctx context.Context, user *domain.User, info *domain.OAuth2UserInfo) {
	email, name, picture := user.Email, user.Name, user.PictureURL
	if info.Email != "" {
		email = info.Email
	}
	if info.Name != "" {
		name = info.Name
	}
	if info.PictureURL != "" {
		picture = info.PictureURL
	}

	if email == user.Email && name == user.Name && picture == user.PictureURL {
		return
	}

	err := s.queries.UpdateUserProfile(ctx, repository.UpdateUserProfileParams{
		ID:         user.ID,
		Email:      domain.ToNullString(email),
		Name:       domain.ToNullString(name),
		PictureUrl: domain.ToNullString(picture),
	})
	if err != nil {
		s.logger.Warn("failed to refresh oauth2 profile", "user_id", user.ID, "error", err)
	}

	user.Email, user.Name, user.PictureURL = email, name, picture
}
