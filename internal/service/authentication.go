package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/DukeRupert/notebook/internal/domain"
)

// badCredentials is shared by every credential failure so responses do not
// reveal whether the username exists.
const badCredentials = "Bad credentials"

// userNotFoundPassword is hashed once and compared against when a username
// is unknown, so lookups for missing users cost the same as real ones.
const userNotFoundPassword = "userNotFoundPassword"

// Credentials is a username/password authentication request.
type Credentials struct {
	Username string
	Password string
}

// AuthenticationProvider authenticates one kind of credentials.
type AuthenticationProvider interface {
	Authenticate(ctx context.Context, creds Credentials) (*domain.Principal, error)
}

// AuthenticationManager authenticates credentials against its providers.
//
// Errors:
// - domain.EUNAUTHORIZED for bad credentials
// - domain.EFORBIDDEN for disabled accounts
// - domain.EINTERNAL for lookup failures
type AuthenticationManager interface {
	Authenticate(ctx context.Context, creds Credentials) (*domain.Principal, error)
}

// =============================================================================
// DaoAuthenticationProvider
// =============================================================================

// DaoAuthenticationProvider checks credentials against accounts loaded from a
// UserDetailService.
type DaoAuthenticationProvider struct {
	userDetails UserDetailService
	encoder     PasswordEncoder
	logger      *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewDaoAuthenticationProvider creates a provider from a user lookup and an encoder.
func NewDaoAuthenticationProvider(userDetails UserDetailService, encoder PasswordEncoder, logger *slog.Logger) *DaoAuthenticationProvider {
	return &DaoAuthenticationProvider{
		userDetails: userDetails,
		encoder:     encoder,
		logger:      logger,
	}
}

// Authenticate verifies creds.
//
// Flow:
// 1. Load the account by username (unknown user runs a dummy compare)
// 2. Reject accounts without a password (OAuth2-only accounts)
// 3. Compare the password
// 4. Reject disabled accounts
// 5. Re-encode the hash if the encoder's cost has increased
//
// The account status check runs after the password check so a caller without
// the password cannot learn whether an account is disabled.
func (p *DaoAuthenticationProvider) Authenticate(ctx context.Context, creds Credentials) (*domain.Principal, error) {
	const op = "DaoAuthenticationProvider.Authenticate"

	user, err := p.userDetails.LoadUserByUsername(ctx, creds.Username)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			p.mitigateTiming(creds.Password)
			return nil, domain.Unauthorized(op, badCredentials)
		}
		return nil, domain.Wrap(err, domain.EINTERNAL, op, "Failed to load user")
	}

	if !user.HasPassword() {
		p.mitigateTiming(creds.Password)
		return nil, domain.Unauthorized(op, badCredentials)
	}

	if !p.encoder.Matches(creds.Password, user.PasswordHash) {
		return nil, domain.Unauthorized(op, badCredentials)
	}

	if !user.Enabled {
		return nil, domain.Forbidden(op, "User account is disabled")
	}

	if p.encoder.UpgradeEncoding(user.PasswordHash) {
		p.upgradePassword(ctx, user, creds.Password)
	}

	return user.Principal(), nil
}

func (p *DaoAuthenticationProvider) mitigateTiming(password string) {
	p.dummyOnce.Do(func() {
		hash, err := p.encoder.Encode(userNotFoundPassword)
		if err != nil {
			p.logger.Warn("failed to prepare timing-attack mitigation hash", "error", err)
			return
		}
		p.dummyHash = hash
	})
	if p.dummyHash != "" {
		_ = p.encoder.Matches(password, p.dummyHash)
	}
}

func (p *DaoAuthenticationProvider) upgradePassword(ctx context.Context, user *domain.User, raw string) {
	updater, ok := p.userDetails.(PasswordUpdater)
	if !ok {
		return
	}

	hash, err := p.encoder.Encode(raw)
	if err != nil {
		p.logger.Warn("failed to re-encode password", "user_id", user.ID, "error", err)
		return
	}

	// A failed upgrade must not fail the login.
	if err := updater.UpdatePassword(ctx, user, hash); err != nil {
		p.logger.Warn("failed to store upgraded password", "user_id", user.ID, "error", err)
	}
}

// =============================================================================
// ProviderManager
// =============================================================================

// ProviderManager is an AuthenticationManager that tries each provider in
// order and returns the first success.
type ProviderManager struct {
	providers []AuthenticationProvider
	logger    *slog.Logger
}

// NewProviderManager creates a manager over providers.
func NewProviderManager(logger *slog.Logger, providers ...AuthenticationProvider) *ProviderManager {
	return &ProviderManager{
		providers: providers,
		logger:    logger,
	}
}

// Authenticate tries each provider. Credential failures fall through to the
// next provider; account status and internal errors stop the search. If every
// provider rejects the credentials, the last failure is returned.
func (m *ProviderManager) Authenticate(ctx context.Context, creds Credentials) (*domain.Principal, error) {
	const op = "AuthenticationManager.Authenticate"

	var lastErr error
	for _, provider := range m.providers {
		principal, err := provider.Authenticate(ctx, creds)
		if err == nil {
			m.logger.Info("user authenticated", "user_id", principal.UserID, "username", principal.Username)
			return principal, nil
		}

		switch domain.ErrorCode(err) {
		case domain.EUNAUTHORIZED:
			lastErr = err
			continue
		case domain.EFORBIDDEN:
			m.logger.Info("authentication rejected", "username", creds.Username, "reason", domain.ErrorMessage(err))
		default:
			m.logger.Error("authentication failed", "username", creds.Username, "error", err)
		}
		return nil, err
	}

	if lastErr == nil {
		lastErr = domain.Unauthorized(op, "No authentication provider accepted the credentials")
	}
	m.logger.Debug("bad credentials", "username", creds.Username)
	return nil, lastErr
}

// NewAuthenticationManager assembles the username/password authentication
// manager from a user lookup service and a password encoder.
func NewAuthenticationManager(userDetails UserDetailService, encoder PasswordEncoder, logger *slog.Logger) AuthenticationManager {
	return NewProviderManager(logger, NewDaoAuthenticationProvider(userDetails, encoder, logger))
}
