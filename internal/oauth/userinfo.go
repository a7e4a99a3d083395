package oauth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/DukeRupert/notebook/internal/domain"
)

// maxUserInfoBytes caps the user-info response body.
const maxUserInfoBytes = 1 << 20

// UserInfoClientConfig controls the HTTP client used for token and
// user-info requests.
type UserInfoClientConfig struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// DefaultUserInfoClientConfig returns production defaults.
func DefaultUserInfoClientConfig() UserInfoClientConfig {
	return UserInfoClientConfig{
		RetryMax:     3,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		Timeout:      10 * time.Second,
	}
}

// UserInfoClient fetches provider profiles and maps them onto
// domain.OAuth2UserInfo using each registration's attribute paths.
type UserInfoClient struct {
	registry *Registry
	client   *retryablehttp.Client
	logger   *slog.Logger
}

// NewUserInfoClient creates a client for the registrations in registry.
func NewUserInfoClient(registry *Registry, cfg UserInfoClientConfig, logger *slog.Logger) *UserInfoClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = logger

	return &UserInfoClient{
		registry: registry,
		client:   rc,
		logger:   logger,
	}
}

// HTTPClient returns a standard client with the same retry policy, for use
// with oauth2.Config.Exchange via the oauth2.HTTPClient context key.
func (c *UserInfoClient) HTTPClient() *http.Client {
	return c.client.StandardClient()
}

// FetchUserInfo calls the registration's user-info endpoint with the access
// token and normalises the response.
func (c *UserInfoClient) FetchUserInfo(ctx context.Context, registrationID string, token *oauth2.Token) (*domain.OAuth2UserInfo, error) {
	const op = "UserInfoClient.FetchUserInfo"

	reg, ok := c.registry.Get(registrationID)
	if !ok {
		return nil, domain.NotFound(op, "registration", registrationID)
	}
	if token == nil || token.AccessToken == "" {
		return nil, domain.Invalid(op, "Missing access token")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reg.UserInfoURI, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to build user info request")
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.Internal(err, op, "User info request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to read user info response")
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("user info endpoint returned an error",
			"registration", registrationID,
			"status", resp.StatusCode,
		)
		return nil, domain.Internal(fmt.Errorf("user info status %d", resp.StatusCode), op, "User info request failed")
	}

	if !gjson.ValidBytes(body) {
		return nil, domain.Internal(fmt.Errorf("invalid JSON from %s", reg.UserInfoURI), op, "Malformed user info response")
	}

	return MapUserInfo(reg, body), nil
}

// MapUserInfo extracts the normalised profile from a user-info document.
func MapUserInfo(reg ClientRegistration, body []byte) *domain.OAuth2UserInfo {
	doc := gjson.ParseBytes(body)
	attrs := reg.Attributes

	info := &domain.OAuth2UserInfo{
		Provider:   domain.AuthProvider(reg.RegistrationID),
		Subject:    lookup(doc, attrs.Subject),
		Email:      strings.ToLower(lookup(doc, attrs.Email)),
		Name:       lookup(doc, attrs.Name),
		PictureURL: lookup(doc, attrs.Picture),
	}

	if info.Name == "" {
		info.Name = lookup(doc, attrs.NameFallback)
	}
	if attrs.EmailVerified != "" {
		info.EmailVerified = doc.Get(attrs.EmailVerified).Bool()
	}

	if m, ok := doc.Value().(map[string]interface{}); ok {
		info.Attributes = m
	}
	return info
}

func lookup(doc gjson.Result, path string) string {
	if path == "" {
		return ""
	}
	return strings.TrimSpace(doc.Get(path).String())
}
