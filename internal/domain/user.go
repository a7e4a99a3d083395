// Package domain contains core business types for the notebook application.
//
// These types are separate from the repository models so the security layer
// can work with plain Go types instead of sql.Null* wrappers.
package domain

import (
	"database/sql"
	"slices"
	"time"

	"github.com/google/uuid"
)

// AuthProvider identifies where an account's identity comes from.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
	ProviderGitHub AuthProvider = "github"
	ProviderNaver  AuthProvider = "naver"
	ProviderKakao  AuthProvider = "kakao"
)

// RoleUser is granted to every account.
const RoleUser = "ROLE_USER"

// User is a registered account. Local accounts carry a bcrypt password hash;
// accounts created through OAuth2 login have none.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string // Never expose this outside the authentication path
	Name         string
	PictureURL   string
	Provider     AuthProvider
	ProviderID   string
	Roles        []string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can use username/password login.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// HasRole reports whether the user has been granted role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// DisplayName returns the user's name, falling back to the username.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Principal returns the authenticated identity for this user.
func (u *User) Principal() *Principal {
	return &Principal{
		UserID:   u.ID,
		Username: u.Username,
		Name:     u.DisplayName(),
		Email:    u.Email,
		Picture:  u.PictureURL,
		Provider: u.Provider,
		Roles:    slices.Clone(u.Roles),
	}
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Name     string
	Email    string
	Picture  string
	Provider AuthProvider
	Roles    []string

	// Attributes holds the raw profile returned by an OAuth2 provider.
	// It is nil for sessions restored from the session cookie.
	Attributes map[string]any
}

// HasRole reports whether the principal has been granted role.
func (p *Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// Session represents an authenticated server-side session.
//
// Sessions are stored with a hashed token; the raw token only ever lives in
// the client's session cookie.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	Principal *Principal
	Token     string // Raw session token (not hashed) - only returned once
}

// CreateUserParams contains the parameters for creating an account.
type CreateUserParams struct {
	Username   string
	Email      string
	Password   string // Raw password; empty for OAuth2 accounts
	Name       string
	PictureURL string
	Provider   AuthProvider
	ProviderID string
	Roles      []string
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
