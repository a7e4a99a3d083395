package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/DukeRupert/notebook/internal/domain"
	"github.com/DukeRupert/notebook/internal/repository"
)

// SessionTokenBytes is the number of random bytes for session tokens.
// The token is hex-encoded to 64 characters for the cookie.
const SessionTokenBytes = 32

// generateSessionToken creates a cryptographically secure session token.
func generateSessionToken() (string, error) {
	bytes := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashSessionToken creates a SHA-256 hash of a session token.
//
// Session tokens are high-entropy random values, so a fast hash is enough
// to make a leaked sessions table useless.
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// validTokenFormat reports whether token looks like a session token.
func validTokenFormat(token string) bool {
	if len(token) != SessionTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// repoUserToDomain converts a repository.User to domain.User.
func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        domain.NullStringValue(u.Email),
		PasswordHash: domain.NullStringValue(u.PasswordHash),
		Name:         domain.NullStringValue(u.Name),
		PictureURL:   domain.NullStringValue(u.PictureUrl),
		Provider:     domain.AuthProvider(u.Provider),
		ProviderID:   domain.NullStringValue(u.ProviderID),
		Roles:        u.Roles,
		Enabled:      u.Enabled,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
