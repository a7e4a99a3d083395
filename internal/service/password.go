package service

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost is used when no cost is configured.
	DefaultBcryptCost = 12

	// MinPasswordLength is the minimum password length.
	// NIST SP 800-63B recommends 8+ characters minimum.
	MinPasswordLength = 8

	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72
)

// PasswordEncoder hashes and verifies passwords.
type PasswordEncoder interface {
	// Encode returns the hash of raw.
	Encode(raw string) (string, error)

	// Matches reports whether raw hashes to encoded. Malformed hashes never match.
	Matches(raw, encoded string) bool

	// UpgradeEncoding reports whether encoded should be re-hashed with the
	// encoder's current settings.
	UpgradeEncoding(encoded string) bool
}

// BCryptPasswordEncoder is a PasswordEncoder backed by bcrypt.
type BCryptPasswordEncoder struct {
	cost int
}

var _ PasswordEncoder = (*BCryptPasswordEncoder)(nil)

// NewBCryptPasswordEncoder creates an encoder with the given cost.
// A zero cost selects DefaultBcryptCost; other values are clamped to the
// range bcrypt accepts.
func NewBCryptPasswordEncoder(cost int) *BCryptPasswordEncoder {
	switch {
	case cost == 0:
		cost = DefaultBcryptCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &BCryptPasswordEncoder{cost: cost}
}

// Cost returns the work factor used for new hashes.
func (e *BCryptPasswordEncoder) Cost() int {
	return e.cost
}

func (e *BCryptPasswordEncoder) Encode(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), e.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (e *BCryptPasswordEncoder) Matches(raw, encoded string) bool {
	if encoded == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(raw)) == nil
}

func (e *BCryptPasswordEncoder) UpgradeEncoding(encoded string) bool {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false
	}
	return cost < e.cost
}

var (
	errPasswordTooShort = errors.New("password must be at least 8 characters")
	errPasswordTooLong  = errors.New("password must be at most 72 bytes")
)

// validatePassword enforces the length policy for new local passwords.
func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return errPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return errPasswordTooLong
	}
	return nil
}
