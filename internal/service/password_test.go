package service

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// Password Validation Tests
// =============================================================================

func TestValidatePassword(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		valid    bool
	}{
		{"too short - 7 chars", "Abcdef1", false},
		{"minimum - 8 chars", "Abcdef12", true},
		{"longer - 12 chars", "Abcdefgh1234", true},
		{"at bcrypt limit", strings.Repeat("Aa1", 24), true},
		{"over bcrypt limit", strings.Repeat("a", 73), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePassword(tc.password)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("expected error")
			}
		})
	}
}

// =============================================================================
// BCryptPasswordEncoder Tests
// =============================================================================

func TestNewBCryptPasswordEncoder_Cost(t *testing.T) {
	testCases := []struct {
		name  string
		input int
		want  int
	}{
		{"zero uses default", 0, DefaultBcryptCost},
		{"below minimum is clamped", 2, bcrypt.MinCost},
		{"above maximum is clamped", 40, bcrypt.MaxCost},
		{"valid cost kept", 10, 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewBCryptPasswordEncoder(tc.input).Cost(); got != tc.want {
				t.Errorf("Cost() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBCryptPasswordEncoder_EncodeAndMatches(t *testing.T) {
	enc := NewBCryptPasswordEncoder(bcrypt.MinCost)

	hash, err := enc.Encode("correct horse")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("Encode() returned the raw password")
	}

	if !enc.Matches("correct horse", hash) {
		t.Error("expected password to match its hash")
	}
	if enc.Matches("wrong horse", hash) {
		t.Error("expected wrong password not to match")
	}
	if enc.Matches("correct horse", "") {
		t.Error("empty hash must never match")
	}
	if enc.Matches("correct horse", "not-a-bcrypt-hash") {
		t.Error("malformed hash must never match")
	}
}

func TestBCryptPasswordEncoder_UpgradeEncoding(t *testing.T) {
	weak := NewBCryptPasswordEncoder(bcrypt.MinCost)
	strong := NewBCryptPasswordEncoder(bcrypt.MinCost + 1)

	hash, err := weak.Encode("password123")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if weak.UpgradeEncoding(hash) {
		t.Error("hash at current cost should not need upgrade")
	}
	if !strong.UpgradeEncoding(hash) {
		t.Error("hash below current cost should need upgrade")
	}
	if strong.UpgradeEncoding("garbage") {
		t.Error("malformed hash should not be reported as upgradable")
	}
}
