package domain

import "fmt"

// OAuth2UserInfo is a provider profile normalised into the fields the
// application cares about.
type OAuth2UserInfo struct {
	Provider      AuthProvider
	Subject       string // Stable provider-side user identifier
	Email         string
	EmailVerified bool
	Name          string
	PictureURL    string

	// Attributes is the decoded user-info document as returned by the provider.
	Attributes map[string]any
}

// Username returns the local username assigned to accounts created from this
// profile, e.g. "google_1234567890".
func (i *OAuth2UserInfo) Username() string {
	return fmt.Sprintf("%s_%s", i.Provider, i.Subject)
}
