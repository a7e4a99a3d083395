// Package oauth holds the OAuth2 client side of login: provider
// registrations, the pending authorization request store, and the
// user-info client.
package oauth

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"gopkg.in/yaml.v3"
)

const (
	// AuthorizationBase is where a login with a registration starts.
	AuthorizationBase = "/oauth2/authorization"

	// RedirectBase is the callback path prefix registered with providers.
	RedirectBase = "/login/oauth2/code"
)

// AttributeMapping names gjson paths into the user-info document.
type AttributeMapping struct {
	Subject       string `yaml:"subject"`
	Email         string `yaml:"email"`
	EmailVerified string `yaml:"email_verified"`
	Name          string `yaml:"name"`
	NameFallback  string `yaml:"name_fallback"`
	Picture       string `yaml:"picture"`
}

// ClientRegistration is one OAuth2 provider the application can log in with.
type ClientRegistration struct {
	RegistrationID   string           `yaml:"-"`
	ClientName       string           `yaml:"client_name"`
	ClientID         string           `yaml:"client_id"`
	ClientSecret     string           `yaml:"client_secret"`
	Scopes           []string         `yaml:"scopes"`
	AuthorizationURI string           `yaml:"authorization_uri"`
	TokenURI         string           `yaml:"token_uri"`
	UserInfoURI      string           `yaml:"user_info_uri"`
	AuthStyle        string           `yaml:"auth_style"` // "header", "params" or empty to auto-detect
	Attributes       AttributeMapping `yaml:"attributes"`
}

// Validate reports the first missing required field.
func (c *ClientRegistration) Validate() error {
	switch {
	case c.RegistrationID == "":
		return fmt.Errorf("registration id is required")
	case strings.ContainsAny(c.RegistrationID, "/?# "):
		return fmt.Errorf("registration %q: id must be a single path segment", c.RegistrationID)
	case c.ClientID == "":
		return fmt.Errorf("registration %q: client_id is required", c.RegistrationID)
	case c.AuthorizationURI == "":
		return fmt.Errorf("registration %q: authorization_uri is required", c.RegistrationID)
	case c.TokenURI == "":
		return fmt.Errorf("registration %q: token_uri is required", c.RegistrationID)
	case c.UserInfoURI == "":
		return fmt.Errorf("registration %q: user_info_uri is required", c.RegistrationID)
	case c.Attributes.Subject == "":
		return fmt.Errorf("registration %q: attributes.subject is required", c.RegistrationID)
	}
	switch c.AuthStyle {
	case "", "header", "params":
	default:
		return fmt.Errorf("registration %q: auth_style must be header or params", c.RegistrationID)
	}
	return nil
}

func (c *ClientRegistration) authStyle() oauth2.AuthStyle {
	switch c.AuthStyle {
	case "header":
		return oauth2.AuthStyleInHeader
	case "params":
		return oauth2.AuthStyleInParams
	}
	return oauth2.AuthStyleAutoDetect
}

// CommonProvider returns the built-in template for a well-known provider id.
func CommonProvider(id string) (ClientRegistration, bool) {
	switch id {
	case "google":
		return ClientRegistration{
			RegistrationID:   "google",
			ClientName:       "Google",
			Scopes:           []string{"openid", "profile", "email"},
			AuthorizationURI: google.Endpoint.AuthURL,
			TokenURI:         google.Endpoint.TokenURL,
			UserInfoURI:      "https://www.googleapis.com/oauth2/v3/userinfo",
			Attributes: AttributeMapping{
				Subject:       "sub",
				Email:         "email",
				EmailVerified: "email_verified",
				Name:          "name",
				Picture:       "picture",
			},
		}, true
	case "github":
		return ClientRegistration{
			RegistrationID:   "github",
			ClientName:       "GitHub",
			Scopes:           []string{"read:user", "user:email"},
			AuthorizationURI: github.Endpoint.AuthURL,
			TokenURI:         github.Endpoint.TokenURL,
			UserInfoURI:      "https://api.github.com/user",
			Attributes: AttributeMapping{
				Subject:      "id",
				Email:        "email",
				Name:         "name",
				NameFallback: "login",
				Picture:      "avatar_url",
			},
		}, true
	case "naver":
		return ClientRegistration{
			RegistrationID:   "naver",
			ClientName:       "Naver",
			Scopes:           []string{"name", "email", "profile_image"},
			AuthorizationURI: "https://nid.naver.com/oauth2.0/authorize",
			TokenURI:         "https://nid.naver.com/oauth2.0/token",
			UserInfoURI:      "https://openapi.naver.com/v1/nid/me",
			AuthStyle:        "params",
			Attributes: AttributeMapping{
				Subject: "response.id",
				Email:   "response.email",
				Name:    "response.name",
				Picture: "response.profile_image",
			},
		}, true
	case "kakao":
		return ClientRegistration{
			RegistrationID:   "kakao",
			ClientName:       "Kakao",
			Scopes:           []string{"profile_nickname", "profile_image", "account_email"},
			AuthorizationURI: "https://kauth.kakao.com/oauth/authorize",
			TokenURI:         "https://kauth.kakao.com/oauth/token",
			UserInfoURI:      "https://kapi.kakao.com/v2/user/me",
			AuthStyle:        "params",
			Attributes: AttributeMapping{
				Subject:       "id",
				Email:         "kakao_account.email",
				EmailVerified: "kakao_account.is_email_verified",
				Name:          "properties.nickname",
				Picture:       "properties.profile_image",
			},
		}, true
	}
	return ClientRegistration{}, false
}

// WithDefaults fills empty fields from the built-in template for the
// registration's id, if there is one.
func (c ClientRegistration) WithDefaults() ClientRegistration {
	base, ok := CommonProvider(c.RegistrationID)
	if !ok {
		return c
	}

	if c.ClientName == "" {
		c.ClientName = base.ClientName
	}
	if len(c.Scopes) == 0 {
		c.Scopes = base.Scopes
	}
	if c.AuthorizationURI == "" {
		c.AuthorizationURI = base.AuthorizationURI
	}
	if c.TokenURI == "" {
		c.TokenURI = base.TokenURI
	}
	if c.UserInfoURI == "" {
		c.UserInfoURI = base.UserInfoURI
	}
	if c.AuthStyle == "" {
		c.AuthStyle = base.AuthStyle
	}
	if c.Attributes == (AttributeMapping{}) {
		c.Attributes = base.Attributes
	}
	return c
}

// registrationsFile is the layout of OAUTH2_CLIENTS_FILE.
type registrationsFile struct {
	Registrations map[string]ClientRegistration `yaml:"registrations"`
}

// LoadRegistrations reads registrations from YAML:
//
//	registrations:
//	  google:
//	    client_id: ...
//	    client_secret: ...
//	  corp:
//	    client_name: Corp SSO
//	    authorization_uri: https://sso.example.com/authorize
//	    ...
//
// Well-known ids inherit unset fields from CommonProvider.
func LoadRegistrations(r io.Reader) ([]ClientRegistration, error) {
	var file registrationsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode registrations: %w", err)
	}

	ids := make([]string, 0, len(file.Registrations))
	for id := range file.Registrations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	regs := make([]ClientRegistration, 0, len(ids))
	for _, id := range ids {
		reg := file.Registrations[id]
		reg.RegistrationID = id
		reg = reg.WithDefaults()
		if err := reg.Validate(); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// Registry is the set of configured client registrations.
type Registry struct {
	baseURL string
	byID    map[string]ClientRegistration
	order   []string
}

// NewRegistry validates regs and builds a registry. Later registrations with
// the same id replace earlier ones. baseURL is the externally visible origin
// used to build redirect URIs.
func NewRegistry(baseURL string, regs ...ClientRegistration) (*Registry, error) {
	r := &Registry{
		baseURL: strings.TrimRight(baseURL, "/"),
		byID:    make(map[string]ClientRegistration, len(regs)),
	}

	for _, reg := range regs {
		reg = reg.WithDefaults()
		if err := reg.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.byID[reg.RegistrationID]; !exists {
			r.order = append(r.order, reg.RegistrationID)
		}
		r.byID[reg.RegistrationID] = reg
	}
	return r, nil
}

// Get returns the registration with id.
func (r *Registry) Get(id string) (ClientRegistration, bool) {
	reg, ok := r.byID[id]
	return reg, ok
}

// List returns registrations in the order they were added.
func (r *Registry) List() []ClientRegistration {
	out := make([]ClientRegistration, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns the registration ids in order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.order)
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	return len(r.order)
}

// RedirectURL returns the callback URL registered with the provider.
func (r *Registry) RedirectURL(id string) string {
	return r.baseURL + RedirectBase + "/" + id
}

// Config builds the oauth2.Config for registration id.
func (r *Registry) Config(id string) (*oauth2.Config, bool) {
	reg, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return &oauth2.Config{
		ClientID:     reg.ClientID,
		ClientSecret: reg.ClientSecret,
		Scopes:       reg.Scopes,
		RedirectURL:  r.RedirectURL(id),
		Endpoint: oauth2.Endpoint{
			AuthURL:   reg.AuthorizationURI,
			TokenURL:  reg.TokenURI,
			AuthStyle: reg.authStyle(),
		},
	}, true
}
