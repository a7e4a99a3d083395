// Package csrf provides CSRF protection using the double-submit cookie pattern.
//
// The double-submit cookie pattern works by:
// 1. Setting a random token in a cookie
// 2. Including the same token in forms as a hidden field (or a request header)
// 3. On state-changing requests, comparing the cookie value with the submitted value
//
// Protection is off by default for the notebook application; the security
// filter chain only installs a Protector when CSRF_ENABLED is true.
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// CookieName is the name of the CSRF token cookie.
	CookieName = "XSRF-TOKEN"

	// FormFieldName is the name of the CSRF token form field.
	FormFieldName = "_csrf"

	// HeaderName is checked before the form field, for script clients.
	HeaderName = "X-XSRF-TOKEN"

	// TokenLength is the number of random bytes for the token (32 bytes = 256 bits).
	TokenLength = 32
)

type contextKey struct{}

// GenerateToken generates a cryptographically secure random token.
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateToken compares the cookie token with the submitted token.
//
// Uses constant-time comparison to prevent timing attacks.
func ValidateToken(cookieToken, submitted string) bool {
	if cookieToken == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submitted)) == 1
}

// Token returns the CSRF token for the request, or "" when protection is off.
// Templates render the hidden form field only when this is non-empty.
func Token(ctx context.Context) string {
	t, _ := ctx.Value(contextKey{}).(string)
	return t
}

// Protector enforces the double-submit check on unsafe methods.
type Protector struct {
	isSecure bool
	logger   *slog.Logger
}

// NewProtector creates a Protector. isSecure sets the Secure cookie flag.
func NewProtector(isSecure bool, logger *slog.Logger) *Protector {
	return &Protector{
		isSecure: isSecure,
		logger:   logger,
	}
}

// Handler ensures every request carries a token in its context and rejects
// unsafe requests whose submitted token does not match the cookie.
func (p *Protector) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookieToken := ""
		if c, err := r.Cookie(CookieName); err == nil {
			cookieToken = c.Value
		}

		if !isSafeMethod(r.Method) {
			submitted := r.Header.Get(HeaderName)
			if submitted == "" {
				submitted = r.FormValue(FormFieldName)
			}
			if !ValidateToken(cookieToken, submitted) {
				p.logger.Warn("csrf token mismatch", "method", r.Method, "path", r.URL.Path)
				http.Error(w, "Invalid CSRF token", http.StatusForbidden)
				return
			}
		}

		if cookieToken == "" {
			token, err := GenerateToken()
			if err != nil {
				p.logger.Error("failed to generate csrf token", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			cookieToken = token
			p.setCookie(w, token)
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, cookieToken)))
	})
}

// setCookie writes the token cookie. It is readable by scripts so they can
// echo it in HeaderName.
func (p *Protector) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   p.isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
