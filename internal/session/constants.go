// Package session provides the session cookie shared by the handler and
// middleware packages.
package session

import (
	"net/http"
	"time"
)

const (
	// CookieName is the name of the cookie that stores the session token.
	CookieName = "JSESSIONID"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"
)

// SetCookie writes the session cookie. maxAge should match the server-side
// session duration.
func SetCookie(w http.ResponseWriter, token string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     CookiePath,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ExpireCookie tells the browser to delete the named cookie.
func ExpireCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Token returns the session token carried by r, or "" if there is none.
func Token(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// FlashCookieName carries a one-shot notice for the next page, so redirects
// can target plain URLs such as /login.
const FlashCookieName = "NOTEBOOK_FLASH"

// Flash notices understood by the login page.
const (
	FlashLoggedOut = "logout"
	FlashExpired   = "expired"
)

// flashMaxAge bounds how long an unread notice survives.
const flashMaxAge = 60 * time.Second

// SetFlash stores a notice for the next request.
func SetFlash(w http.ResponseWriter, notice string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    notice,
		Path:     CookiePath,
		MaxAge:   int(flashMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash returns the pending notice, if any, and clears it.
func PopFlash(w http.ResponseWriter, r *http.Request, secure bool) string {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	ExpireCookie(w, FlashCookieName, secure)
	return cookie.Value
}
