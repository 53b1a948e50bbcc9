// ABOUTME: Cookie-backed session credential store shared by gate and handlers
// ABOUTME: Reads the session JWT from the cookie and re-issues it on refresh

package auth

import (
	"net/http"
	"time"
)

// SessionCookieName is the name of the session cookie
const SessionCookieName = "lantern_session"

// Cookies reads and writes the session credential cookie. The cookie value is
// a session JWT; refreshing re-mints the token so sliding expiry survives
// long-lived browser sessions.
type Cookies struct {
	verifier *JWTVerifier
	ttl      time.Duration
}

// NewCookies creates a cookie credential store backed by the given verifier.
func NewCookies(verifier *JWTVerifier, ttl time.Duration) *Cookies {
	return &Cookies{verifier: verifier, ttl: ttl}
}

// Read extracts and verifies the principal from the request's session cookie.
func (c *Cookies) Read(r *http.Request) (*Principal, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, err
	}
	return c.verifier.Verify(cookie.Value)
}

// Write mints a fresh session token for the principal and sets the cookie.
func (c *Cookies) Write(w http.ResponseWriter, r *http.Request, p *Principal) error {
	token, err := c.verifier.Generate(p, c.ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(c.ttl),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Refresh re-issues the session cookie with a renewed expiry. Used by the
// access gate so every authenticated request slides the session forward.
func (c *Cookies) Refresh(w http.ResponseWriter, r *http.Request, p *Principal) error {
	return c.Write(w, r, p)
}

// Clear expires the session cookie.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
}
