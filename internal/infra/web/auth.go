package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookie = "license_admin_session"
	sessionIssuer = "plugin-license-server"
)

// SessionManager issues and checks the admin session token. There is one
// operator role; the token exists so the password is presented only at login
// and the cookie can expire on its own.
type SessionManager struct {
	secret []byte
	secure bool // false only in dev, where there is no TLS
	ttl    time.Duration
}

func NewSessionManager(secret string, secure bool, ttl time.Duration) *SessionManager {
	return &SessionManager{secret: []byte(secret), secure: secure, ttl: ttl}
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Mint signs a fresh session token and sets it as an HttpOnly cookie.
func (m *SessionManager) Mint(w http.ResponseWriter) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", err
	}
	m.setCookie(w, signed, int(m.ttl.Seconds()))
	return signed, nil
}

// Clear expires the session cookie. The token itself stays valid until its
// expiry; the TTL is kept short for that reason.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	m.setCookie(w, "", -1)
}

func (m *SessionManager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Verify accepts the token from either a bearer header (API clients) or the
// session cookie (browser).
func (m *SessionManager) Verify(r *http.Request) error {
	if hdr := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return m.check(strings.TrimSpace(hdr[len("bearer "):]))
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return m.check(c.Value)
	}
	return errors.New("no session token")
}

func (m *SessionManager) check(tok string) error {
	parsed, err := jwt.ParseWithClaims(tok, &sessionClaims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(sessionIssuer))
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid session token")
	}
	return nil
}
