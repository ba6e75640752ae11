// Package auth issues and checks HMAC-signed session tokens. A token is
// carried either in the session cookie or as a bearer token.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-pos/httpx"
)

type ctxKey string

const (
	// CookieName is the session cookie.
	CookieName   = "session"
	userIDCtxKey = ctxKey("userID")
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 14 * 24 * time.Hour

var (
	ErrMalformed = errors.New("malformed session token")
	ErrSignature = errors.New("invalid session signature")
	ErrExpired   = errors.New("session expired")
)

// UserVerifier validates that a session's user still exists and is allowed.
type UserVerifier func(ctx context.Context, uid uint) bool

// Sessions signs and parses session tokens.
type Sessions struct {
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	verifier UserVerifier
	// Secure marks the cookie Secure; off in dev over plain http.
	Secure bool
}

// NewSessions creates a session manager. A zero ttl means DefaultTTL.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// SetUserVerifier configures the check run by RequireAuth on every request.
func (s *Sessions) SetUserVerifier(v UserVerifier) { s.verifier = v }

// SetClock replaces time.Now.
func (s *Sessions) SetClock(now func() time.Time) { s.now = now }

func (s *Sessions) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Token returns a signed token "<uid>.<expiry unix>.<sig>".
func (s *Sessions) Token(userID uint) (string, time.Time) {
	exp := s.now().Add(s.ttl)
	payload := strconv.FormatUint(uint64(userID), 10) + "." + strconv.FormatInt(exp.Unix(), 10)
	return payload + "." + s.sign(payload), exp
}

// Parse validates a token and returns its user id.
func (s *Sessions) Parse(token string) (uint, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return 0, ErrMalformed
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(s.sign(payload))) {
		return 0, ErrSignature
	}
	id64, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || id64 == 0 {
		return 0, ErrMalformed
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, ErrMalformed
	}
	if !s.now().Before(time.Unix(exp, 0)) {
		return 0, ErrExpired
	}
	return uint(id64), nil
}

// CreateSession sets the session cookie and returns the token so API
// clients can use it as a bearer token.
func (s *Sessions) CreateSession(w http.ResponseWriter, userID uint) string {
	token, exp := s.Token(userID)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
	return token
}

// ClearSession deletes the session cookie.
func (s *Sessions) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// tokenFromRequest prefers the Authorization header over the cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// ParseRequest returns the user id of a valid session on r.
func (s *Sessions) ParseRequest(r *http.Request) (uint, bool) {
	token := tokenFromRequest(r)
	if token == "" {
		return 0, false
	}
	uid, err := s.Parse(token)
	return uid, err == nil
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uint)
	return id, ok
}

// Middleware attaches the user id to the request context if a valid session
// is present. It never rejects.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := s.ParseRequest(r); ok {
			r = r.WithContext(WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 when no user is attached or the verifier rejects it.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if s.verifier != nil && !s.verifier(r.Context(), uid) {
			// session refers to a removed or disabled user
			s.ClearSession(w)
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
