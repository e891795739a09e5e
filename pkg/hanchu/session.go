package hanchu

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// tokenRefreshMargin renews a token well before the cloud would reject it.
// Vendor tokens live for days, so a 24h margin keeps logins rare.
const tokenRefreshMargin = 24 * time.Hour

type session struct {
	token      string
	obtainedAt time.Time
	expiresAt  time.Time
}

// AuthSession owns the access token. Concurrent EnsureValid callers share a
// single login round-trip; at most one login is in flight process-wide.
type AuthSession struct {
	login func(ctx context.Context) (string, error)

	mu      sync.Mutex
	current *session
	group   singleflight.Group
}

func NewAuthSession(login func(ctx context.Context) (string, error)) *AuthSession {
	return &AuthSession{
		login: login,
	}
}

// EnsureValid returns a valid token, logging in if necessary. Login failures
// are returned as AuthError without internal retries. Retry policy belongs
// to the callers, which have different backoff needs.
func (s *AuthSession) EnsureValid(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.current != nil && s.current.valid(time.Now()) {
		token := s.current.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	token, err, _ := s.group.Do("login", func() (any, error) {
		// re-check under the lock, another caller may have just logged in
		s.mu.Lock()
		if s.current != nil && s.current.valid(time.Now()) {
			token := s.current.token
			s.mu.Unlock()
			return token, nil
		}
		s.mu.Unlock()

		token, err := s.login(ctx)
		if err != nil {
			return "", err
		}
		now := time.Now()
		sess := &session{token: token, obtainedAt: now}
		if exp, err := tokenExpiry(token); err == nil {
			sess.expiresAt = exp
		}
		s.mu.Lock()
		s.current = sess
		s.mu.Unlock()
		return token, nil
	})
	if err != nil {
		if _, ok := err.(*AuthError); ok {
			return "", err
		}
		if _, ok := err.(*NetworkError); ok {
			return "", err
		}
		return "", &AuthError{Err: err}
	}
	return token.(string), nil
}

// Invalidate drops the token if it is still the current one, forcing a fresh
// login on the next EnsureValid. Called after a 401-class response.
func (s *AuthSession) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.token == token {
		s.current = nil
	}
}

func (s *session) valid(now time.Time) bool {
	if s.token == "" {
		return false
	}
	if s.expiresAt.IsZero() {
		// no readable expiry, force a re-login
		return false
	}
	return now.Before(s.expiresAt.Add(-tokenRefreshMargin))
}
