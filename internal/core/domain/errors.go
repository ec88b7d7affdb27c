package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials means the backend rejected the email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRoleForbidden means the requested role exists but this account does
	// not hold it, or the backend refused it outright.
	ErrRoleForbidden = errors.New("role access forbidden")
	// ErrRateLimited means the backend throttled the login attempt.
	ErrRateLimited = errors.New("too many login attempts")
	// ErrUpstreamServer means the backend answered with a 5xx.
	ErrUpstreamServer = errors.New("authentication backend error")
	// ErrUpstreamUnreachable means no response reached us at all.
	ErrUpstreamUnreachable = errors.New("authentication backend unreachable")
	// ErrUnknownRole means a role string did not normalize to any RoleKey.
	ErrUnknownRole = errors.New("unknown role")
	// ErrMalformedResponse means an otherwise-OK backend response was missing
	// its token or user.
	ErrMalformedResponse = errors.New("malformed authentication response")
	// ErrNotLoggedIn means an operation targeted a role with no session.
	ErrNotLoggedIn = errors.New("no session for role")
)

// LoginError wraps one of the sentinel errors above with a human-readable
// message and, for rate limiting, a retry-after hint.
type LoginError struct {
	Kind       error
	Message    string
	RetryAfter time.Duration
}

func (e *LoginError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
}

func (e *LoginError) Unwrap() error {
	return e.Kind
}

// NewLoginError builds a LoginError for kind with a formatted message.
func NewLoginError(kind error, format string, args ...any) *LoginError {
	return &LoginError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
