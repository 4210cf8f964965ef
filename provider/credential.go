package provider

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// DefaultRefreshLeeway is how close to expiry a cached token may get
// before a refresh is forced.
const DefaultRefreshLeeway = 30 * time.Second

// StaticCredential wraps a fixed bearer token. Useful for tests and for
// providers whose tokens outlive the process.
type StaticCredential string

// Token satisfies Credential.
func (c StaticCredential) Token(_ context.Context) (string, error) {
	return string(c), nil
}

// RefreshFunc mints a fresh bearer token for an identity.
type RefreshFunc func(ctx context.Context) (string, error)

// RefreshingCredential caches a bearer token and refreshes it through a
// RefreshFunc once the token is within the configured leeway of its JWT
// expiry. Tokens without a readable exp claim are refreshed on every call.
type RefreshingCredential struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	refresh RefreshFunc
	leeway  time.Duration
	now     func() time.Time
}

// RefreshingCredentialOption customizes a RefreshingCredential.
type RefreshingCredentialOption func(*RefreshingCredential)

// WithRefreshLeeway overrides the near-expiry window.
func WithRefreshLeeway(leeway time.Duration) RefreshingCredentialOption {
	return func(c *RefreshingCredential) {
		if leeway > 0 {
			c.leeway = leeway
		}
	}
}

// WithCredentialClock injects a clock, used by tests.
func WithCredentialClock(now func() time.Time) RefreshingCredentialOption {
	return func(c *RefreshingCredential) {
		if now != nil {
			c.now = now
		}
	}
}

// NewRefreshingCredential builds a credential around refresh.
func NewRefreshingCredential(refresh RefreshFunc, opts ...RefreshingCredentialOption) *RefreshingCredential {
	cred := &RefreshingCredential{
		refresh: refresh,
		leeway:  DefaultRefreshLeeway,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cred)
		}
	}
	return cred
}

// Token returns the cached token, refreshing it when it is missing or
// within the leeway window of its expiry.
func (c *RefreshingCredential) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && !c.expires.IsZero() && c.now().Add(c.leeway).Before(c.expires) {
		return c.token, nil
	}

	if c.refresh == nil {
		return "", errors.New("no refresh function configured", errors.CategoryInternal)
	}

	token, err := c.refresh(ctx)
	if err != nil {
		return "", WrapError(ErrInvalidCredential, "", "refresh", err)
	}

	c.token = token
	c.expires, _ = TokenExpiry(token)
	return token, nil
}

// TokenExpiry peeks at a JWT's exp claim without verifying the signature.
// The second return is false when the token is not a JWT or carries no exp.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
