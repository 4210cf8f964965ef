package provider_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-entitlement/provider"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAccount = provider.DevAccount{
	ProviderUserID: "dev-user-1",
	Email:          "ada@example.com",
	Kind:           "google",
}

func newDevProvider(opts ...provider.DevProviderOption) *provider.DevProvider {
	opts = append([]provider.DevProviderOption{provider.WithDevAccount(testAccount)}, opts...)
	return provider.NewDevProvider([]byte("test-signing-key"), "test-issuer", opts...)
}

func TestDevProviderInteractiveSignIn(t *testing.T) {
	ctx := context.Background()
	dev := newDevProvider()

	identity, err := dev.SignInInteractive(ctx, "google")
	require.NoError(t, err)
	assert.Equal(t, "dev-user-1", identity.ProviderUserID)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.Equal(t, provider.Kind("google"), identity.Provider)

	token, err := identity.Credential.Token(ctx)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, "dev-user-1", claims["sub"])
	assert.Equal(t, "ada@example.com", claims["email"])
	assert.Equal(t, "test-issuer", claims["iss"])
}

func TestDevProviderUnknownKind(t *testing.T) {
	dev := newDevProvider()

	_, err := dev.SignInInteractive(context.Background(), "github")
	require.Error(t, err)

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, provider.TextCodeInvalidCredential, richErr.TextCode)
	assert.Equal(t, "github", richErr.Metadata["provider"])
}

func TestDevProviderCancelledContext(t *testing.T) {
	dev := newDevProvider()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dev.SignInInteractive(ctx, "google")
	require.Error(t, err)

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, provider.TextCodeCancelled, richErr.TextCode)
}

func TestDevProviderObserve(t *testing.T) {
	ctx := context.Background()
	dev := newDevProvider()

	var mu sync.Mutex
	var deliveries []*provider.Identity
	unsubscribe := dev.Observe(func(identity *provider.Identity) {
		mu.Lock()
		deliveries = append(deliveries, identity)
		mu.Unlock()
	})

	// Immediate delivery with no identity signed in.
	mu.Lock()
	require.Len(t, deliveries, 1)
	assert.Nil(t, deliveries[0])
	mu.Unlock()

	_, err := dev.SignInInteractive(ctx, "google")
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, deliveries, 2)
	require.NotNil(t, deliveries[1])
	assert.Equal(t, "dev-user-1", deliveries[1].ProviderUserID)
	mu.Unlock()

	require.NoError(t, dev.SignOut(ctx))

	mu.Lock()
	require.Len(t, deliveries, 3)
	assert.Nil(t, deliveries[2])
	mu.Unlock()

	unsubscribe()
	_, err = dev.SignInInteractive(ctx, "google")
	require.NoError(t, err)

	mu.Lock()
	assert.Len(t, deliveries, 3)
	mu.Unlock()
}

func TestDevProviderRedirectFlow(t *testing.T) {
	ctx := context.Background()
	dev := newDevProvider()

	// No redirect pending yet.
	identity, err := dev.RedirectResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, identity)

	require.NoError(t, dev.BeginRedirect(ctx, "google"))

	identity, err = dev.RedirectResult(ctx)
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "dev-user-1", identity.ProviderUserID)

	// The pending slot drains on first resolution.
	identity, err = dev.RedirectResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestDevProviderRedirectUnknownKind(t *testing.T) {
	dev := newDevProvider()

	err := dev.BeginRedirect(context.Background(), "github")
	require.Error(t, err)

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, provider.TextCodeInvalidCredential, richErr.TextCode)
}

func TestDevProviderTokenExpiry(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dev := newDevProvider(
		provider.WithDevClock(func() time.Time { return base }),
		provider.WithDevTokenTTL(10*time.Minute),
	)

	identity, err := dev.SignInInteractive(context.Background(), "google")
	require.NoError(t, err)

	token, err := identity.Credential.Token(context.Background())
	require.NoError(t, err)

	expiry, ok := provider.TokenExpiry(token)
	require.True(t, ok)
	assert.True(t, base.Add(10*time.Minute).Equal(expiry))
}
