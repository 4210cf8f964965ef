package provider

import "context"

// Kind names a federated identity provider (e.g. "google", "github").
type Kind string

// Identity is a federated identity asserted by a third-party provider.
// It is distinct from the backend's own account record: holding an
// Identity only means the provider vouched for the user, not that the
// backend knows about them.
type Identity struct {
	ProviderUserID string
	Email          string
	Provider       Kind

	// Credential yields short-lived bearer tokens for the identity.
	// May be nil for identities restored from a non-token source.
	Credential Credential
}

// Credential produces the bearer token that proves a federated identity
// to the backend. Implementations refresh expired tokens internally;
// Token blocks at most for the duration of one refresh.
type Credential interface {
	Token(ctx context.Context) (string, error)
}

// ObserveFunc receives the current federated identity, or nil when no
// identity is signed in. Deliveries are strictly sequential: no two
// invocations of the same observer overlap.
type ObserveFunc func(identity *Identity)

// Adapter is the contract the entitlement core consumes from an identity
// provider. Implementations own the sign-in protocol (popup, redirect,
// device code); the core only reacts to the identities they produce.
type Adapter interface {
	// Observe registers fn, invokes it once immediately with the current
	// identity (or nil), and again on every change. The returned function
	// unsubscribes fn.
	Observe(fn ObserveFunc) (unsubscribe func())

	// SignInInteractive runs a blocking interactive flow and returns the
	// resulting identity, or a provider error.
	SignInInteractive(ctx context.Context, kind Kind) (*Identity, error)

	// BeginRedirect starts a flow that completes only after the process
	// restarts. It never yields an identity in the current lifetime.
	BeginRedirect(ctx context.Context, kind Kind) error

	// RedirectResult resolves the identity that completed a redirect flow
	// started in a previous lifetime. It returns (nil, nil) when no
	// redirect is pending and must be called once per process start.
	RedirectResult(ctx context.Context) (*Identity, error)

	// SignOut clears the current identity. Observers are notified with a
	// nil identity once the provider confirms.
	SignOut(ctx context.Context) error
}
