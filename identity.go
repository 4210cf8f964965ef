package entitlement

import (
	"github.com/goliatone/go-entitlement/provider"
)

// IdentityKind discriminates the identity modalities.
type IdentityKind string

const (
	// IdentityUnresolved is the initial state, before the provider's
	// first delivery. Entitlement is denied while unresolved.
	IdentityUnresolved IdentityKind = "unresolved"
	// IdentityAnonymous is a device-scoped session with no federated
	// identity.
	IdentityAnonymous IdentityKind = "anonymous"
	// IdentityFederated is an identity asserted by a third-party
	// provider.
	IdentityFederated IdentityKind = "federated"
)

// ProfileStatus tracks the backend profile lifecycle for a federated
// identity.
type ProfileStatus string

const (
	ProfileFetching    ProfileStatus = "fetching"
	ProfileRegistering ProfileStatus = "registering"
	ProfileReady       ProfileStatus = "ready"
	ProfileFailed      ProfileStatus = "failed"
)

// IdentitySnapshot is a point-in-time view of the current identity.
// Values are copies; holding a snapshot never blocks the synchronizer.
type IdentitySnapshot struct {
	Kind IdentityKind

	// SessionID is set for anonymous snapshots.
	SessionID string

	// Federated and ProfileStatus are set for federated snapshots.
	// Profile is non-nil only once ProfileStatus is ProfileReady.
	Federated     *provider.Identity
	ProfileStatus ProfileStatus
	Profile       *BackendProfile
}

// Ready reports whether the snapshot is federated with a cached profile.
func (s IdentitySnapshot) Ready() bool {
	return s.Kind == IdentityFederated && s.ProfileStatus == ProfileReady && s.Profile != nil
}
