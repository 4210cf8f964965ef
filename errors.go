package entitlement

import "github.com/goliatone/go-errors"

const (
	TextCodeNotRegistered    = "entitlement_not_registered"
	TextCodeProfileFetch     = "entitlement_profile_fetch_failed"
	TextCodeRegistration     = "entitlement_registration_failed"
	TextCodeUsageQuery       = "entitlement_usage_query_failed"
	TextCodeSessionStore     = "entitlement_session_store_failed"
	TextCodeBackendResponse  = "entitlement_backend_response_invalid"
	TextCodeSignInFailed     = "entitlement_sign_in_failed"
	TextCodeNotEntitled      = "entitlement_denied"
	TextCodeAlreadyStarted   = "entitlement_synchronizer_started"
	TextCodeProviderRequired = "entitlement_provider_required"
)

// ErrNotRegistered is returned by Client.Profile when the backend has no
// account for the presented identity. The synchronizer treats it as the
// trigger for registration, not as a failure.
var ErrNotRegistered = errors.New("identity not registered", errors.CategoryNotFound).
	WithTextCode(TextCodeNotRegistered).
	WithCode(errors.CodeNotFound)

// ErrProfileFetch is returned when the backend profile cannot be read.
var ErrProfileFetch = errors.New("failed to fetch backend profile", errors.CategoryOperation).
	WithTextCode(TextCodeProfileFetch).
	WithCode(errors.CodeInternal)

// ErrRegistration is returned when backend registration fails for a
// reason other than the account already existing.
var ErrRegistration = errors.New("backend registration failed", errors.CategoryOperation).
	WithTextCode(TextCodeRegistration).
	WithCode(errors.CodeInternal)

// ErrUsageQuery is returned when the usage-limit check cannot complete.
// Entitlement fails closed on this error.
var ErrUsageQuery = errors.New("usage check failed", errors.CategoryOperation).
	WithTextCode(TextCodeUsageQuery).
	WithCode(errors.CodeInternal)

// ErrSessionStore is returned when the device store cannot be read or
// written.
var ErrSessionStore = errors.New("session store unavailable", errors.CategoryInternal).
	WithTextCode(TextCodeSessionStore).
	WithCode(errors.CodeInternal)

// ErrBackendResponse is returned when the backend answers with a payload
// the client cannot interpret.
var ErrBackendResponse = errors.New("malformed backend response", errors.CategoryOperation).
	WithTextCode(TextCodeBackendResponse).
	WithCode(errors.CodeInternal)

// ErrSignInFailed is returned when an interactive sign-in does not
// produce an identity. The prior stable identity state is kept.
var ErrSignInFailed = errors.New("sign-in failed", errors.CategoryAuth).
	WithTextCode(TextCodeSignInFailed).
	WithCode(errors.CodeUnauthorized)

// ErrNotEntitled is the gate-facing denial used by the featuregate
// adapter when a decision denies the capability.
var ErrNotEntitled = errors.New("capability not entitled", errors.CategoryAuthz).
	WithTextCode(TextCodeNotEntitled).
	WithCode(errors.CodeForbidden)

// ErrAlreadyStarted is returned when Start is called on a running
// synchronizer.
var ErrAlreadyStarted = errors.New("synchronizer already started", errors.CategoryOperation).
	WithTextCode(TextCodeAlreadyStarted).
	WithCode(errors.CodeConflict)

// ErrProviderRequired is returned when a component is constructed
// without its identity provider.
var ErrProviderRequired = errors.New("identity provider is required", errors.CategoryValidation).
	WithTextCode(TextCodeProviderRequired).
	WithCode(errors.CodeBadRequest)
