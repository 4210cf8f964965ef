package provider

import "github.com/goliatone/go-errors"

const (
	TextCodeCancelled         = "provider_cancelled"
	TextCodeNetwork           = "provider_network"
	TextCodeInvalidCredential = "provider_invalid_credential"
	TextCodeAccountConflict   = "provider_account_exists_different_credential"
)

// ErrCancelled is returned when the user abandons an interactive flow.
var ErrCancelled = errors.New("sign-in cancelled", errors.CategoryAuth).
	WithTextCode(TextCodeCancelled).
	WithCode(errors.CodeBadRequest)

// ErrNetwork is returned when the provider cannot be reached.
var ErrNetwork = errors.New("provider unreachable", errors.CategoryAuth).
	WithTextCode(TextCodeNetwork).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidCredential is returned when the provider rejects a credential.
var ErrInvalidCredential = errors.New("invalid provider credential", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredential).
	WithCode(errors.CodeUnauthorized)

// ErrAccountConflict is returned when the asserted account already exists
// under a different credential at the provider.
var ErrAccountConflict = errors.New("account exists with different credential", errors.CategoryConflict).
	WithTextCode(TextCodeAccountConflict).
	WithCode(errors.CodeConflict)

// WrapError attaches provider and operation metadata to a sentinel.
func WrapError(sentinel *errors.Error, kind Kind, operation string, cause error) error {
	return errors.Wrap(cause, sentinel.Category, sentinel.Message).
		WithTextCode(sentinel.TextCode).
		WithMetadata(map[string]any{
			"provider":  string(kind),
			"operation": operation,
		})
}
