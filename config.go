package entitlement

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Config holds the service-level options.
type Config struct {
	// BackendBaseURL is the root of the backend HTTP API.
	BackendBaseURL string

	// HTTPTimeout bounds every backend call made through the service's
	// client. Zero keeps the ambient client default.
	HTTPTimeout time.Duration
}

// Validate will validate the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BackendBaseURL, validation.Required, is.URL),
		validation.Field(&c.HTTPTimeout, validation.Min(time.Duration(0))),
	)
}
