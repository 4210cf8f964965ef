package provider

import (
	"context"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// JWKSVerifier validates raw federated ID tokens against a provider's
// JWKS endpoint and maps them into Identity values. Deployments that
// receive provider credentials directly (instead of trusting an SDK)
// verify them here before handing identities to the synchronizer.
type JWKSVerifier struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience []string
	kind     Kind
}

// JWKSConfig configures a JWKSVerifier.
type JWKSConfig struct {
	// JWKSURL is the provider's key-set endpoint.
	JWKSURL string
	// Issuer, when set, is enforced against the iss claim.
	Issuer string
	// Audience, when set, is enforced against the aud claim.
	Audience []string
	// Kind stamps verified identities with a provider kind.
	Kind Kind
	// RefreshInterval for the cached key set (default 1h).
	RefreshInterval time.Duration
}

// NewJWKSVerifier fetches the key set and returns a verifier.
func NewJWKSVerifier(cfg JWKSConfig) (*JWKSVerifier, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("jwks url is required", errors.CategoryValidation)
	}

	refresh := cfg.RefreshInterval
	if refresh == 0 {
		refresh = time.Hour
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshInterval:  refresh,
		RefreshRateLimit: time.Minute,
		RefreshErrorHandler: func(err error) {
			// Keys refresh in the background; a failed refresh keeps
			// serving the cached set.
		},
	})
	if err != nil {
		return nil, WrapError(ErrNetwork, cfg.Kind, "jwks_fetch", err)
	}

	return &JWKSVerifier{
		jwks:     jwks,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		kind:     cfg.Kind,
	}, nil
}

// Verify parses and validates rawToken, returning the federated identity
// it asserts. The returned identity carries the raw token as a static
// credential.
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, WrapError(ErrNetwork, v.kind, "verify", err)
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if len(v.audience) > 0 {
		opts = append(opts, jwt.WithAudience(v.audience...))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, v.jwks.Keyfunc, opts...)
	if err != nil || !token.Valid {
		if err == nil {
			err = errors.New("token is not valid", errors.CategoryAuth)
		}
		return nil, WrapError(ErrInvalidCredential, v.kind, "verify", err)
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return nil, WrapError(ErrInvalidCredential, v.kind, "verify",
			errors.New("token has no subject", errors.CategoryAuth))
	}

	email, _ := claims["email"].(string)

	return &Identity{
		ProviderUserID: subject,
		Email:          email,
		Provider:       v.kind,
		Credential:     StaticCredential(rawToken),
	}, nil
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
