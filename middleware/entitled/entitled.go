// Package entitled provides go-router middleware that gates routes on
// the current entitlement decision. Denied requests never reach the
// wrapped handler.
package entitled

import (
	"context"

	"github.com/goliatone/go-entitlement"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// DefaultContextKey is where the decision is stored in request locals.
const DefaultContextKey = "entitlement_decision"

// DecisionResolver computes the entitlement decision for a request.
type DecisionResolver interface {
	Resolve(ctx context.Context) entitlement.EntitlementDecision
}

type Config struct {
	// Filter skips the middleware when it returns true.
	Filter func(router.Context) bool

	// Resolver is required.
	Resolver DecisionResolver

	// ErrorHandler handles denials (default: 403 JSON payload).
	ErrorHandler router.ErrorHandler

	// ContextKey overrides where the decision is stored in locals.
	ContextKey string
}

// New returns middleware that resolves the entitlement decision per
// request, stores it in locals, and rejects the request unless the
// capability may be used.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			decision := cfg.Resolver.Resolve(ctx.Context())
			ctx.Locals(cfg.ContextKey, decision)

			if !decision.CanUse {
				return cfg.ErrorHandler(ctx, deniedError(decision))
			}

			return ctx.Next()
		}
	}
}

// Decision retrieves the decision stored by the middleware, if any.
func Decision(ctx router.Context, contextKey ...string) (entitlement.EntitlementDecision, bool) {
	key := DefaultContextKey
	if len(contextKey) > 0 && contextKey[0] != "" {
		key = contextKey[0]
	}
	decision, ok := ctx.Locals(key).(entitlement.EntitlementDecision)
	return decision, ok
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	return cfg
}

func deniedError(decision entitlement.EntitlementDecision) error {
	return errors.New(entitlement.ErrNotEntitled.Message, entitlement.ErrNotEntitled.Category).
		WithTextCode(entitlement.ErrNotEntitled.TextCode).
		WithCode(errors.CodeForbidden).
		WithMetadata(map[string]any{
			"reason":        string(decision.Reason),
			"identity_kind": string(decision.IdentityKind),
		})
}

func defaultErrorHandler(ctx router.Context, err error) error {
	payload := map[string]string{
		"error": err.Error(),
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		payload["error"] = richErr.Message
		payload["code"] = richErr.TextCode
		if reason, ok := richErr.Metadata["reason"].(string); ok {
			payload["reason"] = reason
		}
	}

	return ctx.JSON(router.StatusForbidden, payload)
}
