// Package entitlementgate exposes the entitlement resolver as a
// go-featuregate FeatureGate, so callers can guard the metered
// capability with the same guard.Require idiom they use for every other
// feature flag.
package entitlementgate

import (
	"context"

	"github.com/goliatone/go-entitlement"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

// FeatureDetection is the gate key for the metered detection action.
const FeatureDetection = "detection.use"

// DecisionResolver is the slice of the resolver the gate consumes.
type DecisionResolver interface {
	Resolve(ctx context.Context) entitlement.EntitlementDecision
}

// Gate adapts a DecisionResolver into gate.FeatureGate.
type Gate struct {
	resolver DecisionResolver
}

// New builds a Gate over resolver.
func New(resolver DecisionResolver) *Gate {
	return &Gate{resolver: resolver}
}

// Enabled implements gate.FeatureGate. Keys other than FeatureDetection
// are not owned by this gate and resolve to enabled, so the adapter can
// sit in a gate chain without shadowing unrelated flags.
func (g *Gate) Enabled(ctx context.Context, key string, _ ...gate.ResolveOption) (bool, error) {
	if key != FeatureDetection {
		return true, nil
	}
	if g == nil || g.resolver == nil {
		return false, entitlement.ErrNotEntitled
	}

	decision := g.resolver.Resolve(ctx)
	if decision.Reason == entitlement.ReasonError {
		return false, errors.New("entitlement could not be resolved", errors.CategoryAuthz).
			WithTextCode(entitlement.TextCodeNotEntitled).
			WithCode(errors.CodeForbidden).
			WithMetadata(map[string]any{
				"identity_kind": string(decision.IdentityKind),
			})
	}
	return decision.CanUse, nil
}

// Require denies with ErrNotEntitled (carrying the decision reason as
// metadata) unless the capability is currently entitled.
func Require(ctx context.Context, g gate.FeatureGate) error {
	return guard.Require(ctx, g, FeatureDetection,
		guard.WithDisabledError(entitlement.ErrNotEntitled),
		guard.WithErrorMapper(normalizeGateError),
	)
}

func normalizeGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return err
	}

	return errors.Wrap(err, errors.CategoryAuthz, "entitlement gate check failed").
		WithCode(errors.CodeForbidden)
}

var _ gate.FeatureGate = (*Gate)(nil)
