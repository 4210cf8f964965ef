package entitlement

import (
	"context"
)

// Reason explains an entitlement decision.
type Reason string

const (
	// ReasonOK: federated identity with an active subscription.
	ReasonOK Reason = "ok"
	// ReasonAnonymousOK: anonymous identity with the trial available.
	ReasonAnonymousOK Reason = "anonymous_ok"
	// ReasonFreeTrialUsed: anonymous identity that consumed the trial.
	ReasonFreeTrialUsed Reason = "free_trial_used"
	// ReasonSubscriptionRequired: registered identity without an active
	// subscription.
	ReasonSubscriptionRequired Reason = "subscription_required"
	// ReasonError: identity unresolved, profile not ready, or a query
	// failed. Always denies.
	ReasonError Reason = "error"
)

// EntitlementDecision is the gating verdict for the metered capability.
// It is recomputed on demand and never persisted.
type EntitlementDecision struct {
	CanUse       bool
	Reason       Reason
	IdentityKind IdentityKind
}

// Resolver computes entitlement decisions from the current identity
// snapshot, the local trial flag, and a live backend usage check. Every
// unresolved, in-flight, or failed state denies (fail-closed); a
// positive decision is never cached across calls.
type Resolver struct {
	state   CurrentState
	session *SessionManager
	api     ProfileAPI
	logger  Logger
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger overrides the logger.
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver builds a Resolver.
func NewResolver(state CurrentState, session *SessionManager, api ProfileAPI, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		state:   state,
		session: session,
		api:     api,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve computes the current entitlement decision.
func (r *Resolver) Resolve(ctx context.Context) EntitlementDecision {
	snap := r.state.Current()

	switch snap.Kind {
	case IdentityAnonymous:
		return r.resolveAnonymous(ctx)
	case IdentityFederated:
		return r.resolveFederated(ctx, snap)
	default:
		return EntitlementDecision{
			CanUse:       false,
			Reason:       ReasonError,
			IdentityKind: IdentityUnresolved,
		}
	}
}

func (r *Resolver) resolveAnonymous(ctx context.Context) EntitlementDecision {
	used, err := r.session.TrialUsed(ctx)
	if err != nil {
		r.logger.Error("trial flag unavailable: %v", err)
		return EntitlementDecision{Reason: ReasonError, IdentityKind: IdentityAnonymous}
	}
	if used {
		return EntitlementDecision{Reason: ReasonFreeTrialUsed, IdentityKind: IdentityAnonymous}
	}
	return EntitlementDecision{CanUse: true, Reason: ReasonAnonymousOK, IdentityKind: IdentityAnonymous}
}

func (r *Resolver) resolveFederated(ctx context.Context, snap IdentitySnapshot) EntitlementDecision {
	if !snap.Ready() {
		// Covers fetching, registering, and failed. The UI may show a
		// loading state for the in-flight ones; the resolver itself
		// fails closed either way.
		return EntitlementDecision{Reason: ReasonError, IdentityKind: IdentityFederated}
	}

	report, err := r.api.CheckUsage(ctx)
	if err != nil {
		r.logger.Error("usage check failed: %v", err)
		return EntitlementDecision{Reason: ReasonError, IdentityKind: IdentityFederated}
	}

	if snap.Profile.SubscriptionActive && report.CanUse {
		return EntitlementDecision{CanUse: true, Reason: ReasonOK, IdentityKind: IdentityFederated}
	}
	return EntitlementDecision{Reason: ReasonSubscriptionRequired, IdentityKind: IdentityFederated}
}
