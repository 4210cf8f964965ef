package entitlement

import (
	"context"
	"sync"

	"github.com/goliatone/go-entitlement/provider"
	"github.com/goliatone/go-errors"
)

// RedirectOutcome reports how a pending redirect sign-in resolved.
type RedirectOutcome struct {
	// Completed is true when a redirect flow finished on this start.
	Completed bool
	// Identity is the identity that completed the flow, when Completed.
	Identity *provider.Identity
}

// RedirectCompleter resolves a pending redirect-based sign-in exactly
// once per process start and triggers backend registration for the
// identity that completed it.
//
// It runs concurrently with the synchronizer's first provider delivery:
// both may attempt registration for the same identity, which is why
// registration is idempotent. Failures here are reported to the caller
// but never alter the synchronizer's state machine.
type RedirectCompleter struct {
	provider provider.Adapter
	api      ProfileAPI
	logger   Logger

	once    sync.Once
	outcome RedirectOutcome
	err     error
}

// RedirectCompleterOption customizes a RedirectCompleter.
type RedirectCompleterOption func(*RedirectCompleter)

// WithRedirectLogger overrides the logger.
func WithRedirectLogger(logger Logger) RedirectCompleterOption {
	return func(r *RedirectCompleter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedirectCompleter builds a RedirectCompleter.
func NewRedirectCompleter(p provider.Adapter, api ProfileAPI, opts ...RedirectCompleterOption) (*RedirectCompleter, error) {
	if p == nil {
		return nil, ErrProviderRequired
	}
	r := &RedirectCompleter{
		provider: p,
		api:      api,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Complete resolves the pending redirect, registering the completing
// identity with the backend. It is safe to call unconditionally on every
// start: with no pending redirect it reports Completed false. A second
// call returns the memoized outcome without touching the provider or
// the backend again.
func (r *RedirectCompleter) Complete(ctx context.Context) (RedirectOutcome, error) {
	r.once.Do(func() {
		r.outcome, r.err = r.complete(ctx)
	})
	return r.outcome, r.err
}

func (r *RedirectCompleter) complete(ctx context.Context) (RedirectOutcome, error) {
	identity, err := r.provider.RedirectResult(ctx)
	if err != nil {
		r.logger.Error("redirect resolution failed: %v", err)
		return RedirectOutcome{}, err
	}
	if identity == nil {
		return RedirectOutcome{}, nil
	}

	outcome := RedirectOutcome{Completed: true, Identity: identity}

	if r.api != nil {
		if err := r.api.Register(ctx, AsIdentity(identity.Credential)); err != nil {
			r.logger.Error("post-redirect registration failed for %s: %v", identity.ProviderUserID, err)
			return outcome, errors.Wrap(err, ErrRegistration.Category, ErrRegistration.Message).
				WithTextCode(ErrRegistration.TextCode)
		}
	}

	return outcome, nil
}
