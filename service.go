package entitlement

import (
	"context"
	"net/http"

	"github.com/goliatone/go-entitlement/provider"
)

// Service wires the subsystem together and exposes the only surfaces the
// presentation layer may call: identity inspection, entitlement
// resolution, sign-in and sign-out. Everything behind it stays owned by
// the individual components.
type Service struct {
	config    Config
	session   *SessionManager
	sync      *Synchronizer
	completer *RedirectCompleter
	resolver  *Resolver
	client    *Client
	transport *Transport
	logger    Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the service and every component
// it builds.
func WithServiceLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New assembles the subsystem: session manager over kv, synchronizer on
// p, an authenticated backend client, the redirect completer, and the
// resolver.
func New(cfg Config, p provider.Adapter, kv KeyValueStore, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProviderRequired
	}

	s := &Service{
		config: cfg,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.session = NewSessionManager(kv, WithSessionLogger(s.logger))

	synchronizer, err := NewSynchronizer(p, nil, s.session, WithSynchronizerLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.sync = synchronizer

	s.transport = NewTransport(synchronizer, s.session, WithTransportLogger(s.logger))
	httpClient := s.transport.HTTPClient()
	if cfg.HTTPTimeout > 0 {
		httpClient.Timeout = cfg.HTTPTimeout
	}
	s.client = NewClient(cfg.BackendBaseURL, httpClient, WithClientLogger(s.logger))

	// The synchronizer needs the client, and the client's transport
	// needs the synchronizer's snapshot; close the loop here.
	synchronizer.api = s.client

	completer, err := NewRedirectCompleter(p, s.client, WithRedirectLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.completer = completer

	s.resolver = NewResolver(synchronizer, s.session, s.client, WithResolverLogger(s.logger))

	return s, nil
}

// Start runs the synchronizer and kicks off redirect completion. The
// two proceed concurrently by design: both funnel their effects through
// the synchronizer's transition rules and the idempotent registration
// contract.
func (s *Service) Start(ctx context.Context) error {
	if err := s.sync.Start(ctx); err != nil {
		return err
	}

	go func() {
		if _, err := s.completer.Complete(ctx); err != nil {
			// Reported, never fatal: the synchronizer's own fetching →
			// registering path still covers the identity.
			s.logger.Error("redirect completion: %v", err)
		}
	}()

	return nil
}

// Stop shuts the synchronizer down.
func (s *Service) Stop() {
	s.sync.Stop()
}

// CurrentIdentityKind reports the current identity modality.
func (s *Service) CurrentIdentityKind() IdentityKind {
	return s.sync.Current().Kind
}

// Current returns the full identity snapshot.
func (s *Service) Current() IdentitySnapshot {
	return s.sync.Current()
}

// CurrentEntitlement computes the gating decision for the metered
// capability.
func (s *Service) CurrentEntitlement(ctx context.Context) EntitlementDecision {
	return s.resolver.Resolve(ctx)
}

// BeginInteractiveSignIn runs the provider's interactive flow.
func (s *Service) BeginInteractiveSignIn(ctx context.Context, kind provider.Kind) error {
	return s.sync.SignInInteractive(ctx, kind)
}

// BeginRedirectSignIn starts the provider's redirect flow.
func (s *Service) BeginRedirectSignIn(ctx context.Context, kind provider.Kind) error {
	return s.sync.BeginRedirectSignIn(ctx, kind)
}

// SignOut clears the federated identity.
func (s *Service) SignOut(ctx context.Context) error {
	return s.sync.SignOut(ctx)
}

// CompleteRedirect resolves a pending redirect sign-in. Safe to call
// unconditionally; Start already triggers it in the background.
func (s *Service) CompleteRedirect(ctx context.Context) (RedirectOutcome, error) {
	return s.completer.Complete(ctx)
}

// MarkTrialUsed records consumption of the anonymous free trial, e.g.
// after a successful metered call.
func (s *Service) MarkTrialUsed(ctx context.Context) error {
	return s.session.MarkTrialUsed(ctx)
}

// Subscribe registers fn for identity snapshot changes.
func (s *Service) Subscribe(fn func(IdentitySnapshot)) (unsubscribe func()) {
	return s.sync.Subscribe(fn)
}

// HTTPClient returns a client whose requests carry the correct
// credential for the current identity. Use it for every call to the
// metered backend.
func (s *Service) HTTPClient() *http.Client {
	return s.transport.HTTPClient()
}

// Resolver exposes the entitlement resolver, e.g. for the featuregate
// adapter.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}
