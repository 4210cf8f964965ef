package entitlement

import (
	"context"
	"sync"

	"github.com/goliatone/go-entitlement/provider"
	"github.com/goliatone/go-errors"
)

// Synchronizer is the single writer of the current identity. It merges
// provider identity events with backend profile fetch and registration
// into one consistent snapshot.
//
// All state transitions execute on a single event-loop goroutine; the
// provider's observe callback, sign-out confirmations, and profile
// sequence results are posted to that loop as messages. Every provider
// event bumps a generation counter, and a profile sequence may only
// commit while its generation is still the latest, which implements
// last-event-wins without locking the transition path.
type Synchronizer struct {
	provider provider.Adapter
	api      ProfileAPI
	session  *SessionManager
	logger   Logger

	events chan func()
	done   chan struct{}
	loopWG sync.WaitGroup

	// gen is touched only from the event loop.
	gen uint64

	mu          sync.RWMutex
	snap        IdentitySnapshot
	subscribers map[int]func(IdentitySnapshot)
	nextSubID   int

	startMu     sync.Mutex
	started     bool
	unsubscribe func()
}

// SynchronizerOption customizes a Synchronizer.
type SynchronizerOption func(*Synchronizer)

// WithSynchronizerLogger overrides the logger.
func WithSynchronizerLogger(logger Logger) SynchronizerOption {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSynchronizer builds a Synchronizer. The session manager supplies
// the session id for anonymous snapshots.
func NewSynchronizer(p provider.Adapter, api ProfileAPI, session *SessionManager, opts ...SynchronizerOption) (*Synchronizer, error) {
	if p == nil {
		return nil, ErrProviderRequired
	}

	s := &Synchronizer{
		provider:    p,
		api:         api,
		session:     session,
		logger:      defLogger{},
		events:      make(chan func(), 16),
		done:        make(chan struct{}),
		snap:        IdentitySnapshot{Kind: IdentityUnresolved},
		subscribers: map[int]func(IdentitySnapshot){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start subscribes to the provider and runs the event loop until Stop.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.loopWG.Add(1)
	go s.loop()

	s.unsubscribe = s.provider.Observe(func(identity *provider.Identity) {
		s.post(func() {
			s.handleProviderIdentity(ctx, identity)
		})
	})

	return nil
}

// Stop unsubscribes from the provider and shuts the event loop down.
// Pending in-flight profile sequences are discarded.
func (s *Synchronizer) Stop() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if !s.started {
		return
	}
	s.started = false

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	close(s.done)
	s.loopWG.Wait()
}

// Current returns a non-blocking snapshot of the current identity.
func (s *Synchronizer) Current() IdentitySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe registers fn to run after every committed transition, and
// invokes it once immediately with the current snapshot. Deliveries are
// sequential. The returned function unsubscribes.
func (s *Synchronizer) Subscribe(fn func(IdentitySnapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	current := s.snap
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// SignInInteractive runs the provider's interactive flow. The resulting
// identity arrives through the observe stream; a failure leaves the
// prior stable state untouched.
func (s *Synchronizer) SignInInteractive(ctx context.Context, kind provider.Kind) error {
	if _, err := s.provider.SignInInteractive(ctx, kind); err != nil {
		s.logger.Error("interactive sign-in failed: %v", err)
		return errors.Wrap(err, ErrSignInFailed.Category, ErrSignInFailed.Message).
			WithTextCode(ErrSignInFailed.TextCode)
	}
	return nil
}

// BeginRedirectSignIn starts the provider's redirect flow. It completes
// only in a later process lifetime, via RedirectCompleter.
func (s *Synchronizer) BeginRedirectSignIn(ctx context.Context, kind provider.Kind) error {
	if err := s.provider.BeginRedirect(ctx, kind); err != nil {
		return errors.Wrap(err, ErrSignInFailed.Category, ErrSignInFailed.Message).
			WithTextCode(ErrSignInFailed.TextCode)
	}
	return nil
}

// SignOut asks the provider to clear the current identity. The machine
// passes through Unresolved and settles on Anonymous once the provider
// confirms with a nil identity event.
func (s *Synchronizer) SignOut(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return errors.Wrap(err, ErrSignInFailed.Category, "sign-out failed").
			WithTextCode(ErrSignInFailed.TextCode)
	}

	s.post(func() {
		// A synchronously-confirming provider delivers its nil-identity
		// event during SignOut, so the loop may already have settled on
		// Anonymous by the time this runs. Only a still-federated state
		// needs the transient pass through Unresolved.
		if s.Current().Kind != IdentityFederated {
			return
		}
		s.gen++
		s.commit(IdentitySnapshot{Kind: IdentityUnresolved})
	})
	return nil
}

func (s *Synchronizer) loop() {
	defer s.loopWG.Done()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.events:
			fn()
		}
	}
}

func (s *Synchronizer) post(fn func()) {
	select {
	case <-s.done:
	case s.events <- fn:
	}
}

// handleProviderIdentity runs on the event loop.
func (s *Synchronizer) handleProviderIdentity(ctx context.Context, identity *provider.Identity) {
	s.gen++
	gen := s.gen

	if identity == nil {
		s.commit(s.anonymousSnapshot(ctx))
		return
	}

	s.commit(IdentitySnapshot{
		Kind:          IdentityFederated,
		Federated:     identity,
		ProfileStatus: ProfileFetching,
	})

	go s.runProfileSequence(ctx, gen, identity)
}

// runProfileSequence fetches (and if needed registers) the backend
// profile for identity. It runs off-loop; every commit goes back through
// the loop and is dropped when the generation has moved on.
func (s *Synchronizer) runProfileSequence(ctx context.Context, gen uint64, identity *provider.Identity) {
	cred := AsIdentity(identity.Credential)

	profile, err := s.api.Profile(ctx, cred)
	if err == nil {
		s.commitProfile(gen, identity, profile)
		return
	}

	if !errors.Is(err, ErrNotRegistered) {
		s.commitFailure(gen, identity, err)
		return
	}

	s.commitStatus(gen, identity, ProfileRegistering)

	// Register treats a duplicate-account conflict as success, so losing
	// the race against the redirect completer is harmless here.
	if err := s.api.Register(ctx, cred); err != nil {
		s.commitFailure(gen, identity, err)
		return
	}

	profile, err = s.api.Profile(ctx, cred)
	if err != nil {
		s.commitFailure(gen, identity, err)
		return
	}
	s.commitProfile(gen, identity, profile)
}

func (s *Synchronizer) commitProfile(gen uint64, identity *provider.Identity, profile *BackendProfile) {
	s.post(func() {
		if gen != s.gen {
			s.logger.Debug("discarding superseded profile for %s", identity.ProviderUserID)
			return
		}
		s.commit(IdentitySnapshot{
			Kind:          IdentityFederated,
			Federated:     identity,
			ProfileStatus: ProfileReady,
			Profile:       profile,
		})
	})
}

func (s *Synchronizer) commitStatus(gen uint64, identity *provider.Identity, status ProfileStatus) {
	s.post(func() {
		if gen != s.gen {
			return
		}
		s.commit(IdentitySnapshot{
			Kind:          IdentityFederated,
			Federated:     identity,
			ProfileStatus: status,
		})
	})
}

func (s *Synchronizer) commitFailure(gen uint64, identity *provider.Identity, err error) {
	s.post(func() {
		if gen != s.gen {
			return
		}
		s.logger.Error("profile sequence failed for %s: %v", identity.ProviderUserID, err)
		s.commit(IdentitySnapshot{
			Kind:          IdentityFederated,
			Federated:     identity,
			ProfileStatus: ProfileFailed,
		})
	})
}

// commit publishes a snapshot and notifies subscribers. Runs on the
// event loop, so notifications stay sequential.
func (s *Synchronizer) commit(snap IdentitySnapshot) {
	s.mu.Lock()
	s.snap = snap
	subscribers := make([]func(IdentitySnapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(snap)
	}
}

func (s *Synchronizer) anonymousSnapshot(ctx context.Context) IdentitySnapshot {
	snap := IdentitySnapshot{Kind: IdentityAnonymous}
	if s.session != nil {
		id, err := s.session.SessionID(ctx)
		if err != nil {
			s.logger.Error("failed to resolve session id: %v", err)
		} else {
			snap.SessionID = id
		}
	}
	return snap
}
