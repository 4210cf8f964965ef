package entitlement_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-entitlement"
	"github.com/goliatone/go-entitlement/provider"
)

// fakeAdapter is a hand-driven provider.Adapter: tests emit identity
// events directly and script the flow results.
type fakeAdapter struct {
	mu       sync.Mutex
	observer provider.ObserveFunc
	current  *provider.Identity

	signInIdentity *provider.Identity
	signInErr      error

	beginRedirectErr error
	redirectIdentity *provider.Identity
	redirectErr      error
	redirectCalls    int

	signOutErr error
}

func (f *fakeAdapter) Observe(fn provider.ObserveFunc) func() {
	f.mu.Lock()
	f.observer = fn
	current := f.current
	f.mu.Unlock()

	fn(current)

	return func() {
		f.mu.Lock()
		f.observer = nil
		f.mu.Unlock()
	}
}

func (f *fakeAdapter) emit(identity *provider.Identity) {
	f.mu.Lock()
	f.current = identity
	fn := f.observer
	f.mu.Unlock()

	if fn != nil {
		fn(identity)
	}
}

func (f *fakeAdapter) SignInInteractive(_ context.Context, _ provider.Kind) (*provider.Identity, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	f.emit(f.signInIdentity)
	return f.signInIdentity, nil
}

func (f *fakeAdapter) BeginRedirect(_ context.Context, _ provider.Kind) error {
	return f.beginRedirectErr
}

func (f *fakeAdapter) RedirectResult(_ context.Context) (*provider.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.redirectCalls++
	if f.redirectErr != nil {
		return nil, f.redirectErr
	}
	identity := f.redirectIdentity
	f.redirectIdentity = nil
	return identity, nil
}

func (f *fakeAdapter) SignOut(_ context.Context) error {
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.emit(nil)
	return nil
}

// stubAPI scripts the backend client used by the synchronizer, redirect
// completer and resolver.
type stubAPI struct {
	mu            sync.Mutex
	registerCalls int
	profileCalls  int
	usageCalls    int

	registerFn func() error
	profileFn  func(call int) (*entitlement.BackendProfile, error)
	usageFn    func() (*entitlement.UsageReport, error)
}

func (s *stubAPI) Register(_ context.Context, _ ...entitlement.CallOption) error {
	s.mu.Lock()
	s.registerCalls++
	fn := s.registerFn
	s.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn()
}

func (s *stubAPI) Profile(_ context.Context, _ ...entitlement.CallOption) (*entitlement.BackendProfile, error) {
	s.mu.Lock()
	s.profileCalls++
	call := s.profileCalls
	fn := s.profileFn
	s.mu.Unlock()

	if fn == nil {
		return &entitlement.BackendProfile{}, nil
	}
	return fn(call)
}

func (s *stubAPI) CheckUsage(_ context.Context, _ ...entitlement.CallOption) (*entitlement.UsageReport, error) {
	s.mu.Lock()
	s.usageCalls++
	fn := s.usageFn
	s.mu.Unlock()

	if fn == nil {
		return &entitlement.UsageReport{CanUse: true}, nil
	}
	return fn()
}

func (s *stubAPI) registered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerCalls
}

// staticState pins the identity snapshot seen by a component under test.
type staticState struct {
	snap entitlement.IdentitySnapshot
}

func (s staticState) Current() entitlement.IdentitySnapshot {
	return s.snap
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, fmt.Errorf("store offline")
}

func (failingStore) Set(_ context.Context, _, _ string) error {
	return fmt.Errorf("store offline")
}

// failingCredential errors on every token request.
type failingCredential struct{}

func (failingCredential) Token(_ context.Context) (string, error) {
	return "", fmt.Errorf("token refresh offline")
}

func testIdentity(id string) *provider.Identity {
	return &provider.Identity{
		ProviderUserID: id,
		Email:          id + "@example.com",
		Provider:       "google",
		Credential:     provider.StaticCredential("token-" + id),
	}
}
