package provider

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// DevAccount seeds a DevProvider with a signable identity.
type DevAccount struct {
	ProviderUserID string
	Email          string
	Kind           Kind
}

// DevProvider is an in-process Adapter that mints HS256 ID tokens for
// preconfigured accounts. It backs local development and the package's
// own tests; it performs no real provider handshake.
type DevProvider struct {
	mu sync.Mutex
	// dispatchMu serializes observer deliveries across goroutines.
	dispatchMu sync.Mutex
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
	now        func() time.Time

	accounts  map[Kind]DevAccount
	current   *Identity
	pending   *DevAccount
	observers map[int]ObserveFunc
	nextID    int
}

// DevProviderOption customizes a DevProvider.
type DevProviderOption func(*DevProvider)

// WithDevAccount registers an account returned by interactive sign-in
// for its Kind.
func WithDevAccount(account DevAccount) DevProviderOption {
	return func(p *DevProvider) {
		p.accounts[account.Kind] = account
	}
}

// WithDevTokenTTL overrides the minted token lifetime.
func WithDevTokenTTL(ttl time.Duration) DevProviderOption {
	return func(p *DevProvider) {
		if ttl > 0 {
			p.tokenTTL = ttl
		}
	}
}

// WithDevClock injects a clock, used by tests.
func WithDevClock(now func() time.Time) DevProviderOption {
	return func(p *DevProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewDevProvider builds a DevProvider signing tokens with signingKey.
func NewDevProvider(signingKey []byte, issuer string, opts ...DevProviderOption) *DevProvider {
	p := &DevProvider{
		signingKey: signingKey,
		issuer:     issuer,
		tokenTTL:   time.Hour,
		now:        time.Now,
		accounts:   map[Kind]DevAccount{},
		observers:  map[int]ObserveFunc{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Observe satisfies Adapter. The observer fires immediately with the
// current identity under the provider lock, which keeps deliveries
// strictly sequential.
func (p *DevProvider) Observe(fn ObserveFunc) func() {
	p.dispatchMu.Lock()
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.observers[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)
	p.dispatchMu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
	}
}

// SignInInteractive satisfies Adapter.
func (p *DevProvider) SignInInteractive(ctx context.Context, kind Kind) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, WrapError(ErrCancelled, kind, "interactive", err)
	}

	p.mu.Lock()
	account, ok := p.accounts[kind]
	p.mu.Unlock()
	if !ok {
		return nil, WrapError(ErrInvalidCredential, kind, "interactive",
			errors.New("no account configured for provider", errors.CategoryNotFound))
	}

	identity := p.identityFor(account)
	p.setCurrent(identity)
	return identity, nil
}

// BeginRedirect satisfies Adapter. The dev provider simulates the page
// reload by parking the account until RedirectResult is called.
func (p *DevProvider) BeginRedirect(ctx context.Context, kind Kind) error {
	if err := ctx.Err(); err != nil {
		return WrapError(ErrCancelled, kind, "redirect", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[kind]
	if !ok {
		return WrapError(ErrInvalidCredential, kind, "redirect",
			errors.New("no account configured for provider", errors.CategoryNotFound))
	}
	p.pending = &account
	return nil
}

// RedirectResult satisfies Adapter. The pending slot drains on first
// call; later calls report no pending redirect.
func (p *DevProvider) RedirectResult(ctx context.Context) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, WrapError(ErrNetwork, "", "redirect_result", err)
	}

	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if pending == nil {
		return nil, nil
	}

	identity := p.identityFor(*pending)
	p.setCurrent(identity)
	return identity, nil
}

// SignOut satisfies Adapter.
func (p *DevProvider) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return WrapError(ErrNetwork, "", "sign_out", err)
	}
	p.setCurrent(nil)
	return nil
}

func (p *DevProvider) identityFor(account DevAccount) *Identity {
	return &Identity{
		ProviderUserID: account.ProviderUserID,
		Email:          account.Email,
		Provider:       account.Kind,
		Credential: NewRefreshingCredential(func(ctx context.Context) (string, error) {
			return p.mint(account)
		}, WithCredentialClock(p.now)),
	}
}

func (p *DevProvider) mint(account DevAccount) (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.issuer,
		Subject:   account.ProviderUserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, devClaims{
		RegisteredClaims: claims,
		Email:            account.Email,
	})
	signed, err := token.SignedString(p.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign dev token")
	}
	return signed, nil
}

func (p *DevProvider) setCurrent(identity *Identity) {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	p.mu.Lock()
	p.current = identity
	observers := make([]ObserveFunc, 0, len(p.observers))
	for _, fn := range p.observers {
		observers = append(observers, fn)
	}
	p.mu.Unlock()

	for _, fn := range observers {
		fn(identity)
	}
}

type devClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}
