package entitlement

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// Store keys for the persisted session record.
const (
	sessionIDKey = "session-id"
	trialUsedKey = "trial-used"
)

// SessionManager owns the durable anonymous session record: a stable
// session id plus a monotone "trial used" flag. It is the only writer of
// those keys.
type SessionManager struct {
	mu     sync.Mutex
	store  KeyValueStore
	now    func() time.Time
	random *rand.Rand
	logger Logger
}

// SessionManagerOption customizes a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithSessionClock injects a clock, used by tests.
func WithSessionClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSessionLogger overrides the logger.
func WithSessionLogger(logger Logger) SessionManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewSessionManager builds a SessionManager over the given store.
func NewSessionManager(store KeyValueStore, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		store:  store,
		now:    time.Now,
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// SessionID returns the device's session id, generating and persisting
// one on first call. Repeated calls return the identical id until the
// store is externally cleared.
//
// The id is a correlation key, not a credential: a random base-36 token
// with a base-36 time suffix is collision-resistant enough across
// devices without being cryptographically secure.
func (m *SessionManager) SessionID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok, err := m.store.Get(ctx, sessionIDKey)
	if err != nil {
		return "", errors.Wrap(err, ErrSessionStore.Category, ErrSessionStore.Message).
			WithTextCode(ErrSessionStore.TextCode)
	}
	if ok && existing != "" {
		return existing, nil
	}

	id := m.generate()
	if err := m.store.Set(ctx, sessionIDKey, id); err != nil {
		return "", errors.Wrap(err, ErrSessionStore.Category, ErrSessionStore.Message).
			WithTextCode(ErrSessionStore.TextCode)
	}

	m.logger.Debug("session id created: %s", id)
	return id, nil
}

// MarkTrialUsed records that the anonymous free trial has been consumed.
// The flag never resets through this subsystem.
func (m *SessionManager) MarkTrialUsed(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, trialUsedKey, "true"); err != nil {
		return errors.Wrap(err, ErrSessionStore.Category, ErrSessionStore.Message).
			WithTextCode(ErrSessionStore.TextCode)
	}
	return nil
}

// TrialUsed reports whether the anonymous free trial has been consumed.
func (m *SessionManager) TrialUsed(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok, err := m.store.Get(ctx, trialUsedKey)
	if err != nil {
		return false, errors.Wrap(err, ErrSessionStore.Category, ErrSessionStore.Message).
			WithTextCode(ErrSessionStore.TextCode)
	}
	return ok && value == "true", nil
}

func (m *SessionManager) generate() string {
	token := strconv.FormatUint(m.random.Uint64(), 36)
	suffix := strconv.FormatInt(m.now().UnixMilli(), 36)
	return token + suffix
}
