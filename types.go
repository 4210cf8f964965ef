package entitlement

import (
	"context"
	"fmt"
)

// Logger is the minimal logging surface the package depends on.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// KeyValueStore is the device-scoped persistence consumed by the session
// manager. Implementations live in the store package.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// ProfileAPI is the backend surface the synchronizer, redirect completer,
// and resolver consume. Client implements it over HTTP.
type ProfileAPI interface {
	Register(ctx context.Context, opts ...CallOption) error
	Profile(ctx context.Context, opts ...CallOption) (*BackendProfile, error)
	CheckUsage(ctx context.Context, opts ...CallOption) (*UsageReport, error)
}

// CurrentState exposes a non-blocking snapshot of the current identity.
// Synchronizer implements it; the transport and resolver only read.
type CurrentState interface {
	Current() IdentitySnapshot
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ENTITLEMENT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ENTITLEMENT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ENTITLEMENT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
