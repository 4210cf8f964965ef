package entitlement

import (
	"net/http"
)

// Default header names for outgoing request authentication.
const (
	AuthorizationHeader = "Authorization"
	SessionIDHeader     = "X-Session-ID"
	BearerScheme        = "Bearer"
)

// Transport is an http.RoundTripper that authenticates every outgoing
// request from the current identity snapshot: a federated identity
// contributes a bearer token, anybody else contributes the anonymous
// session header. The bearer always wins when both are available.
//
// Transport never fails a request over credentials: when the token
// cannot be obtained the request goes out unauthenticated and the
// backend's auth rejection travels back to the caller.
type Transport struct {
	base    http.RoundTripper
	state   CurrentState
	session *SessionManager
	logger  Logger
}

// TransportOption customizes a Transport.
type TransportOption func(*Transport)

// WithTransportBase sets the next RoundTripper in the chain (default
// http.DefaultTransport).
func WithTransportBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		if base != nil {
			t.base = base
		}
	}
}

// WithTransportLogger overrides the logger.
func WithTransportLogger(logger Logger) TransportOption {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTransport builds an authenticating transport reading identity from
// state and session ids from session.
func NewTransport(state CurrentState, session *SessionManager, opts ...TransportOption) *Transport {
	t := &Transport{
		base:    http.DefaultTransport,
		state:   state,
		session: session,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// RoundTrip satisfies http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// An explicit Authorization header (e.g. a pinned per-call
	// credential) always passes through untouched.
	if req.Header.Get(AuthorizationHeader) != "" {
		return t.base.RoundTrip(req)
	}

	out := req.Clone(req.Context())

	snap := t.state.Current()
	if snap.Kind == IdentityFederated && snap.Federated != nil && snap.Federated.Credential != nil {
		token, err := snap.Federated.Credential.Token(req.Context())
		if err != nil {
			// Fail open on transport, closed on entitlement: the
			// request proceeds unauthenticated and the backend
			// rejects it.
			t.logger.Error("bearer token refresh failed: %v", err)
			return t.base.RoundTrip(out)
		}
		out.Header.Set(AuthorizationHeader, BearerScheme+" "+token)
		return t.base.RoundTrip(out)
	}

	if t.session != nil {
		id, err := t.session.SessionID(req.Context())
		if err != nil {
			t.logger.Error("session id unavailable: %v", err)
			return t.base.RoundTrip(out)
		}
		out.Header.Set(SessionIDHeader, id)
	}

	return t.base.RoundTrip(out)
}

// HTTPClient wraps the transport in an http.Client ready to hand to
// NewClient.
func (t *Transport) HTTPClient() *http.Client {
	return &http.Client{Transport: t}
}
