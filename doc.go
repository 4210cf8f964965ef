// Package entitlement reconciles three identity modalities (an anonymous
// per-device session, a federated provider identity, and a backend account
// carrying subscription state) into one consistent "current identity plus
// usage entitlement" view for a metered capability.
//
// State ownership:
//   - Synchronizer is the single writer of the current identity. Provider
//     events, profile fetches, and registration results all funnel through
//     its event loop; a generation stamp discards superseded sequences so
//     only the latest identity's profile can commit (last-event-wins).
//   - SessionManager owns the durable anonymous session record (session id
//     and trial flag) in a device-scoped store.
//
// Gating:
//   - Resolver computes an EntitlementDecision on demand from the current
//     snapshot plus a live backend usage check. Any unresolved, in-flight,
//     or failed state denies access (fail-closed); decisions are never
//     cached.
//
// Transport:
//   - Transport is an http.RoundTripper that attaches either the federated
//     bearer token or the anonymous session header to every outgoing
//     request, bearer taking precedence. Credential failures downgrade the
//     request to unauthenticated instead of failing it.
//
// Redirect continuation:
//   - RedirectCompleter resolves a pending redirect sign-in exactly once
//     per process start and triggers backend registration. Registration is
//     idempotent: a duplicate-account conflict is a success path, which
//     lets the completer and the synchronizer race safely.
package entitlement
