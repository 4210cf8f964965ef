package controller

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-entitlement"
	"github.com/goliatone/go-entitlement/provider"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	snap     entitlement.IdentitySnapshot
	decision entitlement.EntitlementDecision
	outcome  entitlement.RedirectOutcome

	signInErr   error
	redirectErr error
	signOutErr  error
	completeErr error

	signInKind   provider.Kind
	redirectKind provider.Kind
	signedOut    bool
}

func (s *stubService) Current() entitlement.IdentitySnapshot {
	return s.snap
}

func (s *stubService) CurrentEntitlement(_ context.Context) entitlement.EntitlementDecision {
	return s.decision
}

func (s *stubService) BeginInteractiveSignIn(_ context.Context, kind provider.Kind) error {
	s.signInKind = kind
	return s.signInErr
}

func (s *stubService) BeginRedirectSignIn(_ context.Context, kind provider.Kind) error {
	s.redirectKind = kind
	return s.redirectErr
}

func (s *stubService) SignOut(_ context.Context) error {
	s.signedOut = true
	return s.signOutErr
}

func (s *stubService) CompleteRedirect(_ context.Context) (entitlement.RedirectOutcome, error) {
	return s.outcome, s.completeErr
}

func newMockContext() *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	return ctx
}

func TestIdentityAnonymous(t *testing.T) {
	service := &stubService{snap: entitlement.IdentitySnapshot{
		Kind:      entitlement.IdentityAnonymous,
		SessionID: "session-1",
	}}
	controller := NewHTTPController(service, HTTPConfig{})

	ctx := newMockContext()

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.Identity(ctx))
	require.Equal(t, "anonymous", payload["kind"])
	require.Equal(t, "session-1", payload["session_id"])
	require.NotContains(t, payload, "email")
}

func TestIdentityFederated(t *testing.T) {
	service := &stubService{snap: entitlement.IdentitySnapshot{
		Kind: entitlement.IdentityFederated,
		Federated: &provider.Identity{
			ProviderUserID: "user-1",
			Email:          "ada@example.com",
			Provider:       "google",
		},
		ProfileStatus: entitlement.ProfileReady,
		Profile:       &entitlement.BackendProfile{SubscriptionActive: true},
	}}
	controller := NewHTTPController(service, HTTPConfig{})

	ctx := newMockContext()

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.Identity(ctx))
	require.Equal(t, "federated", payload["kind"])
	require.Equal(t, "ada@example.com", payload["email"])
	require.Equal(t, "ready", payload["profile_status"])
	require.Equal(t, true, payload["subscription_active"])
}

func TestEntitlement(t *testing.T) {
	service := &stubService{decision: entitlement.EntitlementDecision{
		CanUse:       true,
		Reason:       entitlement.ReasonAnonymousOK,
		IdentityKind: entitlement.IdentityAnonymous,
	}}
	controller := NewHTTPController(service, HTTPConfig{})

	ctx := newMockContext()

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.Entitlement(ctx))
	require.Equal(t, true, payload["can_use"])
	require.Equal(t, "anonymous_ok", payload["reason"])
}

func TestSignInInteractive(t *testing.T) {
	service := &stubService{}
	controller := NewHTTPController(service, HTTPConfig{})

	ctx := newMockContext()
	ctx.ParamsM["provider"] = "google"
	ctx.On("JSON", router.StatusOK, mock.Anything).Return(nil)

	require.NoError(t, controller.SignInInteractive(ctx))
	require.Equal(t, provider.Kind("google"), service.signInKind)
}

func TestSignInInteractiveFailure(t *testing.T) {
	service := &stubService{signInErr: entitlement.ErrSignInFailed}
	controller := NewHTTPController(service, HTTPConfig{})

	ctx := newMockContext()
	ctx.ParamsM["provider"] = "google"

	var payload map[string]string
	ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]string)
	}).Return(nil)

	require.NoError(t, controller.SignInInteractive(ctx))
	require.Equal(t, entitlement.TextCodeSignInFailed, payload["code"])
}

func TestBeginRedirect(t *testing.T) {
	service := &stubService{}
	controller := NewHTTPController(service, HTTPConfig{})

	ctx := newMockContext()
	ctx.ParamsM["provider"] = "google"
	ctx.On("JSON", router.StatusOK, mock.Anything).Return(nil)

	require.NoError(t, controller.BeginRedirect(ctx))
	require.Equal(t, provider.Kind("google"), service.redirectKind)
}

func TestCallbackCompleted(t *testing.T) {
	service := &stubService{outcome: entitlement.RedirectOutcome{
		Completed: true,
		Identity:  &provider.Identity{ProviderUserID: "user-1"},
	}}
	controller := NewHTTPController(service, HTTPConfig{})

	ctx := newMockContext()

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.Callback(ctx))
	require.Equal(t, true, payload["completed"])
	require.Equal(t, "user-1", payload["provider_user_id"])
}

func TestCallbackNothingPending(t *testing.T) {
	service := &stubService{}
	controller := NewHTTPController(service, HTTPConfig{})

	ctx := newMockContext()

	var payload map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, controller.Callback(ctx))
	require.Equal(t, false, payload["completed"])
	require.NotContains(t, payload, "provider_user_id")
}

func TestSignOut(t *testing.T) {
	service := &stubService{}
	controller := NewHTTPController(service, HTTPConfig{})

	ctx := newMockContext()
	ctx.On("JSON", router.StatusOK, mock.Anything).Return(nil)

	require.NoError(t, controller.SignOut(ctx))
	require.True(t, service.signedOut)
}

func TestErrorHandlerOverride(t *testing.T) {
	var captured error
	service := &stubService{signOutErr: fmt.Errorf("provider offline")}
	controller := NewHTTPController(service, HTTPConfig{
		ErrorHandler: func(ctx router.Context, err error) error {
			captured = err
			return nil
		},
	})

	ctx := newMockContext()
	require.NoError(t, controller.SignOut(ctx))
	require.Error(t, captured)
}

func TestHandleErrorPlainError(t *testing.T) {
	service := &stubService{completeErr: fmt.Errorf("boom")}
	controller := NewHTTPController(service, HTTPConfig{})

	ctx := newMockContext()

	var payload map[string]string
	ctx.On("JSON", router.StatusInternalServerError, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]string)
	}).Return(nil)

	require.NoError(t, controller.Callback(ctx))
	require.Equal(t, "boom", payload["error"])
}
