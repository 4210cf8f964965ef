// Package controller exposes the entitlement subsystem's UI-facing
// surfaces over HTTP. These routes are the only thing the presentation
// layer talks to; all state stays behind the service.
package controller

import (
	"context"

	"github.com/goliatone/go-entitlement"
	"github.com/goliatone/go-entitlement/provider"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// Service is the slice of entitlement.Service the controller consumes.
type Service interface {
	Current() entitlement.IdentitySnapshot
	CurrentEntitlement(ctx context.Context) entitlement.EntitlementDecision
	BeginInteractiveSignIn(ctx context.Context, kind provider.Kind) error
	BeginRedirectSignIn(ctx context.Context, kind provider.Kind) error
	SignOut(ctx context.Context) error
	CompleteRedirect(ctx context.Context) (entitlement.RedirectOutcome, error)
}

// HTTPController handles identity and entitlement HTTP routes.
type HTTPController struct {
	service Service
	config  HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// ErrorHandler handles errors (optional).
	ErrorHandler func(ctx router.Context, err error) error
}

// NewHTTPController creates a new controller over service.
func NewHTTPController(service Service, cfg HTTPConfig) *HTTPController {
	return &HTTPController{
		service: service,
		config:  cfg,
	}
}

// RegisterRoutes registers the controller's routes.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/identity", c.Identity)
	group.Get("/entitlement", c.Entitlement)
	group.Get("/callback", c.Callback)
	group.Post("/signin/:provider", c.SignInInteractive)
	group.Post("/signin/:provider/redirect", c.BeginRedirect)
	group.Post("/signout", c.SignOut)
}

// Identity reports the current identity snapshot.
func (c *HTTPController) Identity(ctx router.Context) error {
	snap := c.service.Current()

	payload := map[string]any{
		"kind":       string(snap.Kind),
		"session_id": snap.SessionID,
	}
	if snap.Federated != nil {
		payload["provider_user_id"] = snap.Federated.ProviderUserID
		payload["email"] = snap.Federated.Email
		payload["profile_status"] = string(snap.ProfileStatus)
	}
	if snap.Profile != nil {
		payload["subscription_active"] = snap.Profile.SubscriptionActive
	}

	return ctx.JSON(router.StatusOK, payload)
}

// Entitlement reports the current gating decision.
func (c *HTTPController) Entitlement(ctx router.Context) error {
	decision := c.service.CurrentEntitlement(ctx.Context())
	return ctx.JSON(router.StatusOK, map[string]any{
		"can_use":       decision.CanUse,
		"reason":        string(decision.Reason),
		"identity_kind": string(decision.IdentityKind),
	})
}

// SignInInteractive runs the provider's interactive sign-in flow.
func (c *HTTPController) SignInInteractive(ctx router.Context) error {
	kind := provider.Kind(ctx.Param("provider"))

	if err := c.service.BeginInteractiveSignIn(ctx.Context(), kind); err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "signed_in",
	})
}

// BeginRedirect starts the provider's redirect sign-in flow.
func (c *HTTPController) BeginRedirect(ctx router.Context) error {
	kind := provider.Kind(ctx.Param("provider"))

	if err := c.service.BeginRedirectSignIn(ctx.Context(), kind); err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "redirect_started",
	})
}

// Callback completes a pending redirect sign-in.
func (c *HTTPController) Callback(ctx router.Context) error {
	outcome, err := c.service.CompleteRedirect(ctx.Context())
	if err != nil {
		return c.handleError(ctx, err)
	}

	payload := map[string]any{
		"completed": outcome.Completed,
	}
	if outcome.Identity != nil {
		payload["provider_user_id"] = outcome.Identity.ProviderUserID
	}
	return ctx.JSON(router.StatusOK, payload)
}

// SignOut clears the federated identity.
func (c *HTTPController) SignOut(ctx router.Context) error {
	if err := c.service.SignOut(ctx.Context()); err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "signed_out",
	})
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	status := router.StatusInternalServerError
	message := err.Error()
	textCode := ""

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		if richErr.Code > 0 {
			status = richErr.Code
		}
		textCode = richErr.TextCode
	}

	return ctx.JSON(status, map[string]string{
		"error": message,
		"code":  textCode,
	})
}
