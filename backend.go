package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goliatone/go-entitlement/provider"
	"github.com/goliatone/go-errors"
)

// BackendProfile is the backend's account record for a federated
// identity. It exists only after registration has succeeded.
type BackendProfile struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	SubscriptionActive bool       `json:"subscription_active"`
	PlanID             string     `json:"plan_id,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	UsageCount         int        `json:"usage_count"`
	CreatedAt          time.Time  `json:"created_at"`
}

// UsageReport is the backend's verdict on whether the capability may be
// used right now.
type UsageReport struct {
	CanUse     bool   `json:"can_use"`
	Reason     string `json:"reason"`
	UserType   string `json:"user_type"`
	UsageCount int    `json:"usage_count"`
}

// Backend reason vocabulary for usage reports.
const (
	UsageReasonUnlimited            = "unlimited"
	UsageReasonSubscriptionRequired = "subscription_required"
	UsageReasonFreeTrialAvailable   = "free_trial_available"
	UsageReasonFreeTrialUsed        = "free_trial_used"
	UsageReasonFirstTimeUser        = "first_time_user"
)

// CallOption customizes a single backend call.
type CallOption func(*callOptions)

type callOptions struct {
	credential provider.Credential
}

// AsIdentity pins the call to a specific federated credential instead of
// whatever the ambient transport would attach. The redirect completer
// uses this: it must register the redirect identity before the
// synchronizer has committed it.
func AsIdentity(cred provider.Credential) CallOption {
	return func(o *callOptions) {
		o.credential = cred
	}
}

// Client consumes the backend HTTP API. Requests flow through whatever
// transport the supplied http.Client carries; pair it with Transport to
// get automatic credential attachment.
type Client struct {
	baseURL string
	http    *http.Client
	logger  Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithClientLogger overrides the logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a backend client for baseURL. A nil httpClient falls
// back to http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Register creates the backend account for the calling identity.
// A conflict ("already exists") is a success: registration is required
// to be idempotent so the synchronizer and the redirect completer can
// both attempt it for the same identity.
func (c *Client) Register(ctx context.Context, opts ...CallOption) error {
	resp, err := c.do(ctx, http.MethodPost, "/auth/register", opts...)
	if err != nil {
		return errors.Wrap(err, ErrRegistration.Category, ErrRegistration.Message).
			WithTextCode(ErrRegistration.TextCode)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		// Duplicate registration, recovered silently.
		c.logger.Debug("registration conflict treated as success")
		return nil
	default:
		return c.statusError(resp, ErrRegistration)
	}
}

// Profile fetches the backend account record. ErrNotRegistered signals
// the identity has no account yet.
func (c *Client) Profile(ctx context.Context, opts ...CallOption) (*BackendProfile, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/me", opts...)
	if err != nil {
		return nil, errors.Wrap(err, ErrProfileFetch.Category, ErrProfileFetch.Message).
			WithTextCode(ErrProfileFetch.TextCode)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotRegistered
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp, ErrProfileFetch)
	}

	var payload struct {
		User struct {
			ID        string    `json:"id"`
			Email     string    `json:"email"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"user"`
		Subscription struct {
			Active           bool       `json:"active"`
			PlanID           string     `json:"plan_id"`
			CurrentPeriodEnd *time.Time `json:"current_period_end"`
		} `json:"subscription"`
		UsageCount int `json:"usage_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, ErrBackendResponse.Category, ErrBackendResponse.Message).
			WithTextCode(ErrBackendResponse.TextCode)
	}

	return &BackendProfile{
		ID:                 payload.User.ID,
		Email:              payload.User.Email,
		SubscriptionActive: payload.Subscription.Active,
		PlanID:             payload.Subscription.PlanID,
		CurrentPeriodEnd:   payload.Subscription.CurrentPeriodEnd,
		UsageCount:         payload.UsageCount,
		CreatedAt:          payload.User.CreatedAt,
	}, nil
}

// CheckUsage asks the backend whether the capability may be used by the
// calling identity (federated or anonymous).
func (c *Client) CheckUsage(ctx context.Context, opts ...CallOption) (*UsageReport, error) {
	resp, err := c.do(ctx, http.MethodGet, "/usage/check", opts...)
	if err != nil {
		return nil, errors.Wrap(err, ErrUsageQuery.Category, ErrUsageQuery.Message).
			WithTextCode(ErrUsageQuery.TextCode)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp, ErrUsageQuery)
	}

	report := &UsageReport{}
	if err := json.NewDecoder(resp.Body).Decode(report); err != nil {
		return nil, errors.Wrap(err, ErrBackendResponse.Category, ErrBackendResponse.Message).
			WithTextCode(ErrBackendResponse.TextCode)
	}
	return report, nil
}

func (c *Client) do(ctx context.Context, method, path string, opts ...CallOption) (*http.Response, error) {
	options := &callOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	if options.credential != nil {
		token, err := options.credential.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.http.Do(req)
}

func (c *Client) statusError(resp *http.Response, sentinel *errors.Error) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return errors.Wrap(
		fmt.Errorf("backend returned %d: %s", resp.StatusCode, body),
		sentinel.Category,
		sentinel.Message,
	).WithTextCode(sentinel.TextCode).WithMetadata(map[string]any{
		"status": resp.StatusCode,
	})
}
