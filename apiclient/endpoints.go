package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/cagkantasci/smartop/token"
	"github.com/cagkantasci/smartop/users"
	"github.com/pkg/errors"
)

// Backend routes, relative to the versioned API root.
const (
	RouteAuthLogin          = "/auth/login"
	RouteAuthRefresh        = "/auth/refresh"
	RouteAuthLogout         = "/auth/logout"
	RouteAuthMe             = "/auth/me"
	RouteNotificationDevice = "/notifications/device"
	RouteUserBiometric      = "/users/biometric"
	RouteMachines           = "/machines"
	RouteSubmissions        = "/checklists/submissions"
)

// Login exchanges credentials for a token pair and the user. It is sent
// without a bearer token and a 401 here is a credential error, not a reason
// to refresh.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	raw, err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      RouteAuthLogin,
		body:      loginRequest{Email: email, Password: password},
		anonymous: true,
	})
	if err != nil {
		return nil, err
	}

	var resp LoginResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, errors.New("login response missing tokens")
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new, rotated pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	raw, err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      RouteAuthRefresh,
		body:      refreshRequest{RefreshToken: refreshToken},
		anonymous: true,
	})
	if err != nil {
		return token.Pair{}, err
	}

	var pair token.Pair
	if err := decodeJSON(raw, &pair); err != nil {
		return token.Pair{}, err
	}
	if pair.AccessToken == "" {
		return token.Pair{}, errors.New("refresh response missing access token")
	}
	return pair, nil
}

// Logout revokes the refresh token on the server.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.Do(ctx, http.MethodPost, RouteAuthLogout, refreshRequest{RefreshToken: refreshToken}, nil)
}

// Me fetches the authenticated user. Both {"user": {...}} and a bare user
// object are accepted.
func (c *Client) Me(ctx context.Context) (*users.User, error) {
	raw, err := c.do(ctx, request{method: http.MethodGet, path: RouteAuthMe})
	if err != nil {
		return nil, err
	}

	var wrapped meResponse
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, errors.Wrap(err, "decode me response")
	}
	if wrapped.User != nil {
		return wrapped.User, nil
	}

	var bare users.User
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, errors.Wrap(err, "decode me response")
	}
	if bare.ID == "" {
		return nil, errors.New("me response missing user")
	}
	return &bare, nil
}

// RegisterDevice associates a push token with the account. Idempotent.
func (c *Client) RegisterDevice(ctx context.Context, pushToken, platform string) error {
	return c.Do(ctx, http.MethodPost, RouteNotificationDevice, deviceRequest{Token: pushToken, Platform: platform}, nil)
}

// UnregisterDevice removes the push token association.
func (c *Client) UnregisterDevice(ctx context.Context, pushToken string) error {
	return c.Do(ctx, http.MethodDelete, RouteNotificationDevice, deviceRequest{Token: pushToken}, nil)
}

// SetBiometric mirrors the local biometric enablement flag to the server.
func (c *Client) SetBiometric(ctx context.Context, enabled bool) error {
	return c.Do(ctx, http.MethodPost, RouteUserBiometric, biometricRequest{Enabled: enabled}, nil)
}

// ActiveMachines lists machines with status=active.
func (c *Client) ActiveMachines(ctx context.Context) ([]Machine, error) {
	raw, err := c.Get(ctx, RouteMachines, url.Values{"status": {"active"}})
	if err != nil {
		return nil, err
	}
	return DecodeList[Machine](raw, "machines")
}

// PendingSubmissions lists checklist submissions awaiting review.
func (c *Client) PendingSubmissions(ctx context.Context) ([]Submission, error) {
	raw, err := c.Get(ctx, RouteSubmissions, url.Values{"status": {SubmissionPending}})
	if err != nil {
		return nil, err
	}
	return DecodeList[Submission](raw, "submissions")
}
