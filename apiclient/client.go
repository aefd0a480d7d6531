// Package apiclient is the single outbound channel to the fleet backend.
//
// Every request passes through a request interceptor that attaches the stored
// access token as a bearer credential, and a response interceptor that, on a
// 401, refreshes the token pair once and re-issues the request. A request is
// never retried more than once; non-auth failures are never retried.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/cagkantasci/smartop/internal/config"
	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	contentTypeJSON = "application/json"
	maxResponseBody = 4 << 20
	headerRequestID = "X-Request-ID"
)

// TokenStore is the subset of token.Store the interceptors need.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetTokens(ctx context.Context, access, refresh string) error
	ReplaceTokens(ctx context.Context, expectedRefresh, access, refresh string) (bool, error)
	ClearTokens(ctx context.Context) error
	ClearTokensIf(ctx context.Context, expectedRefresh string) (bool, error)
}

// Client issues JSON requests against the versioned API root.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
	log     zerolog.Logger

	refreshGroup singleflight.Group

	observerLock sync.RWMutex
	observers    map[int]RefreshObserver
	nextObserver int
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Its Timeout is kept as given.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// New builds a client for cfg.GetBaseURL() with a fixed request timeout.
func New(cfg config.APIConfig, tokens TokenStore, options ...ClientOption) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("[apiclient.New] token store is required")
	}
	base := strings.TrimRight(cfg.GetBaseURL(), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, errors.Wrap(err, "[apiclient.New] invalid base URL")
	}

	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: cfg.GetRequestTimeout()},
		tokens:    tokens,
		log:       log.Logger.With().Str("component", "apiclient").Logger(),
		observers: make(map[int]RefreshObserver),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

type request struct {
	method    string
	path      string
	query     url.Values
	body      any
	anonymous bool // no bearer token, no refresh on 401
}

// Do sends an authenticated JSON request and decodes the response into out
// (which may be nil). On a 401 the token pair is refreshed once and the
// request re-issued with the new access token.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.do(ctx, request{method: method, path: path, body: body})
	if err != nil {
		return err
	}
	return decodeJSON(raw, out)
}

// Get is Do for GET requests with a query string; it returns the raw body so
// that list endpoints can be normalized with DecodeList.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query})
}

func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	if RequestIDFrom(ctx) == "" {
		ctx = withRequestID(ctx, uuid.NewString())
	}

	raw, sentToken, err := c.send(ctx, r)
	if err == nil || r.anonymous || attemptFrom(ctx) > 0 || !IsUnauthorized(err) {
		return raw, err
	}

	c.log.Debug().Str("request_id", RequestIDFrom(ctx)).Str("path", r.path).Msg("401 received, refreshing token")
	if _, refreshErr := c.refresh(ctx, sentToken); refreshErr != nil {
		// The original 401 is what the caller sees.
		return nil, err
	}

	raw, _, err = c.send(withAttempt(ctx, attemptFrom(ctx)+1), r)
	return raw, err
}

// send performs a single HTTP round trip. It returns the access token it
// attached (if any) so the refresh path can tell whether it is stale.
func (c *Client) send(ctx context.Context, r request) ([]byte, string, error) {
	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, "", errors.Wrapf(err, "%s %s marshal body", r.method, r.path)
		}
		body = bytes.NewReader(b)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, "", errors.Wrapf(err, "%s %s new request", r.method, r.path)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	req.Header.Set(headerRequestID, RequestIDFrom(ctx))

	sentToken, err := c.authorize(ctx, req, r.anonymous)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, sentToken, fmt.Errorf("%w: %s %s: %w", apperrors.ErrNetwork, r.method, r.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, sentToken, fmt.Errorf("%w: %s %s read body: %w", apperrors.ErrNetwork, r.method, r.path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, sentToken, newAPIError(r.method, r.path, resp.StatusCode, data)
	}
	return data, sentToken, nil
}

// authorize is the request interceptor: it attaches the current access token
// when one is stored. No token is not an error here; some endpoints are public.
func (c *Client) authorize(ctx context.Context, req *http.Request, anonymous bool) (string, error) {
	if anonymous {
		return "", nil
	}
	access, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return "", errors.Wrap(err, "read access token")
	}
	if access == "" {
		return "", nil
	}
	(&oauth2.Token{AccessToken: access, TokenType: "Bearer"}).SetAuthHeader(req)
	return access, nil
}

func decodeJSON(raw []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
