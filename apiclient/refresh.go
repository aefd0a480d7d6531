package apiclient

import (
	"context"

	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/pkg/errors"
)

const refreshFlightKey = "refresh"

// RefreshObserver is told about every refresh attempt made by the response
// interceptor. RefreshFailed means the stored tokens have been cleared and
// the session is gone.
type RefreshObserver interface {
	RefreshStarted()
	RefreshSucceeded()
	RefreshFailed(err error)
}

// Observe registers o and returns a function that unregisters it.
func (c *Client) Observe(o RefreshObserver) (dispose func()) {
	c.observerLock.Lock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = o
	c.observerLock.Unlock()

	return func() {
		c.observerLock.Lock()
		delete(c.observers, id)
		c.observerLock.Unlock()
	}
}

func (c *Client) notify(fn func(RefreshObserver)) {
	c.observerLock.RLock()
	observers := make([]RefreshObserver, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.observerLock.RUnlock()

	for _, o := range observers {
		fn(o)
	}
}

// refresh exchanges the stored refresh token for a new pair and returns the
// new access token. Callers rejected with the same access token share one
// in-flight refresh; a caller whose token has already been rotated away by an
// earlier refresh gets the current token without a new refresh call.
func (c *Client) refresh(ctx context.Context, staleAccess string) (string, error) {
	// The flight outlives any single caller's cancellation; the HTTP timeout bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan(refreshFlightKey+":"+staleAccess, func() (any, error) {
		current, err := c.tokens.AccessToken(flightCtx)
		if err == nil && current != "" && current != staleAccess {
			return current, nil
		}
		return c.rotate(flightCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// rotate performs the actual /auth/refresh round trip. A failure clears both
// tokens, unless the session was cleared or replaced while the call was in
// flight, in which case the result is dropped and storage is left alone.
func (c *Client) rotate(ctx context.Context) (string, error) {
	c.notify(func(o RefreshObserver) { o.RefreshStarted() })

	refreshToken, err := c.tokens.RefreshToken(ctx)
	if err != nil {
		return "", c.refreshFailed(ctx, errors.Wrap(err, "read refresh token"))
	}
	if refreshToken == "" {
		return "", c.refreshFailed(ctx, apperrors.ErrNoRefreshToken)
	}

	pair, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		cleared, clearErr := c.tokens.ClearTokensIf(ctx, refreshToken)
		switch {
		case clearErr != nil:
			return "", c.refreshFailed(ctx, err)
		case !cleared:
			return "", c.superseded(err)
		}
		return "", c.sessionEnded(err)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	stored, err := c.tokens.ReplaceTokens(ctx, refreshToken, pair.AccessToken, pair.RefreshToken)
	if err != nil {
		return "", c.refreshFailed(ctx, errors.Wrap(err, "store refreshed tokens"))
	}
	if !stored {
		return "", c.superseded(nil)
	}

	c.log.Debug().Msg("token pair rotated")
	c.notify(func(o RefreshObserver) { o.RefreshSucceeded() })
	return pair.AccessToken, nil
}

// refreshFailed clears the stored pair unconditionally and ends the session.
func (c *Client) refreshFailed(ctx context.Context, cause error) error {
	if clearErr := c.tokens.ClearTokens(ctx); clearErr != nil {
		c.log.Err(clearErr).Msg("failed to clear tokens after refresh failure")
	}
	return c.sessionEnded(cause)
}

func (c *Client) sessionEnded(cause error) error {
	err := apperrors.Wrapf(apperrors.Join(apperrors.ErrRefreshFailed, cause), "refresh")
	c.log.Warn().Err(cause).Msg("token refresh failed, session cleared")
	c.notify(func(o RefreshObserver) { o.RefreshFailed(err) })
	return err
}

// superseded reports a refresh whose session was logged out or replaced
// while it was in flight. Observers are not notified.
func (c *Client) superseded(cause error) error {
	c.log.Info().Err(cause).Msg("dropping refresh result for a session that has ended")
	return apperrors.Wrapf(apperrors.Join(apperrors.ErrRefreshFailed, apperrors.ErrSessionChanged, cause), "refresh")
}
