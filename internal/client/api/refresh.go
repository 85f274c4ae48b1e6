package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mkartavenko/taskhub/internal/client/creds"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshPayload struct {
	AccessToken string `json:"accessToken"`
}

// renew obtains a fresh access token, collapsing concurrent callers into a
// single refresh round-trip: every request that hits a 401 while a renewal
// is in flight waits for that renewal and shares its outcome. The fixed
// singleflight key is what makes the refresh call unique process-wide.
//
// prev is the credential pair the failed request was sent with; it lets a
// caller that arrives after a renewal already settled pick up that
// renewal's outcome instead of starting another round-trip.
//
// On success the new token is persisted (the refresh token is unchanged,
// the server does not rotate it) and returned. On failure both tokens are
// cleared and every waiter receives ErrAuthExpired.
func (c *Client) renew(ctx context.Context, prev creds.Pair) (string, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		return c.doRenew(ctx, prev)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) doRenew(ctx context.Context, prev creds.Pair) (string, error) {
	pair, err := c.store.Get(ctx)
	if err != nil {
		return "", ErrNoRefreshToken
	}

	// another request may have completed a renewal between our 401 and
	// now; its token is the current one, no second round-trip needed
	if pair.AccessToken != "" && pair.AccessToken != prev.AccessToken {
		return pair.AccessToken, nil
	}

	if pair.RefreshToken == "" {
		if prev.RefreshToken != "" {
			// the store held a refresh token when our request went out
			// and holds none now: a concurrent renewal failed terminally
			return "", fmt.Errorf("%w: session already torn down", ErrAuthExpired)
		}
		return "", ErrNoRefreshToken
	}

	status, body, err := c.send(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/auth/refresh",
		Body:   refreshRequest{RefreshToken: pair.RefreshToken},
	}, "")
	if err != nil || status < 200 || status >= 300 {
		if cerr := c.store.Clear(ctx); cerr != nil {
			c.log.Error(ctx, "failed to clear credentials after refresh failure", "error", cerr)
		}
		if err != nil {
			return "", fmt.Errorf("%w: refresh call failed: %w", ErrAuthExpired, err)
		}
		return "", fmt.Errorf("%w: refresh rejected with status %d", ErrAuthExpired, status)
	}

	var payload refreshPayload
	if derr := decodeResponse(status, body, &payload); derr != nil || payload.AccessToken == "" {
		if cerr := c.store.Clear(ctx); cerr != nil {
			c.log.Error(ctx, "failed to clear credentials after refresh failure", "error", cerr)
		}
		return "", fmt.Errorf("%w: malformed refresh response", ErrAuthExpired)
	}

	if err := c.store.SetAccessToken(ctx, payload.AccessToken); err != nil {
		return "", fmt.Errorf("persisting refreshed token: %w", err)
	}

	c.log.Info(ctx, "access token renewed")
	return payload.AccessToken, nil
}
