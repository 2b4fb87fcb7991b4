package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// RefreshPath is the token refresh endpoint, relative to the base URL.
const RefreshPath = "/auth/refresh-token"

// ErrNoRefreshToken is returned when a refresh is needed but the session
// holds no refresh token.
var ErrNoRefreshToken = errors.New("no refresh token available")

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshToken obtains a new access token. Concurrent callers share one
// in-flight refresh. stale is the access token the caller's request was
// sent with: if the session already holds a different token, another caller
// refreshed in the meantime and no call is made. A failed refresh clears the
// session before the group's callers are released.
func (c *Client) refreshToken(ctx context.Context, stale string) error {
	if c.creds == nil {
		return ErrNoRefreshToken
	}

	ch := c.refresh.DoChan("refresh", func() (interface{}, error) {
		tok := c.currentToken()
		if tok == nil || tok.AccessToken == "" {
			return nil, ErrNoRefreshToken
		}
		if tok.AccessToken != stale {
			return nil, nil
		}
		detached := context.WithoutCancel(ctx)
		err := ErrNoRefreshToken
		if tok.RefreshToken != "" {
			err = c.doRefresh(detached, tok.RefreshToken)
		}
		if err != nil {
			// Runs once per group, not once per waiting caller.
			c.expireSession(detached, stale, err)
		}
		return nil, err
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-ch:
		return r.Err
	}
}

func (c *Client) doRefresh(ctx context.Context, refreshToken string) error {
	cl := &call{
		req: Request{
			Method:      http.MethodPost,
			Path:        RefreshPath,
			SkipAuth:    true,
			SkipRefresh: true,
		},
	}

	base, err := c.BaseURL(ctx)
	if err != nil {
		return err
	}
	if cl.url, err = joinURL(base, RefreshPath, nil); err != nil {
		return err
	}
	if cl.payload, err = jsonBody(refreshRequest{RefreshToken: refreshToken}); err != nil {
		return err
	}
	cl.requestID = newRequestID()

	env, _, err := c.withRetry(ctx, cl)
	if err != nil {
		c.metrics.observeRefresh("failure")
		c.logger.Warn().Err(err).Msg("token refresh failed")
		return fmt.Errorf("refresh token: %w", err)
	}

	access := firstString(env.Data, "token", "accessToken")
	if access == "" {
		c.metrics.observeRefresh("failure")
		return fmt.Errorf("refresh token: response carried no token")
	}
	rotated := firstString(env.Data, "refreshToken")
	if rotated == "" {
		rotated = refreshToken
	}

	if err := c.creds.SetTokens(ctx, access, rotated); err != nil {
		c.metrics.observeRefresh("failure")
		return fmt.Errorf("store refreshed token: %w", err)
	}
	c.metrics.observeRefresh("success")
	c.logger.Info().Msg("access token refreshed")
	return nil
}

func firstString(data []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(data, p); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
