package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/hearthside/client-go/internal/session"
)

// Auth endpoint paths, relative to the base URL.
const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	LogoutPath   = "/auth/logout"
	MePath       = "/auth/me"
)

// errNoToken is returned when an auth response carries no access token.
var errNoToken = errors.New("auth response carried no token")

// Login exchanges credentials for a session. A 401 here means bad
// credentials and never triggers a refresh.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, LoginPath, req)
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, RegisterPath, req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*AuthResponse, error) {
	var result AuthResponse
	_, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        body,
		SkipAuth:    true,
		SkipRefresh: true,
	}, &result)
	if err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, errNoToken
	}
	return &result, nil
}

// Logout tells the server to invalidate the current tokens.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        LogoutPath,
		SkipRefresh: true,
	}, nil)
	return err
}

// Me returns the user the current access token belongs to.
func (c *Client) Me(ctx context.Context) (*session.UserSummary, error) {
	var result meResponse
	if _, err := c.Do(ctx, Request{Method: http.MethodGet, Path: MePath}, &result); err != nil {
		return nil, err
	}
	if result.User == nil || result.User.ID == "" {
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: "no user for token"}
	}
	return result.User, nil
}
