package hearthside

import (
	"context"
	"errors"
	"fmt"

	"github.com/hearthside/client-go/internal/api"
)

// RegisterParams holds the fields of a new account.
type RegisterParams struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// Login signs in with email and password and stores the new session.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	resp, err := c.api.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, c.report(err)
	}
	return c.establish(ctx, resp)
}

// Register creates an account and signs in as it.
func (c *Client) Register(ctx context.Context, p RegisterParams) (*User, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	resp, err := c.api.Register(ctx, api.RegisterRequest{
		Username:    p.Username,
		Email:       p.Email,
		Password:    p.Password,
		DisplayName: p.DisplayName,
	})
	if err != nil {
		return nil, c.report(err)
	}
	return c.establish(ctx, resp)
}

// establish stores the session returned by login or registration. When the
// response carries no user it is fetched, so the session is never left with
// a token and no user.
func (c *Client) establish(ctx context.Context, resp *api.AuthResponse) (*User, error) {
	if err := c.session.Set(ctx, Session{
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
		CurrentUser:  resp.User,
	}); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	if resp.User != nil && resp.User.ID != "" {
		c.logger.Info().Str("user", resp.User.ID).Msg("logged in")
		u := *resp.User
		return &u, nil
	}

	user, err := c.api.Me(ctx)
	if err != nil {
		if clearErr := c.session.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			c.logger.Error().Err(clearErr).Msg("failed to clear half-established session")
		}
		return nil, c.report(err)
	}
	if err := c.session.SetUser(ctx, user); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	c.logger.Info().Str("user", user.ID).Msg("logged in")
	return user, nil
}

// Logout tells the server to end the session, then clears it locally. The
// server call is best effort: the local session is cleared even if it fails.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if c.session.Current().AccessToken != "" {
		if err := c.api.Logout(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	}
	if err := c.session.Clear(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	c.logger.Info().Msg("logged out")
	return nil
}

// Me fetches the signed-in user from the server and updates the session
// with it.
func (c *Client) Me(ctx context.Context) (*User, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if c.session.Current().AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	user, err := c.api.Me(ctx)
	if err != nil {
		return nil, c.report(err)
	}
	if c.session.Current().AccessToken != "" {
		if err := c.session.SetUser(ctx, user); err != nil {
			return nil, fmt.Errorf("store user: %w", err)
		}
	}
	return user, nil
}

// Validate checks the restored session. A consistent session is accepted as
// is. A token without a user is re-validated against the server: it is
// cleared when the server rejects it and kept when the server cannot be
// reached. A user without a token is cleared. Validate reports whether the
// session is authenticated afterwards.
func (c *Client) Validate(ctx context.Context) (bool, error) {
	if err := c.checkClosed(); err != nil {
		return false, err
	}
	cur := c.session.Current()
	switch {
	case cur.Authenticated():
		return true, nil
	case cur.AccessToken == "" && cur.CurrentUser == nil:
		return false, nil
	case cur.AccessToken == "":
		c.logger.Warn().Msg("clearing session with user but no token")
		return false, c.session.Clear(ctx)
	}

	c.logger.Debug().Msg("re-validating session without user")
	user, err := c.api.Me(ctx)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			if clearErr := c.session.Clear(context.WithoutCancel(ctx)); clearErr != nil {
				return false, fmt.Errorf("clear session: %w", clearErr)
			}
			return false, nil
		}
		return false, c.report(err)
	}
	if err := c.session.SetUser(ctx, user); err != nil {
		return false, fmt.Errorf("store user: %w", err)
	}
	return true, nil
}

// Session returns a snapshot of the current session.
func (c *Client) Session() Session {
	return c.session.Current()
}

// Authenticated reports whether the client holds both a token and a user.
func (c *Client) Authenticated() bool {
	return c.session.Authenticated()
}

// CurrentUser returns the signed-in user, or nil.
func (c *Client) CurrentUser() *User {
	return c.session.Current().CurrentUser
}
