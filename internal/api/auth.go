package api

import (
	"context"
	nethttp "net/http"

	"github.com/jneless/bkp-drive/internal/models"
)

// Login exchanges credentials for a bearer token. The client's own token
// is not changed; the caller decides where the token is stored.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.doJSON(ctx, request{
		op:       "login",
		method:   nethttp.MethodPost,
		path:     "/auth/login",
		jsonBody: models.Credentials{Username: username, Password: password},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &APIError{Op: "login", StatusCode: nethttp.StatusOK, Message: "server returned no token"}
	}
	return &resp, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, password string) (*models.User, error) {
	var resp models.LoginResponse
	err := c.doJSON(ctx, request{
		op:       "register",
		method:   nethttp.MethodPost,
		path:     "/auth/register",
		jsonBody: models.Credentials{Username: username, Password: password},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Logout tells the server the session ended. Tokens are stateless, so a
// failure here does not keep the caller logged in.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, request{
		op:     "logout",
		method: nethttp.MethodPost,
		path:   "/auth/logout",
		auth:   true,
	}, nil)
}

// Profile returns the account the token belongs to.
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var resp models.ProfileResponse
	err := c.doJSON(ctx, request{
		op:     "profile",
		method: nethttp.MethodGet,
		path:   "/auth/profile",
		auth:   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return &models.User{}, nil
	}
	return resp.User, nil
}
