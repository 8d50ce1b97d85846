package api

import (
	"context"
	"net/http"
)

// User is the authenticated account profile.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	AIModel  string `json:"ai_model,omitempty"`
}

// LoginRequest carries the credentials for Login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// Login authenticates and installs the returned bearer token on the client.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*User, error) {
	u, err := c.endpoint("auth", "login")
	if err != nil {
		return nil, err
	}
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, u, req, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.AccessToken)
	return &resp.User, nil
}

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	u, err := c.endpoint("auth", "me")
	if err != nil {
		return nil, err
	}
	var user User
	if err := c.do(ctx, http.MethodGet, u, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
