package client

import (
	"context"
	"net/http"
)

// Login checks the password against the server and, on success only,
// stores it as the bearer token. A wrong password returns (false, nil).
func (c *Client) Login(ctx context.Context, password string) (bool, error) {
	var out successBody
	err := c.doJSON(ctx, http.MethodPost, "/auth", struct {
		Password string `json:"password"`
	}{Password: password}, &out)
	if IsStatus(err, http.StatusUnauthorized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !out.Success {
		return false, nil
	}
	if c.tokens != nil {
		if err := c.tokens.SetToken(ctx, password); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Logout forgets the stored token.
func (c *Client) Logout(ctx context.Context) error {
	if c.tokens == nil {
		return nil
	}
	return c.tokens.ClearToken(ctx)
}

// LoggedIn reports whether a token is stored. It does not contact the server.
func (c *Client) LoggedIn(ctx context.Context) bool {
	if c.tokens == nil {
		return false
	}
	_, ok, err := c.tokens.Token(ctx)
	return err == nil && ok
}
