package api

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/tidwall/gjson"
)

// User is the profile returned by /auth/me.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	ClientID string `json:"client_id,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Login exchanges credentials for a bearer token (OAuth2 password form:
// the email travels as "username") and persists it in the session store.
// On failure nothing is persisted.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	body, err := c.PostForm(ctx, "/auth/login", form, "Login failed")
	if err != nil {
		return "", err
	}

	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", &Error{Detail: "Login response did not contain an access token"}
	}
	if err := c.sess.SetToken(token); err != nil {
		return "", &Error{Detail: "Failed to persist session token", Err: err}
	}
	return token, nil
}

// Logout clears the persisted token unconditionally. It never fails.
func (c *Client) Logout() {
	c.sess.Clear()
}

// CurrentUser fetches the profile for the stored token. An invalid or
// expired token surfaces as a normalized *Error (and, via the 401 side
// effect, clears the session).
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	body, err := c.Get(ctx, "/auth/me", nil, "Failed to fetch current user")
	if err != nil {
		return User{}, err
	}
	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return User{}, &Error{Detail: "Failed to decode current user response", Err: err}
	}
	return u, nil
}
