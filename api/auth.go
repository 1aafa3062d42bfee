package api

import (
	"context"
	"encoding/json"
)

// Identity is the authenticated user as reported by the backend.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the identity may use the admin menu operations.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == "admin"
}

// RegisterPayload is the signup form.
type RegisterPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// identityEnvelope tolerates both response shapes the backend uses:
// {"user": {...}} and a bare user object.
type identityEnvelope struct {
	User *Identity `json:"user"`
}

func decodeIdentity(raw json.RawMessage) *Identity {
	if len(raw) == 0 {
		return nil
	}
	var env identityEnvelope
	if json.Unmarshal(raw, &env) == nil && env.User != nil {
		return env.User
	}
	var direct Identity
	if json.Unmarshal(raw, &direct) == nil && direct.ID != "" {
		return &direct
	}
	return nil
}

// Me returns the identity bound to the current session cookie. A missing
// or expired session comes back as an *Error wrapping core.ErrUnauthorized.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/auth/me", &raw); err != nil {
		return nil, err
	}
	return decodeIdentity(raw), nil
}

// Login exchanges credentials for a session cookie. The returned identity
// may be nil when the backend omits the user from the login response; the
// session layer follows up with Me for the canonical identity either way.
func (c *Client) Login(ctx context.Context, email, password string) (*Identity, error) {
	body := map[string]string{"email": email, "password": password}
	var raw json.RawMessage
	if err := c.post(ctx, "/auth/login", body, &raw); err != nil {
		return nil, err
	}
	return decodeIdentity(raw), nil
}

// Register creates an account and establishes a session.
func (c *Client) Register(ctx context.Context, payload RegisterPayload) (*Identity, error) {
	var raw json.RawMessage
	if err := c.post(ctx, "/auth/register", payload, &raw); err != nil {
		return nil, err
	}
	return decodeIdentity(raw), nil
}

// Logout invalidates the session cookie server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/auth/logout", nil, nil)
}
