package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/felixgeelhaar/chatsql/internal/domain"
)

// Login authenticates and stores the session cookie in the client's jar.
// Errors are *NetworkError, *MalformedResponseError or *StatusError.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	creds.Email = ""
	return c.authenticate(ctx, "/auth/login/", creds)
}

// Signup creates an account and signs it in
func (c *Client) Signup(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	return c.authenticate(ctx, "/auth/signup/", creds)
}

// authenticate posts credentials and reads the body before looking at the
// status, so a non-JSON error page is reported as malformed rather than as
// a status failure
func (c *Client) authenticate(ctx context.Context, path string, creds domain.Credentials) (*domain.AuthResult, error) {
	r, err := c.send(ctx, http.MethodPost, path, nil, creds)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := json.Unmarshal(r.body, &raw); err != nil {
		return nil, &MalformedResponseError{Code: r.code, Status: r.status}
	}

	if se := statusError(http.MethodPost, path, r); se != nil {
		return nil, se
	}

	var out domain.AuthResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &MalformedResponseError{Code: r.code, Status: r.status}
	}
	return &out, nil
}

// Logout ends the server session
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout/", nil, struct{}{}, nil, false)
}

// Me reports who the current session belongs to. An anonymous session is
// not an error; Authenticated is false.
func (c *Client) Me(ctx context.Context) (*domain.AuthResult, error) {
	var out domain.AuthResult
	if err := c.do(ctx, http.MethodGet, "/auth/me/", nil, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}
