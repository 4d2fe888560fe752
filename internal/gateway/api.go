// ABOUTME: Typed endpoint wrappers over Client.Do for every service operation
// ABOUTME: Login and register are the only unauthenticated calls

package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Login exchanges email and password for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	const op = "POST /login"
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, validationError(op, "email and password are required")
	}

	var resp LoginResponse
	err := c.Do(ctx, http.MethodPost, "/login", LoginRequest{Email: email, Password: password}, &resp, false)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.UserID == "" {
		return nil, &Error{Kind: ErrMalformedResponse, Op: op, Detail: "missing access_token or user_id"}
	}
	return &resp, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, name, email, password string) (*RegisterResponse, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return nil, validationError("POST /register", "name, email and password are required")
	}

	var resp RegisterResponse
	req := RegisterRequest{Name: name, Email: email, Password: password}
	if err := c.Do(ctx, http.MethodPost, "/register", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetUser fetches the profile of userID.
func (c *Client) GetUser(ctx context.Context, userID string) (*UserProfile, error) {
	var resp UserProfile
	if err := c.Do(ctx, http.MethodGet, userPath(userID), nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions returns the user's sessions in server order.
func (c *Client) ListSessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	var resp []SessionSummary
	if err := c.Do(ctx, http.MethodGet, userPath(userID)+"/sessions", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// LoadSession returns the full message history of one session.
func (c *Client) LoadSession(ctx context.Context, userID, sessionID string) ([]HistoryMessage, error) {
	var resp []HistoryMessage
	if err := c.Do(ctx, http.MethodGet, sessionPath(userID, sessionID), nil, &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// DeleteSession removes one session. Any 2xx counts as deleted; the
// confirmation body is not read.
func (c *Client) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return c.Do(ctx, http.MethodDelete, sessionPath(userID, sessionID), nil, nil, true)
}

// Chat sends one message and waits for the assistant's reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, validationError("POST /chat", "message is required")
	}

	var resp ChatResponse
	if err := c.Do(ctx, http.MethodPost, "/chat", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func userPath(userID string) string {
	return "/users/" + url.PathEscape(userID)
}

func sessionPath(userID, sessionID string) string {
	return userPath(userID) + "/sessions/" + url.PathEscape(sessionID)
}
