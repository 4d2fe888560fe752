// ABOUTME: HTTP request function for the assistant service's JSON API
// ABOUTME: Attaches a bearer token read fresh from the credential store on every call

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/parlor/internal/credentials"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// CredentialReader is the part of the credential store the client needs.
type CredentialReader interface {
	Load(ctx context.Context) (credentials.Credentials, error)
}

// Client issues requests against the assistant service.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialReader
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the service at baseURL (e.g. http://host:8000/api).
func New(baseURL string, creds CredentialReader, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		creds:   creds,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "gateway")
	return c
}

// Do sends one request. body, when non-nil, is encoded as JSON; out, when
// non-nil, receives the decoded response. authenticated requests carry the
// stored bearer token if one exists at the moment of the call.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, authenticated bool) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: ErrValidation, Op: op, Err: fmt.Errorf("encoding body: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: ErrValidation, Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authenticated {
		creds, err := c.creds.Load(ctx)
		if err != nil {
			return &Error{Kind: ErrAuthFailure, Op: op, Err: fmt.Errorf("reading credentials: %w", err)}
		}
		if creds.Token != "" {
			req.Header.Set("Authorization", "Bearer "+creds.Token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "request_id", requestID, "error", err)
		return &Error{Kind: ErrNetworkFailure, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Kind: ErrNetworkFailure, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	c.logger.Debug("request completed",
		"op", op,
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := ErrRemoteRejection
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = ErrAuthFailure
		}
		return &Error{Kind: kind, Op: op, Status: resp.StatusCode, Detail: extractDetail(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: ErrMalformedResponse, Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

// extractDetail pulls a human-readable message out of an error body.
// The service answers {"detail": "..."}; validation errors carry a list.
func extractDetail(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, key := range []string{"detail", "error", "message"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err == nil {
			return compact.String()
		}
	}
	return ""
}
