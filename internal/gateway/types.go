// ABOUTME: Wire types for the assistant service's JSON API
// ABOUTME: Tolerates numeric or string ids and zone-less server timestamps

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is an opaque server identifier. The service issues integer ids; they
// are kept as strings locally and sent back as JSON numbers when numeric.
type ID string

// MarshalJSON encodes numeric ids as numbers, empty ids as null.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a number, a string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// naiveLayouts are tried when a timestamp carries no zone; the server
// stores UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp decodes RFC 3339 or zone-less ISO 8601 timestamps.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON parses the timestamp string; null leaves the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON writes RFC 3339 with nanoseconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Ptr returns the time or nil when the timestamp is absent.
func (t *Timestamp) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// ParseTimestamp parses the formats the service emits.
func ParseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"user_email_id"`
	Password string `json:"user_password"`
}

// LoginResponse is returned by POST /login.
type LoginResponse struct {
	Message     string `json:"message,omitempty"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	UserID      ID     `json:"user_id"`
	UserName    string `json:"user_name,omitempty"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Name     string `json:"user_name"`
	Email    string `json:"user_email_id"`
	Password string `json:"user_password"`
}

// RegisterResponse confirms a created account.
type RegisterResponse struct {
	Message  string `json:"message"`
	UserID   ID     `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"user_email_id"`
}

// UserProfile is returned by GET /users/{id}.
type UserProfile struct {
	UserID   ID     `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"user_email_id"`
}

// SessionSummary is one entry of GET /users/{id}/sessions.
type SessionSummary struct {
	ID          ID         `json:"id"`
	Title       string     `json:"title"`
	CreatedAt   *Timestamp `json:"created_at,omitempty"`
	LastMessage string     `json:"last_message,omitempty"`
}

// HistoryMessage is one entry of GET /users/{id}/sessions/{sid}.
type HistoryMessage struct {
	ID        ID         `json:"id,omitempty"`
	Sender    string     `json:"sender"`
	Text      string     `json:"text"`
	URLs      []string   `json:"urls,omitempty"`
	CreatedAt *Timestamp `json:"created_at,omitempty"`
}

// ChatRequest is the body of POST /chat. An empty SessionID is sent as
// null and asks the server to start a new session.
type ChatRequest struct {
	Message      string `json:"message"`
	SessionID    ID     `json:"session_id"`
	UserID       ID     `json:"user_id"`
	Role         string `json:"role"`
	UseWebSearch bool   `json:"use_web_search"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Response  string     `json:"response"`
	SessionID ID         `json:"session_id"`
	CreatedAt *Timestamp `json:"created_at,omitempty"`
	URLs      []string   `json:"urls,omitempty"`
}
