// ABOUTME: End-to-end command tests against an httptest fake of the assistant service
// ABOUTME: Credentials persist in a temp SQLite file between command invocations

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parlor/internal/conversation"
	"github.com/2389/parlor/internal/credentials"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type chatCall struct {
	Message      string `json:"message"`
	SessionID    *int   `json:"session_id"`
	UserID       int    `json:"user_id"`
	Role         string `json:"role"`
	UseWebSearch bool   `json:"use_web_search"`
}

type storedMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type storedSession struct {
	ID       int
	Title    string
	Messages []storedMessage
}

// fakeService mimics the assistant service's JSON API for user 42.
type fakeService struct {
	mu       sync.Mutex
	sessions []*storedSession
	chats    []chatCall
	nextID   int
	revoked  bool
	// revokeOnChat revokes the token when the next chat request arrives.
	revokeOnChat bool
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	f := &fakeService{nextID: 17}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["user_password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "tok-1", "token_type": "bearer", "user_id": 42, "user_name": "Ada",
		})
	})

	mux.HandleFunc("POST /api/register", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "User registered successfully", "user_id": 43,
			"user_name": req["user_name"], "user_email_id": req["user_email_id"],
		})
	})

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			if f.revokeOnChat && r.URL.Path == "/api/chat" {
				f.revoked = true
			}
			revoked := f.revoked
			f.mu.Unlock()
			if revoked || r.Header.Get("Authorization") != "Bearer tok-1" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("GET /api/users/42", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user_id": 42, "user_name": "Ada", "user_email_id": "ada@example.com"})
	}))

	mux.HandleFunc("GET /api/users/42/sessions", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		list := []map[string]any{}
		for i := len(f.sessions) - 1; i >= 0; i-- {
			s := f.sessions[i]
			list = append(list, map[string]any{
				"id": s.ID, "title": s.Title, "created_at": "2026-04-01T12:00:00",
				"last_message": s.Messages[len(s.Messages)-1].Text,
			})
		}
		writeJSON(w, http.StatusOK, list)
	}))

	mux.HandleFunc("GET /api/users/42/sessions/{sid}", authed(func(w http.ResponseWriter, r *http.Request) {
		s := f.find(r.PathValue("sid"))
		if s == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
			return
		}
		writeJSON(w, http.StatusOK, s.Messages)
	}))

	mux.HandleFunc("DELETE /api/users/42/sessions/{sid}", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, s := range f.sessions {
			if strconv.Itoa(s.ID) == r.PathValue("sid") {
				f.sessions = append(f.sessions[:i], f.sessions[i+1:]...)
				writeJSON(w, http.StatusOK, map[string]any{"message": "Session deleted", "session_id": s.ID})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
	}))

	mux.HandleFunc("POST /api/chat", authed(func(w http.ResponseWriter, r *http.Request) {
		var req chatCall
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": err.Error()})
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		f.chats = append(f.chats, req)

		var s *storedSession
		if req.SessionID == nil {
			s = &storedSession{ID: f.nextID, Title: req.Message}
			f.nextID++
			f.sessions = append(f.sessions, s)
		} else {
			s = f.findLocked(strconv.Itoa(*req.SessionID))
		}
		reply := "**Hi** " + req.Role
		s.Messages = append(s.Messages,
			storedMessage{Sender: "user", Text: req.Message},
			storedMessage{Sender: "ai", Text: reply},
		)
		writeJSON(w, http.StatusOK, map[string]any{
			"response": reply, "session_id": s.ID, "created_at": "2026-04-01T12:00:01",
		})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeService) find(id string) *storedSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findLocked(id)
}

func (f *fakeService) findLocked(id string) *storedSession {
	for _, s := range f.sessions {
		if strconv.Itoa(s.ID) == id {
			return s
		}
	}
	return nil
}

// revoke makes every authenticated endpoint answer 401.
func (f *fakeService) revoke() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = true
}

func (f *fakeService) chatCalls() []chatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chatCall(nil), f.chats...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// cli runs parlor commands against one config file.
type cli struct {
	t      *testing.T
	config string
	creds  string
}

func newCLI(t *testing.T, baseURL string) *cli {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`gateway:
  base_url: %q
  timeout: "5s"
credentials:
  backend: "sqlite"
  path: %q
logging:
  level: "error"
`, baseURL, filepath.Join(dir, "creds.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &cli{t: t, config: path, creds: filepath.Join(dir, "creds.db")}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetArgs(append([]string{"--config", c.config}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

// storedCredentials reads what the last command left in the credential database.
func (c *cli) storedCredentials() credentials.Credentials {
	c.t.Helper()
	s, err := credentials.NewSQLiteStore(c.creds)
	require.NoError(c.t, err)
	defer s.Close()
	creds, err := s.Load(context.Background())
	require.NoError(c.t, err)
	return creds
}

func (c *cli) login() {
	c.t.Helper()
	out, err := c.run("secret\n", "login", "--email", "ada@example.com", "--password-stdin")
	require.NoError(c.t, err)
	require.Contains(c.t, out, "Logged in as Ada")
}

func TestCLI_LoginWhoamiLogout(t *testing.T) {
	_, srv := newFakeService(t)
	c := newCLI(t, srv.URL+"/api")

	c.login()

	out, err := c.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "42")

	out, err = c.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")

	_, err = c.run("", "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	out, err = c.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")
}

func TestCLI_LoginPromptsForEmail(t *testing.T) {
	_, srv := newFakeService(t)
	c := newCLI(t, srv.URL+"/api")

	out, err := c.run("ada@example.com\nsecret\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Email: ")
	assert.Contains(t, out, "Logged in as Ada")
}

func TestCLI_LoginBadPassword(t *testing.T) {
	_, srv := newFakeService(t)
	c := newCLI(t, srv.URL+"/api")

	_, err := c.run("wrong\n", "login", "--email", "ada@example.com", "--password-stdin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	_, err = c.run("", "sessions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestCLI_Register(t *testing.T) {
	_, srv := newFakeService(t)
	c := newCLI(t, srv.URL+"/api")

	out, err := c.run("pw\n", "register", "--name", "Grace", "--email", "grace@example.com", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "Account created for Grace")
}

func TestCLI_SendAndManageSessions(t *testing.T) {
	svc, srv := newFakeService(t)
	c := newCLI(t, srv.URL+"/api")
	c.login()

	out, err := c.run("", "send", "hello", "--persona", "Friend")
	require.NoError(t, err)
	assert.Contains(t, out, "Hi friend")
	assert.NotContains(t, out, "**", "reply is rendered as plain text")
	assert.Contains(t, out, "session 17")

	calls := svc.chatCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "hello", calls[0].Message)
	assert.Nil(t, calls[0].SessionID)
	assert.Equal(t, 42, calls[0].UserID)
	assert.Equal(t, "friend", calls[0].Role)

	out, err = c.run("", "send", "--session", "17", "--web", "again")
	require.NoError(t, err)
	assert.Contains(t, out, "Hi assistant")
	calls = svc.chatCalls()
	require.Len(t, calls, 2)
	require.NotNil(t, calls[1].SessionID)
	assert.Equal(t, 17, *calls[1].SessionID)
	assert.True(t, calls[1].UseWebSearch)

	out, err = c.run("", "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "17")
	assert.Contains(t, out, "hello")

	out, err = c.run("", "sessions", "show", "17")
	require.NoError(t, err)
	assert.Contains(t, out, "you hello")
	assert.Contains(t, out, "assistant Hi friend")

	out, err = c.run("", "sessions", "delete", "17")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted session 17")

	out, err = c.run("", "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved sessions.")
}

func TestCLI_SendRejectsUnknownPersona(t *testing.T) {
	svc, srv := newFakeService(t)
	c := newCLI(t, srv.URL+"/api")
	c.login()

	_, err := c.run("", "send", "hello", "--persona", "pirate")
	assert.ErrorIs(t, err, conversation.ErrUnknownPersona)
	assert.Empty(t, svc.chatCalls())
}

func TestCLI_SendServiceDown(t *testing.T) {
	_, srv := newFakeService(t)
	c := newCLI(t, srv.URL+"/api")
	c.login()
	srv.Close()

	out, err := c.run("", "send", "hello")
	require.Error(t, err)
	assert.Contains(t, out, conversation.FallbackText)
}

func TestCLI_Chat(t *testing.T) {
	svc, srv := newFakeService(t)
	c := newCLI(t, srv.URL+"/api")
	c.login()

	input := strings.Join([]string{
		"/persona poet",
		"hello",
		"/web on",
		"/persona pirate",
		"/new",
		"/bogus",
		"/quit",
	}, "\n") + "\n"

	out, err := c.run(input, "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "Hello, Ada.")
	assert.Contains(t, out, "Persona set to Poet.")
	assert.Contains(t, out, "assistant Hi poet")
	assert.NotContains(t, out, "you hello", "the user's own line is not echoed")
	assert.Contains(t, out, "[poet #17]> ")
	assert.Contains(t, out, "Web search is on.")
	assert.Contains(t, out, "unknown persona")
	assert.Contains(t, out, "Started a new conversation.")
	assert.Contains(t, out, "unknown command /bogus")

	calls := svc.chatCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "poet", calls[0].Role)
}

func TestCLI_ChatRequiresLogin(t *testing.T) {
	_, srv := newFakeService(t)
	c := newCLI(t, srv.URL+"/api")

	_, err := c.run("", "chat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestCLI_RejectedTokenLogsOut(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "sessions list", args: []string{"sessions"}},
		{name: "sessions show", args: []string{"sessions", "show", "17"}},
		{name: "sessions delete", args: []string{"sessions", "delete", "17"}},
		{name: "whoami", args: []string{"whoami"}},
		{name: "send", args: []string{"send", "hello"}},
		{name: "chat", stdin: "hello\n/quit\n", args: []string{"chat"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, srv := newFakeService(t)
			c := newCLI(t, srv.URL+"/api")
			c.login()
			require.Equal(t, "tok-1", c.storedCredentials().Token)

			svc.revoke()

			_, err := c.run(tt.stdin, tt.args...)
			require.ErrorIs(t, err, errSessionExpired)
			assert.Contains(t, err.Error(), "Not authenticated")
			assert.True(t, c.storedCredentials().Empty(), "rejected token must be removed")

			_, err = c.run("", "sessions")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not logged in")
		})
	}
}

func TestCLI_ChatRejectedSendLogsOut(t *testing.T) {
	svc, srv := newFakeService(t)
	c := newCLI(t, srv.URL+"/api")
	c.login()

	// The startup listing succeeds; the first send is refused
	svc.mu.Lock()
	svc.revokeOnChat = true
	svc.mu.Unlock()

	out, err := c.run("hello\nagain\n", "chat")
	require.ErrorIs(t, err, errSessionExpired)
	assert.Contains(t, out, "Hello, Ada.")
	assert.Contains(t, out, conversation.FallbackText)
	assert.Empty(t, svc.chatCalls(), "the refused send never reached the handler")
	assert.True(t, c.storedCredentials().Empty())
}
