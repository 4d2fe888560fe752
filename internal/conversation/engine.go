// ABOUTME: Engine coordinating the session directory, buffer, dispatcher and persona
// ABOUTME: Every remote call is gated on auth; state is guarded but never locked across a call

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/parlor/internal/auth"
	"github.com/2389/parlor/internal/gateway"
)

// ErrSuperseded is returned by OpenSession when a newer load started, or
// another navigation replaced the buffer, before the history arrived.
var ErrSuperseded = errors.New("superseded by a newer navigation")

// Gateway defines what the engine needs from the remote service
type Gateway interface {
	GetUser(ctx context.Context, userID string) (*gateway.UserProfile, error)
	ListSessions(ctx context.Context, userID string) ([]gateway.SessionSummary, error)
	LoadSession(ctx context.Context, userID, sessionID string) ([]gateway.HistoryMessage, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	Chat(ctx context.Context, req gateway.ChatRequest) (*gateway.ChatResponse, error)
}

// SessionGate defines what the engine needs from the auth layer
type SessionGate interface {
	Check() error
	UserID(ctx context.Context) (string, error)
	Subscribe(fn func(auth.State)) func()
}

// User is the logged-in user's profile.
type User struct {
	ID          string
	DisplayName string
	Email       string
}

// Engine owns the client-side conversation state for one logged-in user.
type Engine struct {
	gate   SessionGate
	gw     Gateway
	logger *slog.Logger
	now    func() time.Time
	events *Broadcaster

	unsubscribeGate func()

	mu sync.Mutex
	// epoch changes whenever the buffer stops belonging to the conversation
	// it showed. In-flight replies and loads tagged with an older epoch are
	// dropped.
	epoch uint64
	// loadSeq changes when a session load starts. A load that finishes after
	// a newer one started is dropped without touching the buffer.
	loadSeq uint64
	// authGen changes on logout; results fetched for the previous user are
	// dropped.
	authGen   uint64
	buffer    BufferState
	directory DirectoryState
	// dirSeq orders refreshes so an older listing never overwrites a newer one.
	dirSeq     uint64
	dirApplied uint64
	profile    *User
	phase      Phase
	draft      string
	persona    Selector
	webSearch  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithWebSearch sets the initial web-search toggle.
func WithWebSearch(on bool) Option {
	return func(e *Engine) { e.webSearch = on }
}

// WithClock overrides the clock used for local message timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine bound to gate. State is cleared whenever the gate
// reports a logout.
func New(gate SessionGate, gw Gateway, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		gate:   gate,
		gw:     gw,
		logger: logger.With("component", "conversation"),
		now:    time.Now,
		events: NewBroadcaster(logger),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.unsubscribeGate = gate.Subscribe(func(s auth.State) {
		if !s.Loading && !s.Authenticated {
			e.clear()
		}
	})
	return e
}

// Close detaches from the gate and closes change subscriptions.
func (e *Engine) Close() {
	e.unsubscribeGate()
	e.events.Close()
}

// Subscribe returns a channel of state changes until ctx is cancelled.
func (e *Engine) Subscribe(ctx context.Context) <-chan Change {
	ch, _ := e.events.Subscribe(ctx)
	return ch
}

// Start loads the profile and the session directory concurrently. Call it
// once the gate is ready.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.gate.Check(); err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := e.Profile(ctx)
		return err
	})
	g.Go(func() error {
		return e.RefreshSessions(ctx)
	})
	return g.Wait()
}

// Profile returns the logged-in user's profile, fetching it on first use.
func (e *Engine) Profile(ctx context.Context) (User, error) {
	uid, err := e.gate.UserID(ctx)
	if err != nil {
		return User{}, err
	}

	e.mu.Lock()
	if e.profile != nil && e.profile.ID == uid {
		p := *e.profile
		e.mu.Unlock()
		return p, nil
	}
	gen := e.authGen
	e.mu.Unlock()

	p, err := e.gw.GetUser(ctx, uid)
	if err != nil {
		return User{}, fmt.Errorf("loading profile: %w", err)
	}
	user := User{ID: uid, DisplayName: p.UserName, Email: p.Email}

	e.mu.Lock()
	stale := gen != e.authGen
	if !stale {
		e.profile = &user
	}
	e.mu.Unlock()

	if !stale {
		e.events.Publish(Change{Kind: ChangeProfile})
	}
	return user, nil
}

// RefreshSessions replaces the directory with the server's list. On failure
// the last good list is kept and the error returned.
func (e *Engine) RefreshSessions(ctx context.Context) error {
	uid, err := e.gate.UserID(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	gen := e.authGen
	e.dirSeq++
	seq := e.dirSeq
	e.mu.Unlock()

	list, err := e.gw.ListSessions(ctx, uid)
	if err != nil {
		e.logger.Warn("failed to refresh sessions", "error", err)
		return fmt.Errorf("listing sessions: %w", err)
	}

	e.mu.Lock()
	if gen != e.authGen || seq < e.dirApplied {
		e.mu.Unlock()
		return nil
	}
	e.dirApplied = seq
	e.directory = e.directory.Replaced(SessionsFromSummaries(list))
	e.mu.Unlock()

	e.events.Publish(Change{Kind: ChangeSessions})
	return nil
}

// OpenSession replaces the buffer with a saved session's history. Opening
// NoSession starts a new conversation.
func (e *Engine) OpenSession(ctx context.Context, sessionID string) error {
	if sessionID == NoSession {
		e.NewConversation()
		return nil
	}

	uid, err := e.gate.UserID(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.loadSeq++
	seq := e.loadSeq
	epoch := e.epoch
	e.mu.Unlock()

	history, err := e.gw.LoadSession(ctx, uid, sessionID)
	if err != nil {
		return fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	e.mu.Lock()
	if e.loadSeq != seq || e.epoch != epoch {
		e.mu.Unlock()
		e.logger.Debug("dropping superseded session load", "session_id", sessionID)
		return ErrSuperseded
	}
	e.epoch++
	e.buffer = e.buffer.Loaded(sessionID, MessagesFromHistory(history))
	e.mu.Unlock()

	e.events.Publish(Change{Kind: ChangeActiveSession})
	e.events.Publish(Change{Kind: ChangeMessages})
	return nil
}

// NewConversation clears the buffer and points it at an unsaved
// conversation. No request is made.
func (e *Engine) NewConversation() {
	e.mu.Lock()
	e.epoch++
	e.buffer = e.buffer.Reset()
	e.mu.Unlock()

	e.events.Publish(Change{Kind: ChangeActiveSession})
	e.events.Publish(Change{Kind: ChangeMessages})
}

// DeleteSession deletes a saved session. When the deletion succeeds and the
// session is the active one, the buffer is cleared before the directory is
// refreshed. The directory is refreshed whether or not the deletion
// succeeded.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == NoSession {
		return fmt.Errorf("deleting session: %w: session id is required", gateway.ErrValidation)
	}

	uid, err := e.gate.UserID(ctx)
	if err != nil {
		return err
	}

	delErr := e.gw.DeleteSession(ctx, uid, sessionID)
	if delErr != nil {
		delErr = fmt.Errorf("deleting session %s: %w", sessionID, delErr)
	} else {
		e.mu.Lock()
		wasActive := e.buffer.Active == sessionID
		if wasActive {
			e.epoch++
			e.buffer = e.buffer.Reset()
		}
		e.mu.Unlock()

		if wasActive {
			e.events.Publish(Change{Kind: ChangeActiveSession})
			e.events.Publish(Change{Kind: ChangeMessages})
		}
	}

	return errors.Join(delErr, e.RefreshSessions(ctx))
}

// Send dispatches one message with an explicit role tag. The user's message
// is appended before the request is made. At most one send is in flight; a
// send while busy returns OutcomeBusy and changes nothing.
func (e *Engine) Send(ctx context.Context, text, role string, webSearch bool) Result {
	uid, err := e.gate.UserID(ctx)
	if err != nil {
		return Result{Outcome: OutcomeRejected, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return Result{Outcome: OutcomeRejected, Err: ErrEmptyMessage}
	}

	e.mu.Lock()
	next, ok := Advance(e.phase, DispatchStart)
	if !ok {
		e.mu.Unlock()
		return Result{Outcome: OutcomeBusy}
	}
	e.phase = next
	e.buffer = e.buffer.AppendOptimistic(text)
	e.draft = ""
	epoch := e.epoch
	sessionID := e.buffer.Active
	e.mu.Unlock()

	e.events.Publish(Change{Kind: ChangeBusy})
	e.events.Publish(Change{Kind: ChangeMessages})

	resp, chatErr := e.gw.Chat(ctx, gateway.ChatRequest{
		Message:      text,
		SessionID:    gateway.ID(sessionID),
		UserID:       gateway.ID(uid),
		Role:         role,
		UseWebSearch: webSearch,
	})

	e.mu.Lock()
	var result Result
	switch {
	case e.epoch != epoch:
		e.phase, _ = Advance(e.phase, DispatchSuperseded)
		result = Result{Outcome: OutcomeDiscarded, Err: chatErr}
	case chatErr != nil:
		e.phase, _ = Advance(e.phase, DispatchFailed)
		e.buffer = e.buffer.RollbackWithFallback(FallbackText, e.now())
		result = Result{Outcome: OutcomeFailed, SessionID: e.buffer.Active, Err: chatErr}
	default:
		e.phase, _ = Advance(e.phase, DispatchSucceeded)
		e.buffer = e.buffer.Reconcile(resp.Response, resp.CreatedAt.Ptr(), resp.URLs, e.now())
		if sid := resp.SessionID.String(); sid != "" {
			e.buffer = e.buffer.WithActive(sid)
		}
		result = Result{Outcome: OutcomeSettled, SessionID: e.buffer.Active}
	}
	if e.phase != PhaseIdle {
		e.phase, _ = Advance(e.phase, DispatchDone)
	}
	e.mu.Unlock()

	e.events.Publish(Change{Kind: ChangeBusy})

	switch result.Outcome {
	case OutcomeFailed:
		e.logger.Warn("send failed", "error", chatErr)
		e.events.Publish(Change{Kind: ChangeMessages})
	case OutcomeDiscarded:
		e.logger.Debug("dropping reply for superseded conversation", "session_id", sessionID, "error", chatErr)
		e.refreshAfterSend(ctx)
	case OutcomeSettled:
		if result.SessionID != sessionID {
			e.events.Publish(Change{Kind: ChangeActiveSession})
		}
		e.events.Publish(Change{Kind: ChangeMessages})
		e.refreshAfterSend(ctx)
	}
	return result
}

// Submit sends the draft with the selected persona and web-search toggle.
func (e *Engine) Submit(ctx context.Context) Result {
	e.mu.Lock()
	text := e.draft
	role := e.persona.Current().RoleTag()
	web := e.webSearch
	e.mu.Unlock()

	return e.Send(ctx, text, role, web)
}

func (e *Engine) refreshAfterSend(ctx context.Context) {
	if err := e.RefreshSessions(ctx); err != nil {
		e.logger.Warn("session refresh after send failed", "error", err)
	}
}

// clear drops everything that belongs to the logged-out user. Persona and
// web-search selections are kept.
func (e *Engine) clear() {
	e.mu.Lock()
	e.epoch++
	e.authGen++
	e.buffer = BufferState{}
	e.directory = DirectoryState{}
	e.profile = nil
	e.draft = ""
	e.mu.Unlock()

	e.logger.Debug("cleared conversation state after logout")
	e.events.Publish(Change{Kind: ChangeCleared})
}

// SetDraft replaces the pending input text.
func (e *Engine) SetDraft(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = text
}

// Draft returns the pending input text.
func (e *Engine) Draft() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// SelectPersona switches persona by name; unknown names change nothing.
func (e *Engine) SelectPersona(name string) (Persona, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persona.Select(name)
}

// Persona returns the selected persona.
func (e *Engine) Persona() Persona {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persona.Current()
}

// SetWebSearch sets the web-search toggle used by Submit.
func (e *Engine) SetWebSearch(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.webSearch = on
}

// WebSearch returns the web-search toggle.
func (e *Engine) WebSearch() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.webSearch
}

// Messages returns a copy of the buffer.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.buffer.Messages))
	copy(out, e.buffer.Messages)
	return out
}

// ActiveSession returns the active session pointer.
func (e *Engine) ActiveSession() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Active
}

// Sessions returns a copy of the directory.
func (e *Engine) Sessions() []Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Session, len(e.directory.Sessions))
	copy(out, e.directory.Sessions)
	return out
}

// FindSession looks up a session in the directory.
func (e *Engine) FindSession(id string) (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.directory.Find(id)
}

// Busy reports whether a send is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase != PhaseIdle
}

// Phase returns the dispatcher phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}
