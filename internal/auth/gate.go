// ABOUTME: Auth session gate deriving authenticated/loading flags from the credential store
// ABOUTME: Explicitly passed session context object; transitions are a pure Reduce function

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/parlor/internal/credentials"
)

// Gate errors
var (
	ErrNotReady          = errors.New("auth state is still loading")
	ErrUnauthenticated   = errors.New("not logged in")
	ErrInvalidTransition = errors.New("invalid auth transition")
)

// State is the gate's observable state.
type State struct {
	Authenticated bool
	Loading       bool
}

// Ready reports whether dependent components may issue requests.
func (s State) Ready() bool {
	return !s.Loading && s.Authenticated
}

// Err maps the state to the error a gated operation should return.
func (s State) Err() error {
	switch {
	case s.Loading:
		return ErrNotReady
	case !s.Authenticated:
		return ErrUnauthenticated
	default:
		return nil
	}
}

func (s State) String() string {
	switch {
	case s.Loading:
		return "loading"
	case s.Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Event drives a gate transition.
type Event int

const (
	EventResolvedAuthenticated Event = iota
	EventResolvedUnauthenticated
	EventLogin
	EventLogout
)

// InitialState is the state before the credential store has been read.
func InitialState() State {
	return State{Loading: true}
}

// Reduce applies ev to s. The only legal transitions are
// loading → {authenticated, unauthenticated}, unauthenticated → authenticated
// (login) and authenticated → unauthenticated (logout). Anything else
// returns ErrInvalidTransition and s unchanged.
func Reduce(s State, ev Event) (State, error) {
	switch ev {
	case EventResolvedAuthenticated, EventResolvedUnauthenticated:
		if !s.Loading {
			return s, fmt.Errorf("%w: already resolved", ErrInvalidTransition)
		}
		return State{Authenticated: ev == EventResolvedAuthenticated}, nil
	case EventLogin:
		if s.Loading {
			return s, ErrNotReady
		}
		if s.Authenticated {
			return s, fmt.Errorf("%w: already logged in", ErrInvalidTransition)
		}
		return State{Authenticated: true}, nil
	case EventLogout:
		if s.Loading {
			return s, ErrNotReady
		}
		if !s.Authenticated {
			return s, fmt.Errorf("%w: not logged in", ErrInvalidTransition)
		}
		return State{}, nil
	default:
		return s, fmt.Errorf("%w: unknown event %d", ErrInvalidTransition, ev)
	}
}

// Gate owns the auth state for one client process. It is passed explicitly
// to everything that needs it.
type Gate struct {
	mu        sync.RWMutex
	state     State
	store     credentials.Store
	logger    *slog.Logger
	now       func() time.Time
	listeners map[int]func(State)
	nextID    int
}

// NewGate creates a gate in the loading state. Call Init to resolve it.
func NewGate(store credentials.Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		state:     InitialState(),
		store:     store,
		logger:    logger.With("component", "auth"),
		now:       time.Now,
		listeners: make(map[int]func(State)),
	}
}

// Init reads the credential store once and leaves the loading state.
// A stored JWT that has already expired is cleared and counts as logged out.
// A store read failure resolves to unauthenticated and is returned.
func (g *Gate) Init(ctx context.Context) error {
	creds, loadErr := g.store.Load(ctx)
	if loadErr != nil {
		g.logger.Error("failed to read credentials", "error", loadErr)
		creds = credentials.Credentials{}
	}

	if !creds.Empty() {
		if err := CheckToken(creds.Token, g.now()); err != nil {
			g.logger.Info("stored token expired, clearing credentials")
			if clearErr := g.store.Clear(ctx); clearErr != nil {
				g.logger.Warn("failed to clear expired credentials", "error", clearErr)
			}
			creds = credentials.Credentials{}
		}
	}

	ev := EventResolvedUnauthenticated
	if !creds.Empty() && creds.UserID != "" {
		ev = EventResolvedAuthenticated
	}
	if err := g.apply(ev, nil); err != nil {
		return err
	}

	if loadErr != nil {
		return fmt.Errorf("reading credentials: %w", loadErr)
	}
	return nil
}

// Login stores the token and user id, then marks the gate authenticated.
func (g *Gate) Login(ctx context.Context, token, userID string) error {
	return g.apply(EventLogin, func() error {
		if err := g.store.Save(ctx, credentials.Credentials{Token: token, UserID: userID}); err != nil {
			return fmt.Errorf("saving credentials: %w", err)
		}
		return nil
	})
}

// Logout clears the credential store, then marks the gate unauthenticated.
func (g *Gate) Logout(ctx context.Context) error {
	return g.apply(EventLogout, func() error {
		if err := g.store.Clear(ctx); err != nil {
			return fmt.Errorf("clearing credentials: %w", err)
		}
		return nil
	})
}

// State returns a snapshot of the current state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Check returns nil when dependent components may proceed, ErrNotReady
// while loading, ErrUnauthenticated otherwise.
func (g *Gate) Check() error {
	return g.State().Err()
}

// UserID reads the user id from the credential store. It is read fresh on
// every call so a logout is observed immediately.
func (g *Gate) UserID(ctx context.Context) (string, error) {
	if err := g.Check(); err != nil {
		return "", err
	}
	creds, err := g.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("reading credentials: %w", err)
	}
	if creds.UserID == "" {
		return "", ErrUnauthenticated
	}
	return creds.UserID, nil
}

// Subscribe registers fn to be called after every state transition. The
// returned function removes the subscription.
func (g *Gate) Subscribe(fn func(State)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
	}
}

// apply validates ev against the current state, runs effect (if any) and
// commits the new state only when the effect succeeds. Listeners run after
// the lock is released.
func (g *Gate) apply(ev Event, effect func() error) error {
	g.mu.Lock()
	next, err := Reduce(g.state, ev)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if effect != nil {
		if err := effect(); err != nil {
			g.mu.Unlock()
			return err
		}
	}
	prev := g.state
	g.state = next
	listeners := make([]func(State), 0, len(g.listeners))
	for _, fn := range g.listeners {
		listeners = append(listeners, fn)
	}
	g.mu.Unlock()

	g.logger.Debug("auth state changed", "from", prev.String(), "to", next.String())
	for _, fn := range listeners {
		fn(next)
	}
	return nil
}
