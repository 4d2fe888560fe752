// ABOUTME: In-memory fan-out of engine state changes to UI subscribers
// ABOUTME: Non-blocking publish; slow subscribers lose events rather than stall the engine

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// ChangeKind names the part of engine state that changed.
type ChangeKind int

const (
	ChangeMessages ChangeKind = iota
	ChangeActiveSession
	ChangeSessions
	ChangeBusy
	ChangeProfile
	ChangeCleared
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeMessages:
		return "messages"
	case ChangeActiveSession:
		return "active_session"
	case ChangeSessions:
		return "sessions"
	case ChangeBusy:
		return "busy"
	case ChangeProfile:
		return "profile"
	case ChangeCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Change is published after the engine commits a state change. Subscribers
// read the new state through the engine's snapshot methods.
type Change struct {
	Kind ChangeKind
}

// Broadcaster provides in-memory pub/sub for engine changes.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Change
	closed      bool
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan Change),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe returns a channel of changes and a subscription ID. The
// subscription is removed when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Change, string) {
	subID := uuid.New().String()
	ch := make(chan Change, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	context.AfterFunc(ctx, func() { b.Unsubscribe(subID) })

	return ch, subID
}

// Publish delivers change to every subscriber without blocking.
func (b *Broadcaster) Publish(change Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- change:
		default:
			b.logger.Debug("dropped change for slow subscriber", "sub_id", id, "kind", change.Kind.String())
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
