// ABOUTME: Conversation buffer holding the active session's messages
// ABOUTME: Pure transitions: load, reset, optimistic append, reconcile and fallback

package conversation

import (
	"slices"
	"strings"
	"time"

	"github.com/2389/parlor/internal/gateway"
)

// NoSession is the active session pointer of an unsaved new conversation.
const NoSession = ""

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry of a conversation. Messages are appended, never
// edited in place.
type Message struct {
	Sender    Sender
	Text      string
	CreatedAt *time.Time
	Sources   []string
}

// BufferState is the active session pointer and the messages shown for it.
type BufferState struct {
	Active   string
	Messages []Message
}

// Loaded replaces the buffer with a session's history.
func (b BufferState) Loaded(sessionID string, msgs []Message) BufferState {
	return BufferState{Active: sessionID, Messages: slices.Clone(msgs)}
}

// Reset starts an unsaved conversation.
func (b BufferState) Reset() BufferState {
	return BufferState{Active: NoSession}
}

// AppendOptimistic adds the user's message before the server has seen it.
func (b BufferState) AppendOptimistic(text string) BufferState {
	return b.appended(Message{Sender: SenderUser, Text: text})
}

// Reconcile adds the assistant's reply. A nil createdAt is replaced by now.
func (b BufferState) Reconcile(text string, createdAt *time.Time, sources []string, now time.Time) BufferState {
	if createdAt == nil {
		createdAt = &now
	}
	return b.appended(Message{
		Sender:    SenderAssistant,
		Text:      text,
		CreatedAt: createdAt,
		Sources:   slices.Clone(sources),
	})
}

// RollbackWithFallback adds a local assistant message explaining that the
// send failed. The user's message stays.
func (b BufferState) RollbackWithFallback(text string, now time.Time) BufferState {
	return b.appended(Message{Sender: SenderAssistant, Text: text, CreatedAt: &now})
}

// WithActive moves the pointer without touching the messages. Used when the
// server assigns an id to a conversation that started unsaved.
func (b BufferState) WithActive(sessionID string) BufferState {
	return BufferState{Active: sessionID, Messages: b.Messages}
}

func (b BufferState) appended(m Message) BufferState {
	msgs := make([]Message, len(b.Messages), len(b.Messages)+1)
	copy(msgs, b.Messages)
	return BufferState{Active: b.Active, Messages: append(msgs, m)}
}

// ParseSender maps a server sender label to a Sender. The service labels
// assistant turns "ai"; anything other than "user" is the assistant.
func ParseSender(s string) Sender {
	if strings.EqualFold(strings.TrimSpace(s), string(SenderUser)) {
		return SenderUser
	}
	return SenderAssistant
}

// MessagesFromHistory converts a session's server history.
func MessagesFromHistory(history []gateway.HistoryMessage) []Message {
	msgs := make([]Message, 0, len(history))
	for _, h := range history {
		msgs = append(msgs, Message{
			Sender:    ParseSender(h.Sender),
			Text:      h.Text,
			CreatedAt: h.CreatedAt.Ptr(),
			Sources:   h.URLs,
		})
	}
	return msgs
}
