// Package conversation keeps the client's view of a user's conversations in
// sync with the remote assistant service.
//
// # Overview
//
// The package sits between the command-line surface and the gateway client.
// It owns four pieces of state, each with pure transition functions, and an
// Engine that applies them around remote calls:
//
//   - Session directory (DirectoryState): the user's saved sessions, replaced
//     wholesale on every refresh
//   - Conversation buffer (BufferState): the active session pointer and its
//     messages
//   - Dispatcher (Phase, Advance): one send at a time
//   - Persona selector (Selector): the role tag sent with each message
//
// # Engine
//
//	eng := conversation.New(gate, client, logger)
//	defer eng.Close()
//	if err := eng.Start(ctx); err != nil {
//	    // profile or session list failed; the engine is still usable
//	}
//
// Every remote operation first asks the auth gate. While the gate is loading
// the engine returns auth.ErrNotReady; when logged out, auth.ErrUnauthenticated.
// A logout clears the buffer, directory, profile and draft.
//
// # Sending
//
// Send appends the user's message immediately, then posts it. On success the
// assistant's reply is appended and the active session pointer is set to the
// session the server assigned. On any failure a single fallback message
// (FallbackText) is appended instead; the user's message is never removed.
// The directory is refreshed after every successful send.
//
// A reply that arrives after the user switched conversations, started a new
// one, deleted the active one or logged out is dropped (OutcomeDiscarded).
//
// # Change Feed
//
// Subscribe returns a channel of Change values published after each commit.
// Publishing never blocks; a subscriber that falls behind loses changes and
// should re-read the snapshot methods.
package conversation
