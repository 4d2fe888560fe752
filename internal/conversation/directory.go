// ABOUTME: Session directory listing the user's saved conversations
// ABOUTME: Replaced wholesale from the server; order is the server's

package conversation

import (
	"slices"
	"time"

	"github.com/2389/parlor/internal/gateway"
)

// Session is one saved conversation. Titles are assigned by the server.
type Session struct {
	ID          string
	Title       string
	CreatedAt   *time.Time
	LastMessage string
}

// DirectoryState is the last successfully fetched session list.
type DirectoryState struct {
	Sessions []Session
	Loaded   bool
}

// Replaced swaps in a freshly fetched list.
func (d DirectoryState) Replaced(sessions []Session) DirectoryState {
	return DirectoryState{Sessions: slices.Clone(sessions), Loaded: true}
}

// Find returns the session with the given id.
func (d DirectoryState) Find(id string) (Session, bool) {
	i := slices.IndexFunc(d.Sessions, func(s Session) bool { return s.ID == id })
	if i < 0 {
		return Session{}, false
	}
	return d.Sessions[i], true
}

// SessionsFromSummaries converts the server listing.
func SessionsFromSummaries(summaries []gateway.SessionSummary) []Session {
	sessions := make([]Session, 0, len(summaries))
	for _, s := range summaries {
		sessions = append(sessions, Session{
			ID:          s.ID.String(),
			Title:       s.Title,
			CreatedAt:   s.CreatedAt.Ptr(),
			LastMessage: s.LastMessage,
		})
	}
	return sessions
}
