// ABOUTME: Credential store interface and shared types for the auth token and user id
// ABOUTME: Backends (file, sqlite, memory) keep exactly two scalar values across restarts

package credentials

import (
	"context"
	"errors"
)

// Keys under which the two credential values are stored.
const (
	KeyToken  = "token"
	KeyUserID = "user_id"
)

// ErrIncomplete is returned by Save when either value is empty
var ErrIncomplete = errors.New("token and user id are both required")

// Credentials is the persisted auth state. The zero value means "logged out".
type Credentials struct {
	Token  string
	UserID string
}

// Empty reports whether no token is stored.
func (c Credentials) Empty() bool {
	return c.Token == ""
}

// Store persists the auth token and user id.
// Load on an empty store returns zero Credentials and a nil error.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

func validate(creds Credentials) error {
	if creds.Token == "" || creds.UserID == "" {
		return ErrIncomplete
	}
	return nil
}
