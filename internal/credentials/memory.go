// ABOUTME: In-memory credential store for tests and --credentials-backend=memory
// ABOUTME: Nothing survives the process; safe for concurrent use

package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the current credentials.
func (m *MemoryStore) Load(_ context.Context) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds, nil
}

// Save replaces the stored credentials.
func (m *MemoryStore) Save(_ context.Context, creds Credentials) error {
	if err := validate(creds); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	return nil
}

// Clear forgets the stored credentials.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = Credentials{}
	return nil
}
