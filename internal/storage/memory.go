package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for testing
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	state EventState
}

// NewMemoryStore creates a new in-memory store for testing
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Open initializes the store
func (s *MemoryStore) Open() error {
	return nil
}

// Close closes the store
func (s *MemoryStore) Close() error {
	return nil
}

// GetToken returns the stored auth token, or "" when none is stored
func (s *MemoryStore) GetToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// SetToken stores the auth token, replacing any previous one
func (s *MemoryStore) SetToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// GetState returns the stored resume marker, or a zero EventState when none
// is stored
func (s *MemoryStore) GetState(ctx context.Context) (EventState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

// SetState stores the resume marker
func (s *MemoryStore) SetState(ctx context.Context, state EventState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}
