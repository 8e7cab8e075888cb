package memory

import (
	"context"
	"sync"
)

// IdentityStore is an in-memory token-to-team mapping implementing
// app.IdentityStore. The same type backs both scopes; durability is a
// property of the deployment (Redis with or without TTL), not of the API.
type IdentityStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{tokens: make(map[string]string)}
}

func (s *IdentityStore) Put(_ context.Context, token, teamID string) error {
	s.mu.Lock()
	s.tokens[token] = teamID
	s.mu.Unlock()
	return nil
}

func (s *IdentityStore) Get(_ context.Context, token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[token], nil
}

func (s *IdentityStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	return nil
}
