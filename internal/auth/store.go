package auth

import (
	"context"
	"sync"

	"github.com/fivetwenty-io/apicore/pkg/apicore"
)

// MemoryStore is a CredentialStore that keeps the credential in memory.
type MemoryStore struct {
	mutex      sync.RWMutex
	credential *apicore.Credential
}

// NewMemoryStore creates a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored credential.
func (s *MemoryStore) Load(ctx context.Context) (*apicore.Credential, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.credential.Clone(), nil
}

// Save stores a copy of cred.
func (s *MemoryStore) Save(ctx context.Context, cred *apicore.Credential) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.credential = cred.Clone()

	return nil
}

// Clear removes the stored credential.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.credential = nil

	return nil
}
