package storage

import (
	"context"
	"sync"
)

// InMemoryKeyStore provides thread-safe in-memory storage for API keys.
// Used in tests and local development where a database is unnecessary.
type InMemoryKeyStore struct {
	// keys maps key strings to APIKey structs for fast lookup
	keys map[string]*APIKey
	// keysByID maps key IDs to APIKey structs for ID-based operations
	keysByID map[string]*APIKey
	// mutex protects concurrent access to both maps
	mutex sync.RWMutex
}

// Compile-time interface assertion.
var _ APIKeyStore = (*InMemoryKeyStore)(nil)

// NewInMemoryKeyStore creates a new thread-safe in-memory key store.
func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{
		keys:     make(map[string]*APIKey),
		keysByID: make(map[string]*APIKey),
	}
}

// HealthCheck always succeeds for the in-memory store.
func (s *InMemoryKeyStore) HealthCheck(_ context.Context) error {
	return nil
}

// FindByKey retrieves an API key by its key value.
func (s *InMemoryKeyStore) FindByKey(_ context.Context, key string) (*APIKey, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	apiKey, exists := s.keys[key]
	if !exists {
		return nil, false
	}

	// Return a copy to prevent external modification.
	keyCopy := *apiKey

	return &keyCopy, true
}

// Add stores a new API key.
func (s *InMemoryKeyStore) Add(_ context.Context, apiKey *APIKey) error {
	if apiKey == nil { // pragma: allowlist secret
		return ErrKeyNil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.keysByID[apiKey.ID]; exists {
		return ErrKeyAlreadyExists
	}

	if _, exists := s.keys[apiKey.Key]; exists {
		return ErrKeyAlreadyExists
	}

	keyCopy := *apiKey
	s.keys[keyCopy.Key] = &keyCopy
	s.keysByID[keyCopy.ID] = &keyCopy

	return nil
}

// Update modifies an existing API key.
func (s *InMemoryKeyStore) Update(_ context.Context, apiKey *APIKey) error {
	if apiKey == nil { // pragma: allowlist secret
		return ErrKeyNil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	existing, exists := s.keysByID[apiKey.ID]
	if !exists {
		return ErrKeyNotFound
	}

	delete(s.keys, existing.Key)

	keyCopy := *apiKey
	s.keys[keyCopy.Key] = &keyCopy
	s.keysByID[keyCopy.ID] = &keyCopy

	return nil
}

// Delete removes an API key by ID.
func (s *InMemoryKeyStore) Delete(_ context.Context, keyID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	existing, exists := s.keysByID[keyID]
	if !exists {
		return ErrKeyNotFound
	}

	delete(s.keys, existing.Key)
	delete(s.keysByID, keyID)

	return nil
}

// List returns all active API keys.
func (s *InMemoryKeyStore) List(_ context.Context) ([]*APIKey, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	keys := []*APIKey{}

	for _, apiKey := range s.keysByID {
		if !apiKey.Active {
			continue
		}

		keyCopy := *apiKey
		keys = append(keys, &keyCopy)
	}

	return keys, nil
}
