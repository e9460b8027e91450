package credential

import (
	"context"
	"strings"
	"sync"
)

// MapStore is an in-memory credential store safe for concurrent use.
type MapStore struct {
	mu    sync.RWMutex
	creds map[string]string
}

// NewMapStore creates a store seeded with creds.
func NewMapStore(creds map[string]string) *MapStore {
	m := &MapStore{creds: make(map[string]string, len(creds))}
	for id, v := range creds {
		m.Set(id, v)
	}
	return m
}

// Set stores a credential. A blank value removes it.
func (m *MapStore) Set(providerID, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret = strings.TrimSpace(secret)
	if secret == "" {
		delete(m.creds, providerID)
		return
	}
	m.creds[providerID] = secret
}

// Remove deletes a credential.
func (m *MapStore) Remove(providerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, providerID)
}

// HasCredential implements Store.
func (m *MapStore) HasCredential(_ context.Context, providerID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.creds[providerID]
	return ok, nil
}

// Lookup implements Store.
func (m *MapStore) Lookup(_ context.Context, providerID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.creds[providerID]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}
