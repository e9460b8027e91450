package credential

import (
	"context"
	"errors"
	"os"
	"strings"
)

// DefaultEnvVars maps provider IDs to the environment variables holding their
// API keys.
var DefaultEnvVars = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"google":    "GOOGLE_API_KEY",
}

// EnvStore reads credentials from environment variables. Whitespace-only
// values count as absent.
type EnvStore struct {
	vars   map[string]string
	lookup func(string) (string, bool)
}

// EnvOption configures an EnvStore.
type EnvOption func(*EnvStore)

// WithEnvVar maps providerID to a different variable name.
func WithEnvVar(providerID, name string) EnvOption {
	return func(s *EnvStore) {
		s.vars[providerID] = name
	}
}

// WithLookupFunc replaces os.LookupEnv, mainly for tests.
func WithLookupFunc(lookup func(string) (string, bool)) EnvOption {
	return func(s *EnvStore) {
		s.lookup = lookup
	}
}

// NewEnvStore creates a store over DefaultEnvVars.
func NewEnvStore(opts ...EnvOption) *EnvStore {
	s := &EnvStore{
		vars:   make(map[string]string, len(DefaultEnvVars)),
		lookup: os.LookupEnv,
	}
	for id, name := range DefaultEnvVars {
		s.vars[id] = name
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasCredential reports whether the provider's variable is set and non-blank.
func (s *EnvStore) HasCredential(ctx context.Context, providerID string) (bool, error) {
	_, err := s.Lookup(ctx, providerID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Lookup returns the trimmed value of the provider's variable.
func (s *EnvStore) Lookup(_ context.Context, providerID string) (string, error) {
	name, ok := s.vars[providerID]
	if !ok {
		return "", ErrNotFound
	}
	v, ok := s.lookup(name)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}
