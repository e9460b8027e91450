package flow

import (
	"context"
	"fmt"
)

// CredentialStore reports whether a credential exists for a provider.
// Credentials are provisioned outside this package.
type CredentialStore interface {
	HasCredential(ctx context.Context, providerID string) (bool, error)
}

// ProviderRegistry answers whether a provider is usable. The only signal is
// credential presence; no liveness check is made.
type ProviderRegistry interface {
	IsAvailable(ctx context.Context, id ProviderID) (bool, error)
}

// CredentialRegistry is a ProviderRegistry backed by a CredentialStore.
type CredentialRegistry struct {
	store CredentialStore
}

// NewCredentialRegistry creates a registry reading from store.
func NewCredentialRegistry(store CredentialStore) *CredentialRegistry {
	return &CredentialRegistry{store: store}
}

// IsAvailable reports whether a credential is stored for id. A store failure
// is returned as a CREDENTIAL_STORE_UNAVAILABLE error, never as false.
func (r *CredentialRegistry) IsAvailable(ctx context.Context, id ProviderID) (bool, error) {
	ok, err := r.store.HasCredential(ctx, string(id))
	if err != nil {
		return false, &Error{
			Code:    CodeCredentialStoreUnavailable,
			Message: fmt.Sprintf("credential lookup for %q failed", id),
			Cause:   err,
		}
	}
	return ok, nil
}

// RegistryFunc adapts a function to ProviderRegistry.
type RegistryFunc func(ctx context.Context, id ProviderID) (bool, error)

// IsAvailable calls f.
func (f RegistryFunc) IsAvailable(ctx context.Context, id ProviderID) (bool, error) {
	return f(ctx, id)
}
