// Package credential provides the credential stores the provider registry
// reads from.
//
// A store only answers whether a provider has a credential and, for hosts
// that build model clients, what it is. Provisioning happens elsewhere.
package credential

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Lookup when no credential is stored.
var ErrNotFound = errors.New("credential not found")

// Store is implemented by every credential source in this package.
type Store interface {
	HasCredential(ctx context.Context, providerID string) (bool, error)
	Lookup(ctx context.Context, providerID string) (string, error)
}
