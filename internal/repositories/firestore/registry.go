package firestore

import (
	"context"

	pfirestore "github.com/feedlens/api/internal/platform/firestore"
	"github.com/feedlens/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the repositories.Registry surface.
type Registry struct {
	provider    *pfirestore.Provider
	accounts    *AccountRepository
	credentials *CredentialRepository
}

// NewRegistry constructs all repositories on a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	accounts, err := NewAccountRepository(provider)
	if err != nil {
		return nil, err
	}
	credentials, err := NewCredentialRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider:    provider,
		accounts:    accounts,
		credentials: credentials,
	}, nil
}

func (r *Registry) Accounts() repositories.AccountRepository { return r.accounts }

func (r *Registry) Credentials() repositories.CredentialRepository { return r.credentials }

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}
