package repositories

import (
	"context"

	domain "github.com/feedlens/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Accounts() AccountRepository
	Credentials() CredentialRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// AccountRepository persists the merchant accounts each dashboard user has linked.
type AccountRepository interface {
	Upsert(ctx context.Context, account domain.MerchantAccount) error
	FindByID(ctx context.Context, userID string, accountID string) (domain.MerchantAccount, error)
	FindByMerchantID(ctx context.Context, userID string, merchantID string) (domain.MerchantAccount, error)
	ListByUser(ctx context.Context, userID string) ([]domain.MerchantAccount, error)
}

// CredentialRepository persists OAuth token pairs keyed by linked account.
// Save is also invoked from the token-refresh path, so it must tolerate
// concurrent writes by keeping the latest pair.
type CredentialRepository interface {
	Save(ctx context.Context, accountID string, tokens domain.TokenPair) error
	Get(ctx context.Context, accountID string) (domain.TokenPair, error)
	Delete(ctx context.Context, accountID string) error
}
