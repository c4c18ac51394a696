package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/feedlens/api/internal/domain"
	"github.com/feedlens/api/internal/repositories"
)

const accountIDPrefix = "acct_"

// AccountServiceDeps groups constructor parameters for the account service.
type AccountServiceDeps struct {
	Accounts    repositories.AccountRepository
	Credentials repositories.CredentialRepository
	Clients     ClientFactory
	Clock       func() time.Time
	IDGenerator func() string
}

type accountService struct {
	accounts    repositories.AccountRepository
	credentials repositories.CredentialRepository
	clients     ClientFactory
	clock       func() time.Time
	newID       func() string
}

// ErrAccountRepositoryMissing signals that the account repository dependency is absent.
var ErrAccountRepositoryMissing = errors.New("account service: account repository is not configured")

// NewAccountService constructs the account service with the supplied dependencies.
func NewAccountService(deps AccountServiceDeps) (AccountService, error) {
	if deps.Accounts == nil {
		return nil, ErrAccountRepositoryMissing
	}
	if deps.Credentials == nil {
		return nil, ErrCredentialRepositoryMissing
	}
	if deps.Clients == nil {
		return nil, ErrClientFactoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return accountIDPrefix + ulid.Make().String() }
	}
	return &accountService{
		accounts:    deps.Accounts,
		credentials: deps.Credentials,
		clients:     deps.Clients,
		clock:       clock,
		newID:       newID,
	}, nil
}

// LinkAccount verifies the merchant account is reachable with the supplied
// tokens, then stores the link and the credentials. Linking the same
// merchant twice refreshes the stored metadata and tokens instead of
// creating a second link.
func (s *accountService) LinkAccount(ctx context.Context, cmd LinkAccountCommand) (domain.MerchantAccount, error) {
	userID := strings.TrimSpace(cmd.UserID)
	merchantID := strings.TrimSpace(cmd.MerchantID)
	if userID == "" {
		return domain.MerchantAccount{}, errors.New("accounts: user id is required")
	}
	if merchantID == "" {
		return domain.MerchantAccount{}, errors.New("accounts: merchant id is required")
	}
	if cmd.Tokens.IsZero() {
		return domain.MerchantAccount{}, ErrMissingCredentials
	}

	client, err := s.clients(ctx, domain.MerchantAccount{UserID: userID, MerchantID: merchantID}, cmd.Tokens)
	if err != nil {
		return domain.MerchantAccount{}, fmt.Errorf("accounts: build client: %w", err)
	}
	info, err := client.GetAccount(ctx)
	if err != nil {
		return domain.MerchantAccount{}, fmt.Errorf("accounts: verify merchant: %w", err)
	}

	account := domain.MerchantAccount{
		UserID:     userID,
		MerchantID: merchantID,
		Name:       firstNonEmpty(info.Name, merchantID),
		WebsiteURL: info.WebsiteURL,
		Country:    info.Country,
		LinkedAt:   s.clock().UTC(),
	}

	existing, err := s.accounts.FindByMerchantID(ctx, userID, merchantID)
	switch {
	case err == nil:
		account.ID = existing.ID
		account.LinkedAt = existing.LinkedAt
	case isRepoNotFound(err):
		account.ID = s.newID()
	default:
		return domain.MerchantAccount{}, fmt.Errorf("accounts: lookup existing link: %w", err)
	}

	if err := s.accounts.Upsert(ctx, account); err != nil {
		return domain.MerchantAccount{}, fmt.Errorf("accounts: store link: %w", err)
	}
	if err := s.credentials.Save(ctx, account.ID, cmd.Tokens); err != nil {
		return domain.MerchantAccount{}, fmt.Errorf("accounts: store credentials: %w", err)
	}
	return account, nil
}

// ListAccounts returns the user's linked merchant accounts.
func (s *accountService) ListAccounts(ctx context.Context, userID string) ([]domain.MerchantAccount, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("accounts: user id is required")
	}
	accounts, err := s.accounts.ListByUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	return accounts, nil
}

// ResolveAccount loads one linked account, scoped to the requesting user.
func (s *accountService) ResolveAccount(ctx context.Context, userID, accountID string) (domain.MerchantAccount, error) {
	uid := strings.TrimSpace(userID)
	id := strings.TrimSpace(accountID)
	if uid == "" || id == "" {
		return domain.MerchantAccount{}, ErrAccountNotFound
	}
	account, err := s.accounts.FindByID(ctx, uid, id)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.MerchantAccount{}, ErrAccountNotFound
		}
		return domain.MerchantAccount{}, fmt.Errorf("accounts: resolve: %w", err)
	}
	return account, nil
}
