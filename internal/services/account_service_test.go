package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/feedlens/api/internal/domain"
)

type stubAccountRepository struct {
	upsertFn           func(ctx context.Context, account domain.MerchantAccount) error
	findByIDFn         func(ctx context.Context, userID, accountID string) (domain.MerchantAccount, error)
	findByMerchantIDFn func(ctx context.Context, userID, merchantID string) (domain.MerchantAccount, error)
	listByUserFn       func(ctx context.Context, userID string) ([]domain.MerchantAccount, error)
}

func (s *stubAccountRepository) Upsert(ctx context.Context, account domain.MerchantAccount) error {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, account)
	}
	return nil
}

func (s *stubAccountRepository) FindByID(ctx context.Context, userID, accountID string) (domain.MerchantAccount, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, userID, accountID)
	}
	return domain.MerchantAccount{}, notFoundRepoError{}
}

func (s *stubAccountRepository) FindByMerchantID(ctx context.Context, userID, merchantID string) (domain.MerchantAccount, error) {
	if s.findByMerchantIDFn != nil {
		return s.findByMerchantIDFn(ctx, userID, merchantID)
	}
	return domain.MerchantAccount{}, notFoundRepoError{}
}

func (s *stubAccountRepository) ListByUser(ctx context.Context, userID string) ([]domain.MerchantAccount, error) {
	if s.listByUserFn != nil {
		return s.listByUserFn(ctx, userID)
	}
	return nil, nil
}

type notFoundRepoError struct{}

func (notFoundRepoError) Error() string       { return "not found" }
func (notFoundRepoError) IsNotFound() bool    { return true }
func (notFoundRepoError) IsConflict() bool    { return false }
func (notFoundRepoError) IsUnavailable() bool { return false }

func TestLinkAccountStoresLinkAndCredentials(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var storedAccount domain.MerchantAccount
	var savedAccountID string
	var savedTokens domain.TokenPair

	accounts := &stubAccountRepository{
		upsertFn: func(ctx context.Context, account domain.MerchantAccount) error {
			storedAccount = account
			return nil
		},
	}
	credentials := &stubCredentialRepository{
		saveFn: func(ctx context.Context, accountID string, tokens domain.TokenPair) error {
			savedAccountID = accountID
			savedTokens = tokens
			return nil
		},
	}
	calls := 0
	client := &stubMerchantClient{
		getAccountFn: func(ctx context.Context) (domain.AccountInfo, error) {
			return domain.AccountInfo{MerchantID: "12345", Name: "Acme Store", WebsiteURL: "https://acme.example", Country: "US"}, nil
		},
	}

	svc, err := NewAccountService(AccountServiceDeps{
		Accounts:    accounts,
		Credentials: credentials,
		Clients:     staticFactory(client, &calls),
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "acct_test" },
	})
	if err != nil {
		t.Fatalf("NewAccountService: %v", err)
	}

	tokens := domain.TokenPair{AccessToken: "access", RefreshToken: "refresh"}
	account, err := svc.LinkAccount(context.Background(), LinkAccountCommand{
		UserID:     "user-1",
		MerchantID: "12345",
		Tokens:     tokens,
	})
	if err != nil {
		t.Fatalf("LinkAccount: %v", err)
	}

	if account.ID != "acct_test" || account.Name != "Acme Store" {
		t.Fatalf("account = %+v", account)
	}
	if storedAccount.MerchantID != "12345" || storedAccount.UserID != "user-1" {
		t.Fatalf("stored = %+v", storedAccount)
	}
	if savedAccountID != "acct_test" || savedTokens != tokens {
		t.Fatalf("credentials saved under %q with %+v", savedAccountID, savedTokens)
	}
}

func TestLinkAccountRelinkKeepsIdentity(t *testing.T) {
	linkedAt := time.Unix(1_600_000_000, 0)
	accounts := &stubAccountRepository{
		findByMerchantIDFn: func(ctx context.Context, userID, merchantID string) (domain.MerchantAccount, error) {
			return domain.MerchantAccount{ID: "acct_existing", UserID: userID, MerchantID: merchantID, LinkedAt: linkedAt}, nil
		},
	}
	calls := 0
	svc, err := NewAccountService(AccountServiceDeps{
		Accounts:    accounts,
		Credentials: &stubCredentialRepository{},
		Clients:     staticFactory(&stubMerchantClient{}, &calls),
		IDGenerator: func() string { t.Fatal("id generator must not run on relink"); return "" },
	})
	if err != nil {
		t.Fatalf("NewAccountService: %v", err)
	}

	account, err := svc.LinkAccount(context.Background(), LinkAccountCommand{
		UserID:     "user-1",
		MerchantID: "12345",
		Tokens:     domain.TokenPair{AccessToken: "access"},
	})
	if err != nil {
		t.Fatalf("LinkAccount: %v", err)
	}
	if account.ID != "acct_existing" {
		t.Fatalf("id = %q, want existing link id", account.ID)
	}
	if !account.LinkedAt.Equal(linkedAt) {
		t.Fatalf("linkedAt = %v, want original link time", account.LinkedAt)
	}
}

func TestLinkAccountRequiresTokens(t *testing.T) {
	calls := 0
	svc, err := NewAccountService(AccountServiceDeps{
		Accounts:    &stubAccountRepository{},
		Credentials: &stubCredentialRepository{},
		Clients:     staticFactory(&stubMerchantClient{}, &calls),
	})
	if err != nil {
		t.Fatalf("NewAccountService: %v", err)
	}

	_, err = svc.LinkAccount(context.Background(), LinkAccountCommand{UserID: "user-1", MerchantID: "12345"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
	if calls != 0 {
		t.Fatalf("factory invoked %d times, want 0", calls)
	}
}

func TestResolveAccountNotFound(t *testing.T) {
	calls := 0
	svc, err := NewAccountService(AccountServiceDeps{
		Accounts:    &stubAccountRepository{},
		Credentials: &stubCredentialRepository{},
		Clients:     staticFactory(&stubMerchantClient{}, &calls),
	})
	if err != nil {
		t.Fatalf("NewAccountService: %v", err)
	}

	if _, err := svc.ResolveAccount(context.Background(), "user-1", "acct-missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}
