package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/feedlens/api/internal/domain"
)

var (
	// ErrMissingCredentials indicates no stored token pair exists for the account.
	// The call fails before any upstream request is made.
	ErrMissingCredentials = errors.New("merchant: account has no stored credentials")
	// ErrAccountNotFound indicates the account is not linked for the requesting user.
	ErrAccountNotFound = errors.New("accounts: account not found")
)

// MerchantClient is the upstream adapter surface the services consume. The
// concrete implementation pages each listing to exhaustion.
type MerchantClient interface {
	ListProducts(ctx context.Context) ([]domain.ProductRecord, error)
	ListProductStatuses(ctx context.Context) ([]domain.StatusRecord, error)
	ListAccountIssues(ctx context.Context) ([]domain.AccountIssue, error)
	GetAccount(ctx context.Context) (domain.AccountInfo, error)
}

// ClientFactory builds a MerchantClient bound to one merchant account and the
// credentials of the user who linked it. account.MerchantID addresses the
// upstream; account.ID keys refreshed-token persistence and is empty while a
// link is still being verified.
type ClientFactory func(ctx context.Context, account domain.MerchantAccount, tokens domain.TokenPair) (MerchantClient, error)

// ProductService serves reconciled product views and approval statistics for
// a resolved linked account.
type ProductService interface {
	GetProducts(ctx context.Context, account domain.MerchantAccount, page, pageSize int, search string) (ProductPage, error)
	GetStats(ctx context.Context, account domain.MerchantAccount) (AccountStats, error)
}

// ProductPage is one page of the filtered product list.
type ProductPage struct {
	Products   []domain.Product
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// AccountStats summarises approval state across the account's catalog.
type AccountStats struct {
	TotalProducts       int
	ApprovedProducts    int
	PendingProducts     int
	DisapprovedProducts int
	ApprovalRate        string
}

// IssueService builds the needs-attention report for a merchant account.
type IssueService interface {
	GetNeedsAttention(ctx context.Context, account domain.MerchantAccount) ([]domain.IssueGroup, error)
}

// AccountService manages the linked-account registry for dashboard users.
type AccountService interface {
	LinkAccount(ctx context.Context, cmd LinkAccountCommand) (domain.MerchantAccount, error)
	ListAccounts(ctx context.Context, userID string) ([]domain.MerchantAccount, error)
	ResolveAccount(ctx context.Context, userID, accountID string) (domain.MerchantAccount, error)
}

// LinkAccountCommand carries the inputs for linking a merchant account.
type LinkAccountCommand struct {
	UserID     string
	MerchantID string
	Tokens     domain.TokenPair
}

// SyncEventPublisher emits feed sync events after a successful refetch.
type SyncEventPublisher interface {
	PublishSyncEvent(ctx context.Context, event SyncEventMessage) (string, error)
}

// SyncEventMessage describes one completed catalog refetch.
type SyncEventMessage struct {
	AccountID    string    `json:"accountId"`
	ProductCount int       `json:"productCount"`
	DurationMs   int64     `json:"durationMs"`
	Trigger      string    `json:"trigger"`
	OccurredAt   time.Time `json:"occurredAt"`
}
