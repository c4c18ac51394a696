package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/feedlens/api/internal/domain"
	"github.com/feedlens/api/internal/gmc"
	"github.com/feedlens/api/internal/platform/requestctx"
	"github.com/feedlens/api/internal/repositories"
)

const (
	defaultCacheTTL        = 10 * time.Minute
	defaultProductPageSize = 50
	maxProductPageSize     = 250

	syncTriggerRefresh = "cache_refresh"
)

// ProductServiceDeps groups constructor parameters for the product service.
type ProductServiceDeps struct {
	Credentials repositories.CredentialRepository
	Clients     ClientFactory
	Events      SyncEventPublisher
	CacheTTL    time.Duration
	Clock       func() time.Time
}

type productService struct {
	credentials repositories.CredentialRepository
	clients     ClientFactory
	events      SyncEventPublisher
	cache       *productCache
	clock       func() time.Time
}

// ErrCredentialRepositoryMissing signals that the credential repository dependency is absent.
var ErrCredentialRepositoryMissing = errors.New("product service: credential repository is not configured")

// ErrClientFactoryMissing signals that the upstream client factory dependency is absent.
var ErrClientFactoryMissing = errors.New("product service: client factory is not configured")

// NewProductService constructs the product service with the supplied dependencies.
func NewProductService(deps ProductServiceDeps) (ProductService, error) {
	if deps.Credentials == nil {
		return nil, ErrCredentialRepositoryMissing
	}
	if deps.Clients == nil {
		return nil, ErrClientFactoryMissing
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &productService{
		credentials: deps.Credentials,
		clients:     deps.Clients,
		events:      deps.Events,
		cache:       newProductCache(ttl, clock),
		clock:       clock,
	}, nil
}

// GetProducts serves one page of the reconciled catalog. A transient upstream
// failure degrades to an empty page only for accounts that have been served
// before; a first-ever load propagates so an outage is distinguishable from
// an empty catalog. Every other failure propagates typed.
func (s *productService) GetProducts(ctx context.Context, account domain.MerchantAccount, page, pageSize int, search string) (ProductPage, error) {
	products, err := s.catalog(ctx, account)
	if err != nil {
		if errors.Is(err, gmc.ErrTransient) && s.cache.has(account.ID) {
			requestctx.Logger(ctx).Warn("products: upstream unavailable, serving empty page",
				zap.String("account_id", account.ID),
				zap.Error(err))
			products = nil
		} else {
			return ProductPage{}, err
		}
	}

	filtered := filterProducts(products, search)
	return paginateProducts(filtered, page, pageSize), nil
}

// GetStats summarises approval state across the full catalog. Unlike
// GetProducts it never degrades: a stale or missing catalog would produce
// misleading approval rates, so errors propagate.
func (s *productService) GetStats(ctx context.Context, account domain.MerchantAccount) (AccountStats, error) {
	products, err := s.catalog(ctx, account)
	if err != nil {
		return AccountStats{}, err
	}

	stats := AccountStats{TotalProducts: len(products)}
	for _, product := range products {
		switch product.Status {
		case domain.StatusApproved:
			stats.ApprovedProducts++
		case domain.StatusPending:
			stats.PendingProducts++
		case domain.StatusDisapproved:
			stats.DisapprovedProducts++
		}
	}
	rate := 0.0
	if stats.TotalProducts > 0 {
		rate = float64(stats.ApprovedProducts) / float64(stats.TotalProducts) * 100
	}
	stats.ApprovalRate = fmt.Sprintf("%.1f%%", rate)
	return stats, nil
}

// catalog returns the normalized product list, refetching from upstream when
// the cached copy is missing or expired. An auth failure evicts the cache
// entry so the next call after re-authentication starts clean.
func (s *productService) catalog(ctx context.Context, account domain.MerchantAccount) ([]domain.Product, error) {
	if cached, ok := s.cache.get(account.ID); ok {
		return cached, nil
	}

	tokens, err := s.credentials.Get(ctx, account.ID)
	if err != nil {
		if isRepoNotFound(err) {
			return nil, ErrMissingCredentials
		}
		return nil, fmt.Errorf("products: load credentials: %w", err)
	}
	if tokens.IsZero() {
		return nil, ErrMissingCredentials
	}

	client, err := s.clients(ctx, account, tokens)
	if err != nil {
		return nil, fmt.Errorf("products: build client: %w", err)
	}

	started := s.clock()
	products, err := s.fetchCatalog(ctx, client)
	if err != nil {
		if errors.Is(err, gmc.ErrAuth) || errors.Is(err, gmc.ErrPermission) {
			// never serve stale data past an access failure
			s.cache.invalidate(account.ID)
		}
		return nil, err
	}

	s.cache.put(account.ID, products)
	s.publishSync(ctx, account.ID, len(products), s.clock().Sub(started))
	return products, nil
}

// fetchCatalog pulls both listings and reconciles them into the normalized view.
func (s *productService) fetchCatalog(ctx context.Context, client MerchantClient) ([]domain.Product, error) {
	records, err := client.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("products: list products: %w", err)
	}
	statuses, err := client.ListProductStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("products: list statuses: %w", err)
	}

	idx := buildStatusIndex(statuses)
	products := make([]domain.Product, 0, len(records))
	for _, record := range records {
		products = append(products, normalizeProduct(record, idx.match(record)))
	}
	return products, nil
}

func (s *productService) publishSync(ctx context.Context, accountID string, count int, elapsed time.Duration) {
	if s.events == nil {
		return
	}
	event := SyncEventMessage{
		AccountID:    accountID,
		ProductCount: count,
		DurationMs:   elapsed.Milliseconds(),
		Trigger:      syncTriggerRefresh,
		OccurredAt:   s.clock().UTC(),
	}
	if _, err := s.events.PublishSyncEvent(ctx, event); err != nil {
		requestctx.Logger(ctx).Warn("products: sync event publish failed",
			zap.String("account_id", accountID),
			zap.Error(err))
	}
}

func filterProducts(products []domain.Product, search string) []domain.Product {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return products
	}
	var filtered []domain.Product
	for _, product := range products {
		if strings.Contains(strings.ToLower(product.Title), needle) ||
			strings.Contains(strings.ToLower(product.Description), needle) ||
			strings.Contains(strings.ToLower(product.ID), needle) ||
			strings.Contains(strings.ToLower(product.Brand), needle) {
			filtered = append(filtered, product)
		}
	}
	return filtered
}

func paginateProducts(products []domain.Product, page, pageSize int) ProductPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultProductPageSize
	}
	if pageSize > maxProductPageSize {
		pageSize = maxProductPageSize
	}

	total := len(products)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]domain.Product, end-start)
	copy(items, products[start:end])

	return ProductPage{
		Products:   items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

func isRepoNotFound(err error) bool {
	if errors.Is(err, repositories.ErrCredentialsNotFound) {
		return true
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}
