package gmc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/content/v2.1"
	"google.golang.org/api/option"

	domain "github.com/feedlens/api/internal/domain"
)

const (
	defaultPageSize  = 250
	defaultPageDelay = 50 * time.Millisecond
)

// OAuthApp holds the dashboard's Google OAuth application credentials used
// to mint token sources for linked accounts.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
}

// TokenSaver persists a refreshed token pair. The OAuth transport refreshes
// expired access tokens transparently; without persistence the next process
// would refresh again from the same refresh token.
type TokenSaver func(ctx context.Context, tokens domain.TokenPair) error

// Client wraps the Content API for a single merchant account. All listing
// calls page to exhaustion with a rate-limited gap between pages.
type Client struct {
	svc        *content.APIService
	merchantID uint64
	pages      *rate.Limiter
	pageSize   int64
}

// ClientOption customises Client behaviour.
type ClientOption func(*Client)

// WithPageSize overrides the upstream page size.
func WithPageSize(size int64) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithPageDelay overrides the minimum gap between consecutive page fetches.
func WithPageDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		if delay > 0 {
			c.pages = rate.NewLimiter(rate.Every(delay), 1)
		}
	}
}

// NewClient wraps an authenticated Content API service for one merchant account.
func NewClient(svc *content.APIService, merchantID string, opts ...ClientOption) (*Client, error) {
	if svc == nil {
		return nil, errors.New("gmc: content service is required")
	}
	id, err := strconv.ParseUint(strings.TrimSpace(merchantID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("gmc: invalid merchant id %q: %w", merchantID, err)
	}
	client := &Client{
		svc:        svc,
		merchantID: id,
		pages:      rate.NewLimiter(rate.Every(defaultPageDelay), 1),
		pageSize:   defaultPageSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewUserService builds a Content API service authenticated as the end user
// whose tokens are supplied. Refreshed tokens are handed to saver before use
// continues.
func NewUserService(ctx context.Context, app OAuthApp, tokens domain.TokenPair, saver TokenSaver, extra ...option.ClientOption) (*content.APIService, error) {
	if strings.TrimSpace(app.ClientID) == "" || strings.TrimSpace(app.ClientSecret) == "" {
		return nil, errors.New("gmc: oauth application credentials are required")
	}
	if tokens.IsZero() {
		return nil, errors.New("gmc: token pair is required")
	}

	conf := &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{content.ContentScope},
	}
	base := conf.TokenSource(ctx, &oauth2.Token{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Expiry:       tokens.Expiry,
	})

	var source oauth2.TokenSource = base
	if saver != nil {
		source = &savingTokenSource{ctx: ctx, base: base, save: saver, lastAccess: tokens.AccessToken}
	}

	opts := append([]option.ClientOption{option.WithTokenSource(source)}, extra...)
	svc, err := content.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmc: create content service: %w", err)
	}
	return svc, nil
}

// savingTokenSource forwards to the refreshing source and persists any new
// token pair it observes.
type savingTokenSource struct {
	ctx        context.Context
	base       oauth2.TokenSource
	save       TokenSaver
	lastAccess string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.lastAccess {
		s.lastAccess = token.AccessToken
		pair := domain.TokenPair{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			Expiry:       token.Expiry,
		}
		if err := s.save(s.ctx, pair); err != nil {
			return nil, fmt.Errorf("gmc: persist refreshed token: %w", err)
		}
	}
	return token, nil
}

// ListProducts fetches the full product catalog for the account.
func (c *Client) ListProducts(ctx context.Context) ([]domain.ProductRecord, error) {
	var records []domain.ProductRecord
	pageToken := ""
	for {
		if err := c.pages.Wait(ctx); err != nil {
			return nil, err
		}
		call := c.svc.Products.List(c.merchantID).MaxResults(c.pageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, classify(err)
		}
		for _, product := range resp.Resources {
			if product == nil {
				continue
			}
			records = append(records, productRecordFromAPI(product))
		}
		if resp.NextPageToken == "" {
			return records, nil
		}
		pageToken = resp.NextPageToken
	}
}

// ListProductStatuses fetches the full status listing for the account.
func (c *Client) ListProductStatuses(ctx context.Context) ([]domain.StatusRecord, error) {
	var records []domain.StatusRecord
	pageToken := ""
	for {
		if err := c.pages.Wait(ctx); err != nil {
			return nil, err
		}
		call := c.svc.Productstatuses.List(c.merchantID).MaxResults(c.pageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, classify(err)
		}
		for _, status := range resp.Resources {
			if status == nil {
				continue
			}
			records = append(records, statusRecordFromAPI(status))
		}
		if resp.NextPageToken == "" {
			return records, nil
		}
		pageToken = resp.NextPageToken
	}
}

// ListAccountIssues fetches account-level diagnostics. Accounts without the
// accountstatuses capability report an empty list rather than an error.
func (c *Client) ListAccountIssues(ctx context.Context) ([]domain.AccountIssue, error) {
	status, err := c.svc.Accountstatuses.Get(c.merchantID, c.merchantID).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}
	issues := make([]domain.AccountIssue, 0, len(status.AccountLevelIssues))
	for _, issue := range status.AccountLevelIssues {
		if issue == nil {
			continue
		}
		issues = append(issues, domain.AccountIssue{
			ID:            issue.Id,
			Title:         issue.Title,
			Severity:      issue.Severity,
			Detail:        issue.Detail,
			Documentation: issue.Documentation,
			Country:       issue.Country,
		})
	}
	return issues, nil
}

// GetAccount fetches metadata for the wrapped merchant account.
func (c *Client) GetAccount(ctx context.Context) (domain.AccountInfo, error) {
	account, err := c.svc.Accounts.Get(c.merchantID, c.merchantID).Context(ctx).Do()
	if err != nil {
		return domain.AccountInfo{}, classify(err)
	}
	return accountInfoFromAPI(account), nil
}

// ListLinkedAccounts lists the sub-accounts visible under the merchant
// (multi-client accounts only; standalone accounts return themselves).
func (c *Client) ListLinkedAccounts(ctx context.Context) ([]domain.AccountInfo, error) {
	resp, err := c.svc.Accounts.List(c.merchantID).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			info, getErr := c.GetAccount(ctx)
			if getErr != nil {
				return nil, getErr
			}
			return []domain.AccountInfo{info}, nil
		}
		return nil, classify(err)
	}
	accounts := make([]domain.AccountInfo, 0, len(resp.Resources))
	for _, account := range resp.Resources {
		if account == nil {
			continue
		}
		accounts = append(accounts, accountInfoFromAPI(account))
	}
	return accounts, nil
}

func productRecordFromAPI(product *content.Product) domain.ProductRecord {
	return domain.ProductRecord{
		ID:                    product.Id,
		OfferID:               product.OfferId,
		Title:                 product.Title,
		Description:           product.Description,
		ImageLink:             product.ImageLink,
		Brand:                 product.Brand,
		FeedLabel:             product.FeedLabel,
		Availability:          product.Availability,
		ProductTypes:          product.ProductTypes,
		GoogleProductCategory: product.GoogleProductCategory,
	}
}

// statusRecordFromAPI maps a v2.1 ProductStatus. The resource carries no
// category fields; those come from the product listing instead.
func statusRecordFromAPI(status *content.ProductStatus) domain.StatusRecord {
	record := domain.StatusRecord{
		ProductID: status.ProductId,
		Title:     status.Title,
		Link:      status.Link,
	}
	for _, dest := range status.DestinationStatuses {
		if dest == nil {
			continue
		}
		record.Destinations = append(record.Destinations, domain.DestinationStatus{
			Destination: dest.Destination,
			Status:      dest.Status,
		})
	}
	for _, issue := range status.ItemLevelIssues {
		if issue == nil {
			continue
		}
		record.Issues = append(record.Issues, itemIssueFromAPI(issue))
	}
	return record
}

func itemIssueFromAPI(issue *content.ProductStatusItemLevelIssue) domain.ItemIssue {
	return domain.ItemIssue{
		Code:          issue.Code,
		Severity:      issue.Servability,
		AttributeName: issue.AttributeName,
		Description:   issue.Description,
		Detail:        issue.Detail,
		Documentation: issue.Documentation,
	}
}

func accountInfoFromAPI(account *content.Account) domain.AccountInfo {
	info := domain.AccountInfo{
		MerchantID: strconv.FormatUint(account.Id, 10),
		Name:       account.Name,
		WebsiteURL: account.WebsiteUrl,
	}
	if account.BusinessInformation != nil && account.BusinessInformation.Address != nil {
		info.Country = account.BusinessInformation.Address.Country
	}
	return info
}
