package services

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/feedlens/api/internal/domain"
	"github.com/feedlens/api/internal/repositories"
)

const (
	unknownIssueCode = "UNKNOWN"

	syntheticDisapprovedCode = "DISAPPROVED"
	syntheticPendingCode     = "PENDING"

	impactLow    = "Low impact"
	impactMedium = "Medium impact"
	impactHigh   = "High impact"
)

// IssueServiceDeps groups constructor parameters for the issue service.
type IssueServiceDeps struct {
	Credentials repositories.CredentialRepository
	Clients     ClientFactory
}

type issueService struct {
	credentials repositories.CredentialRepository
	clients     ClientFactory
}

// NewIssueService constructs the issue service with the supplied dependencies.
func NewIssueService(deps IssueServiceDeps) (IssueService, error) {
	if deps.Credentials == nil {
		return nil, ErrCredentialRepositoryMissing
	}
	if deps.Clients == nil {
		return nil, ErrClientFactoryMissing
	}
	return &issueService{credentials: deps.Credentials, clients: deps.Clients}, nil
}

// GetNeedsAttention builds the grouped issue report for one account. The
// report is recomputed on every call and always reflects live upstream data;
// any upstream failure aborts the whole report, partial results are never
// returned.
func (s *issueService) GetNeedsAttention(ctx context.Context, account domain.MerchantAccount) ([]domain.IssueGroup, error) {
	tokens, err := s.credentials.Get(ctx, account.ID)
	if err != nil {
		if isRepoNotFound(err) {
			return nil, ErrMissingCredentials
		}
		return nil, fmt.Errorf("issues: load credentials: %w", err)
	}
	if tokens.IsZero() {
		return nil, ErrMissingCredentials
	}

	client, err := s.clients(ctx, account, tokens)
	if err != nil {
		return nil, fmt.Errorf("issues: build client: %w", err)
	}

	statuses, err := client.ListProductStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("issues: list statuses: %w", err)
	}
	accountIssues, err := client.ListAccountIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("issues: list account issues: %w", err)
	}

	grouper := newIssueGrouper()
	for i := range statuses {
		grouper.addStatus(&statuses[i])
	}
	for _, issue := range accountIssues {
		grouper.addAccountIssue(issue)
	}
	return grouper.report(), nil
}

// issueGrouper accumulates issue groups in first-seen order.
type issueGrouper struct {
	groups map[string]*domain.IssueGroup
	order  []string
	// members tracks product ids per group for dedup
	members map[string]map[string]bool
	// flagged tracks products that contributed an item-level issue to any
	// group; such products are excluded from the synthetic status buckets
	flagged map[string]bool
}

func newIssueGrouper() *issueGrouper {
	return &issueGrouper{
		groups:  make(map[string]*domain.IssueGroup),
		members: make(map[string]map[string]bool),
		flagged: make(map[string]bool),
	}
}

// addStatus folds one product status record into the group map. Item-level
// issues are collected from the record root and, redundantly, from every
// destination block; the per-group member set absorbs the duplicates.
func (g *issueGrouper) addStatus(status *domain.StatusRecord) {
	productID := firstNonEmpty(status.OfferID, status.ProductID)

	issues := make([]domain.ItemIssue, 0, len(status.Issues))
	issues = append(issues, status.Issues...)
	for _, dest := range status.Destinations {
		issues = append(issues, dest.Issues...)
	}

	for _, issue := range issues {
		g.addToGroup(issueGroupKey(issue), issue, status, productID)
		g.flagged[productID] = true
	}

	if len(status.Issues) == 0 && !g.flagged[productID] {
		g.addSyntheticStatus(status, productID)
	}
}

// addSyntheticStatus assigns a product with no item-level diagnostics but a
// non-approved destination to a generic status bucket. Only the first
// matching destination counts; a product disapproved on one destination and
// pending on another lands in a single bucket.
func (g *issueGrouper) addSyntheticStatus(status *domain.StatusRecord, productID string) {
	for _, dest := range status.Destinations {
		raw := strings.ToLower(strings.TrimSpace(firstNonEmpty(dest.Status, dest.ApprovalStatus)))
		switch {
		case strings.Contains(raw, "disapprove"):
			g.addToGroup(syntheticDisapprovedCode, domain.ItemIssue{
				Code:        syntheticDisapprovedCode,
				Severity:    "critical",
				Description: "Product disapproved",
				Detail:      "The product is disapproved for at least one destination.",
			}, status, productID)
			return
		case strings.Contains(raw, "pend"):
			g.addToGroup(syntheticPendingCode, domain.ItemIssue{
				Code:        syntheticPendingCode,
				Severity:    "warning",
				Description: "Product pending review",
				Detail:      "The product is awaiting review for at least one destination.",
			}, status, productID)
			return
		}
	}
}

func (g *issueGrouper) addToGroup(key string, issue domain.ItemIssue, status *domain.StatusRecord, productID string) {
	group, ok := g.groups[key]
	if !ok {
		group = &domain.IssueGroup{
			Code:          firstNonEmpty(issue.Code, unknownIssueCode),
			AttributeName: issue.AttributeName,
			Title:         firstNonEmpty(issue.Description, issue.Code, unknownIssueCode),
			Severity:      groupSeverity(issue.Severity),
			ExampleDetail: firstNonEmpty(issue.Detail, issue.Documentation),
		}
		g.groups[key] = group
		g.members[key] = make(map[string]bool)
		g.order = append(g.order, key)
	}

	if productID == "" || g.members[key][productID] {
		return
	}
	g.members[key][productID] = true
	group.Products = append(group.Products, productID)
	group.ProductDetails = append(group.ProductDetails, domain.IssueProductDetail{
		ID:    productID,
		Title: status.Title,
		Link:  status.Link,
	})
}

// addAccountIssue merges an account-level diagnostic into the same key space
// by code. Account issues never carry product associations; when the code
// collides with a product-level group the existing group and its products
// are kept as-is.
func (g *issueGrouper) addAccountIssue(issue domain.AccountIssue) {
	key := firstNonEmpty(issue.ID, unknownIssueCode)
	if _, ok := g.groups[key]; ok {
		return
	}
	g.groups[key] = &domain.IssueGroup{
		Code:          key,
		Title:         firstNonEmpty(issue.Title, key),
		Severity:      groupSeverity(issue.Severity),
		ExampleDetail: firstNonEmpty(issue.Detail, issue.Documentation),
	}
	g.members[key] = make(map[string]bool)
	g.order = append(g.order, key)
}

// report finalises counts and impact bands, in first-seen group order.
func (g *issueGrouper) report() []domain.IssueGroup {
	groups := make([]domain.IssueGroup, 0, len(g.order))
	for _, key := range g.order {
		group := *g.groups[key]
		group.ProductCount = len(group.Products)
		group.Impact = impactBand(group.ProductCount)
		groups = append(groups, group)
	}
	return groups
}

func issueGroupKey(issue domain.ItemIssue) string {
	code := firstNonEmpty(issue.Code, unknownIssueCode)
	if attr := strings.TrimSpace(issue.AttributeName); attr != "" {
		return code + ":" + attr
	}
	return code
}

func groupSeverity(severity string) domain.IssueSeverity {
	if severityBlocks(severity) {
		return domain.SeverityCritical
	}
	return domain.SeverityWarning
}

func impactBand(count int) string {
	switch {
	case count < 5:
		return impactLow
	case count < 20:
		return impactMedium
	default:
		return impactHigh
	}
}
