package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	domain "github.com/feedlens/api/internal/domain"
	"github.com/feedlens/api/internal/gmc"
)

func issueServiceWith(t *testing.T, client MerchantClient) IssueService {
	t.Helper()
	calls := 0
	svc, err := NewIssueService(IssueServiceDeps{
		Credentials: &stubCredentialRepository{},
		Clients:     staticFactory(client, &calls),
	})
	if err != nil {
		t.Fatalf("NewIssueService: %v", err)
	}
	return svc
}

func TestNeedsAttentionDedupAcrossProducts(t *testing.T) {
	svc := issueServiceWith(t, &stubMerchantClient{
		listStatusesFn: func(ctx context.Context) ([]domain.StatusRecord, error) {
			return []domain.StatusRecord{
				{OfferID: "sku-1", Issues: []domain.ItemIssue{
					{Code: "image_too_small", Severity: "error", Description: "Image too small"},
				}},
				{OfferID: "sku-2", Issues: []domain.ItemIssue{
					{Code: "image_too_small", Severity: "error", Description: "Image too small"},
				}},
			}, nil
		},
	})

	groups, err := svc.GetNeedsAttention(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("GetNeedsAttention: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	group := groups[0]
	if group.ProductCount != 2 {
		t.Fatalf("productCount = %d, want 2", group.ProductCount)
	}
	if len(group.Products) != len(group.ProductDetails) {
		t.Fatalf("products/details mismatch: %d vs %d", len(group.Products), len(group.ProductDetails))
	}
	if group.Severity != domain.SeverityCritical {
		t.Fatalf("severity = %q", group.Severity)
	}
}

func TestNeedsAttentionDistinctAttributes(t *testing.T) {
	svc := issueServiceWith(t, &stubMerchantClient{
		listStatusesFn: func(ctx context.Context) ([]domain.StatusRecord, error) {
			return []domain.StatusRecord{
				{OfferID: "sku-1", Issues: []domain.ItemIssue{
					{Code: "missing_value", Severity: "warning", AttributeName: "age_group"},
					{Code: "missing_value", Severity: "warning", AttributeName: "gender"},
				}},
			}, nil
		},
	})

	groups, err := svc.GetNeedsAttention(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("GetNeedsAttention: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].AttributeName != "age_group" || groups[1].AttributeName != "gender" {
		t.Fatalf("attribute order = %q, %q", groups[0].AttributeName, groups[1].AttributeName)
	}
}

func TestNeedsAttentionDuplicateIssueOnSameProduct(t *testing.T) {
	// the same issue repeated in a destination block must not double-count
	svc := issueServiceWith(t, &stubMerchantClient{
		listStatusesFn: func(ctx context.Context) ([]domain.StatusRecord, error) {
			issue := domain.ItemIssue{Code: "price_mismatch", Severity: "error"}
			return []domain.StatusRecord{
				{
					OfferID: "sku-1",
					Issues:  []domain.ItemIssue{issue},
					Destinations: []domain.DestinationStatus{
						{Destination: "Shopping", Status: "disapproved", Issues: []domain.ItemIssue{issue}},
					},
				},
			}, nil
		},
	})

	groups, err := svc.GetNeedsAttention(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("GetNeedsAttention: %v", err)
	}
	if len(groups) != 1 || groups[0].ProductCount != 1 {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestNeedsAttentionImpactBands(t *testing.T) {
	cases := []struct {
		count int
		want  string
	}{
		{4, impactLow},
		{5, impactMedium},
		{19, impactMedium},
		{20, impactHigh},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("count_%d", tc.count), func(t *testing.T) {
			svc := issueServiceWith(t, &stubMerchantClient{
				listStatusesFn: func(ctx context.Context) ([]domain.StatusRecord, error) {
					records := make([]domain.StatusRecord, 0, tc.count)
					for i := 0; i < tc.count; i++ {
						records = append(records, domain.StatusRecord{
							OfferID: fmt.Sprintf("sku-%d", i),
							Issues: []domain.ItemIssue{
								{Code: "policy_violation", Severity: "error"},
							},
						})
					}
					return records, nil
				},
			})

			groups, err := svc.GetNeedsAttention(context.Background(), testAccount)
			if err != nil {
				t.Fatalf("GetNeedsAttention: %v", err)
			}
			if len(groups) != 1 {
				t.Fatalf("got %d groups", len(groups))
			}
			if groups[0].Impact != tc.want {
				t.Fatalf("impact = %q, want %q", groups[0].Impact, tc.want)
			}
		})
	}
}

func TestNeedsAttentionSyntheticBuckets(t *testing.T) {
	svc := issueServiceWith(t, &stubMerchantClient{
		listStatusesFn: func(ctx context.Context) ([]domain.StatusRecord, error) {
			return []domain.StatusRecord{
				// disapproved on the first destination, pending on the
				// second: the first hit wins, only DISAPPROVED receives it
				{OfferID: "sku-1", Destinations: []domain.DestinationStatus{
					{Destination: "Shopping", Status: "disapproved"},
					{Destination: "DisplayAds", Status: "pending"},
				}},
				{OfferID: "sku-2", Destinations: []domain.DestinationStatus{
					{Destination: "Shopping", Status: "pending"},
				}},
				// carries an item-level issue, so no synthetic bucket
				{
					OfferID: "sku-3",
					Issues:  []domain.ItemIssue{{Code: "bad_gtin", Severity: "error"}},
					Destinations: []domain.DestinationStatus{
						{Destination: "Shopping", Status: "disapproved"},
					},
				},
			}, nil
		},
	})

	groups, err := svc.GetNeedsAttention(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("GetNeedsAttention: %v", err)
	}

	byCode := make(map[string]domain.IssueGroup)
	for _, group := range groups {
		byCode[group.Code] = group
	}

	disapproved, ok := byCode[syntheticDisapprovedCode]
	if !ok {
		t.Fatal("missing DISAPPROVED bucket")
	}
	if disapproved.ProductCount != 1 || disapproved.Products[0] != "sku-1" {
		t.Fatalf("disapproved bucket = %+v", disapproved)
	}

	pending, ok := byCode[syntheticPendingCode]
	if !ok {
		t.Fatal("missing PENDING bucket")
	}
	if pending.ProductCount != 1 || pending.Products[0] != "sku-2" {
		t.Fatalf("pending bucket = %+v", pending)
	}

	if got := byCode["bad_gtin"].ProductCount; got != 1 {
		t.Fatalf("bad_gtin count = %d", got)
	}
}

func TestNeedsAttentionAccountIssues(t *testing.T) {
	svc := issueServiceWith(t, &stubMerchantClient{
		listStatusesFn: func(ctx context.Context) ([]domain.StatusRecord, error) {
			return []domain.StatusRecord{
				{OfferID: "sku-1", Issues: []domain.ItemIssue{
					{Code: "image_too_small", Severity: "warning"},
				}},
			}, nil
		},
		listAccIssuesFn: func(ctx context.Context) ([]domain.AccountIssue, error) {
			return []domain.AccountIssue{
				{ID: "missing_tax_settings", Title: "Missing tax settings", Severity: "critical", Detail: "Configure tax settings"},
				// collides with the product-level group; first writer wins
				{ID: "image_too_small", Title: "Account-wide image problem", Severity: "critical"},
			}, nil
		},
	})

	groups, err := svc.GetNeedsAttention(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("GetNeedsAttention: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	var account domain.IssueGroup
	for _, group := range groups {
		if group.Code == "missing_tax_settings" {
			account = group
		}
		if group.Code == "image_too_small" && group.ProductCount != 1 {
			t.Fatalf("collided group lost its products: %+v", group)
		}
	}
	if account.ProductCount != 0 || len(account.Products) != 0 {
		t.Fatalf("account group carries products: %+v", account)
	}
	if account.Severity != domain.SeverityCritical {
		t.Fatalf("account severity = %q", account.Severity)
	}
}

func TestNeedsAttentionMissingCredentials(t *testing.T) {
	calls := 0
	svc, err := NewIssueService(IssueServiceDeps{
		Credentials: &stubCredentialRepository{
			getFn: func(ctx context.Context, accountID string) (domain.TokenPair, error) {
				return domain.TokenPair{}, nil
			},
		},
		Clients: staticFactory(&stubMerchantClient{}, &calls),
	})
	if err != nil {
		t.Fatalf("NewIssueService: %v", err)
	}

	if _, err := svc.GetNeedsAttention(context.Background(), testAccount); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
	if calls != 0 {
		t.Fatalf("factory invoked %d times, want 0", calls)
	}
}

func TestNeedsAttentionPropagatesTransient(t *testing.T) {
	svc := issueServiceWith(t, &stubMerchantClient{
		listStatusesFn: func(ctx context.Context) ([]domain.StatusRecord, error) {
			return nil, fmt.Errorf("list statuses: %w", gmc.ErrTransient)
		},
	})

	if _, err := svc.GetNeedsAttention(context.Background(), testAccount); !errors.Is(err, gmc.ErrTransient) {
		t.Fatalf("err = %v, want transient to propagate", err)
	}
}
