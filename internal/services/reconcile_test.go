package services

import (
	"testing"

	domain "github.com/feedlens/api/internal/domain"
)

func TestStatusIndexMatch(t *testing.T) {
	records := []domain.StatusRecord{
		{ProductID: "online:en:US:sku-1", OfferID: "sku-1"},
		{ProductID: "online:en:US:sku-2"},
		{OfferID: "sku-3"},
	}
	idx := buildStatusIndex(records)

	cases := []struct {
		name    string
		product domain.ProductRecord
		want    string
		miss    bool
	}{
		{
			name:    "exact full id",
			product: domain.ProductRecord{ID: "online:en:US:sku-1"},
			want:    "online:en:US:sku-1",
		},
		{
			name:    "bare offer id against prefixed status",
			product: domain.ProductRecord{ID: "sku-2"},
			want:    "online:en:US:sku-2",
		},
		{
			name:    "prefixed product against bare status",
			product: domain.ProductRecord{ID: "online:en:US:sku-3"},
			want:    "",
		},
		{
			name:    "offer id fallback when rest id is absent",
			product: domain.ProductRecord{OfferID: "sku-1"},
			want:    "online:en:US:sku-1",
		},
		{
			name:    "no match",
			product: domain.ProductRecord{ID: "online:en:US:sku-9"},
			miss:    true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := idx.match(tc.product)
			if tc.miss {
				if got != nil {
					t.Fatalf("expected no match, got %q", got.ProductID)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a match, got nil")
			}
			if tc.want != "" && got.ProductID != tc.want {
				t.Fatalf("matched %q, want %q", got.ProductID, tc.want)
			}
		})
	}
}

func TestStatusIndexMatchDifferentPrefixes(t *testing.T) {
	// The two endpoints may disagree on the prefix entirely; only the last
	// segment is shared.
	idx := buildStatusIndex([]domain.StatusRecord{
		{ProductID: "online:de:DE:sku-7"},
	})
	got := idx.match(domain.ProductRecord{ID: "local:en:US:sku-7"})
	if got == nil {
		t.Fatal("expected stripped-segment match, got nil")
	}
}

func TestNormalizeProductWithoutStatus(t *testing.T) {
	product := normalizeProduct(domain.ProductRecord{ID: "online:en:US:sku-1", Title: "Widget"}, nil)

	if product.Status != domain.StatusUnknown {
		t.Fatalf("status = %q, want %q", product.Status, domain.StatusUnknown)
	}
	if product.Title != "Widget" {
		t.Fatalf("title = %q", product.Title)
	}
	for name, got := range map[string]string{
		"description":           product.Description,
		"brand":                 product.Brand,
		"productType":           product.ProductType,
		"googleProductCategory": product.GoogleProductCategory,
	} {
		if got != fieldPlaceholder {
			t.Errorf("%s = %q, want placeholder", name, got)
		}
	}
	if product.Availability != defaultAvailability {
		t.Fatalf("availability = %q, want %q", product.Availability, defaultAvailability)
	}
}

func TestDeriveApprovalStatus(t *testing.T) {
	cases := []struct {
		name   string
		status domain.StatusRecord
		want   domain.ApprovalStatus
	}{
		{
			name: "shopping destination preferred over first",
			status: domain.StatusRecord{Destinations: []domain.DestinationStatus{
				{Destination: "DisplayAds", Status: "approved"},
				{Destination: "Shopping", Status: "disapproved"},
			}},
			want: domain.StatusDisapproved,
		},
		{
			name: "disapproved wins over approved substring",
			status: domain.StatusRecord{Destinations: []domain.DestinationStatus{
				{Destination: "Shopping", Status: "partially_disapproved"},
			}},
			want: domain.StatusDisapproved,
		},
		{
			name: "approval status field used when status empty",
			status: domain.StatusRecord{Destinations: []domain.DestinationStatus{
				{Destination: "Shopping", ApprovalStatus: "Approved"},
			}},
			want: domain.StatusApproved,
		},
		{
			name: "pending substring",
			status: domain.StatusRecord{Destinations: []domain.DestinationStatus{
				{Destination: "Shopping", Status: "pending_review"},
			}},
			want: domain.StatusPending,
		},
		{
			name: "unrecognised value passes through lowered",
			status: domain.StatusRecord{Destinations: []domain.DestinationStatus{
				{Destination: "Shopping", Status: "Under_Appeal"},
			}},
			want: domain.ApprovalStatus("under_appeal"),
		},
		{
			name: "no destinations, error issue disapproves",
			status: domain.StatusRecord{Issues: []domain.ItemIssue{
				{Code: "image_missing", Severity: "error"},
			}},
			want: domain.StatusDisapproved,
		},
		{
			name: "no destinations, warning issue pends",
			status: domain.StatusRecord{Issues: []domain.ItemIssue{
				{Code: "short_description", Severity: "warning"},
			}},
			want: domain.StatusPending,
		},
		{
			name:   "nothing at all",
			status: domain.StatusRecord{},
			want:   domain.StatusUnknown,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := deriveApprovalStatus(&tc.status); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizeProductCategoryFromListing(t *testing.T) {
	rec := domain.ProductRecord{
		ID:                    "sku-1",
		ProductTypes:          []string{"Home", "Kitchen"},
		GoogleProductCategory: "Home & Garden > Kitchen & Dining",
	}

	product := normalizeProduct(rec, nil)
	if product.ProductType != "Home > Kitchen" {
		t.Fatalf("productType = %q", product.ProductType)
	}
	if product.GoogleProductCategory != "Home & Garden > Kitchen & Dining" {
		t.Fatalf("googleProductCategory = %q", product.GoogleProductCategory)
	}

	// a status record without category data must not blank the listing's
	withStatus := normalizeProduct(rec, &domain.StatusRecord{
		Destinations: []domain.DestinationStatus{{Destination: "Shopping", Status: "approved"}},
	})
	if withStatus.ProductType != "Home > Kitchen" || withStatus.GoogleProductCategory != "Home & Garden > Kitchen & Dining" {
		t.Fatalf("categories lost: %q, %q", withStatus.ProductType, withStatus.GoogleProductCategory)
	}

	// status-side values still win when present
	override := normalizeProduct(rec, &domain.StatusRecord{ProductType: []string{"Mugs"}})
	if override.ProductType != "Mugs" {
		t.Fatalf("productType = %q, want status value", override.ProductType)
	}
}

func TestNormalizeProductCategoryJoin(t *testing.T) {
	status := &domain.StatusRecord{
		ProductType:           []string{"Home", "Kitchen", "Mugs"},
		GoogleProductCategory: nil,
		Destinations: []domain.DestinationStatus{
			{Destination: "Shopping", Status: "approved"},
		},
		Issues: []domain.ItemIssue{
			{Code: "price_mismatch", Severity: "error", Description: "Price mismatch"},
			{Code: "blank", Severity: "warning"},
		},
	}
	product := normalizeProduct(domain.ProductRecord{ID: "sku-1"}, status)

	if product.ProductType != "Home > Kitchen > Mugs" {
		t.Fatalf("productType = %q", product.ProductType)
	}
	if product.GoogleProductCategory != fieldPlaceholder {
		t.Fatalf("googleProductCategory = %q", product.GoogleProductCategory)
	}
	if len(product.DisapprovalReasons) != 1 || product.DisapprovalReasons[0] != "Price mismatch" {
		t.Fatalf("disapprovalReasons = %v", product.DisapprovalReasons)
	}
}
