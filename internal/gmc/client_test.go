package gmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/content/v2.1"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...ClientOption) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := content.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("content.NewService: %v", err)
	}
	client, err := NewClient(svc, "1234567", opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestListProductsFollowsPageTokens(t *testing.T) {
	const pageDelay = 150 * time.Millisecond

	var pageTokens []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/1234567/products") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("maxResults"); got != "250" {
			t.Errorf("maxResults = %q, want 250", got)
		}
		pageTokens = append(pageTokens, r.URL.Query().Get("pageToken"))

		resp := &content.ProductsListResponse{}
		start, end := 0, 250
		if len(pageTokens) == 1 {
			resp.NextPageToken = "page-2"
		} else {
			start, end = 250, 260
		}
		for i := start; i < end; i++ {
			resp.Resources = append(resp.Resources, &content.Product{
				Id:                    fmt.Sprintf("online:en:US:sku-%03d", i),
				OfferId:               fmt.Sprintf("sku-%03d", i),
				Title:                 fmt.Sprintf("Product %03d", i),
				ProductTypes:          []string{"Home", "Kitchen"},
				GoogleProductCategory: "Home & Garden",
			})
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	})

	client := newTestClient(t, handler, WithPageDelay(pageDelay))

	started := time.Now()
	records, err := client.ListProducts(context.Background())
	elapsed := time.Since(started)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}

	if len(records) != 260 {
		t.Fatalf("got %d records, want 260", len(records))
	}
	if records[0].OfferID != "sku-000" || records[259].OfferID != "sku-259" {
		t.Fatalf("record boundaries = %q, %q", records[0].OfferID, records[259].OfferID)
	}
	if records[0].GoogleProductCategory != "Home & Garden" || len(records[0].ProductTypes) != 2 {
		t.Fatalf("category fields not mapped: %+v", records[0])
	}
	if len(pageTokens) != 2 || pageTokens[0] != "" || pageTokens[1] != "page-2" {
		t.Fatalf("page tokens = %v", pageTokens)
	}
	if elapsed < pageDelay {
		t.Fatalf("pages fetched %v apart, want at least %v", elapsed, pageDelay)
	}
	if elapsed >= 2*pageDelay {
		t.Fatalf("fetch took %v, the gap after the final page must be skipped", elapsed)
	}
}

func TestListProductStatusesPagesAndMapsFields(t *testing.T) {
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/1234567/productstatuses") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		requests++

		resp := &content.ProductstatusesListResponse{}
		if requests == 1 {
			resp.NextPageToken = "page-2"
			resp.Resources = []*content.ProductStatus{
				{
					ProductId: "online:en:US:sku-1",
					Title:     "Red Mug",
					Link:      "https://shop.example/sku-1",
					DestinationStatuses: []*content.ProductStatusDestinationStatus{
						{Destination: "Shopping", Status: "disapproved"},
					},
					ItemLevelIssues: []*content.ProductStatusItemLevelIssue{
						{
							Code:          "image_too_small",
							Servability:   "disapproved",
							AttributeName: "image_link",
							Description:   "Image too small",
						},
					},
				},
			}
		} else {
			resp.Resources = []*content.ProductStatus{
				{ProductId: "online:en:US:sku-2"},
			}
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	})

	client := newTestClient(t, handler, WithPageDelay(time.Millisecond))

	records, err := client.ListProductStatuses(context.Background())
	if err != nil {
		t.Fatalf("ListProductStatuses: %v", err)
	}

	if requests != 2 {
		t.Fatalf("made %d requests, want 2", requests)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	first := records[0]
	if first.ProductID != "online:en:US:sku-1" || first.Title != "Red Mug" {
		t.Fatalf("first record = %+v", first)
	}
	if len(first.Destinations) != 1 || first.Destinations[0].Status != "disapproved" {
		t.Fatalf("destinations = %+v", first.Destinations)
	}
	if len(first.Issues) != 1 {
		t.Fatalf("issues = %+v", first.Issues)
	}
	issue := first.Issues[0]
	if issue.Code != "image_too_small" || issue.Severity != "disapproved" || issue.AttributeName != "image_link" {
		t.Fatalf("issue = %+v", issue)
	}
	if records[1].ProductID != "online:en:US:sku-2" {
		t.Fatalf("second record = %+v", records[1])
	}
}
