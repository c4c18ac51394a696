package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/feedlens/api/internal/domain"
	"github.com/feedlens/api/internal/gmc"
	"github.com/feedlens/api/internal/platform/auth"
	"github.com/feedlens/api/internal/platform/httpx"
	"github.com/feedlens/api/internal/services"
)

// AccountHandlers serves the linked-account registry and the account scoped
// product, stats, and needs-attention views.
type AccountHandlers struct {
	accounts services.AccountService
	products services.ProductService
	issues   services.IssueService

	clientCacheTTL time.Duration
}

// AccountHandlersDeps groups the collaborators required by the account handlers.
type AccountHandlersDeps struct {
	Accounts services.AccountService
	Products services.ProductService
	Issues   services.IssueService

	// ClientCacheTTL drives the Cache-Control max-age on catalog responses.
	// Zero disables the header.
	ClientCacheTTL time.Duration
}

// NewAccountHandlers constructs the account handlers.
func NewAccountHandlers(deps AccountHandlersDeps) *AccountHandlers {
	return &AccountHandlers{
		accounts:       deps.Accounts,
		products:       deps.Products,
		issues:         deps.Issues,
		clientCacheTTL: deps.ClientCacheTTL,
	}
}

// Routes registers the account endpoints on the provided router group.
func (h *AccountHandlers) Routes(r chi.Router) {
	r.Get("/", h.listAccounts)
	r.Post("/", h.linkAccount)
	r.Route("/{accountID}", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/stats", h.getStats)
		r.Get("/needs-attention", h.needsAttention)
	})
}

func (h *AccountHandlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	accounts, err := h.accounts.ListAccounts(ctx, identity.UID)
	if err != nil {
		writeMerchantError(ctx, w, err)
		return
	}

	payload := make([]accountPayload, 0, len(accounts))
	for _, account := range accounts {
		payload = append(payload, buildAccountPayload(account))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AccountHandlers) linkAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req linkAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	merchantID := strings.TrimSpace(req.MerchantID)
	if merchantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "merchant id is required", http.StatusBadRequest))
		return
	}

	account, err := h.accounts.LinkAccount(ctx, services.LinkAccountCommand{
		UserID:     identity.UID,
		MerchantID: merchantID,
		Tokens: domain.TokenPair{
			AccessToken:  strings.TrimSpace(req.AccessToken),
			RefreshToken: strings.TrimSpace(req.RefreshToken),
			Expiry:       req.Expiry,
		},
	})
	if err != nil {
		writeMerchantError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildAccountPayload(account))
}

func (h *AccountHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := h.resolveAccount(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page := positiveQueryInt(query.Get("page"))
	pageSize := positiveQueryInt(query.Get("pageSize"))
	search := strings.TrimSpace(query.Get("search"))

	result, err := h.products.GetProducts(ctx, account, page, pageSize, search)
	if err != nil {
		writeMerchantError(ctx, w, err)
		return
	}

	products := make([]productPayload, 0, len(result.Products))
	for _, product := range result.Products {
		products = append(products, buildProductPayload(product))
	}

	h.setClientCache(w)
	writeJSONResponse(w, http.StatusOK, productPagePayload{
		Products:   products,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	})
}

func (h *AccountHandlers) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := h.resolveAccount(w, r)
	if !ok {
		return
	}

	stats, err := h.products.GetStats(ctx, account)
	if err != nil {
		writeMerchantError(ctx, w, err)
		return
	}

	h.setClientCache(w)
	writeJSONResponse(w, http.StatusOK, statsPayload{
		TotalProducts:       stats.TotalProducts,
		ApprovedProducts:    stats.ApprovedProducts,
		PendingProducts:     stats.PendingProducts,
		DisapprovedProducts: stats.DisapprovedProducts,
		ApprovalRate:        stats.ApprovalRate,
	})
}

func (h *AccountHandlers) needsAttention(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := h.resolveAccount(w, r)
	if !ok {
		return
	}

	groups, err := h.issues.GetNeedsAttention(ctx, account)
	if err != nil {
		writeMerchantError(ctx, w, err)
		return
	}

	payload := make([]issueGroupPayload, 0, len(groups))
	for _, group := range groups {
		payload = append(payload, buildIssueGroupPayload(group))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// resolveAccount authenticates the request and maps the path parameter onto a
// linked account owned by the caller. Ownership failures surface as 404 so the
// endpoint does not leak which account ids exist.
func (h *AccountHandlers) resolveAccount(w http.ResponseWriter, r *http.Request) (domain.MerchantAccount, bool) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return domain.MerchantAccount{}, false
	}

	accountID := strings.TrimSpace(chi.URLParam(r, "accountID"))
	if accountID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "account id is required", http.StatusBadRequest))
		return domain.MerchantAccount{}, false
	}

	account, err := h.accounts.ResolveAccount(ctx, identity.UID, accountID)
	if err != nil {
		writeMerchantError(ctx, w, err)
		return domain.MerchantAccount{}, false
	}
	return account, true
}

func (h *AccountHandlers) setClientCache(w http.ResponseWriter) {
	if h.clientCacheTTL <= 0 {
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(h.clientCacheTTL.Seconds())))
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// writeMerchantError maps service and upstream failures onto the HTTP envelope.
func writeMerchantError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAccountNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("account_not_found", "merchant account is not linked", http.StatusNotFound))
	case errors.Is(err, services.ErrMissingCredentials), errors.Is(err, gmc.ErrAuth):
		httpx.WriteError(ctx, w, httpx.NewError("reauthentication_required", "stored credentials were rejected, relink the account", http.StatusUnauthorized))
	case errors.Is(err, gmc.ErrPermission):
		httpx.WriteError(ctx, w, httpx.NewError("merchant_access_denied", "the linked user has no access to this merchant account", http.StatusForbidden))
	case errors.Is(err, gmc.ErrTransient):
		httpx.WriteError(ctx, w, httpx.NewError("upstream_unavailable", "merchant center is unavailable, try again later", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "unexpected error", http.StatusInternalServerError))
	}
}

func positiveQueryInt(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 1 {
		return 0
	}
	return value
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type linkAccountRequest struct {
	MerchantID   string    `json:"merchantId"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	Expiry       time.Time `json:"expiry"`
}

type accountPayload struct {
	ID         string `json:"id"`
	MerchantID string `json:"merchantId"`
	Name       string `json:"name"`
	WebsiteURL string `json:"websiteUrl,omitempty"`
	Country    string `json:"country,omitempty"`
	LinkedAt   string `json:"linkedAt"`
	UpdatedAt  string `json:"updatedAt"`
}

func buildAccountPayload(account domain.MerchantAccount) accountPayload {
	return accountPayload{
		ID:         account.ID,
		MerchantID: account.MerchantID,
		Name:       account.Name,
		WebsiteURL: account.WebsiteURL,
		Country:    account.Country,
		LinkedAt:   account.LinkedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  account.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type productPagePayload struct {
	Products   []productPayload `json:"products"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

type productPayload struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	ImageLink             string   `json:"imageLink"`
	Brand                 string   `json:"brand"`
	FeedLabel             string   `json:"feedLabel"`
	ProductType           string   `json:"productType"`
	GoogleProductCategory string   `json:"googleProductCategory"`
	Status                string   `json:"status"`
	Availability          string   `json:"availability"`
	DisapprovalReasons    []string `json:"disapprovalReasons,omitempty"`
}

func buildProductPayload(product domain.Product) productPayload {
	return productPayload{
		ID:                    product.ID,
		Title:                 product.Title,
		Description:           product.Description,
		ImageLink:             product.ImageLink,
		Brand:                 product.Brand,
		FeedLabel:             product.FeedLabel,
		ProductType:           product.ProductType,
		GoogleProductCategory: product.GoogleProductCategory,
		Status:                string(product.Status),
		Availability:          product.Availability,
		DisapprovalReasons:    product.DisapprovalReasons,
	}
}

type statsPayload struct {
	TotalProducts       int    `json:"totalProducts"`
	ApprovedProducts    int    `json:"approvedProducts"`
	PendingProducts     int    `json:"pendingProducts"`
	DisapprovedProducts int    `json:"disapprovedProducts"`
	ApprovalRate        string `json:"approvalRate"`
}

type issueGroupPayload struct {
	Code           string                `json:"code"`
	AttributeName  string                `json:"attributeName,omitempty"`
	Title          string                `json:"title"`
	Severity       string                `json:"severity"`
	ExampleDetail  string                `json:"exampleDetail,omitempty"`
	ProductCount   int                   `json:"productCount"`
	Impact         string                `json:"impact"`
	Products       []string              `json:"products"`
	ProductDetails []issueProductPayload `json:"productDetails"`
}

type issueProductPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link,omitempty"`
}

func buildIssueGroupPayload(group domain.IssueGroup) issueGroupPayload {
	details := make([]issueProductPayload, 0, len(group.ProductDetails))
	for _, detail := range group.ProductDetails {
		details = append(details, issueProductPayload{ID: detail.ID, Title: detail.Title, Link: detail.Link})
	}
	return issueGroupPayload{
		Code:           group.Code,
		AttributeName:  group.AttributeName,
		Title:          group.Title,
		Severity:       string(group.Severity),
		ExampleDetail:  group.ExampleDetail,
		ProductCount:   group.ProductCount,
		Impact:         group.Impact,
		Products:       append([]string(nil), group.Products...),
		ProductDetails: details,
	}
}
