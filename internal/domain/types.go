package domain

import "time"

// ApprovalStatus is the canonical approval state derived for a product after
// normalising the upstream per-destination statuses.
type ApprovalStatus string

const (
	StatusApproved    ApprovalStatus = "approved"
	StatusPending     ApprovalStatus = "pending"
	StatusDisapproved ApprovalStatus = "disapproved"
	StatusUnknown     ApprovalStatus = "unknown"
)

// IssueSeverity classifies a needs-attention group.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityWarning  IssueSeverity = "warning"
)

// Product is the reconciled, cached representation of one catalog entry.
// Display attributes default to "-" when the upstream omits them.
type Product struct {
	ID                    string
	Title                 string
	Description           string
	ImageLink             string
	Brand                 string
	FeedLabel             string
	ProductType           string
	GoogleProductCategory string
	Status                ApprovalStatus
	Availability          string
	DisapprovalReasons    []string
}

// ProductRecord is a raw entry from the upstream product listing endpoint.
type ProductRecord struct {
	ID                    string
	OfferID               string
	Title                 string
	Description           string
	ImageLink             string
	Brand                 string
	FeedLabel             string
	Availability          string
	ProductTypes          []string
	GoogleProductCategory string
}

// StatusRecord is a raw entry from the upstream product status endpoint.
// ProductID carries the upstream REST id, OfferID the merchant's own id;
// the two endpoints are not guaranteed to agree on prefix format.
type StatusRecord struct {
	ProductID             string
	OfferID               string
	Title                 string
	Link                  string
	ProductType           []string
	GoogleProductCategory []string
	Destinations          []DestinationStatus
	Issues                []ItemIssue
}

// DestinationStatus reports the approval state for one distribution channel.
// Upstream populates either Status or ApprovalStatus depending on API
// surface and account age.
type DestinationStatus struct {
	Destination    string
	Status         string
	ApprovalStatus string
	Issues         []ItemIssue
}

// ItemIssue is a diagnostic reported against a single product.
type ItemIssue struct {
	Code          string
	Severity      string
	AttributeName string
	Description   string
	Detail        string
	Documentation string
}

// AccountIssue is a diagnostic reported against the merchant account itself.
type AccountIssue struct {
	ID            string
	Title         string
	Severity      string
	Detail        string
	Documentation string
	Country       string
}

// AccountInfo is upstream metadata for a merchant account.
type AccountInfo struct {
	MerchantID string
	Name       string
	WebsiteURL string
	Country    string
}

// MerchantAccount links a dashboard user to an upstream merchant account.
type MerchantAccount struct {
	ID         string
	UserID     string
	MerchantID string
	Name       string
	WebsiteURL string
	Country    string
	LinkedAt   time.Time
	UpdatedAt  time.Time
}

// TokenPair holds the OAuth credentials bound to a linked account. Refresh
// is handled by the OAuth transport; updated pairs are persisted via the
// credential repository.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// IsZero reports whether no usable credential is present.
func (t TokenPair) IsZero() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// IssueGroup is one row of the needs-attention report: a deduplicated set of
// products sharing an upstream issue code (and attribute, when present).
type IssueGroup struct {
	Code           string
	AttributeName  string
	Title          string
	Severity       IssueSeverity
	ExampleDetail  string
	ProductCount   int
	Impact         string
	Products       []string
	ProductDetails []IssueProductDetail
}

// IssueProductDetail identifies one affected product inside a group.
type IssueProductDetail struct {
	ID    string
	Title string
	Link  string
}
