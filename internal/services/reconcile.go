package services

import (
	"strings"

	domain "github.com/feedlens/api/internal/domain"
)

const (
	fieldPlaceholder    = "-"
	defaultAvailability = "unknown"
	categoryDelimiter   = " > "
)

// statusIndex resolves status records by the heterogeneous identifier formats
// the two upstream listing endpoints use. Every record is registered under
// both of its id fields and under their bare offer-id forms (prefix segments
// stripped), so a lookup succeeds regardless of which side carries the
// channel:language:region prefix.
type statusIndex struct {
	byID    map[string]*domain.StatusRecord
	ordered []*domain.StatusRecord
}

func buildStatusIndex(records []domain.StatusRecord) *statusIndex {
	idx := &statusIndex{
		byID:    make(map[string]*domain.StatusRecord, len(records)*2),
		ordered: make([]*domain.StatusRecord, 0, len(records)),
	}
	for i := range records {
		rec := &records[i]
		idx.ordered = append(idx.ordered, rec)
		for _, id := range []string{rec.ProductID, rec.OfferID} {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := idx.byID[id]; !ok {
				idx.byID[id] = rec
			}
			if bare := stripIDPrefix(id); bare != id && bare != "" {
				if _, ok := idx.byID[bare]; !ok {
					idx.byID[bare] = rec
				}
			}
		}
	}
	return idx
}

// matchStrategy is one attempt at resolving a product to its status record.
// Strategies run in priority order; the first hit wins.
type matchStrategy struct {
	name string
	fn   func(idx *statusIndex, productID string) *domain.StatusRecord
}

var matchStrategies = []matchStrategy{
	{name: "exact", fn: matchExact},
	{name: "stripped", fn: matchStripped},
	{name: "scan", fn: matchScan},
}

func matchExact(idx *statusIndex, productID string) *domain.StatusRecord {
	return idx.byID[productID]
}

func matchStripped(idx *statusIndex, productID string) *domain.StatusRecord {
	bare := stripIDPrefix(productID)
	if bare == productID || bare == "" {
		return nil
	}
	return idx.byID[bare]
}

// matchScan is the last resort: walk every status record comparing raw and
// stripped forms on both sides.
func matchScan(idx *statusIndex, productID string) *domain.StatusRecord {
	bare := stripIDPrefix(productID)
	for _, rec := range idx.ordered {
		for _, candidate := range []string{rec.ProductID, rec.OfferID} {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" {
				continue
			}
			if candidate == productID || candidate == bare {
				return rec
			}
			if stripped := stripIDPrefix(candidate); stripped == productID || stripped == bare {
				return rec
			}
		}
	}
	return nil
}

// match resolves the status record for a product, or nil when no record
// matches under any strategy. A miss is not an error: the product proceeds
// through normalisation without status data.
func (idx *statusIndex) match(rec domain.ProductRecord) *domain.StatusRecord {
	for _, id := range []string{strings.TrimSpace(rec.ID), strings.TrimSpace(rec.OfferID)} {
		if id == "" {
			continue
		}
		for _, strategy := range matchStrategies {
			if found := strategy.fn(idx, id); found != nil {
				return found
			}
		}
	}
	return nil
}

// stripIDPrefix drops any channel:language:region style prefix, keeping the
// bare offer id (the last colon-separated segment).
func stripIDPrefix(id string) string {
	if !strings.Contains(id, ":") {
		return id
	}
	parts := strings.Split(id, ":")
	return parts[len(parts)-1]
}

// normalizeProduct derives the canonical cached product from a listing record
// and its (possibly absent) matched status record. Pure function of its
// inputs: every path has a defined fallback and nothing here can fail.
func normalizeProduct(rec domain.ProductRecord, status *domain.StatusRecord) domain.Product {
	product := domain.Product{
		ID:                    firstNonEmpty(rec.ID, rec.OfferID),
		Title:                 orPlaceholder(rec.Title),
		Description:           orPlaceholder(rec.Description),
		ImageLink:             orPlaceholder(rec.ImageLink),
		Brand:                 orPlaceholder(rec.Brand),
		FeedLabel:             orPlaceholder(rec.FeedLabel),
		ProductType:           joinCategoryPath(rec.ProductTypes),
		GoogleProductCategory: orPlaceholder(rec.GoogleProductCategory),
		Status:                domain.StatusUnknown,
		Availability:          firstNonEmpty(rec.Availability, defaultAvailability),
	}
	if status == nil {
		return product
	}

	product.Status = deriveApprovalStatus(status)
	// the status endpoint stopped returning category fields, so the listing
	// is the usual source; status-side values win when present
	if len(status.ProductType) > 0 {
		product.ProductType = joinCategoryPath(status.ProductType)
	}
	if len(status.GoogleProductCategory) > 0 {
		product.GoogleProductCategory = joinCategoryPath(status.GoogleProductCategory)
	}
	product.DisapprovalReasons = collectIssueReasons(status.Issues)
	return product
}

// deriveApprovalStatus implements the ordered resolution rules: destination
// status first (preferring the shopping destination), then item-level issue
// severity, then unknown.
func deriveApprovalStatus(status *domain.StatusRecord) domain.ApprovalStatus {
	resolved := domain.StatusUnknown

	if len(status.Destinations) > 0 {
		dest := status.Destinations[0]
		for _, candidate := range status.Destinations {
			if strings.Contains(strings.ToLower(candidate.Destination), "shopping") {
				dest = candidate
				break
			}
		}
		raw := strings.ToLower(strings.TrimSpace(firstNonEmpty(dest.Status, dest.ApprovalStatus)))
		switch {
		case raw == "":
			// fall through to the issue-severity heuristic
		case strings.Contains(raw, "disapprove"):
			resolved = domain.StatusDisapproved
		case strings.Contains(raw, "approve"):
			resolved = domain.StatusApproved
		case strings.Contains(raw, "pend"):
			resolved = domain.StatusPending
		default:
			resolved = domain.ApprovalStatus(raw)
		}
	}

	if resolved == domain.StatusUnknown && len(status.Issues) > 0 {
		resolved = domain.StatusPending
		for _, issue := range status.Issues {
			if severityBlocks(issue.Severity) {
				resolved = domain.StatusDisapproved
				break
			}
		}
	}

	return resolved
}

func severityBlocks(severity string) bool {
	lowered := strings.ToLower(strings.TrimSpace(severity))
	return lowered == "error" || lowered == "critical" || lowered == "disapproved"
}

func collectIssueReasons(issues []domain.ItemIssue) []string {
	var reasons []string
	for _, issue := range issues {
		reason := firstNonEmpty(issue.Description, issue.Detail, issue.AttributeName)
		if strings.TrimSpace(reason) == "" {
			continue
		}
		reasons = append(reasons, reason)
	}
	return reasons
}

func joinCategoryPath(path []string) string {
	var parts []string
	for _, segment := range path {
		if trimmed := strings.TrimSpace(segment); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fieldPlaceholder
	}
	return strings.Join(parts, categoryDelimiter)
}

func orPlaceholder(value string) string {
	if strings.TrimSpace(value) == "" {
		return fieldPlaceholder
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
