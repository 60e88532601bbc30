package msa

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"docket/api/internal/store"
)

// ExpiryWarningDays is the window, in days, within which an agreement's
// earliest due date flags the bucket as expiring soon.
const ExpiryWarningDays = 60

// Bucket groups every document that references one MSA key, split by
// document kind, with value totals and expiry state for the agreement.
type Bucket struct {
	MSANumber         string           `json:"msa_number"`
	MSADocuments      []store.Document `json:"msa_documents"`
	PODocuments       []store.Document `json:"po_documents"`
	InvoiceDocuments  []store.Document `json:"invoice_documents"`
	OtherDocuments    []store.Document `json:"other_documents"`
	TotalMSAValue     decimal.Decimal  `json:"total_msa_value"`
	TotalPOValue      decimal.Decimal  `json:"total_po_value"`
	TotalInvoiceValue decimal.Decimal  `json:"total_invoice_value"`
	ExpiresOn         *time.Time       `json:"expires_on,omitempty"`
	DaysUntilExpiry   *int             `json:"days_until_expiry,omitempty"`
	ExpiringSoon      bool             `json:"expiring_soon"`
}

// BucketSet is the full grouping result: one bucket per MSA key in first-seen
// order, plus the POs and invoices that resolve to no key at all.
type BucketSet struct {
	Buckets  []Bucket         `json:"buckets"`
	Unlinked []store.Document `json:"unlinked_documents"`
}

// BuildBuckets groups documents by canonical MSA key. Keys are re-derived
// from the documents rather than trusted, so stale or denormalized
// msa_number values still land in the right bucket. Documents without any
// recoverable key are skipped; the relevant ones surface via Unlinked.
func BuildBuckets(docs []store.Document, now time.Time) BucketSet {
	buckets := make([]Bucket, 0)
	byKey := make(map[string]int)

	for _, doc := range docs {
		key := doc.MSANumber
		if key == "" {
			key = Resolve(doc)
		}
		key = Normalize(key)
		if key == "" {
			continue
		}

		idx, ok := byKey[key]
		if !ok {
			idx = len(buckets)
			byKey[key] = idx
			buckets = append(buckets, Bucket{
				MSANumber:        key,
				MSADocuments:     make([]store.Document, 0),
				PODocuments:      make([]store.Document, 0),
				InvoiceDocuments: make([]store.Document, 0),
				OtherDocuments:   make([]store.Document, 0),
			})
		}
		bucket := &buckets[idx]

		// "po" is checked before "invoice" so a category naming both
		// lands with the POs.
		category := strings.ToLower(doc.Category)
		switch {
		case strings.Contains(category, "agreement"):
			bucket.MSADocuments = append(bucket.MSADocuments, doc)
		case strings.Contains(category, "po"):
			bucket.PODocuments = append(bucket.PODocuments, doc)
		case strings.Contains(category, "invoice"):
			bucket.InvoiceDocuments = append(bucket.InvoiceDocuments, doc)
		default:
			bucket.OtherDocuments = append(bucket.OtherDocuments, doc)
		}
	}

	for i := range buckets {
		finalizeBucket(&buckets[i], now)
	}

	return BucketSet{
		Buckets:  buckets,
		Unlinked: UnlinkedDocuments(docs),
	}
}

// UnlinkedDocuments returns the POs and invoices that resolve to no MSA key.
// Agreements and uncategorized documents are never reported.
func UnlinkedDocuments(docs []store.Document) []store.Document {
	unlinked := make([]store.Document, 0)
	for _, doc := range docs {
		switch doc.Category {
		case store.CategoryClientPO, store.CategoryVendorPO,
			store.CategoryClientInvoice, store.CategoryVendorInvoice:
		default:
			continue
		}
		if Resolve(doc) == "" {
			unlinked = append(unlinked, doc)
		}
	}
	return unlinked
}

func finalizeBucket(bucket *Bucket, now time.Time) {
	bucket.TotalMSAValue = sumAmounts(bucket.MSADocuments)
	bucket.TotalPOValue = sumAmounts(bucket.PODocuments)
	bucket.TotalInvoiceValue = sumAmounts(bucket.InvoiceDocuments)

	var earliest *time.Time
	for _, doc := range bucket.MSADocuments {
		if doc.DueDate == nil {
			continue
		}
		if earliest == nil || doc.DueDate.Before(*earliest) {
			earliest = doc.DueDate
		}
	}
	if earliest == nil {
		return
	}
	bucket.ExpiresOn = earliest

	// Whole days, floored, so a due date later today is day 0 and an
	// agreement one hour past due is already day -1.
	days := int(math.Floor(earliest.Sub(now).Hours() / 24))
	bucket.DaysUntilExpiry = &days
	bucket.ExpiringSoon = days <= ExpiryWarningDays
}

func sumAmounts(docs []store.Document) decimal.Decimal {
	total := decimal.Zero
	for _, doc := range docs {
		total = total.Add(doc.Amount)
	}
	return total
}
