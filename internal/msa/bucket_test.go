package msa

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"docket/api/internal/store"
)

func buildTestNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time { return &t }

func TestBuildBucketsGroupsVariantsUnderOneKey(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, Title: "Master agreement", MSANumber: "MSA 2025-001"},
		{ID: "doc-2", Category: store.CategoryClientPO, Title: "PO-7731", PONumber: "PO-7731", LinkedTo: "msa#2025-001"},
		{ID: "doc-3", Category: store.CategoryClientInvoice, Title: "INV-4471", InvoiceNumber: "INV-4471", LinkedTo: "MSA_2025_001"},
	}
	set := BuildBuckets(docs, buildTestNow())

	if len(set.Buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(set.Buckets))
	}
	bucket := set.Buckets[0]
	if bucket.MSANumber != "MSA-2025-001" {
		t.Fatalf("bucket key = %q, want %q", bucket.MSANumber, "MSA-2025-001")
	}
	if len(bucket.MSADocuments) != 1 || len(bucket.PODocuments) != 1 || len(bucket.InvoiceDocuments) != 1 {
		t.Fatalf("unexpected split: msa=%d po=%d invoice=%d",
			len(bucket.MSADocuments), len(bucket.PODocuments), len(bucket.InvoiceDocuments))
	}
}

func TestBuildBucketsFirstSeenOrder(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, MSANumber: "MSA-2025-002"},
		{ID: "doc-2", Category: store.CategoryServiceAgreement, MSANumber: "MSA-2025-001"},
		{ID: "doc-3", Category: store.CategoryClientPO, PONumber: "PO-1", LinkedTo: "MSA-2025-002"},
	}
	set := BuildBuckets(docs, buildTestNow())

	if len(set.Buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(set.Buckets))
	}
	if set.Buckets[0].MSANumber != "MSA-2025-002" || set.Buckets[1].MSANumber != "MSA-2025-001" {
		t.Fatalf("bucket order = [%q, %q], want first-seen order",
			set.Buckets[0].MSANumber, set.Buckets[1].MSANumber)
	}
}

func TestBuildBucketsClassifiesByCategory(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, MSANumber: "MSA-2025-001"},
		{ID: "doc-2", Category: store.CategoryVendorPO, LinkedTo: "MSA-2025-001"},
		{ID: "doc-3", Category: store.CategoryVendorInvoice, LinkedTo: "MSA-2025-001"},
		{ID: "doc-4", Category: "Statement of Work", LinkedTo: "MSA-2025-001"},
	}
	set := BuildBuckets(docs, buildTestNow())

	bucket := set.Buckets[0]
	if len(bucket.MSADocuments) != 1 || bucket.MSADocuments[0].ID != "doc-1" {
		t.Fatalf("agreement docs = %+v", bucket.MSADocuments)
	}
	if len(bucket.PODocuments) != 1 || bucket.PODocuments[0].ID != "doc-2" {
		t.Fatalf("po docs = %+v", bucket.PODocuments)
	}
	if len(bucket.InvoiceDocuments) != 1 || bucket.InvoiceDocuments[0].ID != "doc-3" {
		t.Fatalf("invoice docs = %+v", bucket.InvoiceDocuments)
	}
	if len(bucket.OtherDocuments) != 1 || bucket.OtherDocuments[0].ID != "doc-4" {
		t.Fatalf("other docs = %+v", bucket.OtherDocuments)
	}
}

func TestBuildBucketsClassifiesBySubstring(t *testing.T) {
	// Category matching is substring-based, so "Framework Agreement" counts
	// as an agreement and "Proposal" lands with the POs.
	docs := []store.Document{
		{ID: "doc-1", Category: "Framework Agreement", MSANumber: "MSA-2025-001"},
		{ID: "doc-2", Category: "Proposal", LinkedTo: "MSA-2025-001"},
	}
	set := BuildBuckets(docs, buildTestNow())

	bucket := set.Buckets[0]
	if len(bucket.MSADocuments) != 1 || bucket.MSADocuments[0].ID != "doc-1" {
		t.Fatalf("agreement docs = %+v", bucket.MSADocuments)
	}
	if len(bucket.PODocuments) != 1 || bucket.PODocuments[0].ID != "doc-2" {
		t.Fatalf("po docs = %+v", bucket.PODocuments)
	}
}

func TestBuildBucketsSkipsDocumentsWithoutKey(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryClientPO, Title: "Loose PO", PONumber: "PO-7731"},
	}
	set := BuildBuckets(docs, buildTestNow())

	if len(set.Buckets) != 0 {
		t.Fatalf("expected no buckets, got %d", len(set.Buckets))
	}
	if len(set.Unlinked) != 1 || set.Unlinked[0].ID != "doc-1" {
		t.Fatalf("unlinked = %+v", set.Unlinked)
	}
}

func TestBuildBucketsTotals(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, MSANumber: "MSA-2025-001", Amount: decimal.NewFromInt(250000)},
		{ID: "doc-2", Category: store.CategoryClientPO, LinkedTo: "MSA-2025-001", Amount: decimal.NewFromInt(42000)},
		{ID: "doc-3", Category: store.CategoryClientPO, LinkedTo: "MSA-2025-001", Amount: decimal.RequireFromString("8000.50")},
		{ID: "doc-4", Category: store.CategoryClientInvoice, LinkedTo: "MSA-2025-001", Amount: decimal.NewFromInt(12500)},
		{ID: "doc-5", Category: "Statement of Work", LinkedTo: "MSA-2025-001", Amount: decimal.NewFromInt(99999)},
	}
	set := BuildBuckets(docs, buildTestNow())

	bucket := set.Buckets[0]
	if !bucket.TotalMSAValue.Equal(decimal.NewFromInt(250000)) {
		t.Fatalf("total_msa_value = %s", bucket.TotalMSAValue)
	}
	if !bucket.TotalPOValue.Equal(decimal.RequireFromString("50000.50")) {
		t.Fatalf("total_po_value = %s", bucket.TotalPOValue)
	}
	if !bucket.TotalInvoiceValue.Equal(decimal.NewFromInt(12500)) {
		t.Fatalf("total_invoice_value = %s", bucket.TotalInvoiceValue)
	}
}

func TestBuildBucketsExpiryFromEarliestAgreementDueDate(t *testing.T) {
	now := buildTestNow()
	early := now.AddDate(0, 0, 30)
	late := now.AddDate(0, 0, 90)
	poDue := now.AddDate(0, 0, 5)
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, MSANumber: "MSA-2025-001", DueDate: datePtr(late)},
		{ID: "doc-2", Category: store.CategoryServiceAgreement, MSANumber: "MSA-2025-001", DueDate: datePtr(early)},
		{ID: "doc-3", Category: store.CategoryClientPO, LinkedTo: "MSA-2025-001", DueDate: datePtr(poDue)},
	}
	set := BuildBuckets(docs, now)

	bucket := set.Buckets[0]
	if bucket.ExpiresOn == nil || !bucket.ExpiresOn.Equal(early) {
		t.Fatalf("expires_on = %v, want %v", bucket.ExpiresOn, early)
	}
	if bucket.DaysUntilExpiry == nil || *bucket.DaysUntilExpiry != 30 {
		t.Fatalf("days_until_expiry = %v, want 30", bucket.DaysUntilExpiry)
	}
	if !bucket.ExpiringSoon {
		t.Fatal("expected expiring_soon for a 30-day window")
	}
}

func TestBuildBucketsExpiryFloorsPartialDays(t *testing.T) {
	now := buildTestNow()
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, MSANumber: "MSA-2025-001", DueDate: datePtr(now.Add(30 * time.Hour))},
	}
	set := BuildBuckets(docs, now)

	if days := set.Buckets[0].DaysUntilExpiry; days == nil || *days != 1 {
		t.Fatalf("days_until_expiry = %v, want 1", days)
	}
}

func TestBuildBucketsExpiredAgreementStaysFlagged(t *testing.T) {
	now := buildTestNow()
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, MSANumber: "MSA-2025-001", DueDate: datePtr(now.Add(-time.Hour))},
	}
	set := BuildBuckets(docs, now)

	bucket := set.Buckets[0]
	if bucket.DaysUntilExpiry == nil || *bucket.DaysUntilExpiry != -1 {
		t.Fatalf("days_until_expiry = %v, want -1", bucket.DaysUntilExpiry)
	}
	if !bucket.ExpiringSoon {
		t.Fatal("expected expiring_soon for an expired agreement")
	}
}

func TestBuildBucketsExpiryBoundary(t *testing.T) {
	now := buildTestNow()

	onWindow := BuildBuckets([]store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, MSANumber: "MSA-2025-001", DueDate: datePtr(now.AddDate(0, 0, ExpiryWarningDays))},
	}, now)
	if !onWindow.Buckets[0].ExpiringSoon {
		t.Fatalf("expected expiring_soon at exactly %d days", ExpiryWarningDays)
	}

	pastWindow := BuildBuckets([]store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, MSANumber: "MSA-2025-001", DueDate: datePtr(now.AddDate(0, 0, ExpiryWarningDays+1))},
	}, now)
	if pastWindow.Buckets[0].ExpiringSoon {
		t.Fatalf("did not expect expiring_soon at %d days", ExpiryWarningDays+1)
	}
}

func TestBuildBucketsNoDueDates(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, MSANumber: "MSA-2025-001"},
	}
	set := BuildBuckets(docs, buildTestNow())

	bucket := set.Buckets[0]
	if bucket.ExpiresOn != nil || bucket.DaysUntilExpiry != nil {
		t.Fatalf("expected no expiry, got expires_on=%v days=%v", bucket.ExpiresOn, bucket.DaysUntilExpiry)
	}
	if bucket.ExpiringSoon {
		t.Fatal("expected expiring_soon to be false without due dates")
	}
}

func TestBuildBucketsStaleStoredKeyStillGroups(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, MSANumber: "msa#2025-001"},
		{ID: "doc-2", Category: store.CategoryClientPO, MSANumber: "MSA-2025-001"},
	}
	set := BuildBuckets(docs, buildTestNow())

	if len(set.Buckets) != 1 || set.Buckets[0].MSANumber != "MSA-2025-001" {
		t.Fatalf("buckets = %+v", set.Buckets)
	}
}

func TestUnlinkedDocumentsFiltersCategories(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryClientPO, PONumber: "PO-7731"},
		{ID: "doc-2", Category: store.CategoryVendorInvoice, InvoiceNumber: "INV-4471"},
		{ID: "doc-3", Category: store.CategoryServiceAgreement, Title: "Draft agreement"},
		{ID: "doc-4", Category: store.CategoryClientPO, LinkedTo: "MSA-2025-001"},
		{ID: "doc-5", Category: "Statement of Work", Title: "No references here"},
	}
	unlinked := UnlinkedDocuments(docs)

	if len(unlinked) != 2 {
		t.Fatalf("expected 2 unlinked documents, got %d: %+v", len(unlinked), unlinked)
	}
	if unlinked[0].ID != "doc-1" || unlinked[1].ID != "doc-2" {
		t.Fatalf("unlinked order = [%q, %q]", unlinked[0].ID, unlinked[1].ID)
	}
}

func TestBuildBucketsEmptySet(t *testing.T) {
	set := BuildBuckets([]store.Document{}, buildTestNow())
	if len(set.Buckets) != 0 || len(set.Unlinked) != 0 {
		t.Fatalf("expected empty set, got %+v", set)
	}
}
