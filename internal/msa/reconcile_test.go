package msa

import (
	"testing"

	"docket/api/internal/store"
)

func TestReconcileNormalizesStoredKey(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, Title: "Master agreement", MSANumber: "msa#2025-001"},
	}
	out, changes := Reconcile(docs)

	if out[0].MSANumber != "MSA-2025-001" {
		t.Fatalf("msa_number = %q, want %q", out[0].MSANumber, "MSA-2025-001")
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d: %+v", len(changes), changes)
	}
	want := store.FieldChange{DocumentID: "doc-1", Field: store.FieldMSANumber, Value: "MSA-2025-001"}
	if changes[0] != want {
		t.Fatalf("change = %+v, want %+v", changes[0], want)
	}
}

func TestReconcileFillsMissingKey(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, Title: "MSA 2025-044 renewal"},
	}
	out, changes := Reconcile(docs)

	if out[0].MSANumber != "MSA-2025-044" {
		t.Fatalf("msa_number = %q, want %q", out[0].MSANumber, "MSA-2025-044")
	}
	if len(changes) != 1 || changes[0].Field != store.FieldMSANumber {
		t.Fatalf("unexpected changes: %+v", changes)
	}
}

func TestReconcileCanonicalSetIsStable(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, Title: "Master agreement", MSANumber: "MSA-2025-001"},
		{ID: "doc-2", Category: store.CategoryClientPO, Title: "PO-7731", PONumber: "PO-7731", LinkedTo: "MSA-2025-001", MSANumber: "MSA-2025-001"},
	}
	_, changes := Reconcile(docs)
	if len(changes) != 0 {
		t.Fatalf("expected no changes for a canonical set, got %+v", changes)
	}
}

func TestReconcileSetsTitleFromPONumber(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryClientPO, Title: "Platform work order", PONumber: "  PO-7731  ", LinkedTo: "MSA-2025-001"},
	}
	out, changes := Reconcile(docs)

	if out[0].Title != "PO-7731" {
		t.Fatalf("title = %q, want %q", out[0].Title, "PO-7731")
	}
	var titleChange *store.FieldChange
	for i := range changes {
		if changes[i].Field == store.FieldTitle {
			titleChange = &changes[i]
		}
	}
	if titleChange == nil {
		t.Fatalf("expected a title change, got %+v", changes)
	}
	if titleChange.DocumentID != "doc-1" || titleChange.Value != "PO-7731" {
		t.Fatalf("title change = %+v", *titleChange)
	}
}

func TestReconcileSetsTitleFromInvoiceNumber(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryVendorInvoice, Title: "April retainer", InvoiceNumber: "INV-4471", LinkedTo: "MSA-2025-001"},
	}
	out, _ := Reconcile(docs)
	if out[0].Title != "INV-4471" {
		t.Fatalf("title = %q, want %q", out[0].Title, "INV-4471")
	}
}

func TestReconcileLeavesAgreementTitlesAlone(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, Title: "Master agreement", MSANumber: "MSA-2025-001", PONumber: "PO-7731"},
	}
	out, changes := Reconcile(docs)
	if out[0].Title != "Master agreement" {
		t.Fatalf("title = %q, want unchanged", out[0].Title)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}

func TestReconcileDoesNotMutateInput(t *testing.T) {
	docs := []store.Document{
		{ID: "doc-1", Category: store.CategoryServiceAgreement, MSANumber: "msa 2025-001"},
	}
	Reconcile(docs)
	if docs[0].MSANumber != "msa 2025-001" {
		t.Fatalf("input mutated: msa_number = %q", docs[0].MSANumber)
	}
}
