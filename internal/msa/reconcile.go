package msa

import (
	"strings"

	"docket/api/internal/store"
)

// Reconcile normalizes the MSA linkage and display titles of every document
// in the set. It returns the corrected documents together with the field
// changes needed to persist the corrections; callers apply the batch in one
// transaction. The input slice is not modified.
func Reconcile(docs []store.Document) ([]store.Document, []store.FieldChange) {
	out := make([]store.Document, len(docs))
	copy(out, docs)
	changes := make([]store.FieldChange, 0)

	for i := range out {
		doc := &out[i]

		// A stored msa_number that is not in canonical form wins over
		// re-resolution; otherwise resolve from scratch so documents
		// with an empty msa_number pick up keys from other fields.
		var key string
		if normalized := Normalize(doc.MSANumber); normalized != "" && normalized != doc.MSANumber {
			doc.MSANumber = normalized
			key = normalized
			changes = append(changes, store.FieldChange{
				DocumentID: doc.ID,
				Field:      store.FieldMSANumber,
				Value:      normalized,
			})
		} else {
			key = Resolve(*doc)
		}
		if key != "" && doc.MSANumber != key {
			doc.MSANumber = key
			changes = append(changes, store.FieldChange{
				DocumentID: doc.ID,
				Field:      store.FieldMSANumber,
				Value:      key,
			})
		}

		// POs and invoices display their own number as the title.
		switch doc.Category {
		case store.CategoryClientPO, store.CategoryVendorPO:
			if doc.PONumber != "" {
				if title := strings.TrimSpace(doc.PONumber); title != "" && doc.Title != title {
					doc.Title = title
					changes = append(changes, store.FieldChange{
						DocumentID: doc.ID,
						Field:      store.FieldTitle,
						Value:      title,
					})
				}
			}
		case store.CategoryClientInvoice, store.CategoryVendorInvoice:
			if doc.InvoiceNumber != "" {
				if title := strings.TrimSpace(doc.InvoiceNumber); title != "" && doc.Title != title {
					doc.Title = title
					changes = append(changes, store.FieldChange{
						DocumentID: doc.ID,
						Field:      store.FieldTitle,
						Value:      title,
					})
				}
			}
		}
	}
	return out, changes
}
