package msa

import "docket/api/internal/store"

// Resolve scans a document's identifier fields for an MSA reference and
// returns the canonical key of the first hit, or "" when the document
// carries none. Explicit identifier fields win over descriptive ones, so
// the scan order is fixed.
func Resolve(doc store.Document) string {
	candidates := []string{
		doc.MSANumber,
		doc.PONumber,
		doc.InvoiceNumber,
		doc.Title,
		doc.LinkedTo,
		doc.FilePath,
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if key := Normalize(candidate); key != "" {
			return key
		}
	}
	return ""
}
