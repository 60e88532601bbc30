package msa

import (
	"fmt"
	"strings"
	"time"

	"docket/api/internal/store"
)

// UnlinkedAlerts builds a warning alert for every unlinked PO or invoice.
// Alert IDs are derived from the document ID, so regenerating alerts for the
// same documents yields the same IDs and consumers can deduplicate.
func UnlinkedAlerts(unlinked []store.Document, now time.Time) []store.Alert {
	alerts := make([]store.Alert, 0, len(unlinked))
	for _, doc := range unlinked {
		docType := "Invoice"
		if strings.Contains(doc.Category, "PO") {
			docType = "PO"
		}
		alerts = append(alerts, store.Alert{
			ID:           "msa-unlinked-" + doc.ID,
			Title:        docType + " missing MSA link",
			Description:  fmt.Sprintf("%s '%s' is not linked to any MSA. Tag the correct agreement to maintain compliance.", doc.Category, doc.Title),
			Level:        "warning",
			Timestamp:    now,
			Acknowledged: false,
			DocumentID:   doc.ID,
		})
	}
	return alerts
}
