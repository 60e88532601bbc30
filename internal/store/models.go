package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document categories. Other values are permitted in the category column;
// these are the ones the linking and dashboard logic keys on.
const (
	CategoryClientPO         = "Client PO"
	CategoryVendorPO         = "Vendor PO"
	CategoryClientInvoice    = "Client Invoice"
	CategoryVendorInvoice    = "Vendor Invoice"
	CategoryServiceAgreement = "Service Agreement"
)

type Document struct {
	ID            string
	Category      string
	Title         string
	Client        string
	MSANumber     string
	PONumber      string
	InvoiceNumber string
	LinkedTo      string
	FilePath      string
	Amount        decimal.Decimal
	DueDate       *time.Time
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Exception is a validation issue raised against a document by the
// processing pipeline.
type Exception struct {
	ID         string
	DocumentID string
	Message    string
	Resolved   bool
	RaisedAt   time.Time
}

// Alert is a compliance notice. Persisted rows and the derived
// unlinked-document alerts share this shape.
type Alert struct {
	ID           string
	Title        string
	Description  string
	Level        string
	Timestamp    time.Time
	Acknowledged bool
	DocumentID   string
}

// Fields a reconciliation pass may rewrite.
const (
	FieldMSANumber = "msa_number"
	FieldTitle     = "title"
)

// FieldChange is one pending in-place correction produced by the
// reconciliation pass and applied by ApplyFieldChanges in a single
// transaction.
type FieldChange struct {
	DocumentID string
	Field      string
	Value      string
}

// CategoryCount is one slice of the dashboard category split.
type CategoryCount struct {
	Category string
	Count    int
}
