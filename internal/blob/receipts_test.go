package blob

import (
	"testing"
	"time"
)

func TestDecodeReceipt(t *testing.T) {
	data := []byte(`{"document_id":"doc-1","processed_at":"2025-06-01T10:30:00Z","duration_minutes":4.5}`)

	receipt, err := decodeReceipt(data)
	if err != nil {
		t.Fatalf("decodeReceipt() error = %v", err)
	}
	if receipt.DocumentID != "doc-1" {
		t.Fatalf("document_id = %q", receipt.DocumentID)
	}
	want := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	if !receipt.ProcessedAt.Equal(want) {
		t.Fatalf("processed_at = %v, want %v", receipt.ProcessedAt, want)
	}
	if receipt.DurationMinutes != 4.5 {
		t.Fatalf("duration_minutes = %v, want 4.5", receipt.DurationMinutes)
	}
}

func TestDecodeReceiptWithoutDuration(t *testing.T) {
	data := []byte(`{"document_id":"doc-1","processed_at":"2025-06-01T10:30:00Z"}`)

	receipt, err := decodeReceipt(data)
	if err != nil {
		t.Fatalf("decodeReceipt() error = %v", err)
	}
	if receipt.DurationMinutes != 0 {
		t.Fatalf("duration_minutes = %v, want 0 for missing field", receipt.DurationMinutes)
	}
}

func TestDecodeReceiptRejectsMissingTimestamp(t *testing.T) {
	data := []byte(`{"document_id":"doc-1"}`)
	if _, err := decodeReceipt(data); err == nil {
		t.Fatal("expected decodeReceipt() to fail without processed_at")
	}
}

func TestDecodeReceiptRejectsMalformedJSON(t *testing.T) {
	if _, err := decodeReceipt([]byte("{not json")); err == nil {
		t.Fatal("expected decodeReceipt() to fail for malformed JSON")
	}
}

func TestDocumentObjectKey(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		want     string
	}{
		{name: "plain", filename: "agreement.pdf", want: "documents/doc-1/agreement.pdf"},
		{name: "nested path stripped", filename: "uploads/june/agreement.pdf", want: "documents/doc-1/agreement.pdf"},
		{name: "traversal stripped", filename: "../../etc/passwd", want: "documents/doc-1/passwd"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := documentObjectKey("doc-1", tc.filename); got != tc.want {
				t.Fatalf("documentObjectKey(%q) = %q, want %q", tc.filename, got, tc.want)
			}
		})
	}
}
