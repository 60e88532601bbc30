package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"docket/api/internal/logger"
)

const receiptPrefix = "processed/"

// ProcessingReceipt records one completed ingestion run. The pipeline that
// processes uploads writes these as JSON objects under processed/.
type ProcessingReceipt struct {
	DocumentID      string    `json:"document_id"`
	ProcessedAt     time.Time `json:"processed_at"`
	DurationMinutes float64   `json:"duration_minutes"`
}

// ListProcessingReceipts reads every receipt object. Unreadable receipts are
// skipped so one corrupt object cannot hide the rest.
func (s *Store) ListProcessingReceipts(ctx context.Context) ([]ProcessingReceipt, error) {
	receipts := make([]ProcessingReceipt, 0)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    receiptPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list receipts: %w", obj.Err)
		}
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		receipt, err := s.readReceipt(ctx, obj.Key)
		if err != nil {
			logger.Warn("skipping unreadable receipt", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

func (s *Store) readReceipt(ctx context.Context, key string) (ProcessingReceipt, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return ProcessingReceipt{}, fmt.Errorf("get receipt: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return ProcessingReceipt{}, fmt.Errorf("read receipt: %w", err)
	}
	return decodeReceipt(data)
}

func decodeReceipt(data []byte) (ProcessingReceipt, error) {
	var receipt ProcessingReceipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return ProcessingReceipt{}, fmt.Errorf("decode receipt: %w", err)
	}
	if receipt.ProcessedAt.IsZero() {
		return ProcessingReceipt{}, fmt.Errorf("receipt missing processed_at")
	}
	return receipt, nil
}
