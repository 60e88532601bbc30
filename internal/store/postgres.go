package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, title, client, msa_number, po_number, invoice_number, linked_to, file_path, amount, due_date, status, created_at, updated_at
		FROM documents
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		var item Document
		if err := rows.Scan(
			&item.ID,
			&item.Category,
			&item.Title,
			&item.Client,
			&item.MSANumber,
			&item.PONumber,
			&item.InvoiceNumber,
			&item.LinkedTo,
			&item.FilePath,
			&item.Amount,
			&item.DueDate,
			&item.Status,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListDocumentsPage(ctx context.Context, skip, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, title, client, msa_number, po_number, invoice_number, linked_to, file_path, amount, due_date, status, created_at, updated_at
		FROM documents
		ORDER BY created_at DESC, id ASC
		OFFSET $1 LIMIT $2
	`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents page: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		var item Document
		if err := rows.Scan(
			&item.ID,
			&item.Category,
			&item.Title,
			&item.Client,
			&item.MSANumber,
			&item.PONumber,
			&item.InvoiceNumber,
			&item.LinkedTo,
			&item.FilePath,
			&item.Amount,
			&item.DueDate,
			&item.Status,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents page: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListDocumentsByCategories(ctx context.Context, categories []string, createdBefore *time.Time) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, title, client, msa_number, po_number, invoice_number, linked_to, file_path, amount, due_date, status, created_at, updated_at
		FROM documents
		WHERE category = ANY($1::text[])
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at ASC, id ASC
	`, categories, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("list documents by categories: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		var item Document
		if err := rows.Scan(
			&item.ID,
			&item.Category,
			&item.Title,
			&item.Client,
			&item.MSANumber,
			&item.PONumber,
			&item.InvoiceNumber,
			&item.LinkedTo,
			&item.FilePath,
			&item.Amount,
			&item.DueDate,
			&item.Status,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents by categories: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	var item Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, category, title, client, msa_number, po_number, invoice_number, linked_to, file_path, amount, due_date, status, created_at, updated_at
		FROM documents
		WHERE id=$1
	`, documentID).Scan(
		&item.ID,
		&item.Category,
		&item.Title,
		&item.Client,
		&item.MSANumber,
		&item.PONumber,
		&item.InvoiceNumber,
		&item.LinkedTo,
		&item.FilePath,
		&item.Amount,
		&item.DueDate,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, category, title, client, msa_number, po_number, invoice_number, linked_to, file_path, amount, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		item.ID,
		item.Category,
		item.Title,
		item.Client,
		item.MSANumber,
		item.PONumber,
		item.InvoiceNumber,
		item.LinkedTo,
		item.FilePath,
		item.Amount,
		item.DueDate,
		item.Status,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET category=$2, title=$3, client=$4, msa_number=$5, po_number=$6, invoice_number=$7, linked_to=$8, file_path=$9, amount=$10, due_date=$11, status=$12, updated_at=NOW()
		WHERE id=$1
	`,
		item.ID,
		item.Category,
		item.Title,
		item.Client,
		item.MSANumber,
		item.PONumber,
		item.InvoiceNumber,
		item.LinkedTo,
		item.FilePath,
		item.Amount,
		item.DueDate,
		item.Status,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document rows: %w", err)
	}
	return affected > 0, nil
}

// ApplyFieldChanges commits a reconciliation batch in a single transaction
// so readers never observe a partially corrected set.
func (s *PostgresStore) ApplyFieldChanges(ctx context.Context, changes []FieldChange) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin field changes: %w", err)
	}
	for _, change := range changes {
		var query string
		switch change.Field {
		case FieldMSANumber:
			query = `UPDATE documents SET msa_number=$2, updated_at=NOW() WHERE id=$1`
		case FieldTitle:
			query = `UPDATE documents SET title=$2, updated_at=NOW() WHERE id=$1`
		default:
			_ = tx.Rollback()
			return fmt.Errorf("apply field change: unknown field %q", change.Field)
		}
		if _, err := tx.ExecContext(ctx, query, change.DocumentID, change.Value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply field change %s/%s: %w", change.DocumentID, change.Field, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit field changes: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountDocuments(ctx context.Context, category, status string, createdBefore *time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM documents
		WHERE ($1='' OR category=$1)
		  AND ($2='' OR status=$2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
	`, category, status, createdBefore).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SumAmountsByCategories(ctx context.Context, categories []string, createdFrom, createdBefore time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM documents
		WHERE category = ANY($1::text[])
		  AND created_at >= $2
		  AND created_at < $3
	`, categories, createdFrom, createdBefore).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum amounts by categories: %w", err)
	}
	return total, nil
}

// SumInvoicedAgainst totals invoice documents recorded against one
// purchase order number.
func (s *PostgresStore) SumInvoicedAgainst(ctx context.Context, poNumber string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM documents
		WHERE category = ANY($1::text[])
		  AND po_number=$2
	`, []string{CategoryClientInvoice, CategoryVendorInvoice}, poNumber).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum invoiced against po: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) CategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*)::int
		FROM documents
		GROUP BY category
		ORDER BY category ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()

	items := make([]CategoryCount, 0)
	for rows.Next() {
		var item CategoryCount
		if err := rows.Scan(&item.Category, &item.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertException(ctx context.Context, item Exception) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exceptions (id, document_id, message, resolved, raised_at)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.DocumentID, item.Message, item.Resolved, item.RaisedAt)
	if err != nil {
		return fmt.Errorf("insert exception: %w", err)
	}
	return nil
}

func (s *PostgresStore) ResolveException(ctx context.Context, exceptionID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE exceptions SET resolved=TRUE WHERE id=$1 AND resolved=FALSE
	`, exceptionID)
	if err != nil {
		return false, fmt.Errorf("resolve exception: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve exception rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CountOpenExceptions(ctx context.Context, raisedBefore *time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM exceptions
		WHERE resolved=FALSE
		  AND ($1::timestamptz IS NULL OR raised_at <= $1)
	`, raisedBefore).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open exceptions: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListRecentExceptions(ctx context.Context, limit int) ([]Exception, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, message, resolved, raised_at
		FROM exceptions
		ORDER BY raised_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent exceptions: %w", err)
	}
	defer rows.Close()

	items := make([]Exception, 0)
	for rows.Next() {
		var item Exception
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.Message, &item.Resolved, &item.RaisedAt); err != nil {
			return nil, fmt.Errorf("scan exception: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exceptions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertAlert(ctx context.Context, item Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, title, description, level, acknowledged, document_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.Title, item.Description, item.Level, item.Acknowledged, item.DocumentID, item.Timestamp)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) AcknowledgeAlert(ctx context.Context, alertID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET acknowledged=TRUE WHERE id=$1 AND acknowledged=FALSE
	`, alertID)
	if err != nil {
		return false, fmt.Errorf("acknowledge alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acknowledge alert rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListRecentAlerts(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, level, acknowledged, document_id, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}
	defer rows.Close()

	items := make([]Alert, 0)
	for rows.Next() {
		var item Alert
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.Level, &item.Acknowledged, &item.DocumentID, &item.Timestamp); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
