package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Postgres implements Searcher with ILIKE matching over the documents table,
// used as a fallback when Meilisearch is not configured or unreachable.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL fallback searcher.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *Postgres) Healthy() bool {
	return true
}

// Search matches the query text against titles, identifier fields, and
// client names.
func (p *Postgres) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "(title ILIKE $1 OR msa_number ILIKE $1 OR po_number ILIKE $1 OR invoice_number ILIKE $1 OR client ILIKE $1)"
	args := []any{"%" + q.Text + "%"}
	argN := 2
	if q.FilterCategory != "" {
		where += fmt.Sprintf(" AND category = $%d", argN)
		args = append(args, q.FilterCategory)
		argN++
	}
	if q.FilterMSA != "" {
		where += fmt.Sprintf(" AND msa_number = $%d", argN)
		args = append(args, q.FilterMSA)
		argN++
	}

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM documents WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("search count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT id, title, client, category, status, msa_number, po_number, invoice_number
		FROM documents
		WHERE %s
		ORDER BY created_at DESC, id ASC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var rec DocumentRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Client, &rec.Category, &rec.Status,
			&rec.MSANumber, &rec.PONumber, &rec.InvoiceNumber); err != nil {
			return nil, 0, fmt.Errorf("search scan: %w", err)
		}
		results = append(results, Result{
			ID:        rec.ID,
			Title:     rec.Title,
			Snippet:   snippetFor(rec, q.Text),
			Category:  rec.Category,
			Client:    rec.Client,
			MSANumber: rec.MSANumber,
		})
	}

	return results, total, rows.Err()
}

// snippetFor picks the first field containing the query text so fallback
// results still show why they matched.
func snippetFor(rec DocumentRecord, text string) string {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return ""
	}
	for _, field := range []string{rec.MSANumber, rec.PONumber, rec.InvoiceNumber, rec.Client, rec.Title} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return field
		}
	}
	return ""
}

// LoadAllRecords returns every document for full reindexing.
func (p *Postgres) LoadAllRecords(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, client, category, status, msa_number, po_number, invoice_number
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	records := make([]DocumentRecord, 0)
	for rows.Next() {
		var rec DocumentRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Client, &rec.Category, &rec.Status,
			&rec.MSANumber, &rec.PONumber, &rec.InvoiceNumber); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return records, nil
}
