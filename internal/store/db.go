package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// InitSchema ensures the tables and indexes exist. Every statement is
// idempotent, so it runs on each startup.
func InitSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			client TEXT NOT NULL DEFAULT '',
			msa_number TEXT NOT NULL DEFAULT '',
			po_number TEXT NOT NULL DEFAULT '',
			invoice_number TEXT NOT NULL DEFAULT '',
			linked_to TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL DEFAULT '',
			amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			due_date TIMESTAMPTZ,
			status TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_documents_category ON documents (category);
		CREATE INDEX IF NOT EXISTS idx_documents_po_number ON documents (po_number);
		CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at);

		CREATE TABLE IF NOT EXISTS exceptions (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			raised_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_exceptions_open ON exceptions (resolved, raised_at);

		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT 'info',
			acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			document_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts (created_at);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
