package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pdfconvert/internal/config"
)

// PostgresRecorder appends entries to the conversions table.
type PostgresRecorder struct {
	db *sql.DB
}

// NewPostgres connects, pings and makes sure the table exists.
func NewPostgres(cfg config.PostgresConfig) (*PostgresRecorder, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Audit writes are tiny; a handful of connections is plenty.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	r := &PostgresRecorder{db: db}
	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRecorder) ensureSchema(ctx context.Context) error {
	ddl1 := `CREATE TABLE IF NOT EXISTS conversions (
		id BIGSERIAL PRIMARY KEY,
		request_id TEXT NOT NULL,
		engine TEXT NOT NULL,
		status TEXT NOT NULL,
		html_bytes INTEGER NOT NULL,
		pdf_bytes INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	ddl2 := `CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions (created_at);`
	if _, err := r.db.ExecContext(ctx, ddl1); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, ddl2); err != nil {
		return err
	}
	return nil
}

// Record inserts one row.
func (r *PostgresRecorder) Record(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversions (request_id, engine, status, html_bytes, pdf_bytes, exit_code, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.RequestID, e.Engine, e.Status(), e.HTMLBytes, e.PDFBytes, e.ExitCode, e.Duration.Milliseconds(), e.At,
	)
	if err != nil {
		return fmt.Errorf("postgres audit write: %w", err)
	}
	return nil
}

// Close closes the pool.
func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}
