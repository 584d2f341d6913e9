package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/biomarker-assessment-engine/internal/domain"
)

// PostgresStore implements domain.AuditStore using PostgreSQL. The
// assessment_audit table is created by migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open connection, which may come from lib/pq or
// from database.DB.SQLDB.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a lib/pq connection to databaseURL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Record inserts rec. A repeated id is ignored.
func (s *PostgresStore) Record(ctx context.Context, rec *domain.AuditRecord) error {
	query := `
		INSERT INTO assessment_audit (
			id, request_id, status, safety_kind,
			biomarker_count, critical_missing, emergency_findings,
			out_of_scope_findings, domains_scored, reference_version,
			processing_time_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.RequestID, string(rec.Status), string(rec.SafetyKind),
		rec.BiomarkerCount, rec.CriticalMissing, rec.EmergencyFindings,
		rec.OutOfScopeFindings, rec.DomainsScored, rec.ReferenceVersion,
		rec.ProcessingTimeMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit: %w", err)
	}
	return nil
}

// List returns records newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.AuditRecord, error) {
	query := `
		SELECT id, request_id, status, safety_kind,
			biomarker_count, critical_missing, emergency_findings,
			out_of_scope_findings, domains_scored, reference_version,
			processing_time_ms, created_at
		FROM assessment_audit
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	result := []*domain.AuditRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the number of records.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assessment_audit").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

// CountByStatus groups record counts by outcome status.
func (s *PostgresStore) CountByStatus(ctx context.Context) (map[domain.OutcomeStatus]int, error) {
	return countByStatus(ctx, s.db)
}

// ExportJSON writes every record to writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return WriteExport(ctx, s, writer)
}

// Close closes the underlying connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
