package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/biomarker-assessment-engine/internal/domain"
)

// SQLiteStore implements domain.AuditStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (and if needed creates) the audit database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*domain.AuditRecord, error) {
	rec := &domain.AuditRecord{}
	var status, kind string
	err := s.Scan(
		&rec.ID, &rec.RequestID, &status, &kind,
		&rec.BiomarkerCount, &rec.CriticalMissing, &rec.EmergencyFindings,
		&rec.OutOfScopeFindings, &rec.DomainsScored, &rec.ReferenceVersion,
		&rec.ProcessingTimeMs, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.OutcomeStatus(status)
	rec.SafetyKind = domain.SafetyKind(kind)
	return rec, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessment_audit (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		status TEXT NOT NULL,
		safety_kind TEXT NOT NULL,
		biomarker_count INTEGER NOT NULL DEFAULT 0,
		critical_missing INTEGER NOT NULL DEFAULT 0,
		emergency_findings INTEGER NOT NULL DEFAULT 0,
		out_of_scope_findings INTEGER NOT NULL DEFAULT 0,
		domains_scored INTEGER NOT NULL DEFAULT 0,
		reference_version TEXT NOT NULL DEFAULT '',
		processing_time_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_status ON assessment_audit(status);
	CREATE INDEX IF NOT EXISTS idx_audit_created_at ON assessment_audit(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Record inserts rec.
func (s *SQLiteStore) Record(ctx context.Context, rec *domain.AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assessment_audit (
			id, request_id, status, safety_kind,
			biomarker_count, critical_missing, emergency_findings,
			out_of_scope_findings, domains_scored, reference_version,
			processing_time_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.RequestID, string(rec.Status), string(rec.SafetyKind),
		rec.BiomarkerCount, rec.CriticalMissing, rec.EmergencyFindings,
		rec.OutOfScopeFindings, rec.DomainsScored, rec.ReferenceVersion,
		rec.ProcessingTimeMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// List returns records newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, status, safety_kind,
			biomarker_count, critical_missing, emergency_findings,
			out_of_scope_findings, domains_scored, reference_version,
			processing_time_ms, created_at
		FROM assessment_audit
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assessment_audit").Scan(&count)
	return count, err
}

// CountByStatus groups record counts by outcome status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[domain.OutcomeStatus]int, error) {
	return countByStatus(ctx, s.db)
}

// ExportJSON writes every record to writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return WriteExport(ctx, s, writer)
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func countByStatus(ctx context.Context, db *sql.DB) (map[domain.OutcomeStatus]int, error) {
	rows, err := db.QueryContext(ctx, "SELECT status, COUNT(*) FROM assessment_audit GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()

	counts := map[domain.OutcomeStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[domain.OutcomeStatus(status)] = n
	}
	return counts, rows.Err()
}
