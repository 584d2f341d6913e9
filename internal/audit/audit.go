// Package audit keeps a value-free trace of every assessment run. Records hold
// statuses and counts only; biomarker values and free text never reach storage.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-assessment-engine/internal/domain"
)

// maxExportLimit is the maximum number of records exported at once.
const maxExportLimit = 1000000

// Export is the JSON export format.
type Export struct {
	Version    string                `json:"version"`
	ExportedAt time.Time             `json:"exported_at"`
	Count      int                   `json:"count"`
	Records    []*domain.AuditRecord `json:"records"`
}

// FromOutcome reduces an outcome to its audit record. referenceVersion is used
// when the outcome carries no assessment.
func FromOutcome(outcome *domain.AssessmentOutcome, referenceVersion string) *domain.AuditRecord {
	rec := &domain.AuditRecord{
		ID:                 uuid.New().String(),
		RequestID:          outcome.RequestID,
		Status:             outcome.Status,
		SafetyKind:         outcome.Safety.Kind,
		BiomarkerCount:     outcome.Profile.Len(),
		CriticalMissing:    len(outcome.Validation.CriticalMissing),
		EmergencyFindings:  len(outcome.Safety.EmergencyFindings),
		OutOfScopeFindings: len(outcome.Safety.OutOfScopeFindings),
		ReferenceVersion:   referenceVersion,
		ProcessingTimeMs:   outcome.ProcessingTime.Milliseconds(),
		CreatedAt:          time.Now().UTC(),
	}
	if rec.SafetyKind == "" {
		rec.SafetyKind = domain.SafetyClear
	}
	if outcome.Assessment != nil {
		rec.DomainsScored = outcome.Assessment.DomainsScored
		rec.ReferenceVersion = outcome.Assessment.ReferenceVersion
	}
	return rec
}

// WriteExport lists every record in store and writes them as indented JSON.
func WriteExport(ctx context.Context, store domain.AuditStore, writer io.Writer) error {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list audit records: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Records:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// New opens the backend selected by cfg. pg is used only by the postgres
// backend and must already be migrated.
func New(cfg domain.AuditConfig, pg *sql.DB) (domain.AuditStore, error) {
	switch cfg.Backend {
	case "", "sqlite":
		store, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := NewPostgresStore(pg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown audit backend: %s", cfg.Backend)
	}
}

// DefaultQueueSize bounds the records waiting to be written.
const DefaultQueueSize = 256

// writeTimeout bounds a single store write made by the background writer.
const writeTimeout = 5 * time.Second

// queued is a record to write, or a flush marker when done is set.
type queued struct {
	rec  *domain.AuditRecord
	done chan struct{}
}

// Observer records each finished assessment. Records are queued and written by
// a background goroutine, so the assessment never waits on the store. A full
// queue drops the record with a warning; a failing store is logged.
type Observer struct {
	store            domain.AuditStore
	referenceVersion string
	logger           *logrus.Logger

	queue  chan queued
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewObserver creates an Observer writing to store and starts its writer.
// Close must be called to drain the queue.
func NewObserver(store domain.AuditStore, referenceVersion string, logger *logrus.Logger) *Observer {
	return NewObserverWithQueue(store, referenceVersion, logger, DefaultQueueSize)
}

// NewObserverWithQueue is NewObserver with an explicit queue size.
func NewObserverWithQueue(store domain.AuditStore, referenceVersion string, logger *logrus.Logger, size int) *Observer {
	if logger == nil {
		logger = logrus.New()
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	o := &Observer{
		store:            store,
		referenceVersion: referenceVersion,
		logger:           logger,
		queue:            make(chan queued, size),
	}
	o.wg.Add(1)
	go o.run()
	return o
}

// ObserveOutcome queues the audit record for outcome. It does not block.
func (o *Observer) ObserveOutcome(ctx context.Context, outcome *domain.AssessmentOutcome) {
	if outcome == nil {
		return
	}
	rec := FromOutcome(outcome, o.referenceVersion)

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.logger.WithField("request_id", outcome.RequestID).Warn("Audit observer closed, record dropped")
		return
	}
	select {
	case o.queue <- queued{rec: rec}:
	default:
		o.logger.WithField("request_id", outcome.RequestID).Warn("Audit queue full, record dropped")
	}
}

// Flush blocks until every record queued before the call has been written, or
// ctx is done.
func (o *Observer) Flush(ctx context.Context) error {
	done := make(chan struct{})

	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		return nil
	}
	select {
	case o.queue <- queued{done: done}:
		o.mu.RUnlock()
	case <-ctx.Done():
		o.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting records and waits for the queue to drain. It does not
// close the store.
func (o *Observer) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	o.wg.Wait()
}

func (o *Observer) run() {
	defer o.wg.Done()
	for item := range o.queue {
		if item.done != nil {
			close(item.done)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := o.store.Record(ctx, item.rec); err != nil {
			o.logger.WithError(err).WithField("request_id", item.rec.RequestID).
				Error("Failed to record assessment audit")
		}
		cancel()
	}
}
