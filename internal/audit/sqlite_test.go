package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-assessment-engine/internal/domain"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(id string, status domain.OutcomeStatus, at time.Time) *domain.AuditRecord {
	return &domain.AuditRecord{
		ID:               id,
		RequestID:        "req-" + id,
		Status:           status,
		SafetyKind:       domain.SafetyClear,
		BiomarkerCount:   4,
		DomainsScored:    2,
		ReferenceVersion: "builtin-2025.1",
		ProcessingTimeMs: 3,
		CreatedAt:        at,
	}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "audit.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
}

func TestSQLiteStore_RecordAndList(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, record("a", domain.StatusAssessed, base)))
	require.NoError(t, store.Record(ctx, record("b", domain.StatusEmergencyStop, base.Add(time.Minute))))
	require.NoError(t, store.Record(ctx, record("c", domain.StatusAssessed, base.Add(2*time.Minute))))

	all, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")
	assert.Equal(t, domain.StatusEmergencyStop, all[1].Status)
	assert.Equal(t, "req-a", all[2].RequestID)
	assert.Equal(t, 4, all[2].BiomarkerCount)
	assert.Equal(t, "builtin-2025.1", all[2].ReferenceVersion)

	page, err := store.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	byStatus, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.OutcomeStatus]int{
		domain.StatusAssessed:      2,
		domain.StatusEmergencyStop: 1,
	}, byStatus)
}

func TestSQLiteStore_DuplicateID(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	rec := record("dup", domain.StatusAssessed, time.Now().UTC())

	require.NoError(t, store.Record(ctx, rec))
	assert.Error(t, store.Record(ctx, rec))
}

func TestSQLiteStore_EmptyList(t *testing.T) {
	store := createTestStore(t)

	all, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, record("x", domain.StatusInsufficientData, time.Now().UTC())))

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))

	var export Export
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, 1, export.Count)
	require.Len(t, export.Records, 1)
	assert.Equal(t, domain.StatusInsufficientData, export.Records[0].Status)
}

func TestFromOutcome(t *testing.T) {
	composite := 80.0
	outcome := &domain.AssessmentOutcome{
		RequestID: "req-1",
		Status:    domain.StatusAssessed,
		Profile: domain.NewBiomarkerProfile(
			domain.BiomarkerReading{Name: domain.HbA1c, Value: 5.4, Unit: "%"},
			domain.BiomarkerReading{Name: domain.CRP, Value: 1.2, Unit: "mg/L"},
		),
		Validation: domain.ValidationVerdict{CriticalMissing: []domain.Biomarker{domain.Ferritin, domain.TSH}},
		Safety: domain.SafetyVerdict{
			Kind:               domain.SafetyClear,
			OutOfScopeFindings: []domain.OutOfScopeFinding{},
		},
		Assessment: &domain.HealthAssessment{
			CompositeScore:   &composite,
			DomainsScored:    2,
			ReferenceVersion: "overlay-1",
		},
		ProcessingTime: 42 * time.Millisecond,
	}

	rec := FromOutcome(outcome, "builtin")

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, 2, rec.BiomarkerCount)
	assert.Equal(t, 2, rec.CriticalMissing)
	assert.Equal(t, 2, rec.DomainsScored)
	assert.Equal(t, "overlay-1", rec.ReferenceVersion, "assessment version wins")
	assert.Equal(t, int64(42), rec.ProcessingTimeMs)

	stopped := &domain.AssessmentOutcome{
		Status: domain.StatusEmergencyStop,
		Safety: domain.SafetyVerdict{
			IsEmergency:       true,
			Kind:              domain.EmergencyReferral,
			EmergencyFindings: []domain.EmergencyFinding{{Biomarker: domain.Glucose, Value: 45}},
		},
	}
	rec = FromOutcome(stopped, "builtin")
	assert.Equal(t, "builtin", rec.ReferenceVersion)
	assert.Equal(t, 1, rec.EmergencyFindings)
	assert.Equal(t, domain.EmergencyReferral, rec.SafetyKind)
	assert.Zero(t, rec.DomainsScored)
}

type failingStore struct{ domain.AuditStore }

func (failingStore) Record(context.Context, *domain.AuditRecord) error {
	return errors.New("disk full")
}

func TestObserver(t *testing.T) {
	store := createTestStore(t)
	observer := NewObserver(store, "builtin", nil)
	defer observer.Close()
	ctx := context.Background()

	observer.ObserveOutcome(ctx, &domain.AssessmentOutcome{RequestID: "r", Status: domain.StatusAssessed})
	observer.ObserveOutcome(ctx, nil)
	require.NoError(t, observer.Flush(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	logger := logrus.New()
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	failing := NewObserver(failingStore{}, "builtin", logger)
	failing.ObserveOutcome(ctx, &domain.AssessmentOutcome{RequestID: "r2"})
	failing.Close()
	assert.Contains(t, logs.String(), "Failed to record assessment audit")
}

// blockingStore holds every write until release is closed.
type blockingStore struct {
	domain.AuditStore
	release chan struct{}
	written chan string
}

func (b *blockingStore) Record(ctx context.Context, rec *domain.AuditRecord) error {
	<-b.release
	b.written <- rec.RequestID
	return nil
}

func TestObserver_DoesNotBlockOnSlowStore(t *testing.T) {
	store := &blockingStore{release: make(chan struct{}), written: make(chan string, 4)}
	logger := logrus.New()
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	observer := NewObserverWithQueue(store, "builtin", logger, 1)

	returned := make(chan struct{})
	go func() {
		for _, id := range []string{"a", "b", "c"} {
			observer.ObserveOutcome(context.Background(), &domain.AssessmentOutcome{RequestID: id})
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("ObserveOutcome blocked on the store")
	}

	close(store.release)
	observer.Close()
	close(store.written)

	var ids []string
	for id := range store.written {
		ids = append(ids, id)
	}
	assert.NotEmpty(t, ids)
	assert.Equal(t, "a", ids[0])
	assert.Contains(t, logs.String(), "Audit queue full, record dropped")
}

func TestObserver_Close(t *testing.T) {
	store := createTestStore(t)
	logger := logrus.New()
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	observer := NewObserver(store, "builtin", logger)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		observer.ObserveOutcome(ctx, &domain.AssessmentOutcome{Status: domain.StatusAssessed})
	}
	observer.Close()
	observer.Close()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count, "close drains the queue")

	observer.ObserveOutcome(ctx, &domain.AssessmentOutcome{RequestID: "late"})
	assert.Contains(t, logs.String(), "Audit observer closed")
	assert.NoError(t, observer.Flush(ctx))
}

func TestNew(t *testing.T) {
	store, err := New(domain.AuditConfig{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "a.db")}, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &SQLiteStore{}, store)

	_, err = New(domain.AuditConfig{Backend: "postgres"}, nil)
	assert.Error(t, err)

	_, err = New(domain.AuditConfig{Backend: "mongo"}, nil)
	assert.Error(t, err)
}
