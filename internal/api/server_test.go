package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-assessment-engine/internal/audit"
	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/metrics"
	"github.com/biomarker-assessment-engine/internal/reference"
	"github.com/biomarker-assessment-engine/internal/service"
	"github.com/biomarker-assessment-engine/internal/session"
)

const completeReport = "HbA1c: 5.4 % Ferritin 45 ng/mL CRP 1.2 mg/L TSH 2.1 mIU/L " +
	"Hemoglobin 13.8 g/dL Glucose 88 mg/dL Insulin 6 µIU/mL"

type testServer struct {
	server   *Server
	audit    *audit.SQLiteStore
	observer *audit.Observer
}

// flushAudit waits for queued audit records to reach the store.
func (ts *testServer) flushAudit(t *testing.T) {
	t.Helper()
	require.NoError(t, ts.observer.Flush(context.Background()))
}

func newTestServer(t *testing.T, mutate func(*domain.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := audit.NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tables := reference.Default()
	recorder := metrics.NewRecorder(metrics.Options{})
	observer := audit.NewObserver(store, tables.Version, logger)
	t.Cleanup(observer.Close)
	svc, err := service.NewAssessmentService(logger, tables, recorder, observer)
	require.NoError(t, err)

	cfg := domain.Config{
		Server: domain.ServerConfig{
			Mode:           gin.TestMode,
			MaxBodyBytes:   1 << 20,
			RequestTimeout: 5 * time.Second,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv := NewServer(cfg, Dependencies{
		Service:  svc,
		Sessions: session.NewMemoryStore(10, time.Minute),
		Audit:    store,
		Metrics:  recorder,
		Logger:   logger,
	})
	return &testServer{server: srv, audit: store, observer: observer}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func adultContext() map[string]interface{} {
	return map[string]interface{}{"age": 42, "sex_context": "menstruating"}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, reference.BuiltinVersion, body["reference_version"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestCatalog(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/api/v1/biomarkers", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	entries := body["biomarkers"].([]interface{})
	assert.Len(t, entries, len(domain.AllBiomarkers()))
	assert.Equal(t, "HbA1c", entries[0].(map[string]interface{})["name"])
}

func TestExtract(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"report_text": "HbA1c: 5,4 % Ferritin 45",
		"overrides":   map[string]float64{"lactate": 1.1},
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	profile := body["profile"].(map[string]interface{})
	assert.Contains(t, profile, "HbA1c")
	assert.Contains(t, profile, "Ferritin")
	validation := body["validation"].(map[string]interface{})
	assert.Equal(t, true, validation["can_proceed"])
	assert.Len(t, body["rejected_overrides"], 1)
	assert.NotEmpty(t, body["candidates"])
}

func TestExtract_BadRequest(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing text", map[string]interface{}{}},
		{"not json", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/extract", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, domain.ErrCodeInvalidInput, decode(t, w)["code"])
		})
	}
}

func TestValidate(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/v1/validate", map[string]interface{}{
		"biomarkers": map[string]float64{"hba1c": 5.4, "crp": 1.2},
	})

	require.Equal(t, http.StatusOK, w.Code)
	validation := decode(t, w)["validation"].(map[string]interface{})
	assert.Equal(t, false, validation["can_proceed"])
	assert.ElementsMatch(t, []interface{}{"Ferritin", "TSH"}, validation["critical_missing"])
}

func TestScreen(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/v1/screen", map[string]interface{}{
		"biomarkers": map[string]float64{"Potassium": 6.5},
	})

	require.Equal(t, http.StatusOK, w.Code)
	safety := decode(t, w)["safety"].(map[string]interface{})
	assert.Equal(t, true, safety["is_emergency"])
	assert.Equal(t, string(domain.EmergencyReferral), safety["kind"])
}

func TestAssess(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		text   string
		status domain.OutcomeStatus
	}{
		{"complete report", completeReport, domain.StatusAssessed},
		{"first glucose value wins", completeReport + " Glucose 45 mg/dL", domain.StatusAssessed},
		{"potassium emergency", "HbA1c 5.4 Ferritin 45 CRP 1.2 TSH 2.1 Potassium = 6.5 mmol/L", domain.StatusEmergencyStop},
		{"insufficient", "HbA1c 5.4 %", domain.StatusInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/assess?brief=true", map[string]interface{}{
				"report_text": tt.text,
				"context":     adultContext(),
			})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			body := decode(t, w)
			assert.Equal(t, string(tt.status), body["status"])
			assert.Contains(t, body["brief"], "USER HEALTH PROFILE:")
			if tt.status == domain.StatusAssessed {
				assert.NotNil(t, body["assessment"])
			} else {
				assert.Nil(t, body["assessment"])
			}
		})
	}

	ts.flushAudit(t)
	count, err := ts.audit.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(tests), count)

	metricsBody := ts.do(t, http.MethodGet, "/metrics", nil).Body.String()
	assert.Contains(t, metricsBody, `biomarker_assessments_total{status="emergency_stop"} 1`)
}

func TestAssess_MalformedContext(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/v1/assess", map[string]interface{}{
		"report_text": completeReport,
		"context":     map[string]interface{}{"sex_context": "menstruating"},
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, domain.ErrCodeMalformedContext, body["code"])
	assert.Contains(t, body["details"], "age")

	ts.flushAudit(t)
	count, err := ts.audit.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "malformed input never reaches the pipeline")
}

func TestAssess_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, func(cfg *domain.Config) { cfg.Server.MaxBodyBytes = 32 })
	w := ts.do(t, http.MethodPost, "/api/v1/assess", map[string]interface{}{
		"report_text": strings.Repeat("HbA1c 5.4 ", 20),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestReviewSessionFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"report_text": "HbA1c 5.4 % CRP 1.2 mg/L",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	id := created["id"].(string)
	assert.Equal(t, false, created["validation"].(map[string]interface{})["can_proceed"])

	w = ts.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/corrections", map[string]interface{}{
		"overrides": map[string]float64{"Ferritin": 45, "TSH": 2.1, "bogus": 3},
	})
	require.Equal(t, http.StatusOK, w.Code)
	corrected := decode(t, w)
	assert.Equal(t, true, corrected["validation"].(map[string]interface{})["passed"])
	assert.Len(t, corrected["rejected"], 1)

	w = ts.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/assess", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, w.Code, "missing context keeps the session")

	w = ts.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/assess", map[string]interface{}{
		"context": adultContext(),
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(domain.StatusAssessed), decode(t, w)["status"])

	w = ts.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "assessed sessions are deleted")
	assert.Equal(t, domain.ErrCodeSessionNotFound, decode(t, w)["code"])
}

func TestCorrectSession_Concurrent(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/sessions", map[string]interface{}{"report_text": "HbA1c 5.4 %"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	names := []string{"Ferritin", "CRP", "TSH", "Glucose", "Insulin", "HDL", "LDL", "Iron"}
	codes := make(chan int, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(name string, value float64) {
			defer wg.Done()
			codes <- ts.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/corrections", map[string]interface{}{
				"overrides": map[string]float64{name: value},
			}).Code
		}(name, float64(i+1))
	}
	wg.Wait()
	close(codes)
	for code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)["profile"].(map[string]interface{})
	for _, name := range names {
		assert.Contains(t, profile, name, "lost correction for %s", name)
	}
	assert.Len(t, profile, len(names)+1)
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodPost, "/api/v1/sessions", map[string]interface{}{"report_text": "HbA1c 5.4"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil).Code)
}

func TestAuditSummary(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodPost, "/api/v1/assess", map[string]interface{}{
		"report_text": "HbA1c 5.4 %",
		"context":     adultContext(),
	})
	ts.flushAudit(t)

	w := ts.do(t, http.MethodGet, "/api/v1/audit/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 1.0, body["total"])
	assert.Equal(t, 1.0, body["by_status"].(map[string]interface{})["insufficient_data"])
}

func TestRateLimitedAPI(t *testing.T) {
	ts := newTestServer(t, func(cfg *domain.Config) {
		cfg.RateLimit = domain.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.1, Burst: 1}
	})

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/biomarkers", nil).Code)
	w := ts.do(t, http.MethodGet, "/api/v1/biomarkers", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, domain.ErrCodeRateLimit, decode(t, w)["code"])

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil).Code, "health is not limited")
}
