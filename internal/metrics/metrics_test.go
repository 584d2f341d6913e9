package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-assessment-engine/internal/domain"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestRecorder_ObserveOutcome(t *testing.T) {
	r := NewRecorder(Options{})
	ctx := context.Background()

	r.ObserveOutcome(ctx, &domain.AssessmentOutcome{
		Status: domain.StatusAssessed,
		Profile: domain.NewBiomarkerProfile(
			domain.BiomarkerReading{Name: domain.HbA1c, Value: 5.4, Unit: "%"},
		),
		Assessment: &domain.HealthAssessment{Scores: []domain.ScoreResult{
			{Domain: domain.DomainMetabolic, Score: 96.2},
			{Domain: domain.DomainOxygen, Score: 61},
		}},
		ProcessingTime: 2 * time.Millisecond,
	})
	r.ObserveOutcome(ctx, &domain.AssessmentOutcome{
		Status: domain.StatusEmergencyStop,
		Safety: domain.SafetyVerdict{
			EmergencyFindings:  []domain.EmergencyFinding{{Biomarker: domain.Glucose}, {Biomarker: domain.Potassium}},
			OutOfScopeFindings: []domain.OutOfScopeFinding{{MatchedTopic: "chest pain"}},
		},
	})
	r.ObserveOutcome(ctx, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.assessments.WithLabelValues("assessed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.assessments.WithLabelValues("emergency_stop")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.safetyFindings.WithLabelValues("emergency")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.safetyFindings.WithLabelValues("out_of_scope")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.domainScores))

	out := scrape(t, r)
	assert.Contains(t, out, "biomarker_assessments_total")
	assert.Contains(t, out, `biomarker_domain_scores_count{domain="oxygen"} 1`)
	assert.Contains(t, out, "biomarker_extracted_biomarkers_count 2")
}

func TestRecorder_ObserveRequest(t *testing.T) {
	r := NewRecorder(Options{GoMetrics: true})
	r.ObserveRequest("/api/v1/assess", "200")
	r.ObserveRequest("/api/v1/assess", "200")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("/api/v1/assess", "200")))
	assert.Contains(t, scrape(t, r), "go_goroutines")
}
