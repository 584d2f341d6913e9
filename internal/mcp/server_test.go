package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-assessment-engine/internal/config"
	"github.com/biomarker-assessment-engine/internal/domain"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.LiteConfig{
		DataDir:           filepath.Join(t.TempDir(), "engine"),
		AuditEnabled:      true,
		SessionMaxEntries: 10,
		SessionTTL:        time.Minute,
		LogLevel:          "error",
		LogFormat:         "json",
	}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	s, err := NewServer(cfg, WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func textOf(t *testing.T, result *mcp.CallToolResult, i int) string {
	t.Helper()
	require.NotNil(t, result)
	require.Greater(t, len(result.Content), i)
	text, ok := result.Content[i].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServer(t *testing.T) {
	s := newTestServer(t)

	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.service)
	assert.NotNil(t, s.auditStore)

	_, err := os.Stat(s.config.AuditDBPath())
	assert.NoError(t, err)
}

func TestNewServer_BadOverlay(t *testing.T) {
	cfg := config.DefaultLiteConfig()
	cfg.AuditEnabled = false
	cfg.ReferenceOverlay = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewServer(cfg, WithLogger(logrus.New()))
	assert.Error(t, err)
}

func TestHandleExtract(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, _, err := s.handleExtract(ctx, nil, ExtractParams{ReportText: "HbA1c 5.4 %, Ferritin 45, CRP 1.2"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payload ExtractResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 0)), &payload))
	assert.Equal(t, 3, payload.Profile.Len())
	assert.Equal(t, []domain.Biomarker{domain.TSH}, payload.Validation.CriticalMissing)
	assert.True(t, payload.Validation.CanProceed)

	result, _, err = s.handleExtract(ctx, nil, ExtractParams{ReportText: "  "})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleValidate(t *testing.T) {
	s := newTestServer(t)

	result, _, err := s.handleValidate(context.Background(), nil, ProfileParams{
		Biomarkers: map[string]float64{"HbA1c": 5.4, "lactate": 2},
	})
	require.NoError(t, err)

	var payload ProfileResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 0)), &payload))
	assert.False(t, payload.Validation.CanProceed)
	require.Len(t, payload.RejectedOverrides, 1)
	assert.Equal(t, "lactate", payload.RejectedOverrides[0].Key)
}

func TestHandleScreen(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name         string
		params       ScreenParams
		kind         domain.SafetyKind
		wantRejected []string
	}{
		{"clear", ScreenParams{Biomarkers: map[string]float64{"Glucose": 90}}, domain.SafetyClear, nil},
		{"low glucose", ScreenParams{Biomarkers: map[string]float64{"Glucose": 45}}, domain.EmergencyReferral, nil},
		{"pregnancy topic", ScreenParams{MedicalHistory: "I am pregnant"}, domain.ScopeLimitation, nil},
		{
			name:         "rejected overrides are reported",
			params:       ScreenParams{Biomarkers: map[string]float64{"blood_glucose": 45, "Potassium": -1}},
			kind:         domain.SafetyClear,
			wantRejected: []string{"Potassium", "blood_glucose"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := s.handleScreen(context.Background(), nil, tt.params)
			require.NoError(t, err)

			var payload ScreenResult
			require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 0)), &payload))
			assert.Equal(t, tt.kind, payload.Safety.Kind)

			var keys []string
			for _, r := range payload.RejectedOverrides {
				keys = append(keys, r.Key)
				assert.NotEmpty(t, r.Reason)
			}
			assert.Equal(t, tt.wantRejected, keys)
		})
	}
}

func TestHandleAssess(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, _, err := s.handleAssess(ctx, nil, AssessParams{
		ReportText: "HbA1c 5.4 %, Ferritin 45 ng/mL, CRP 1.2 mg/L, TSH 2.1 mIU/L, Hemoglobin 13.8 g/dL",
		Age:        42,
		SexContext: "menstruating",
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, textOf(t, result, 0), "USER HEALTH PROFILE:")

	var outcome domain.AssessmentOutcome
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 1)), &outcome))
	assert.Equal(t, domain.StatusAssessed, outcome.Status)
	require.NotNil(t, outcome.Assessment)

	require.NoError(t, s.observer.Flush(ctx))
	count, err := s.auditStore.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	result, _, err = s.handleAssess(ctx, nil, AssessParams{ReportText: "HbA1c 5.4", SexContext: "menstruating"})
	require.NoError(t, err)
	assert.True(t, result.IsError, "missing age is rejected")
	assert.Contains(t, textOf(t, result, 0), "age")
}

func TestHandleDescribe(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, _, err := s.handleDescribe(ctx, nil, DescribeParams{})
	require.NoError(t, err)
	var all []domain.BiomarkerDescription
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 0)), &all))
	assert.Len(t, all, len(domain.AllBiomarkers()))

	result, _, err = s.handleDescribe(ctx, nil, DescribeParams{Names: []string{"tsh"}})
	require.NoError(t, err)
	var one []domain.BiomarkerDescription
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 0)), &one))
	require.Len(t, one, 1)
	assert.Equal(t, domain.TSH, one[0].Name)

	result, _, err = s.handleDescribe(ctx, nil, DescribeParams{Names: []string{"unobtainium"}})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestReviewFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, _, err := s.handleStartReview(ctx, nil, StartReviewParams{ReportText: "HbA1c 5.4 %, Ferritin 45 ng/mL, CRP 1.2 mg/L"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var session domain.ReviewSession
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 0)), &session))
	require.NotEmpty(t, session.ID)
	assert.Equal(t, []domain.Biomarker{domain.TSH}, session.Validation.CriticalMissing)

	result, _, err = s.handleCorrectReview(ctx, nil, CorrectReviewParams{
		SessionID: session.ID,
		Overrides: map[string]float64{"TSH": 2.1, "Hemoglobin": 13.8, "bogus": 1},
	})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 0)), &session))
	assert.Empty(t, session.Validation.CriticalMissing)
	require.Len(t, session.Rejected, 1)

	result, _, err = s.handleAssessReview(ctx, nil, AssessReviewParams{SessionID: session.ID, SexContext: "menstruating"})
	require.NoError(t, err)
	assert.True(t, result.IsError, "missing age keeps the session open")

	result, _, err = s.handleAssessReview(ctx, nil, AssessReviewParams{SessionID: session.ID, Age: 42, SexContext: "menstruating"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var outcome domain.AssessmentOutcome
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 1)), &outcome))
	assert.Equal(t, domain.StatusAssessed, outcome.Status)

	result, _, err = s.handleAssessReview(ctx, nil, AssessReviewParams{SessionID: session.ID, Age: 42, SexContext: "menstruating"})
	require.NoError(t, err)
	assert.True(t, result.IsError, "assessed session is closed")
}

func TestCorrectReview_Concurrent(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, _, err := s.handleStartReview(ctx, nil, StartReviewParams{ReportText: "HbA1c 5.4 %"})
	require.NoError(t, err)
	var session domain.ReviewSession
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 0)), &session))

	names := []string{"Ferritin", "CRP", "TSH", "Glucose", "Insulin", "HDL", "LDL", "Iron"}
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(name string, value float64) {
			defer wg.Done()
			s.handleCorrectReview(ctx, nil, CorrectReviewParams{
				SessionID: session.ID,
				Overrides: map[string]float64{name: value},
			})
		}(name, float64(i+1))
	}
	wg.Wait()

	held, err := s.sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, len(names)+1, held.Profile.Len())
	for _, name := range names {
		b, err := domain.ParseBiomarker(name)
		require.NoError(t, err)
		assert.True(t, held.Profile.Has(b), "lost correction for %s", name)
	}
}

func TestCorrectReview_UnknownSession(t *testing.T) {
	s := newTestServer(t)

	result, _, err := s.handleCorrectReview(context.Background(), nil, CorrectReviewParams{
		SessionID: "missing",
		Overrides: map[string]float64{"TSH": 2},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestStartReview_EmptyText(t *testing.T) {
	s := newTestServer(t)

	result, _, err := s.handleStartReview(context.Background(), nil, StartReviewParams{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
