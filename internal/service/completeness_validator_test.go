package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/biomarker-assessment-engine/internal/domain"
)

func profileOf(names ...domain.Biomarker) domain.BiomarkerProfile {
	p := domain.BiomarkerProfile{}
	for _, n := range names {
		p = p.With(domain.BiomarkerReading{Name: n, Value: 1, Confidence: 1})
	}
	return p
}

func TestCompletenessValidator_Validate(t *testing.T) {
	validator := NewCompletenessValidator(nil)

	tests := []struct {
		name         string
		profile      domain.BiomarkerProfile
		wantPassed   bool
		wantProceed  bool
		wantCritical []domain.Biomarker
		wantMessage  string
	}{
		{
			name:         "all mandatory present",
			profile:      profileOf(domain.HbA1c, domain.Ferritin, domain.CRP, domain.TSH),
			wantPassed:   true,
			wantProceed:  true,
			wantCritical: []domain.Biomarker{},
			wantMessage:  "All mandatory biomarkers present (HbA1c, Ferritin, CRP, TSH).",
		},
		{
			name:         "three of four proceeds",
			profile:      profileOf(domain.HbA1c, domain.Ferritin, domain.CRP),
			wantProceed:  true,
			wantCritical: []domain.Biomarker{domain.TSH},
			wantMessage:  "Missing mandatory biomarker(s): TSH. Analysis can proceed with reduced confidence.",
		},
		{
			name:         "two of four is blocked",
			profile:      profileOf(domain.HbA1c, domain.Ferritin),
			wantCritical: []domain.Biomarker{domain.CRP, domain.TSH},
			wantMessage:  "Missing mandatory biomarkers: CRP, TSH. At least 3 of 4 mandatory biomarkers are required before analysis can proceed.",
		},
		{
			name:         "only ferritin",
			profile:      profileOf(domain.Ferritin),
			wantCritical: []domain.Biomarker{domain.HbA1c, domain.CRP, domain.TSH},
			wantMessage:  "Missing mandatory biomarkers: HbA1c, CRP, TSH. At least 3 of 4 mandatory biomarkers are required before analysis can proceed.",
		},
		{
			name:         "empty profile",
			profile:      domain.BiomarkerProfile{},
			wantCritical: []domain.Biomarker{domain.HbA1c, domain.Ferritin, domain.CRP, domain.TSH},
			wantMessage:  "Missing mandatory biomarkers: HbA1c, Ferritin, CRP, TSH. At least 3 of 4 mandatory biomarkers are required before analysis can proceed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validator.Validate(tt.profile)
			assert.Equal(t, tt.wantPassed, got.Passed)
			assert.Equal(t, tt.wantProceed, got.CanProceed)
			assert.Equal(t, tt.wantCritical, got.CriticalMissing)
			assert.Equal(t, tt.wantMessage, got.Message)
		})
	}
}

func TestCompletenessValidator_OptionalMissing(t *testing.T) {
	validator := NewCompletenessValidator(nil)
	got := validator.Validate(profileOf(domain.HbA1c, domain.Glucose, domain.Iron))

	assert.NotContains(t, got.OptionalMissing, domain.Glucose)
	assert.NotContains(t, got.OptionalMissing, domain.Iron)
	assert.Contains(t, got.OptionalMissing, domain.Insulin)
	assert.Len(t, got.OptionalMissing, 21)
}

func TestCompletenessValidator_Idempotent(t *testing.T) {
	validator := NewCompletenessValidator(nil)
	p := profileOf(domain.HbA1c, domain.CRP)
	assert.Equal(t, validator.Validate(p), validator.Validate(p))
}
