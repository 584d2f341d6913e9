package labtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-assessment-engine/internal/domain"
)

func TestUnitTable_ToCanonical(t *testing.T) {
	units := DefaultUnits()

	tests := []struct {
		name      string
		biomarker domain.Biomarker
		value     float64
		unit      string
		expected  float64
	}{
		{"Glucose mmol/L to mg/dL", domain.Glucose, 5.0, UnitMmolPerL, 90},
		{"Glucose g/L to mg/dL", domain.Glucose, 0.95, UnitGPerL, 95},
		{"HbA1c IFCC to NGSP", domain.HbA1c, 48, UnitMmolPerMol, 6.543},
		{"Hemoglobin g/L to g/dL", domain.Hemoglobin, 135, UnitGPerL, 13.5},
		{"Hemoglobin mmol/L to g/dL", domain.Hemoglobin, 8.4, UnitMmolPerL, 13.532},
		{"Hematocrit fraction to percent", domain.Hematocrit, 0.41, UnitLPerL, 41},
		{"Iron µmol/L to µg/dL", domain.Iron, 16, UnitUmolPerL, 89.392},
		{"CRP mg/dL to mg/L", domain.CRP, 0.3, UnitMgPerDL, 3},
		{"Triglycerides mmol/L to mg/dL", domain.Triglycerides, 1.0, UnitMmolPerL, 88.57},
		{"Creatinine mg/dL to µmol/L", domain.Creatinine, 1.0, UnitMgPerDL, 88.4},
		{"RBC per microlitre is equivalent", domain.RBC, 4.5, UnitMillionPerUL, 4.5},
		{"Canonical unit is unchanged", domain.Ferritin, 45, UnitNgPerML, 45},
		{"Empty unit is treated as canonical", domain.Glucose, 45, "", 45},
		{"Unaccepted unit is treated as canonical", domain.Glucose, 45, UnitPgPerML, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := units.ToCanonical(tt.biomarker, tt.value, tt.unit)
			assert.InDelta(t, tt.expected, got, 0.01)
		})
	}
}

func TestUnitTable_ResolveUnit(t *testing.T) {
	units := DefaultUnits()

	tests := []struct {
		name      string
		biomarker domain.Biomarker
		token     string
		expected  string
	}{
		{"Giga per litre for a cell count", domain.WBC, "G/L", UnitGigaPerL},
		{"Grams per litre for glucose", domain.Glucose, "g/l", UnitGPerL},
		{"Micro sign", domain.Ferritin, "µg/L", UnitUgPerL},
		{"Ascii micro", domain.Ferritin, "ug/L", UnitUgPerL},
		{"French insulin unit", domain.Insulin, "µUI/mL", UnitUIUPerML},
		{"Multiplier prefix", domain.RBC, "x10^12/L", UnitTeraPerL},
		{"Asterisk exponent", domain.Platelets, "10*9/L", UnitGigaPerL},
		{"Percent", domain.Hematocrit, "%", UnitPercent},
		{"Spaces inside token", domain.Glucose, "mmol / L", UnitMmolPerL},
		{"Unit not accepted by biomarker", domain.Ferritin, "mmol/L", ""},
		{"Unknown token", domain.Ferritin, "bananas", ""},
		{"Unknown biomarker", domain.Biomarker("Cortisol"), "mg/L", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, units.ResolveUnit(tt.biomarker, tt.token))
		})
	}
}

func TestUnitTable_CoversEveryBiomarker(t *testing.T) {
	units := DefaultUnits()
	for _, b := range domain.AllBiomarkers() {
		s, ok := units.Spec(b)
		require.True(t, ok, "missing unit spec for %s", b)
		assert.NotEmpty(t, s.Canonical)
		assert.True(t, s.Accepts(s.Canonical))
	}
}

func TestScanUnit(t *testing.T) {
	tests := []struct {
		tail  string
		token string
	}{
		{" mg/dL, Insuline", "mg/dL"},
		{" %", "%"},
		{" x10^9/L", "x10^9/L"},
		{" mm/1h", "mm/1h"},
		{" then more text", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.tail, func(t *testing.T) {
			_, token := scanUnit(tt.tail)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestDefaultLibrary(t *testing.T) {
	lib := DefaultLibrary()

	assert.ElementsMatch(t, domain.AllBiomarkers(), lib.Biomarkers())
	for _, b := range lib.Biomarkers() {
		patterns := lib.Patterns(b)
		require.NotEmpty(t, patterns, "no patterns for %s", b)
		for i, p := range patterns {
			assert.Equal(t, i, p.Index)
			assert.Equal(t, b, p.Biomarker)
		}
	}
	assert.NotNil(t, lib.Units())
}
