package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/pkg/labtext"
)

func TestMergeOverrides(t *testing.T) {
	units := labtext.DefaultUnits()
	base := withReading(domain.BiomarkerProfile{}, domain.Ferritin, 45, "ng/mL")

	merged, rejected := MergeOverrides(base, map[string]float64{
		" vitamind ": 32,
		"Iron":       math.NaN(),
		"Zinc":       90,
		"ferritin":   0,
	}, units)

	assert.True(t, merged.Has(domain.VitaminD))
	d, _ := merged.Get(domain.VitaminD)
	assert.Equal(t, "ng/mL", d.Unit)
	assert.Equal(t, ManualSpan, d.RawSpan)

	ferritin, ok := merged.Get(domain.Ferritin)
	require.True(t, ok)
	assert.Equal(t, 45.0, ferritin.Value, "rejected override leaves extracted value")
	assert.False(t, merged.Has(domain.Iron))

	require.Len(t, rejected, 3)
	reasons := map[string]string{}
	for _, r := range rejected {
		reasons[r.Key] = r.Reason
	}
	assert.Equal(t, ReasonNonPositiveValue, reasons["Iron"])
	assert.Equal(t, ReasonUnknownBiomarker, reasons["Zinc"])
	assert.Equal(t, ReasonNonPositiveValue, reasons["ferritin"])

	assert.False(t, base.Has(domain.VitaminD), "input profile is not mutated")
}

func TestMergeOverridesEmpty(t *testing.T) {
	base := withReading(domain.BiomarkerProfile{}, domain.TSH, 2.1, "mIU/L")
	merged, rejected := MergeOverrides(base, nil, labtext.DefaultUnits())
	assert.Empty(t, rejected)
	assert.Equal(t, base.Readings(), merged.Readings())
}
