package service

import (
	"math"
	"sort"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/pkg/labtext"
)

// ManualSpan is the RawSpan recorded for user-entered values.
const ManualSpan = "manual entry"

// Override rejection reasons.
const (
	ReasonUnknownBiomarker = "unknown biomarker name"
	ReasonNonPositiveValue = "value must be a positive number"
)

// MergeOverrides applies manual values on top of an extracted profile. Keys are
// canonical names matched case-insensitively; manual values win over extracted
// ones and are recorded in the canonical unit with full confidence. Unknown names
// and non-positive or non-finite values are returned as rejected, sorted by key.
func MergeOverrides(profile domain.BiomarkerProfile, overrides map[string]float64, units *labtext.UnitTable) (domain.BiomarkerProfile, []domain.RejectedOverride) {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rejected []domain.RejectedOverride
	for _, key := range keys {
		value := overrides[key]
		name, err := domain.ParseBiomarker(key)
		if err != nil {
			rejected = append(rejected, domain.RejectedOverride{Key: key, Value: value, Reason: ReasonUnknownBiomarker})
			continue
		}
		if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
			rejected = append(rejected, domain.RejectedOverride{Key: key, Value: value, Reason: ReasonNonPositiveValue})
			continue
		}
		profile = profile.With(domain.BiomarkerReading{
			Name:       name,
			Value:      value,
			Unit:       units.Canonical(name),
			Confidence: labtext.ManualConfidence,
			RawSpan:    ManualSpan,
			Source:     domain.SourceManual,
		})
	}
	return profile, rejected
}
