package service

import (
	"fmt"
	"strings"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/reference"
)

// CompletenessValidator gates analysis on the mandatory biomarker set.
type CompletenessValidator struct {
	tables *reference.Tables
}

// NewCompletenessValidator creates a validator over the given tables.
func NewCompletenessValidator(tables *reference.Tables) *CompletenessValidator {
	if tables == nil {
		tables = reference.Default()
	}
	return &CompletenessValidator{tables: tables}
}

// Validate reports which mandatory and optional biomarkers are missing. Missing
// sets keep the order of the reference tables.
func (v *CompletenessValidator) Validate(profile domain.BiomarkerProfile) domain.ValidationVerdict {
	critical := missing(profile, v.tables.Mandatory)
	optional := missing(profile, v.tables.Optional)

	verdict := domain.ValidationVerdict{
		Passed:          len(critical) == 0,
		CanProceed:      len(critical) <= v.tables.MaxCriticalMissing,
		CriticalMissing: critical,
		OptionalMissing: optional,
	}

	switch {
	case verdict.Passed:
		verdict.Message = fmt.Sprintf("All mandatory biomarkers present (%s).", joinNames(v.tables.Mandatory))
	case verdict.CanProceed:
		verdict.Message = fmt.Sprintf("Missing mandatory biomarker(s): %s. Analysis can proceed with reduced confidence.", joinNames(critical))
	default:
		required := len(v.tables.Mandatory) - v.tables.MaxCriticalMissing
		verdict.Message = fmt.Sprintf(
			"Missing mandatory biomarkers: %s. At least %d of %d mandatory biomarkers are required before analysis can proceed.",
			joinNames(critical), required, len(v.tables.Mandatory),
		)
	}
	return verdict
}

func missing(profile domain.BiomarkerProfile, set []domain.Biomarker) []domain.Biomarker {
	out := []domain.Biomarker{}
	for _, b := range set {
		if !profile.Has(b) {
			out = append(out, b)
		}
	}
	return out
}

func joinNames(names []domain.Biomarker) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
