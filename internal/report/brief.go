// Package report renders an outcome as a plain-text brief for a narrative or
// recommendation layer.
package report

import (
	"fmt"
	"strings"

	"github.com/biomarker-assessment-engine/internal/domain"
)

// Brief summarises outcome. It contains the same values the outcome does and
// must be treated with the same care.
func Brief(outcome *domain.AssessmentOutcome) string {
	if outcome == nil {
		return ""
	}
	parts := []string{"USER HEALTH PROFILE:"}

	switch outcome.Status {
	case domain.StatusEmergencyStop:
		parts = append(parts, "\nASSESSMENT STOPPED: refer to a clinician before any lifestyle advice.")
		for _, f := range outcome.Safety.EmergencyFindings {
			parts = append(parts, fmt.Sprintf("  - %s", f.Reason))
		}
		for _, f := range outcome.Safety.OutOfScopeFindings {
			parts = append(parts, fmt.Sprintf("  - %s: %s", f.MatchedTopic, f.Recommendation))
		}
		return strings.Join(parts, "\n")
	case domain.StatusInsufficientData:
		parts = append(parts, "\nINSUFFICIENT DATA: "+outcome.Validation.Message)
	}

	if a := outcome.Assessment; a != nil {
		parts = append(parts, fmt.Sprintf("\nAge: %d years", a.ChronologicalAge))
		if a.BiologicalAge != nil && a.BioAgeGap != nil {
			parts = append(parts, fmt.Sprintf("Biological Age: %.1f years (Delta: %+.1f years)", *a.BiologicalAge, *a.BioAgeGap))
		}
		if a.CompositeScore != nil {
			parts = append(parts, fmt.Sprintf("Composite Score: %.1f", *a.CompositeScore))
		}
		parts = append(parts, "\nDOMAIN SCORES:")
		for _, s := range a.Scores {
			parts = append(parts, fmt.Sprintf("  - %s: %.1f (%s) %s", s.Domain, s.Score, s.Label, s.Summary))
		}
	}

	parts = append(parts, "\nBLOOD TEST BIOMARKERS:")
	for _, r := range outcome.Profile.Readings() {
		parts = append(parts, fmt.Sprintf("  - %s: %g %s", r.Name, r.Value, r.Unit))
	}

	return strings.Join(parts, "\n")
}
