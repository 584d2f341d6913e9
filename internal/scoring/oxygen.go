package scoring

import (
	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/reference"
)

// Oxygen scores oxygen transport capacity. Only values below the mean are
// penalised; a high hemoglobin never lowers the score.
func (e *Engine) Oxygen(profile domain.BiomarkerProfile) (domain.ScoreResult, bool) {
	norms := e.tables.Oxygen
	inputs := []struct {
		biomarker domain.Biomarker
		norm      reference.Norm
	}{
		{domain.Hemoglobin, norms.Hemoglobin},
		{domain.Hematocrit, norms.Hematocrit},
		{domain.RBC, norms.RBC},
		{domain.Iron, norms.Iron},
	}

	var components []component
	for _, in := range inputs {
		if v, ok := e.value(profile, in.biomarker); ok {
			components = append(components, component{name: string(in.biomarker), value: v, norm: in.norm})
		}
	}
	return e.result(domain.DomainOxygen, components, len(inputs), lowIsWorse, norms.Scale)
}
