package scoring

import (
	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/reference"
)

// Inflammation scores systemic inflammation and recovery. Norms depend on the
// sex context; values above the mean are penalised.
func (e *Engine) Inflammation(profile domain.BiomarkerProfile, sc domain.SexContext) (domain.ScoreResult, bool) {
	norms := e.tables.Inflammation.For(sc)
	inputs := []struct {
		biomarker domain.Biomarker
		norm      reference.Norm
	}{
		{domain.CRP, norms.CRP},
		{domain.ESR, norms.ESR},
		{domain.Ferritin, norms.Ferritin},
		{domain.WBC, norms.WBC},
	}

	var components []component
	for _, in := range inputs {
		if v, ok := e.value(profile, in.biomarker); ok {
			components = append(components, component{name: string(in.biomarker), value: v, norm: in.norm})
		}
	}
	return e.result(domain.DomainInflammation, components, len(inputs), highIsWorse, e.tables.Inflammation.Scale)
}
