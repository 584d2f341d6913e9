package scoring

import (
	"github.com/biomarker-assessment-engine/internal/domain"
)

// Component names for derived metabolic ratios.
const (
	ComponentHOMAIR    = "HOMA-IR"
	ComponentTGHDL     = "TG/HDL"
	ComponentApoBApoA1 = "ApoB/ApoA1"
)

// metabolicComponents is the number of components of a complete metabolic panel.
const metabolicComponents = 4

// glucoseMgPerMmol converts canonical mg/dL glucose back to mmol/L for HOMA-IR.
const glucoseMgPerMmol = 18.0

// Metabolic scores insulin sensitivity and lipid handling. Higher deviations are
// worse. Components need every input present; a partial pair is skipped.
func (e *Engine) Metabolic(profile domain.BiomarkerProfile) (domain.ScoreResult, bool) {
	norms := e.tables.Metabolic
	var components []component

	glucose, hasGlucose := e.value(profile, domain.Glucose)
	insulin, hasInsulin := e.value(profile, domain.Insulin)
	if hasGlucose && hasInsulin {
		homa := (glucose / glucoseMgPerMmol) * insulin / 22.5
		components = append(components, component{name: ComponentHOMAIR, value: homa, norm: norms.HOMAIR})
	}

	tg, hasTG := e.value(profile, domain.Triglycerides)
	hdl, hasHDL := e.value(profile, domain.HDL)
	if hasTG && hasHDL {
		components = append(components, component{name: ComponentTGHDL, value: tg / hdl, norm: norms.TGHDL})
	}

	apoB, hasApoB := e.value(profile, domain.ApoB)
	apoA1, hasApoA1 := e.value(profile, domain.ApoA1)
	if hasApoB && hasApoA1 {
		components = append(components, component{name: ComponentApoBApoA1, value: apoB / apoA1, norm: norms.ApoBApoA1})
	}

	if hba1c, ok := e.value(profile, domain.HbA1c); ok {
		components = append(components, component{name: string(domain.HbA1c), value: hba1c, norm: norms.HbA1c})
	}

	return e.result(domain.DomainMetabolic, components, metabolicComponents, highIsWorse, norms.Scale)
}
