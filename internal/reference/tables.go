// Package reference holds the static tables the engine is driven by: completeness
// sets, emergency thresholds, out-of-scope topics, population norms, label cut
// points and the biomarker catalog. Tables are built once, validated, and passed
// by pointer into each component; nothing in this package is mutated afterwards.
package reference

import (
	"fmt"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/pkg/labtext"
)

// BuiltinVersion identifies the compiled-in tables.
const BuiltinVersion = "builtin-2025.1"

// Tables is the full, versioned reference configuration.
type Tables struct {
	Version string

	Units *labtext.UnitTable

	Mandatory          []domain.Biomarker
	Optional           []domain.Biomarker
	MaxCriticalMissing int

	Thresholds []Threshold
	Topics     TopicTable

	Metabolic    MetabolicNorms
	Inflammation InflammationNorms
	Oxygen       OxygenNorms

	DomainWeights   DomainWeights
	Labels          LabelCutPoints
	BioAge          BioAgeModel
	Interpretations map[domain.ScoreDomain]map[domain.ScoreLabel]Interpretation

	Catalog Catalog
}

// Default returns the built-in tables.
func Default() *Tables {
	return &Tables{
		Version: BuiltinVersion,
		Units:   labtext.DefaultUnits(),

		Mandatory: []domain.Biomarker{domain.HbA1c, domain.Ferritin, domain.CRP, domain.TSH},
		Optional: []domain.Biomarker{
			domain.Glucose, domain.Insulin, domain.Triglycerides, domain.HDL, domain.LDL,
			domain.TotalCholesterol, domain.ApoB, domain.ApoA1, domain.Hemoglobin,
			domain.Hematocrit, domain.RBC, domain.Iron, domain.WBC, domain.ESR,
			domain.Platelets, domain.Potassium, domain.Sodium, domain.Calcium,
			domain.Creatinine, domain.ALT, domain.AST, domain.VitaminD, domain.VitaminB12,
		},
		MaxCriticalMissing: 1,

		Thresholds: defaultThresholds(),
		Topics:     defaultTopics(),

		Metabolic:    defaultMetabolicNorms(),
		Inflammation: defaultInflammationNorms(),
		Oxygen:       defaultOxygenNorms(),

		DomainWeights:   DomainWeights{Metabolic: 0.40, Inflammation: 0.30, Oxygen: 0.30},
		Labels:          LabelCutPoints{Optimal: 85, Normal: 70, Borderline: 55, Attention: 40},
		BioAge:          BioAgeModel{NeutralScore: 75, YearsPerPoint: 0.2, MaxGapYears: 15},
		Interpretations: defaultInterpretations(),

		Catalog: defaultCatalog(),
	}
}

// Validate checks internal consistency. It is run on every overlay.
func (t *Tables) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("%w: version is required", domain.ErrInvalidReferenceVersion)
	}
	if t.Units == nil {
		return fmt.Errorf("%w: unit table is required", domain.ErrInvalidReferenceVersion)
	}
	if len(t.Mandatory) == 0 {
		return fmt.Errorf("%w: mandatory set is empty", domain.ErrInvalidReferenceVersion)
	}
	if t.MaxCriticalMissing < 0 || t.MaxCriticalMissing >= len(t.Mandatory) {
		return fmt.Errorf("%w: max critical missing %d out of range", domain.ErrInvalidReferenceVersion, t.MaxCriticalMissing)
	}

	for _, th := range t.Thresholds {
		if err := th.validate(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidReferenceVersion, err)
		}
		if canonical := t.Units.Canonical(th.Biomarker); th.Unit != canonical {
			return fmt.Errorf("%w: threshold for %s is in %q, expected %q", domain.ErrInvalidReferenceVersion, th.Biomarker, th.Unit, canonical)
		}
	}

	norms := map[string]Norm{
		"metabolic.homa_ir":                      t.Metabolic.HOMAIR,
		"metabolic.tg_hdl":                       t.Metabolic.TGHDL,
		"metabolic.apob_apoa1":                   t.Metabolic.ApoBApoA1,
		"metabolic.hba1c":                        t.Metabolic.HbA1c,
		"inflammation.menstruating.crp":          t.Inflammation.Menstruating.CRP,
		"inflammation.menstruating.esr":          t.Inflammation.Menstruating.ESR,
		"inflammation.menstruating.ferritin":     t.Inflammation.Menstruating.Ferritin,
		"inflammation.menstruating.wbc":          t.Inflammation.Menstruating.WBC,
		"inflammation.non_menstruating.crp":      t.Inflammation.NonMenstruating.CRP,
		"inflammation.non_menstruating.esr":      t.Inflammation.NonMenstruating.ESR,
		"inflammation.non_menstruating.ferritin": t.Inflammation.NonMenstruating.Ferritin,
		"inflammation.non_menstruating.wbc":      t.Inflammation.NonMenstruating.WBC,
		"oxygen.hemoglobin":                      t.Oxygen.Hemoglobin,
		"oxygen.hematocrit":                      t.Oxygen.Hematocrit,
		"oxygen.rbc":                             t.Oxygen.RBC,
		"oxygen.iron":                            t.Oxygen.Iron,
	}
	for name, n := range norms {
		if n.SD <= 0 || n.Weight <= 0 {
			return fmt.Errorf("%w: norm %s needs sd > 0 and weight > 0", domain.ErrInvalidReferenceVersion, name)
		}
	}
	if t.Metabolic.Scale <= 0 || t.Inflammation.Scale <= 0 || t.Oxygen.Scale <= 0 {
		return fmt.Errorf("%w: domain scales must be positive", domain.ErrInvalidReferenceVersion)
	}

	w := t.DomainWeights
	if w.Metabolic <= 0 || w.Inflammation <= 0 || w.Oxygen <= 0 {
		return fmt.Errorf("%w: domain weights must be positive", domain.ErrInvalidReferenceVersion)
	}
	l := t.Labels
	if !(l.Optimal > l.Normal && l.Normal > l.Borderline && l.Borderline > l.Attention && l.Attention > 0) {
		return fmt.Errorf("%w: label cut points must be strictly decreasing", domain.ErrInvalidReferenceVersion)
	}
	if t.BioAge.YearsPerPoint <= 0 || t.BioAge.MaxGapYears <= 0 {
		return fmt.Errorf("%w: bio-age model needs positive slope and cap", domain.ErrInvalidReferenceVersion)
	}
	return nil
}

// DomainWeights are the aggregator weights, renormalised over produced domains.
type DomainWeights struct {
	Metabolic    float64 `yaml:"metabolic"`
	Inflammation float64 `yaml:"inflammation"`
	Oxygen       float64 `yaml:"oxygen"`
}

// Weight returns the weight of d, or 0 for an unknown domain.
func (w DomainWeights) Weight(d domain.ScoreDomain) float64 {
	switch d {
	case domain.DomainMetabolic:
		return w.Metabolic
	case domain.DomainInflammation:
		return w.Inflammation
	case domain.DomainOxygen:
		return w.Oxygen
	default:
		return 0
	}
}

// LabelCutPoints are inclusive lower bounds; anything below Attention is critical.
type LabelCutPoints struct {
	Optimal    float64 `yaml:"optimal"`
	Normal     float64 `yaml:"normal"`
	Borderline float64 `yaml:"borderline"`
	Attention  float64 `yaml:"attention"`
}

// Label buckets a 0-100 score.
func (c LabelCutPoints) Label(score float64) domain.ScoreLabel {
	switch {
	case score >= c.Optimal:
		return domain.LabelOptimal
	case score >= c.Normal:
		return domain.LabelNormal
	case score >= c.Borderline:
		return domain.LabelBorderline
	case score >= c.Attention:
		return domain.LabelAttention
	default:
		return domain.LabelCritical
	}
}

// BioAgeModel maps a composite score to a signed gap in years:
// gap = clamp((NeutralScore - composite) * YearsPerPoint, ±MaxGapYears).
type BioAgeModel struct {
	NeutralScore  float64 `yaml:"neutral_score"`
	YearsPerPoint float64 `yaml:"years_per_point"`
	MaxGapYears   float64 `yaml:"max_gap_years"`
}

// Gap returns the bio-age gap for a composite score.
func (m BioAgeModel) Gap(composite float64) float64 {
	gap := (m.NeutralScore - composite) * m.YearsPerPoint
	if gap > m.MaxGapYears {
		return m.MaxGapYears
	}
	if gap < -m.MaxGapYears {
		return -m.MaxGapYears
	}
	return gap
}

// Interpretation is the user-facing text for a domain label.
type Interpretation struct {
	Description string
	Summary     string
}
