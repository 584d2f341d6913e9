package reference

import (
	"github.com/biomarker-assessment-engine/internal/domain"
)

// Norm is a population reference for one scoring component.
type Norm struct {
	Mean   float64 `yaml:"mean"`
	SD     float64 `yaml:"sd"`
	Weight float64 `yaml:"weight"`
}

// MetabolicNorms score insulin sensitivity and lipid handling. Scale converts
// the weighted deviation into score points.
type MetabolicNorms struct {
	Scale     float64 `yaml:"scale"`
	HOMAIR    Norm    `yaml:"homa_ir"`
	TGHDL     Norm    `yaml:"tg_hdl"`
	ApoBApoA1 Norm    `yaml:"apob_apoa1"`
	HbA1c     Norm    `yaml:"hba1c"`
}

// InflammationSet is one variant of the inflammation norms.
type InflammationSet struct {
	CRP      Norm `yaml:"crp"`
	ESR      Norm `yaml:"esr"`
	Ferritin Norm `yaml:"ferritin"`
	WBC      Norm `yaml:"wbc"`
}

// InflammationNorms carry menstrual-status-aware variants.
type InflammationNorms struct {
	Scale           float64         `yaml:"scale"`
	Menstruating    InflammationSet `yaml:"menstruating"`
	NonMenstruating InflammationSet `yaml:"non_menstruating"`
}

// For selects the variant for a sex context. Only menstruating uses the
// premenopausal norms; every other context uses the non-menstruating set.
func (n InflammationNorms) For(sc domain.SexContext) InflammationSet {
	if sc == domain.Menstruating {
		return n.Menstruating
	}
	return n.NonMenstruating
}

// OxygenNorms score oxygen transport. Only values below the mean are penalised.
type OxygenNorms struct {
	Scale      float64 `yaml:"scale"`
	Hemoglobin Norm    `yaml:"hemoglobin"`
	Hematocrit Norm    `yaml:"hematocrit"`
	RBC        Norm    `yaml:"rbc"`
	Iron       Norm    `yaml:"iron"`
}

func defaultMetabolicNorms() MetabolicNorms {
	return MetabolicNorms{
		Scale:     15,
		HOMAIR:    Norm{Mean: 1.46, SD: 0.8, Weight: 0.4},
		TGHDL:     Norm{Mean: 2.0, SD: 1.0, Weight: 0.3},
		ApoBApoA1: Norm{Mean: 0.9, SD: 0.3, Weight: 0.2},
		HbA1c:     Norm{Mean: 5.3, SD: 0.4, Weight: 0.1},
	}
}

func defaultInflammationNorms() InflammationNorms {
	return InflammationNorms{
		Scale: 18,
		Menstruating: InflammationSet{
			CRP:      Norm{Mean: 0.8, SD: 0.8, Weight: 0.40},
			ESR:      Norm{Mean: 12, SD: 8, Weight: 0.25},
			Ferritin: Norm{Mean: 35, SD: 20, Weight: 0.20},
			WBC:      Norm{Mean: 6.5, SD: 2.0, Weight: 0.15},
		},
		NonMenstruating: InflammationSet{
			CRP:      Norm{Mean: 1.5, SD: 1.0, Weight: 0.40},
			ESR:      Norm{Mean: 20, SD: 10, Weight: 0.25},
			Ferritin: Norm{Mean: 100, SD: 50, Weight: 0.20},
			WBC:      Norm{Mean: 6.5, SD: 2.0, Weight: 0.15},
		},
	}
}

func defaultOxygenNorms() OxygenNorms {
	return OxygenNorms{
		Scale:      22,
		Hemoglobin: Norm{Mean: 13.5, SD: 1.2, Weight: 0.40},
		Hematocrit: Norm{Mean: 41, SD: 3.5, Weight: 0.25},
		RBC:        Norm{Mean: 4.5, SD: 0.35, Weight: 0.20},
		Iron:       Norm{Mean: 90, SD: 25, Weight: 0.15},
	}
}

func defaultInterpretations() map[domain.ScoreDomain]map[domain.ScoreLabel]Interpretation {
	metabolicGood := Interpretation{
		Description: "Low fasting insulin, stable glucose, low TG/HDL and a good ApoB/ApoA1 ratio.",
		Summary:     "Glucose and lipids are kept stable with little insulin. Cells respond well to insulin and energy balance is steady.",
	}
	metabolicMild := Interpretation{
		Description: "Slightly elevated fasting insulin or TG/HDL ratio.",
		Summary:     "More insulin is needed to keep balance. Sleep, stress management and meal timing are the usual levers.",
	}
	metabolicPoor := Interpretation{
		Description: "High insulin, high TG/HDL, elevated HbA1c or ApoB/ApoA1 ratio.",
		Summary:     "Glucose control needs more insulin and lipid handling shows early resistance. This pattern can precede prediabetes or cardiovascular risk.",
	}

	inflammationGood := Interpretation{
		Description: "Low inflammation and good recovery capacity.",
		Summary:     "Baseline inflammation is low and recovery from training and daily stress looks good.",
	}
	inflammationMild := Interpretation{
		Description: "Mild systemic stress or recent inflammation.",
		Summary:     "Slight inflammation can follow intense training, poor sleep or psychological stress. Active recovery usually helps.",
	}
	inflammationPoor := Interpretation{
		Description: "High inflammatory load and reduced recovery.",
		Summary:     "Markers point to systemic inflammation, from overtraining, infection, gut issues or poor recovery. Reduce training load and prioritise rest.",
	}

	oxygenGood := Interpretation{
		Description: "Good oxygen transport capacity.",
		Summary:     "Hemoglobin and iron support efficient oxygen delivery to tissues.",
	}
	oxygenMild := Interpretation{
		Description: "Slight reduction in oxygen transport markers.",
		Summary:     "Iron or hemoglobin is a little low and may limit performance. Monitor iron intake, especially with heavy training or heavy periods.",
	}
	oxygenPoor := Interpretation{
		Description: "Low oxygen transport capacity.",
		Summary:     "Low hemoglobin or iron can affect stamina and recovery. A medical evaluation for anemia is advisable.",
	}

	return map[domain.ScoreDomain]map[domain.ScoreLabel]Interpretation{
		domain.DomainMetabolic: {
			domain.LabelOptimal:    metabolicGood,
			domain.LabelNormal:     metabolicMild,
			domain.LabelBorderline: metabolicMild,
			domain.LabelAttention:  metabolicPoor,
			domain.LabelCritical:   metabolicPoor,
		},
		domain.DomainInflammation: {
			domain.LabelOptimal:    inflammationGood,
			domain.LabelNormal:     inflammationMild,
			domain.LabelBorderline: inflammationMild,
			domain.LabelAttention:  inflammationPoor,
			domain.LabelCritical:   inflammationPoor,
		},
		domain.DomainOxygen: {
			domain.LabelOptimal:    oxygenGood,
			domain.LabelNormal:     oxygenMild,
			domain.LabelBorderline: oxygenMild,
			domain.LabelAttention:  oxygenPoor,
			domain.LabelCritical:   oxygenPoor,
		},
	}
}
