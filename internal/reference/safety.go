package reference

import (
	"fmt"

	"github.com/biomarker-assessment-engine/internal/domain"
)

// Threshold is an emergency bound pair in the biomarker's canonical unit. A nil
// bound is not checked.
type Threshold struct {
	Biomarker   domain.Biomarker `yaml:"biomarker"`
	Unit        string           `yaml:"unit"`
	Lower       *float64         `yaml:"lower,omitempty"`
	Upper       *float64         `yaml:"upper,omitempty"`
	LowerReason string           `yaml:"lower_reason,omitempty"`
	UpperReason string           `yaml:"upper_reason,omitempty"`
}

func (t Threshold) validate() error {
	if !t.Biomarker.IsValid() {
		return fmt.Errorf("threshold for unknown biomarker %q", t.Biomarker)
	}
	if t.Lower == nil && t.Upper == nil {
		return fmt.Errorf("threshold for %s has no bound", t.Biomarker)
	}
	if t.Lower != nil && t.Upper != nil && *t.Lower >= *t.Upper {
		return fmt.Errorf("threshold for %s: lower %.2f must be below upper %.2f", t.Biomarker, *t.Lower, *t.Upper)
	}
	if (t.Lower != nil && t.LowerReason == "") || (t.Upper != nil && t.UpperReason == "") {
		return fmt.Errorf("threshold for %s: every bound needs a rationale", t.Biomarker)
	}
	return nil
}

func bound(v float64) *float64 { return &v }

func defaultThresholds() []Threshold {
	return []Threshold{
		{
			Biomarker:   domain.Glucose,
			Unit:        "mg/dL",
			Lower:       bound(50),
			Upper:       bound(400),
			LowerReason: "Severe hypoglycemia: risk of confusion, seizures and loss of consciousness.",
			UpperReason: "Severe hyperglycemia: risk of diabetic ketoacidosis or hyperosmolar state.",
		},
		{
			Biomarker:   domain.Potassium,
			Unit:        "mmol/L",
			Lower:       bound(2.5),
			Upper:       bound(6.0),
			LowerReason: "Severe hypokalemia: risk of muscle paralysis and cardiac arrhythmia.",
			UpperReason: "Hyperkalemia: risk of life-threatening cardiac arrhythmia.",
		},
		{
			Biomarker:   domain.Sodium,
			Unit:        "mmol/L",
			Lower:       bound(120),
			Upper:       bound(160),
			LowerReason: "Severe hyponatremia: risk of cerebral edema and seizures.",
			UpperReason: "Severe hypernatremia: risk of neurological damage.",
		},
		{
			Biomarker:   domain.Calcium,
			Unit:        "mmol/L",
			Lower:       bound(1.75),
			Upper:       bound(3.5),
			LowerReason: "Severe hypocalcemia: risk of tetany, seizures and arrhythmia.",
			UpperReason: "Hypercalcemic crisis: risk of arrhythmia and acute kidney injury.",
		},
		{
			Biomarker:   domain.Hemoglobin,
			Unit:        "g/dL",
			Lower:       bound(7.0),
			Upper:       bound(20.0),
			LowerReason: "Severe anemia: may require urgent transfusion assessment.",
			UpperReason: "Marked polycythemia: risk of thrombosis and hyperviscosity.",
		},
		{
			Biomarker:   domain.Platelets,
			Unit:        "10^9/L",
			Lower:       bound(20),
			Upper:       bound(1000),
			LowerReason: "Severe thrombocytopenia: risk of spontaneous bleeding.",
			UpperReason: "Extreme thrombocytosis: risk of thrombosis or bleeding.",
		},
		{
			Biomarker:   domain.WBC,
			Unit:        "10^9/L",
			Lower:       bound(1.0),
			Upper:       bound(30),
			LowerReason: "Severe leukopenia: high risk of serious infection.",
			UpperReason: "Marked leukocytosis: severe infection or hematological disease must be excluded.",
		},
		{
			Biomarker:   domain.CRP,
			Unit:        "mg/L",
			Upper:       bound(200),
			UpperReason: "Very high CRP: severe bacterial infection or sepsis must be excluded.",
		},
		{
			Biomarker:   domain.HbA1c,
			Unit:        "%",
			Upper:       bound(14),
			UpperReason: "Extremely high HbA1c: severe uncontrolled hyperglycemia.",
		},
		{
			Biomarker:   domain.TSH,
			Unit:        "mIU/L",
			Lower:       bound(0.01),
			Upper:       bound(50),
			LowerReason: "Fully suppressed TSH: thyrotoxicosis must be excluded promptly.",
			UpperReason: "Very high TSH: severe hypothyroidism, risk of myxedema.",
		},
		{
			Biomarker:   domain.Creatinine,
			Unit:        "µmol/L",
			Upper:       bound(350),
			UpperReason: "Markedly raised creatinine: acute or advanced kidney failure must be excluded.",
		},
		{
			Biomarker:   domain.Triglycerides,
			Unit:        "mg/dL",
			Upper:       bound(1000),
			UpperReason: "Severe hypertriglyceridemia: risk of acute pancreatitis.",
		},
		{
			Biomarker:   domain.ALT,
			Unit:        "U/L",
			Upper:       bound(1000),
			UpperReason: "ALT above 1000 U/L: acute liver injury must be excluded.",
		},
	}
}

// TopicCategory classifies matched keywords. Stems are lower-case substrings.
type TopicCategory struct {
	Category       domain.ScopeCategory `yaml:"category"`
	Stems          []string             `yaml:"stems"`
	Recommendation string               `yaml:"recommendation"`
}

// TopicTable is the out-of-scope keyword list and its ordered classifier.
type TopicTable struct {
	Keywords   []string        `yaml:"keywords"`
	Categories []TopicCategory `yaml:"categories"`
	Fallback   string          `yaml:"fallback"`
}

func defaultTopics() TopicTable {
	return TopicTable{
		Keywords: []string{
			// acute crisis
			"chest pain", "douleur thoracique", "suicid", "self-harm", "shortness of breath",
			"difficulty breathing", "fainting", "syncope", "seizure", "stroke", "avc",
			// oncology
			"cancer", "tumor", "tumour", "chemotherapy", "chimiothérapie", "oncolog",
			"leukemia", "leucémie", "lymphoma", "lymphome", "metastas", "métastase",
			// pregnancy
			"pregnant", "pregnancy", "enceinte", "grossesse", "breastfeeding", "allaitement",
			// medication dosage
			"dosage", "insulin dose", "dose adjustment", "posologie", "warfarin", "anticoagulant",
		},
		Categories: []TopicCategory{
			{
				Category:       domain.CategoryAcuteCrisis,
				Stems:          []string{"chest pain", "thoracique", "suicid", "self-harm", "breath", "fainting", "syncope", "seizure", "stroke", "avc"},
				Recommendation: "Call your local emergency number or go to the nearest emergency department now.",
			},
			{
				Category:       domain.CategoryOncology,
				Stems:          []string{"cancer", "tumo", "chemo", "chimio", "oncolog", "leuk", "leuc", "lymphom", "metasta", "métasta"},
				Recommendation: "Review these results with your oncology team. Cancer and its treatment change how biomarkers must be read.",
			},
			{
				Category:       domain.CategoryPregnancy,
				Stems:          []string{"pregnan", "enceinte", "grossesse", "breastfeed", "allaitement"},
				Recommendation: "Review these results with your obstetrician or midwife. Pregnancy shifts many reference ranges.",
			},
			{
				Category:       domain.CategoryMedication,
				Stems:          []string{"dosage", "dose", "posologie", "warfarin", "anticoagulant"},
				Recommendation: "Ask your prescribing physician or pharmacist. This tool cannot advise on medication or dosing.",
			},
		},
		Fallback: "Please discuss this topic with a healthcare professional.",
	}
}
