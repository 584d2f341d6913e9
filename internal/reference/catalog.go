package reference

import (
	"github.com/biomarker-assessment-engine/internal/domain"
)

// CatalogEntry describes a biomarker for display and for the narrative layer.
type CatalogEntry struct {
	DisplayName    string
	Unit           string
	ReferenceRange string
	Note           string
}

// Catalog is keyed by canonical biomarker.
type Catalog map[domain.Biomarker]CatalogEntry

// Describe returns descriptions for the biomarkers present in profile only, in
// canonical display order.
func (c Catalog) Describe(profile domain.BiomarkerProfile) []domain.BiomarkerDescription {
	var out []domain.BiomarkerDescription
	for _, b := range domain.AllBiomarkers() {
		if !profile.Has(b) {
			continue
		}
		if d, ok := c.Lookup(b); ok {
			out = append(out, d)
		}
	}
	return out
}

// All returns every catalog entry in canonical display order.
func (c Catalog) All() []domain.BiomarkerDescription {
	out := make([]domain.BiomarkerDescription, 0, len(c))
	for _, b := range domain.AllBiomarkers() {
		if d, ok := c.Lookup(b); ok {
			out = append(out, d)
		}
	}
	return out
}

// Lookup returns the description of a single biomarker.
func (c Catalog) Lookup(b domain.Biomarker) (domain.BiomarkerDescription, bool) {
	e, ok := c[b]
	if !ok {
		return domain.BiomarkerDescription{}, false
	}
	desc := e.DisplayName + ": " + e.ReferenceRange + " " + e.Unit
	if e.Note != "" {
		desc += " (" + e.Note + ")"
	}
	return domain.BiomarkerDescription{
		Name:           b,
		DisplayName:    e.DisplayName,
		Unit:           e.Unit,
		ReferenceRange: e.ReferenceRange,
		Description:    desc,
	}, true
}

func defaultCatalog() Catalog {
	return Catalog{
		domain.HbA1c:            {"HbA1c", "%", "< 5.7 normal; 5.7 – 6.4 prediabetes; ≥ 6.5 diabetes", ""},
		domain.Ferritin:         {"Ferritin", "ng/mL", "15 – 150", "above 30 for functional iron stores"},
		domain.CRP:              {"C-reactive protein (hs-CRP)", "mg/L", "< 0.5 optimal; 0.5 – 1 low; 1 – 3 moderate; > 3 high", ""},
		domain.TSH:              {"TSH", "mIU/L", "0.3 – 4.0", "many labs use 0.4 – 4.0"},
		domain.Glucose:          {"Fasting glucose", "mg/dL", "70 – 99", "≈ 3.9 – 5.5 mmol/L"},
		domain.Insulin:          {"Fasting insulin", "µIU/mL", "2 – 20", "many labs report 2 – 25"},
		domain.Triglycerides:    {"Triglycerides", "mg/dL", "< 150", "≈ < 1.7 mmol/L"},
		domain.HDL:              {"HDL cholesterol", "mg/dL", "> 50", "≈ > 1.3 mmol/L"},
		domain.LDL:              {"LDL cholesterol", "mg/dL", "< 100", "target is individual"},
		domain.TotalCholesterol: {"Total cholesterol", "mg/dL", "< 200", "≈ < 5.2 mmol/L"},
		domain.ApoB:             {"Apolipoprotein B", "mg/dL", "60 – 120", ""},
		domain.ApoA1:            {"Apolipoprotein A1", "mg/dL", "100 – 180", ""},
		domain.Hemoglobin:       {"Hemoglobin", "g/dL", "11.6 – 15.0", "female typical"},
		domain.Hematocrit:       {"Hematocrit", "%", "36 – 44", "female typical"},
		domain.RBC:              {"Red blood cell count", "10^12/L", "3.8 – 5.2", ""},
		domain.Iron:             {"Serum iron", "µg/dL", "40 – 160", ""},
		domain.WBC:              {"White blood cells", "10^9/L", "4.0 – 11.0", ""},
		domain.ESR:              {"Erythrocyte sedimentation rate", "mm/h", "< 20", "increases with age"},
		domain.Platelets:        {"Platelets", "10^9/L", "150 – 400", ""},
		domain.Potassium:        {"Potassium", "mmol/L", "3.5 – 5.0", ""},
		domain.Sodium:           {"Sodium", "mmol/L", "135 – 145", ""},
		domain.Calcium:          {"Calcium (total)", "mmol/L", "2.2 – 2.6", "correct for albumin if needed"},
		domain.Creatinine:       {"Creatinine", "µmol/L", "45 – 90", "female typical"},
		domain.ALT:              {"ALT (ALAT)", "U/L", "< 35 – 40", ""},
		domain.AST:              {"AST (ASAT)", "U/L", "< 35 – 40", ""},
		domain.VitaminD:         {"Vitamin D (25-OH)", "ng/mL", "> 30 sufficient; 20 – 30 insufficient; < 20 deficient", ""},
		domain.VitaminB12:       {"Vitamin B12", "pg/mL", "200 – 900", ""},
	}
}
