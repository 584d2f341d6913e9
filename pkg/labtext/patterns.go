package labtext

import (
	"fmt"
	"regexp"

	"github.com/biomarker-assessment-engine/internal/domain"
)

// MatchConfidence is assigned to every successful pattern match. There is no
// graduated model; RawSpan is the handle for manual review.
const MatchConfidence = 0.85

// QualifiedConfidence is assigned to matches reported as a bound, such as
// "CRP <0.5". The value is recorded at the bound.
const QualifiedConfidence = 0.6

// ManualConfidence is assigned to user-entered values.
const ManualConfidence = 1.0

// strictAliases are short labels that also occur in running text. They only
// match when followed by ':' or '=', or when the number carries a unit.
var strictAliases = map[string]bool{
	`tg`:  true,
	`hb`:  true,
	`ht`:  true,
	`gr`:  true,
	`gb`:  true,
	`fer`: true,
}

// aliasTable lists, per biomarker, label patterns in the order they are tried.
// Entries are regexp fragments; more specific labels come first so that a
// shorter alias never shadows a longer one (e.g. "HDL cholesterol" before "HDL").
var aliasTable = []struct {
	name    domain.Biomarker
	aliases []string
}{
	{domain.HbA1c, []string{
		`h[ée]moglobine?\s+glyqu[ée]e`,
		`glycated\s+h(?:a)?emoglobin`,
		`glycosylated\s+h(?:a)?emoglobin`,
		`hb\s?a1c`,
		`a1c`,
	}},
	{domain.Ferritin, []string{
		`ferritine?\s+s[ée]rique`,
		`serum\s+ferritin`,
		`ferritine?`,
	}},
	{domain.CRP, []string{
		`hs[\s-]?crp`,
		`crp\s+ultra[\s-]?sensible`,
		`high[\s-]sensitivity\s+c[\s-]reactive\s+protein`,
		`c[\s-]reactive\s+protein`,
		`prot[ée]ine\s+c[\s-]r[ée]active`,
		`crp`,
	}},
	{domain.TSH, []string{
		`tsh\s?us`,
		`thyr[eé]o?stimuline`,
		`thyroid[\s-]stimulating\s+hormone`,
		`tsh`,
	}},
	{domain.Glucose, []string{
		`fasting\s+(?:plasma\s+)?glucose`,
		`glyc[ée]mie\s+[àa]\s+jeun`,
		`glyc[ée]mie`,
		`blood\s+glucose`,
		`glucose`,
	}},
	{domain.Insulin, []string{
		`fasting\s+insulin`,
		`insulin[ée]mie`,
		`insuline?`,
	}},
	{domain.Triglycerides, []string{
		`triglyc[ée]rides?`,
		`tg`,
	}},
	{domain.HDL, []string{
		`hdl[\s-]?chol(?:est[ée]rol)?`,
		`hdl[\s-]?c`,
		`hdl`,
	}},
	{domain.LDL, []string{
		`ldl[\s-]?chol(?:est[ée]rol)?`,
		`ldl[\s-]?c`,
		`ldl`,
	}},
	{domain.TotalCholesterol, []string{
		`total\s+cholesterol`,
		`cholest[ée]rol\s+total`,
	}},
	{domain.ApoB, []string{
		`apolipoprot[ée]ine?\s+b`,
		`apo\s?b(?:100)?`,
	}},
	{domain.ApoA1, []string{
		`apolipoprot[ée]ine?\s+a[\s-]?1`,
		`apo\s?a[\s-]?1`,
		`apo\s?a[\s-]?i`,
	}},
	{domain.Hemoglobin, []string{
		`h[ée]moglobine?`,
		`haemoglobin`,
		`hgb`,
		`hb`,
	}},
	{domain.Hematocrit, []string{
		`h[ée]matocrite?`,
		`haematocrit`,
		`hct`,
		`ht`,
	}},
	{domain.RBC, []string{
		`red\s+blood\s+cells?(?:\s+count)?`,
		`h[ée]maties`,
		`[ée]rythrocytes`,
		`gr`,
		`rbc`,
	}},
	{domain.Iron, []string{
		`serum\s+iron`,
		`fer\s+s[ée]rique`,
		`sid[ée]r[ée]mie`,
		`iron`,
		`fer`,
	}},
	{domain.WBC, []string{
		`white\s+blood\s+cells?(?:\s+count)?`,
		`leucocytes`,
		`leukocytes`,
		`gb`,
		`wbc`,
	}},
	{domain.ESR, []string{
		`erythrocyte\s+sedimentation\s+rate`,
		`vitesse\s+de\s+s[ée]dimentation`,
		`esr`,
	}},
	{domain.Platelets, []string{
		`plaquettes`,
		`platelets?(?:\s+count)?`,
		`plt`,
	}},
	{domain.Potassium, []string{
		`potassium`,
		`kali[ée]mie`,
		`k\+`,
	}},
	{domain.Sodium, []string{
		`sodium`,
		`natr[ée]mie`,
		`na\+`,
	}},
	{domain.Calcium, []string{
		`calc[ée]mie`,
		`calcium`,
	}},
	{domain.Creatinine, []string{
		`cr[ée]atinine?`,
		`cr[ée]atinin[ée]mie`,
	}},
	{domain.ALT, []string{
		`alat`,
		`alt`,
		`sgpt`,
		`alanine\s+aminotransferase`,
	}},
	{domain.AST, []string{
		`asat`,
		`ast`,
		`sgot`,
		`aspartate\s+aminotransferase`,
	}},
	{domain.VitaminD, []string{
		`25[\s-]?(?:oh|hydroxy)[\s-]?(?:vitamin|vitamine)\s?d3?`,
		`vitamine?\s+d3?`,
		`vit\.?\s?d`,
	}},
	{domain.VitaminB12, []string{
		`vitamine?\s+b12`,
		`cobalamine?`,
		`vit\.?\s?b12`,
		`b12`,
	}},
}

// labelPrefix requires the alias to start at a non-alphanumeric boundary.
const labelPrefix = `(?i)(?:^|[^\p{L}\p{N}])`

// labelSuffix allows a parenthetical qualifier, then captures the separator, an
// optional comparison sign and the unsigned number. Sign handling is done on the
// separator in code. "1,234.5" is read with a thousands separator.
const labelSuffix = `(?:\s*\([^)]{0,40}\))?([\s:=.\-)]{0,8})([<>≤≥]\s?)?(\d{1,3}(?:,\d{3})+\.\d+|\d+(?:[.,]\d+)?)`

// Pattern is one compiled alias of a biomarker.
type Pattern struct {
	Biomarker domain.Biomarker
	Alias     string
	Index     int
	strict    bool
	re        *regexp.Regexp
}

// Library is the immutable pattern and unit library.
type Library struct {
	order    []domain.Biomarker
	patterns map[domain.Biomarker][]Pattern
	units    *UnitTable
}

// DefaultLibrary compiles the built-in alias table.
func DefaultLibrary() *Library {
	lib, err := NewLibrary(DefaultUnits())
	if err != nil {
		panic(fmt.Sprintf("labtext: built-in alias table does not compile: %v", err))
	}
	return lib
}

// NewLibrary compiles the alias table against the given unit table.
func NewLibrary(units *UnitTable) (*Library, error) {
	lib := &Library{
		patterns: make(map[domain.Biomarker][]Pattern, len(aliasTable)),
		units:    units,
	}
	for _, entry := range aliasTable {
		compiled := make([]Pattern, 0, len(entry.aliases))
		for i, alias := range entry.aliases {
			re, err := regexp.Compile(labelPrefix + `(` + alias + `)` + labelSuffix)
			if err != nil {
				return nil, fmt.Errorf("compiling alias %q for %s: %w", alias, entry.name, err)
			}
			compiled = append(compiled, Pattern{Biomarker: entry.name, Alias: alias, Index: i, strict: strictAliases[alias], re: re})
		}
		lib.order = append(lib.order, entry.name)
		lib.patterns[entry.name] = compiled
	}
	return lib, nil
}

// Biomarkers returns the extractable biomarkers in table order.
func (l *Library) Biomarkers() []domain.Biomarker {
	out := make([]domain.Biomarker, len(l.order))
	copy(out, l.order)
	return out
}

// Patterns returns the ordered patterns of b.
func (l *Library) Patterns(b domain.Biomarker) []Pattern {
	return l.patterns[b]
}

// Units returns the unit table the library resolves units against.
func (l *Library) Units() *UnitTable {
	return l.units
}
