package labtext

import (
	"regexp"
	"strings"

	"github.com/biomarker-assessment-engine/internal/domain"
)

// Canonical unit strings.
const (
	UnitPercent       = "%"
	UnitMmolPerMol    = "mmol/mol"
	UnitNgPerML       = "ng/mL"
	UnitUgPerL        = "µg/L"
	UnitMgPerL        = "mg/L"
	UnitMgPerDL       = "mg/dL"
	UnitGPerL         = "g/L"
	UnitGPerDL        = "g/dL"
	UnitMmolPerL      = "mmol/L"
	UnitUmolPerL      = "µmol/L"
	UnitNmolPerL      = "nmol/L"
	UnitPmolPerL      = "pmol/L"
	UnitPgPerML       = "pg/mL"
	UnitUgPerDL       = "µg/dL"
	UnitMIUPerL       = "mIU/L"
	UnitUIUPerML      = "µIU/mL"
	UnitMEqPerL       = "mEq/L"
	UnitUPerL         = "U/L"
	UnitMmPerHour     = "mm/h"
	UnitLPerL         = "L/L"
	UnitGigaPerL      = "10^9/L"
	UnitTeraPerL      = "10^12/L"
	UnitThousandPerUL = "10^3/µL"
	UnitMillionPerUL  = "10^6/µL"
)

// conversion maps a value to the canonical unit as value*Factor + Offset.
type conversion struct {
	Factor float64
	Offset float64
}

func (c conversion) apply(v float64) float64 {
	return v*c.Factor + c.Offset
}

// UnitSpec is the canonical unit of one biomarker and the units it accepts.
type UnitSpec struct {
	Canonical   string
	conversions map[string]conversion
}

// Accepts reports whether unit is canonical or convertible.
func (s UnitSpec) Accepts(unit string) bool {
	if unit == s.Canonical {
		return true
	}
	_, ok := s.conversions[unit]
	return ok
}

// UnitTable holds unit specs for every biomarker. It is immutable after construction.
type UnitTable struct {
	specs map[domain.Biomarker]UnitSpec
}

func same() conversion { return conversion{Factor: 1} }

func times(f float64) conversion { return conversion{Factor: f} }

func spec(canonical string, conv map[string]conversion) UnitSpec {
	if conv == nil {
		conv = map[string]conversion{}
	}
	return UnitSpec{Canonical: canonical, conversions: conv}
}

// DefaultUnits returns the standard unit table.
func DefaultUnits() *UnitTable {
	lipid := func() UnitSpec {
		return spec(UnitMgPerDL, map[string]conversion{UnitMmolPerL: times(38.67), UnitGPerL: times(100)})
	}
	apo := func() UnitSpec {
		return spec(UnitMgPerDL, map[string]conversion{UnitGPerL: times(100)})
	}
	cellsGiga := func() UnitSpec {
		return spec(UnitGigaPerL, map[string]conversion{UnitThousandPerUL: same()})
	}
	electrolyte := func() UnitSpec {
		return spec(UnitMmolPerL, map[string]conversion{UnitMEqPerL: same()})
	}
	enzyme := func() UnitSpec {
		return spec(UnitUPerL, nil)
	}

	return &UnitTable{specs: map[domain.Biomarker]UnitSpec{
		// IFCC mmol/mol to NGSP %
		domain.HbA1c:    spec(UnitPercent, map[string]conversion{UnitMmolPerMol: {Factor: 0.09148, Offset: 2.152}}),
		domain.Ferritin: spec(UnitNgPerML, map[string]conversion{UnitUgPerL: same()}),
		domain.CRP:      spec(UnitMgPerL, map[string]conversion{UnitMgPerDL: times(10)}),
		domain.TSH:      spec(UnitMIUPerL, map[string]conversion{UnitUIUPerML: same()}),
		domain.Glucose: spec(UnitMgPerDL, map[string]conversion{
			UnitMmolPerL: times(18),
			UnitGPerL:    times(100),
		}),
		domain.Insulin: spec(UnitUIUPerML, map[string]conversion{
			UnitMIUPerL:  same(),
			UnitPmolPerL: times(1.0 / 6.0),
		}),
		domain.Triglycerides: spec(UnitMgPerDL, map[string]conversion{
			UnitMmolPerL: times(88.57),
			UnitGPerL:    times(100),
		}),
		domain.HDL:              lipid(),
		domain.LDL:              lipid(),
		domain.TotalCholesterol: lipid(),
		domain.ApoB:             apo(),
		domain.ApoA1:            apo(),
		domain.Hemoglobin: spec(UnitGPerDL, map[string]conversion{
			UnitGPerL:    times(0.1),
			UnitMmolPerL: times(1.611),
		}),
		domain.Hematocrit: spec(UnitPercent, map[string]conversion{UnitLPerL: times(100)}),
		domain.RBC:        spec(UnitTeraPerL, map[string]conversion{UnitMillionPerUL: same()}),
		domain.Iron: spec(UnitUgPerDL, map[string]conversion{
			UnitUmolPerL: times(5.587),
			UnitUgPerL:   times(0.1),
		}),
		domain.WBC:        cellsGiga(),
		domain.Platelets:  cellsGiga(),
		domain.ESR:        spec(UnitMmPerHour, nil),
		domain.Potassium:  electrolyte(),
		domain.Sodium:     electrolyte(),
		domain.Calcium:    spec(UnitMmolPerL, map[string]conversion{UnitMgPerDL: times(1 / 4.008)}),
		domain.Creatinine: spec(UnitUmolPerL, map[string]conversion{UnitMgPerDL: times(88.4)}),
		domain.ALT:        enzyme(),
		domain.AST:        enzyme(),
		domain.VitaminD:   spec(UnitNgPerML, map[string]conversion{UnitNmolPerL: times(1 / 2.496)}),
		domain.VitaminB12: spec(UnitPgPerML, map[string]conversion{UnitPmolPerL: times(1.355)}),
	}}
}

// Spec returns the unit spec for b.
func (t *UnitTable) Spec(b domain.Biomarker) (UnitSpec, bool) {
	s, ok := t.specs[b]
	return s, ok
}

// Canonical returns the canonical unit of b, or "" when b is unknown.
func (t *UnitTable) Canonical(b domain.Biomarker) string {
	return t.specs[b].Canonical
}

// ToCanonical converts value from unit to b's canonical unit. Empty or
// unrecognised units are treated as already canonical.
func (t *UnitTable) ToCanonical(b domain.Biomarker, value float64, unit string) float64 {
	s, ok := t.specs[b]
	if !ok || unit == "" || unit == s.Canonical {
		return value
	}
	if c, ok := s.conversions[unit]; ok {
		return c.apply(value)
	}
	return value
}

// ReadingValue returns a reading's value in the canonical unit of its biomarker.
func (t *UnitTable) ReadingValue(r domain.BiomarkerReading) float64 {
	return t.ToCanonical(r.Name, r.Value, r.Unit)
}

// unitAliases maps a lower-cased, space-free token to candidate canonical units.
// Ambiguous tokens list every reading; the first one accepted by the biomarker wins.
var unitAliases = map[string][]string{
	"%":        {UnitPercent},
	"mmol/mol": {UnitMmolPerMol},
	"ng/ml":    {UnitNgPerML},
	"µg/l":     {UnitUgPerL},
	"μg/l":     {UnitUgPerL},
	"ug/l":     {UnitUgPerL},
	"mcg/l":    {UnitUgPerL},
	"mg/l":     {UnitMgPerL},
	"mg/dl":    {UnitMgPerDL},
	"g/l":      {UnitGPerL, UnitGigaPerL},
	"giga/l":   {UnitGigaPerL},
	"g/dl":     {UnitGPerDL},
	"mmol/l":   {UnitMmolPerL},
	"µmol/l":   {UnitUmolPerL},
	"μmol/l":   {UnitUmolPerL},
	"umol/l":   {UnitUmolPerL},
	"nmol/l":   {UnitNmolPerL},
	"pmol/l":   {UnitPmolPerL},
	"pg/ml":    {UnitPgPerML},
	"µg/dl":    {UnitUgPerDL},
	"μg/dl":    {UnitUgPerDL},
	"ug/dl":    {UnitUgPerDL},
	"mcg/dl":   {UnitUgPerDL},
	"miu/l":    {UnitMIUPerL},
	"mui/l":    {UnitMIUPerL},
	"mu/l":     {UnitMIUPerL},
	"µiu/ml":   {UnitUIUPerML},
	"μiu/ml":   {UnitUIUPerML},
	"uiu/ml":   {UnitUIUPerML},
	"µui/ml":   {UnitUIUPerML},
	"μui/ml":   {UnitUIUPerML},
	"uui/ml":   {UnitUIUPerML},
	"mu/ml":    {UnitUIUPerML},
	"meq/l":    {UnitMEqPerL},
	"u/l":      {UnitUPerL},
	"ui/l":     {UnitUPerL},
	"iu/l":     {UnitUPerL},
	"mm/h":     {UnitMmPerHour},
	"mm/hr":    {UnitMmPerHour},
	"mm/1h":    {UnitMmPerHour},
	"l/l":      {UnitLPerL},
	"10^9/l":   {UnitGigaPerL},
	"10^12/l":  {UnitTeraPerL},
	"t/l":      {UnitTeraPerL},
	"tera/l":   {UnitTeraPerL},
	"10^3/µl":  {UnitThousandPerUL},
	"10^3/μl":  {UnitThousandPerUL},
	"10^3/ul":  {UnitThousandPerUL},
	"k/µl":     {UnitThousandPerUL},
	"k/ul":     {UnitThousandPerUL},
	"10^6/µl":  {UnitMillionPerUL},
	"10^6/μl":  {UnitMillionPerUL},
	"10^6/ul":  {UnitMillionPerUL},
	"m/µl":     {UnitMillionPerUL},
	"m/ul":     {UnitMillionPerUL},
}

var (
	// unitPattern picks the unit token that follows a numeric value.
	unitPattern = regexp.MustCompile(`(?i)^\s*(%|(?:[x×]\s?)?10\s?[\^*]\s?\d{1,2}\s?/\s?[a-zµμ]{1,3}|[a-zµμ]{1,6}\s?/\s?(?:1\s?)?[a-zµμ]{1,3})`)
	// multiplierPrefix strips the "x" or "×" before a power of ten.
	multiplierPrefix = regexp.MustCompile(`^[x×]`)
)

// unitWindow bounds how far after the number the unit may appear.
const unitWindow = 24

// normalizeUnitToken lower-cases and strips spaces and multiplier prefixes.
func normalizeUnitToken(token string) string {
	t := strings.ToLower(strings.ReplaceAll(token, " ", ""))
	t = strings.ReplaceAll(t, "*", "^")
	return multiplierPrefix.ReplaceAllString(t, "")
}

// ResolveUnit maps a raw token to a canonical unit string accepted by b, or "".
func (t *UnitTable) ResolveUnit(b domain.Biomarker, token string) string {
	s, ok := t.specs[b]
	if !ok {
		return ""
	}
	for _, candidate := range unitAliases[normalizeUnitToken(token)] {
		if s.Accepts(candidate) {
			return candidate
		}
	}
	return ""
}

// scanUnit returns the raw unit token at the start of tail, if any.
func scanUnit(tail string) (raw string, token string) {
	if len(tail) > unitWindow {
		tail = tail[:unitWindow]
	}
	m := unitPattern.FindStringSubmatch(tail)
	if m == nil {
		return "", ""
	}
	return m[0], m[1]
}
