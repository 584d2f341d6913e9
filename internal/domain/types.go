// Package domain contains the core entities of the biomarker assessment engine:
// canonical biomarker identifiers, readings extracted from lab reports, and the
// verdicts and scores derived from them.
//
// The engine is not a diagnostic system. Reference ranges and population norms are
// indicative and have not been statistically validated.
package domain

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// Biomarker is the canonical identifier every alias and synonym resolves to.
type Biomarker string

const (
	HbA1c            Biomarker = "HbA1c"
	Ferritin         Biomarker = "Ferritin"
	CRP              Biomarker = "CRP"
	TSH              Biomarker = "TSH"
	Glucose          Biomarker = "Glucose"
	Insulin          Biomarker = "Insulin"
	Triglycerides    Biomarker = "Triglycerides"
	HDL              Biomarker = "HDL"
	LDL              Biomarker = "LDL"
	TotalCholesterol Biomarker = "TotalCholesterol"
	ApoB             Biomarker = "ApoB"
	ApoA1            Biomarker = "ApoA1"
	Hemoglobin       Biomarker = "Hemoglobin"
	Hematocrit       Biomarker = "Hematocrit"
	RBC              Biomarker = "RBC"
	Iron             Biomarker = "Iron"
	WBC              Biomarker = "WBC"
	ESR              Biomarker = "ESR"
	Platelets        Biomarker = "Platelets"
	Potassium        Biomarker = "Potassium"
	Sodium           Biomarker = "Sodium"
	Calcium          Biomarker = "Calcium"
	Creatinine       Biomarker = "Creatinine"
	ALT              Biomarker = "ALT"
	AST              Biomarker = "AST"
	VitaminD         Biomarker = "VitaminD"
	VitaminB12       Biomarker = "VitaminB12"
)

// allBiomarkers is the fixed enumerated set, in display order.
var allBiomarkers = []Biomarker{
	HbA1c, Ferritin, CRP, TSH,
	Glucose, Insulin, Triglycerides, HDL, LDL, TotalCholesterol, ApoB, ApoA1,
	Hemoglobin, Hematocrit, RBC, Iron, WBC, ESR, Platelets,
	Potassium, Sodium, Calcium, Creatinine, ALT, AST, VitaminD, VitaminB12,
}

var ErrUnknownBiomarker = errors.New("unknown biomarker")

// AllBiomarkers returns every canonical biomarker in display order.
func AllBiomarkers() []Biomarker {
	out := make([]Biomarker, len(allBiomarkers))
	copy(out, allBiomarkers)
	return out
}

// ParseBiomarker resolves a canonical name case-insensitively.
func ParseBiomarker(name string) (Biomarker, error) {
	trimmed := strings.TrimSpace(name)
	for _, b := range allBiomarkers {
		if strings.EqualFold(string(b), trimmed) {
			return b, nil
		}
	}
	return "", ErrUnknownBiomarker
}

// IsValid reports whether b belongs to the canonical set.
func (b Biomarker) IsValid() bool {
	for _, known := range allBiomarkers {
		if b == known {
			return true
		}
	}
	return false
}

func (b Biomarker) String() string {
	return string(b)
}

// ReadingSource records where a reading came from.
type ReadingSource string

const (
	SourceExtracted ReadingSource = "extracted"
	SourceManual    ReadingSource = "manual"
)

// BiomarkerReading is a single named numeric value. Value is always > 0.
type BiomarkerReading struct {
	Name       Biomarker     `json:"name"`
	Value      float64       `json:"value"`
	Unit       string        `json:"unit,omitempty"`
	Confidence float64       `json:"confidence"`
	RawSpan    string        `json:"raw_span"`
	Source     ReadingSource `json:"source"`
}

// BiomarkerProfile maps canonical names to at most one reading each.
// The zero value is an empty profile. Profiles are never mutated in place;
// With returns a copy.
type BiomarkerProfile struct {
	readings map[Biomarker]BiomarkerReading
}

// NewBiomarkerProfile builds a profile from readings. Later readings for the same
// name replace earlier ones.
func NewBiomarkerProfile(readings ...BiomarkerReading) BiomarkerProfile {
	m := make(map[Biomarker]BiomarkerReading, len(readings))
	for _, r := range readings {
		m[r.Name] = r
	}
	return BiomarkerProfile{readings: m}
}

// Get returns the reading for name.
func (p BiomarkerProfile) Get(name Biomarker) (BiomarkerReading, bool) {
	r, ok := p.readings[name]
	return r, ok
}

// Has reports whether the profile contains name.
func (p BiomarkerProfile) Has(name Biomarker) bool {
	_, ok := p.readings[name]
	return ok
}

// Len returns the number of readings.
func (p BiomarkerProfile) Len() int {
	return len(p.readings)
}

// With returns a copy of the profile with r set, replacing any existing reading.
func (p BiomarkerProfile) With(r BiomarkerReading) BiomarkerProfile {
	m := make(map[Biomarker]BiomarkerReading, len(p.readings)+1)
	for k, v := range p.readings {
		m[k] = v
	}
	m[r.Name] = r
	return BiomarkerProfile{readings: m}
}

// Names returns the profile keys sorted alphabetically.
func (p BiomarkerProfile) Names() []Biomarker {
	names := make([]Biomarker, 0, len(p.readings))
	for name := range p.readings {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Readings returns all readings sorted by name.
func (p BiomarkerProfile) Readings() []BiomarkerReading {
	out := make([]BiomarkerReading, 0, len(p.readings))
	for _, name := range p.Names() {
		out = append(out, p.readings[name])
	}
	return out
}

// Values returns a plain name→value map, used by transports.
func (p BiomarkerProfile) Values() map[string]float64 {
	out := make(map[string]float64, len(p.readings))
	for name, r := range p.readings {
		out[string(name)] = r.Value
	}
	return out
}

// MarshalJSON encodes the profile as a name→reading object.
func (p BiomarkerProfile) MarshalJSON() ([]byte, error) {
	m := make(map[string]BiomarkerReading, len(p.readings))
	for name, r := range p.readings {
		m[string(name)] = r
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a name→reading object, rejecting unknown names.
func (p *BiomarkerProfile) UnmarshalJSON(data []byte) error {
	var m map[string]BiomarkerReading
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	readings := make(map[Biomarker]BiomarkerReading, len(m))
	for key, r := range m {
		name, err := ParseBiomarker(key)
		if err != nil {
			return NewValidationError("profile", "unknown biomarker "+key, key)
		}
		r.Name = name
		readings[name] = r
	}
	p.readings = readings
	return nil
}

// SexContext selects sex/menstrual-status-aware population norms.
type SexContext string

const (
	Menstruating    SexContext = "menstruating"
	NonMenstruating SexContext = "non_menstruating"
	PostMenopausal  SexContext = "post_menopausal"
	NotApplicable   SexContext = "not_applicable"
)

// IsValid reports whether s is one of the known contexts.
func (s SexContext) IsValid() bool {
	switch s {
	case Menstruating, NonMenstruating, PostMenopausal, NotApplicable:
		return true
	default:
		return false
	}
}

func (s SexContext) String() string {
	return string(s)
}
