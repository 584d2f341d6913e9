package labtext

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/biomarker-assessment-engine/internal/domain"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeWhitespace collapses whitespace runs, including newlines, to a single
// space and trims the ends.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// Candidate is a single alias hit, kept for review and diagnostics.
type Candidate struct {
	Biomarker  domain.Biomarker `json:"biomarker"`
	AliasIndex int              `json:"alias_index"`
	Value      float64          `json:"value"`
	Unit       string           `json:"unit,omitempty"`
	RawSpan    string           `json:"raw_span"`
	Qualifier  string           `json:"qualifier,omitempty"`
	Accepted   bool             `json:"accepted"`

	numberStart int
}

// Extractor turns lab report text into a biomarker profile.
type Extractor struct {
	lib *Library
}

// NewExtractor creates an extractor over lib. A nil lib uses DefaultLibrary.
func NewExtractor(lib *Library) *Extractor {
	if lib == nil {
		lib = DefaultLibrary()
	}
	return &Extractor{lib: lib}
}

// Library returns the pattern library in use.
func (e *Extractor) Library() *Library {
	return e.lib
}

// Extract scans text and returns at most one reading per biomarker. For each
// biomarker the aliases are tried in order and the first one yielding a positive
// value wins; later aliases are not evaluated. A number already claimed by an
// earlier biomarker (e.g. the value after "glycated hemoglobin") is not reused.
func (e *Extractor) Extract(text string) domain.BiomarkerProfile {
	accepted, _ := e.scan(text, false)
	readings := make([]domain.BiomarkerReading, 0, len(accepted))
	for _, c := range accepted {
		confidence := MatchConfidence
		if c.Qualifier != "" {
			confidence = QualifiedConfidence
		}
		readings = append(readings, domain.BiomarkerReading{
			Name:       c.Biomarker,
			Value:      c.Value,
			Unit:       c.Unit,
			Confidence: confidence,
			RawSpan:    c.RawSpan,
			Source:     domain.SourceExtracted,
		})
	}
	return domain.NewBiomarkerProfile(readings...)
}

// ExtractCandidates returns every alias hit in the text, including the ones
// Extract would discard or never reach. Accepted marks the reading Extract keeps.
func (e *Extractor) ExtractCandidates(text string) []Candidate {
	_, all := e.scan(text, true)
	return all
}

// scan walks biomarkers in library order. With exhaustive unset it stops at the
// first accepted candidate per biomarker and returns no candidate list.
func (e *Extractor) scan(text string, exhaustive bool) (accepted []Candidate, all []Candidate) {
	normalized := NormalizeWhitespace(text)
	claimed := make(map[int]bool)
	for _, b := range e.lib.order {
		found := false
		for _, p := range e.lib.patterns[b] {
			for _, c := range e.matches(p, normalized) {
				if !found && c.Value > 0 && !claimed[c.numberStart] {
					c.Accepted = true
					found = true
					claimed[c.numberStart] = true
					accepted = append(accepted, c)
				}
				if exhaustive {
					all = append(all, c)
				}
			}
			if found && !exhaustive {
				break
			}
		}
	}
	return accepted, all
}

// matches returns every occurrence of p in text, in textual order. Values that
// fail to parse are skipped; zero and negative values are returned so that
// callers can discard them explicitly.
func (e *Extractor) matches(p Pattern, text string) []Candidate {
	locs := p.re.FindAllStringSubmatchIndex(text, -1)
	out := make([]Candidate, 0, len(locs))
	for _, loc := range locs {
		// loc: [full, alias, separator, qualifier, number]
		labelStart := loc[2]
		sep := text[loc[4]:loc[5]]
		qualifier := ""
		if loc[6] >= 0 {
			qualifier = strings.TrimSpace(text[loc[6]:loc[7]])
		}
		numEnd := loc[9]
		value, err := parseDecimal(text[loc[8]:loc[9]])
		if err != nil {
			continue
		}
		if qualifier == "" && isNegativeSign(sep) {
			value = -value
		}

		raw, token := scanUnit(text[numEnd:])
		unit := ""
		spanEnd := numEnd
		if token != "" {
			if resolved := e.lib.units.ResolveUnit(p.Biomarker, token); resolved != "" {
				unit = resolved
				spanEnd = numEnd + len(raw)
			}
		}
		if p.strict && unit == "" && !strings.ContainsAny(sep, ":=") {
			continue
		}

		out = append(out, Candidate{
			Biomarker:  p.Biomarker,
			AliasIndex: p.Index,
			Value:      value,
			Unit:       unit,
			RawSpan:    strings.TrimSpace(text[labelStart:spanEnd]),
			Qualifier:  qualifier,

			numberStart: loc[8],
		})
	}
	return out
}

// parseDecimal accepts "5.7", "5,7" and "1,234.5".
func parseDecimal(s string) (float64, error) {
	if strings.Contains(s, ".") {
		return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	}
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

// isNegativeSign reports whether the separator ends in a minus sign attached to
// the number. A bare "-" right after the label ("HbA1c-5.4") is a separator; a
// "-" preceded by whitespace, ':' or '=' ("HbA1c: -1") is a sign.
func isNegativeSign(sep string) bool {
	n := len(sep)
	if n < 2 || sep[n-1] != '-' {
		return false
	}
	switch sep[n-2] {
	case ' ', ':', '=':
		return true
	default:
		return false
	}
}
