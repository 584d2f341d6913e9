package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/reference"
)

// SafetyGuard screens a profile against emergency thresholds and the free-text
// context against out-of-scope topics. It never fails.
type SafetyGuard struct {
	tables *reference.Tables
	logger *logrus.Logger
}

// NewSafetyGuard creates a safety guard over the given tables.
func NewSafetyGuard(tables *reference.Tables, logger *logrus.Logger) *SafetyGuard {
	if tables == nil {
		tables = reference.Default()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &SafetyGuard{tables: tables, logger: logger}
}

// Screen returns the safety verdict. Any finding is a hard stop; Kind tells an
// urgent referral apart from a scope limitation.
func (g *SafetyGuard) Screen(profile domain.BiomarkerProfile, symptoms []string, history string) domain.SafetyVerdict {
	verdict := domain.SafetyVerdict{
		Kind:               domain.SafetyClear,
		EmergencyFindings:  g.CheckThresholds(profile),
		OutOfScopeFindings: g.CheckTopics(symptoms, history),
	}

	acute := false
	for _, f := range verdict.OutOfScopeFindings {
		if f.Category == domain.CategoryAcuteCrisis {
			acute = true
			break
		}
	}

	switch {
	case len(verdict.EmergencyFindings) > 0 || acute:
		verdict.Kind = domain.EmergencyReferral
	case len(verdict.OutOfScopeFindings) > 0:
		verdict.Kind = domain.ScopeLimitation
	}
	verdict.IsEmergency = verdict.Kind != domain.SafetyClear

	if verdict.IsEmergency {
		g.logger.WithFields(logrus.Fields{
			"kind":                  verdict.Kind,
			"emergency_findings":    len(verdict.EmergencyFindings),
			"out_of_scope_findings": len(verdict.OutOfScopeFindings),
		}).Warn("Safety screen stopped the assessment")
	}
	return verdict
}

// CheckThresholds compares each present reading, converted to its canonical
// unit, with the emergency table. Findings follow table order.
func (g *SafetyGuard) CheckThresholds(profile domain.BiomarkerProfile) []domain.EmergencyFinding {
	findings := []domain.EmergencyFinding{}
	for _, th := range g.tables.Thresholds {
		r, ok := profile.Get(th.Biomarker)
		if !ok {
			continue
		}
		value := g.tables.Units.ReadingValue(r)
		unit := g.tables.Units.Canonical(th.Biomarker)

		if th.Lower != nil && value < *th.Lower {
			findings = append(findings, domain.EmergencyFinding{
				Biomarker:     th.Biomarker,
				Value:         value,
				Unit:          unit,
				ViolatedBound: *th.Lower,
				Bound:         domain.LowerBound,
				Reason:        th.LowerReason,
			})
			continue
		}
		if th.Upper != nil && value > *th.Upper {
			findings = append(findings, domain.EmergencyFinding{
				Biomarker:     th.Biomarker,
				Value:         value,
				Unit:          unit,
				ViolatedBound: *th.Upper,
				Bound:         domain.UpperBound,
				Reason:        th.UpperReason,
			})
		}
	}
	return findings
}

// CheckTopics scans the symptom list and history for out-of-scope keywords.
// Each keyword is reported once, in keyword-list order.
func (g *SafetyGuard) CheckTopics(symptoms []string, history string) []domain.OutOfScopeFinding {
	findings := []domain.OutOfScopeFinding{}
	text := strings.ToLower(strings.Join(symptoms, " ") + " " + history)
	if strings.TrimSpace(text) == "" {
		return findings
	}

	for _, keyword := range g.tables.Topics.Keywords {
		if !strings.Contains(text, strings.ToLower(keyword)) {
			continue
		}
		category, recommendation := g.classify(keyword)
		findings = append(findings, domain.OutOfScopeFinding{
			MatchedTopic:   keyword,
			Category:       category,
			Recommendation: recommendation,
		})
	}
	return findings
}

// classify returns the first category whose stems occur in keyword.
func (g *SafetyGuard) classify(keyword string) (domain.ScopeCategory, string) {
	k := strings.ToLower(keyword)
	for _, c := range g.tables.Topics.Categories {
		for _, stem := range c.Stems {
			if strings.Contains(k, stem) {
				return c.Category, c.Recommendation
			}
		}
	}
	return domain.CategoryGeneral, g.tables.Topics.Fallback
}
