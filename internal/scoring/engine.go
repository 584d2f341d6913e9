// Package scoring turns a screened biomarker profile into domain scores, a
// composite score and a bio-age-gap estimate. All constants come from
// reference.Tables; the engine holds no mutable state.
package scoring

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/reference"
)

// Engine runs the three sub-scorers and the aggregator.
type Engine struct {
	tables *reference.Tables
	logger *logrus.Logger
}

// NewEngine creates a scoring engine bound to a set of reference tables.
func NewEngine(tables *reference.Tables, logger *logrus.Logger) *Engine {
	if tables == nil {
		tables = reference.Default()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{tables: tables, logger: logger}
}

// Score computes every domain that has at least one component and aggregates
// them. It refuses to run without a safety verdict or on an emergency verdict.
func (e *Engine) Score(profile domain.BiomarkerProfile, verdict *domain.SafetyVerdict, userCtx domain.UserContext) (*domain.HealthAssessment, error) {
	if verdict == nil {
		return nil, &domain.PreconditionError{Stage: "scoring", Reason: "safety verdict is required"}
	}
	if verdict.IsEmergency {
		return nil, &domain.PreconditionError{Stage: "scoring", Reason: "profile is under an emergency stop"}
	}

	var scores []domain.ScoreResult
	if r, ok := e.Metabolic(profile); ok {
		scores = append(scores, r)
	}
	if r, ok := e.Inflammation(profile, userCtx.SexContext); ok {
		scores = append(scores, r)
	}
	if r, ok := e.Oxygen(profile); ok {
		scores = append(scores, r)
	}

	assessment := e.Aggregate(scores, userCtx.Age)

	e.logger.WithFields(logrus.Fields{
		"domains_scored":    assessment.DomainsScored,
		"biomarker_count":   profile.Len(),
		"reference_version": e.tables.Version,
	}).Debug("Scoring completed")

	return assessment, nil
}

// Aggregate combines domain scores into the composite score and bio-age gap.
// Domain weights are renormalised over the domains present.
func (e *Engine) Aggregate(scores []domain.ScoreResult, age int) *domain.HealthAssessment {
	assessment := &domain.HealthAssessment{
		Scores:           scores,
		ChronologicalAge: age,
		DomainsScored:    len(scores),
		ReferenceVersion: e.tables.Version,
	}
	if assessment.Scores == nil {
		assessment.Scores = []domain.ScoreResult{}
	}

	var weighted, total float64
	for _, s := range scores {
		w := e.tables.DomainWeights.Weight(s.Domain)
		weighted += w * s.Score
		total += w
	}
	if total == 0 {
		return assessment
	}

	composite := round(weighted/total, 1)
	gap := round(e.tables.BioAge.Gap(composite), 1)
	bioAge := round(float64(age)+gap, 1)

	assessment.CompositeScore = &composite
	assessment.BioAgeGap = &gap
	assessment.BiologicalAge = &bioAge
	return assessment
}

// component is one scoring input before aggregation.
type component struct {
	name  string
	value float64
	norm  reference.Norm
}

// direction selects which side of the mean is penalised.
type direction int

const (
	highIsWorse direction = iota
	lowIsWorse
)

func (c component) deviation(dir direction) float64 {
	z := (c.value - c.norm.Mean) / c.norm.SD
	if dir == lowIsWorse {
		z = -z
	}
	return math.Max(0, z)
}

// result turns the present components into a domain score. With every one of
// the domain's expected components present the deviations are combined with
// their weights; with fewer, the plain mean is used and each contribution
// reports weight 1/n. It reports false when there is nothing to score.
func (e *Engine) result(d domain.ScoreDomain, components []component, expected int, dir direction, scale float64) (domain.ScoreResult, bool) {
	if len(components) == 0 {
		return domain.ScoreResult{}, false
	}

	complete := len(components) >= expected
	contributions := make([]domain.Contribution, 0, len(components))
	var weighted, total float64
	for _, c := range components {
		dev := c.deviation(dir)
		w := c.norm.Weight
		if !complete {
			w = 1
		}
		weighted += w * dev
		total += w
		contributions = append(contributions, domain.Contribution{
			Name:      c.name,
			Value:     round(c.value, 2),
			Deviation: round(dev, 2),
			Weight:    c.norm.Weight,
		})
	}
	if !complete {
		for i := range contributions {
			contributions[i].Weight = round(1/float64(len(components)), 4)
		}
	}

	score := round(clamp(100-scale*(weighted/total), 0, 100), 1)
	label := e.tables.Labels.Label(score)
	interp := e.tables.Interpretations[d][label]

	e.logger.WithFields(logrus.Fields{
		"domain":       d,
		"markers_used": len(components),
		"label":        label,
	}).Debug("Domain scored")

	return domain.ScoreResult{
		Domain:                 d,
		Score:                  score,
		Label:                  label,
		Description:            interp.Description,
		Summary:                interp.Summary,
		MarkersUsed:            len(components),
		ContributingBiomarkers: contributions,
	}, true
}

// value returns a reading in its canonical unit.
func (e *Engine) value(profile domain.BiomarkerProfile, b domain.Biomarker) (float64, bool) {
	r, ok := profile.Get(b)
	if !ok {
		return 0, false
	}
	return e.tables.Units.ReadingValue(r), true
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
