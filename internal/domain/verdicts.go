package domain

import "time"

// ValidationVerdict is derived from a profile and the mandatory/optional sets.
// It is recomputed whenever the profile changes.
type ValidationVerdict struct {
	Passed          bool        `json:"passed"`
	CanProceed      bool        `json:"can_proceed"`
	CriticalMissing []Biomarker `json:"critical_missing"`
	OptionalMissing []Biomarker `json:"optional_missing"`
	Message         string      `json:"message"`
}

// BoundKind identifies which side of an emergency threshold was crossed.
type BoundKind string

const (
	LowerBound BoundKind = "lower"
	UpperBound BoundKind = "upper"
)

// EmergencyFinding is a single reading outside its emergency threshold.
type EmergencyFinding struct {
	Biomarker     Biomarker `json:"biomarker"`
	Value         float64   `json:"value"`
	Unit          string    `json:"unit"`
	ViolatedBound float64   `json:"violated_bound"`
	Bound         BoundKind `json:"bound"`
	Reason        string    `json:"reason"`
}

// ScopeCategory groups out-of-scope topics by the kind of referral they need.
type ScopeCategory string

const (
	CategoryAcuteCrisis ScopeCategory = "acute_crisis"
	CategoryOncology    ScopeCategory = "oncology"
	CategoryPregnancy   ScopeCategory = "pregnancy"
	CategoryMedication  ScopeCategory = "medication"
	CategoryGeneral     ScopeCategory = "general"
)

// OutOfScopeFinding is a keyword hit in the symptom/history text.
type OutOfScopeFinding struct {
	MatchedTopic   string        `json:"matched_topic"`
	Category       ScopeCategory `json:"category"`
	Recommendation string        `json:"recommendation"`
}

// SafetyKind separates an urgent referral from a scope limitation. Both stop the
// pipeline; they differ only in how callers present them.
type SafetyKind string

const (
	SafetyClear       SafetyKind = "clear"
	EmergencyReferral SafetyKind = "emergency_referral"
	ScopeLimitation   SafetyKind = "scope_limitation"
)

// SafetyVerdict is computed once per request. IsEmergency is terminal.
type SafetyVerdict struct {
	IsEmergency        bool                `json:"is_emergency"`
	Kind               SafetyKind          `json:"kind"`
	EmergencyFindings  []EmergencyFinding  `json:"emergency_findings"`
	OutOfScopeFindings []OutOfScopeFinding `json:"out_of_scope_findings"`
}

// ScoreDomain names a scoring domain.
type ScoreDomain string

const (
	DomainMetabolic    ScoreDomain = "metabolic"
	DomainInflammation ScoreDomain = "inflammation"
	DomainOxygen       ScoreDomain = "oxygen"
)

// ScoreLabel is the qualitative bucket of a 0-100 score.
type ScoreLabel string

const (
	LabelOptimal    ScoreLabel = "optimal"
	LabelNormal     ScoreLabel = "normal"
	LabelBorderline ScoreLabel = "borderline"
	LabelAttention  ScoreLabel = "attention"
	LabelCritical   ScoreLabel = "critical"
)

// Contribution records one input of a domain score. Name is a biomarker or a
// derived ratio such as "HOMA-IR".
type Contribution struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Deviation float64 `json:"deviation"`
	Weight    float64 `json:"weight"`
}

// ScoreResult is one domain score.
type ScoreResult struct {
	Domain                 ScoreDomain    `json:"domain"`
	Score                  float64        `json:"score"`
	Label                  ScoreLabel     `json:"label"`
	Description            string         `json:"description"`
	Summary                string         `json:"summary"`
	MarkersUsed            int            `json:"markers_used"`
	ContributingBiomarkers []Contribution `json:"contributing_biomarkers"`
}

// HealthAssessment is the terminal artifact of the pipeline.
type HealthAssessment struct {
	Scores           []ScoreResult `json:"scores"`
	CompositeScore   *float64      `json:"composite_score,omitempty"`
	ChronologicalAge int           `json:"chronological_age"`
	BiologicalAge    *float64      `json:"biological_age,omitempty"`
	BioAgeGap        *float64      `json:"bio_age_gap,omitempty"`
	DomainsScored    int           `json:"domains_scored"`
	ReferenceVersion string        `json:"reference_version"`
}

// Score returns the result for domain, if it was produced.
func (h *HealthAssessment) Score(domain ScoreDomain) (ScoreResult, bool) {
	for _, s := range h.Scores {
		if s.Domain == domain {
			return s, true
		}
	}
	return ScoreResult{}, false
}

// UserContext is supplied by the caller alongside the report text.
type UserContext struct {
	Age            int        `json:"age" validate:"required,gte=1,lte=120"`
	SexContext     SexContext `json:"sex_context" validate:"required,oneof=menstruating non_menstruating post_menopausal not_applicable"`
	Symptoms       []string   `json:"symptoms,omitempty" validate:"dive,max=500"`
	MedicalHistory string     `json:"medical_history,omitempty" validate:"max=5000"`
}

// OutcomeStatus is the terminal state of a pipeline run.
type OutcomeStatus string

const (
	StatusAssessed         OutcomeStatus = "assessed"
	StatusInsufficientData OutcomeStatus = "insufficient_data"
	StatusEmergencyStop    OutcomeStatus = "emergency_stop"
)

// RejectedOverride is a manual entry that was quarantined instead of merged.
type RejectedOverride struct {
	Key    string  `json:"key"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

// BiomarkerDescription is catalog information for a biomarker present in a profile.
type BiomarkerDescription struct {
	Name           Biomarker `json:"name"`
	DisplayName    string    `json:"display_name"`
	Unit           string    `json:"unit"`
	ReferenceRange string    `json:"reference_range"`
	Description    string    `json:"description"`
}

// AssessmentOutcome is everything a single Assess call produces. Assessment is nil
// unless Status is StatusAssessed.
type AssessmentOutcome struct {
	RequestID         string                 `json:"request_id"`
	Status            OutcomeStatus          `json:"status"`
	Profile           BiomarkerProfile       `json:"profile"`
	Validation        ValidationVerdict      `json:"validation"`
	Safety            SafetyVerdict          `json:"safety"`
	Assessment        *HealthAssessment      `json:"assessment,omitempty"`
	RejectedOverrides []RejectedOverride     `json:"rejected_overrides,omitempty"`
	Descriptions      []BiomarkerDescription `json:"descriptions,omitempty"`
	ProcessingTime    time.Duration          `json:"processing_time_ns"`
}
