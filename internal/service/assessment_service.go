package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/reference"
	"github.com/biomarker-assessment-engine/internal/scoring"
	"github.com/biomarker-assessment-engine/pkg/labtext"
)

// OutcomeObserver is notified of every completed assessment. Observers must not
// retain biomarker values.
type OutcomeObserver interface {
	ObserveOutcome(ctx context.Context, outcome *domain.AssessmentOutcome)
}

// AssessmentService runs the full pipeline: extraction, override merge,
// validation, safety screening and scoring.
type AssessmentService struct {
	logger    *logrus.Logger
	tables    *reference.Tables
	extractor *labtext.Extractor
	validator *CompletenessValidator
	guard     *SafetyGuard
	engine    *scoring.Engine
	context   *ContextValidator
	observers []OutcomeObserver
}

// NewAssessmentService wires the pipeline stages over a single set of tables.
func NewAssessmentService(logger *logrus.Logger, tables *reference.Tables, observers ...OutcomeObserver) (*AssessmentService, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if tables == nil {
		tables = reference.Default()
	}
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reference tables: %w", err)
	}

	library, err := labtext.NewLibrary(tables.Units)
	if err != nil {
		return nil, fmt.Errorf("failed to build pattern library: %w", err)
	}

	return &AssessmentService{
		logger:    logger,
		tables:    tables,
		extractor: labtext.NewExtractor(library),
		validator: NewCompletenessValidator(tables),
		guard:     NewSafetyGuard(tables, logger),
		engine:    scoring.NewEngine(tables, logger),
		context:   NewContextValidator(),
		observers: observers,
	}, nil
}

// Tables returns the reference tables the service was built with.
func (s *AssessmentService) Tables() *reference.Tables {
	return s.tables
}

// Extract parses report text into a profile.
func (s *AssessmentService) Extract(text string) domain.BiomarkerProfile {
	return s.extractor.Extract(text)
}

// ExtractCandidates returns every alias hit, including those that lost the
// first-match tie-break.
func (s *AssessmentService) ExtractCandidates(text string) []labtext.Candidate {
	return s.extractor.ExtractCandidates(text)
}

// MergeOverrides applies manual values to a profile.
func (s *AssessmentService) MergeOverrides(profile domain.BiomarkerProfile, overrides map[string]float64) (domain.BiomarkerProfile, []domain.RejectedOverride) {
	return MergeOverrides(profile, overrides, s.tables.Units)
}

// Validate runs the completeness check.
func (s *AssessmentService) Validate(profile domain.BiomarkerProfile) domain.ValidationVerdict {
	return s.validator.Validate(profile)
}

// Screen runs the safety guard.
func (s *AssessmentService) Screen(profile domain.BiomarkerProfile, symptoms []string, history string) domain.SafetyVerdict {
	return s.guard.Screen(profile, symptoms, history)
}

// Score runs the scoring engine. It fails with a precondition error unless the
// verdict is present and clear.
func (s *AssessmentService) Score(profile domain.BiomarkerProfile, verdict *domain.SafetyVerdict, userCtx domain.UserContext) (*domain.HealthAssessment, error) {
	return s.engine.Score(profile, verdict, userCtx)
}

// Describe returns catalog entries for the biomarkers in profile.
func (s *AssessmentService) Describe(profile domain.BiomarkerProfile) []domain.BiomarkerDescription {
	return s.tables.Catalog.Describe(profile)
}

// ValidateContext checks the user context without running any stage.
func (s *AssessmentService) ValidateContext(userCtx domain.UserContext) error {
	return s.context.Validate(userCtx)
}

// Assess runs the whole pipeline on report text plus manual overrides.
// Emergency stops and insufficient data are outcomes, not errors; errors are
// reserved for malformed input and cancellation.
func (s *AssessmentService) Assess(ctx context.Context, reportText string, overrides map[string]float64, userCtx domain.UserContext) (*domain.AssessmentOutcome, error) {
	startTime := time.Now()

	if err := s.context.Validate(userCtx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("assessment cancelled before extraction: %w", err)
	}

	// Step 1: Extract and merge manual overrides
	profile := s.extractor.Extract(reportText)
	extracted := profile.Len()
	profile, rejected := s.MergeOverrides(profile, overrides)

	s.logger.WithFields(logrus.Fields{
		"extracted":          extracted,
		"manual":             profile.Len() - extracted,
		"rejected_overrides": len(rejected),
	}).Debug("Extraction completed")

	return s.run(ctx, startTime, profile, rejected, userCtx)
}

// AssessProfile runs validation, screening and scoring on an already built
// profile, as held by a review session.
func (s *AssessmentService) AssessProfile(ctx context.Context, profile domain.BiomarkerProfile, rejected []domain.RejectedOverride, userCtx domain.UserContext) (*domain.AssessmentOutcome, error) {
	startTime := time.Now()
	if err := s.context.Validate(userCtx); err != nil {
		return nil, err
	}
	return s.run(ctx, startTime, profile, rejected, userCtx)
}

func (s *AssessmentService) run(ctx context.Context, startTime time.Time, profile domain.BiomarkerProfile, rejected []domain.RejectedOverride, userCtx domain.UserContext) (*domain.AssessmentOutcome, error) {
	outcome := &domain.AssessmentOutcome{
		RequestID:         uuid.New().String(),
		Profile:           profile,
		RejectedOverrides: rejected,
	}

	// Step 2: Completeness
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("assessment cancelled before validation: %w", err)
	}
	outcome.Validation = s.validator.Validate(profile)

	// Step 3: Safety runs regardless of the validation result
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("assessment cancelled before safety screening: %w", err)
	}
	outcome.Safety = s.guard.Screen(profile, userCtx.Symptoms, userCtx.MedicalHistory)

	// Step 4: Score only when safe and complete enough
	switch {
	case outcome.Safety.IsEmergency:
		outcome.Status = domain.StatusEmergencyStop
	case !outcome.Validation.CanProceed:
		outcome.Status = domain.StatusInsufficientData
	default:
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("assessment cancelled before scoring: %w", err)
		}
		assessment, err := s.engine.Score(profile, &outcome.Safety, userCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to score profile: %w", err)
		}
		outcome.Assessment = assessment
		outcome.Status = domain.StatusAssessed
	}

	outcome.Descriptions = s.tables.Catalog.Describe(profile)
	outcome.ProcessingTime = time.Since(startTime)

	s.logger.WithFields(logrus.Fields{
		"request_id":      outcome.RequestID,
		"status":          outcome.Status,
		"biomarker_count": profile.Len(),
		"safety_kind":     outcome.Safety.Kind,
		"duration_ms":     outcome.ProcessingTime.Milliseconds(),
	}).Info("Assessment completed")

	for _, o := range s.observers {
		o.ObserveOutcome(ctx, outcome)
	}
	return outcome, nil
}
