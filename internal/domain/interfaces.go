package domain

import (
	"context"
	"time"
)

// Extractor turns lab report text into a profile.
type Extractor interface {
	Extract(text string) BiomarkerProfile
}

// CompletenessValidator applies the mandatory/optional rules to a profile.
type CompletenessValidator interface {
	Validate(profile BiomarkerProfile) ValidationVerdict
}

// SafetyScreener checks a profile and free text against emergency thresholds and
// out-of-scope topics. It must never fail.
type SafetyScreener interface {
	Screen(profile BiomarkerProfile, symptoms []string, history string) SafetyVerdict
}

// Scorer produces domain scores for a screened, non-emergency profile.
type Scorer interface {
	Score(profile BiomarkerProfile, verdict *SafetyVerdict, userCtx UserContext) (*HealthAssessment, error)
}

// ReviewSession is the state held while a user reviews and corrects an
// extracted profile. It carries biomarker values, so it is TTL-bound.
type ReviewSession struct {
	ID         string             `json:"id"`
	Profile    BiomarkerProfile   `json:"profile"`
	Validation ValidationVerdict  `json:"validation"`
	Rejected   []RejectedOverride `json:"rejected,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// SessionStore keeps review sessions for at most their TTL. Update applies fn to
// the stored session atomically with respect to other Updates and Deletes of the
// same id; an error from fn leaves the session unchanged.
type SessionStore interface {
	Save(ctx context.Context, session *ReviewSession) error
	Get(ctx context.Context, id string) (*ReviewSession, error)
	Update(ctx context.Context, id string, fn func(*ReviewSession) error) (*ReviewSession, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// AuditRecord is the value-free trace of one pipeline run.
type AuditRecord struct {
	ID                 string        `json:"id"`
	RequestID          string        `json:"request_id"`
	Status             OutcomeStatus `json:"status"`
	SafetyKind         SafetyKind    `json:"safety_kind"`
	BiomarkerCount     int           `json:"biomarker_count"`
	CriticalMissing    int           `json:"critical_missing"`
	EmergencyFindings  int           `json:"emergency_findings"`
	OutOfScopeFindings int           `json:"out_of_scope_findings"`
	DomainsScored      int           `json:"domains_scored"`
	ReferenceVersion   string        `json:"reference_version"`
	ProcessingTimeMs   int64         `json:"processing_time_ms"`
	CreatedAt          time.Time     `json:"created_at"`
}

// AuditStore persists audit records.
type AuditStore interface {
	Record(ctx context.Context, rec *AuditRecord) error
	List(ctx context.Context, limit, offset int) ([]*AuditRecord, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[OutcomeStatus]int, error)
	Close() error
}
