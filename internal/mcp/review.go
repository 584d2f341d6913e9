package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/biomarker-assessment-engine/internal/domain"
)

// StartReviewParams defines parameters for start_review.
type StartReviewParams struct {
	ReportText string             `json:"report_text" jsonschema:"free text of a blood test report"`
	Overrides  map[string]float64 `json:"overrides,omitempty" jsonschema:"manual values that win over extracted ones"`
}

// CorrectReviewParams defines parameters for correct_review.
type CorrectReviewParams struct {
	SessionID string             `json:"session_id"`
	Overrides map[string]float64 `json:"overrides" jsonschema:"canonical biomarker name to corrected value"`
}

// AssessReviewParams defines parameters for assess_review.
type AssessReviewParams struct {
	SessionID      string   `json:"session_id"`
	Age            int      `json:"age" jsonschema:"chronological age in years"`
	SexContext     string   `json:"sex_context" jsonschema:"menstruating, non_menstruating, post_menopausal or not_applicable"`
	Symptoms       []string `json:"symptoms,omitempty"`
	MedicalHistory string   `json:"medical_history,omitempty"`
}

func (s *Server) registerReviewTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "start_review",
		Description: "Extract biomarkers from report text and hold them in a review session so values can be corrected before assessment.",
	}, s.handleStartReview)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "correct_review",
		Description: "Apply corrected values to a review session and re-check completeness.",
	}, s.handleCorrectReview)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "assess_review",
		Description: "Assess the reviewed profile of a session. The session is closed once assessed.",
	}, s.handleAssessReview)
}

func (s *Server) handleStartReview(ctx context.Context, req *mcp.CallToolRequest, params StartReviewParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "start_review").Info("Tool invoked")

	if strings.TrimSpace(params.ReportText) == "" {
		return s.createErrorResult("Missing required parameter", errors.New("report_text is required")), nil, nil
	}

	profile := s.service.Extract(params.ReportText)
	profile, rejected := s.service.MergeOverrides(profile, params.Overrides)

	now := time.Now().UTC()
	session := &domain.ReviewSession{
		ID:         uuid.New().String(),
		Profile:    profile,
		Validation: s.service.Validate(profile),
		Rejected:   rejected,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, nil, err
	}
	return s.createJSONResult(session)
}

func (s *Server) handleCorrectReview(ctx context.Context, req *mcp.CallToolRequest, params CorrectReviewParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "correct_review").Info("Tool invoked")

	session, err := s.sessions.Update(ctx, params.SessionID, func(session *domain.ReviewSession) error {
		profile, rejected := s.service.MergeOverrides(session.Profile, params.Overrides)
		session.Profile = profile
		session.Rejected = append(session.Rejected, rejected...)
		session.Validation = s.service.Validate(profile)
		session.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return s.createErrorResult("Review session unavailable", err), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return s.createJSONResult(session)
}

func (s *Server) handleAssessReview(ctx context.Context, req *mcp.CallToolRequest, params AssessReviewParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "assess_review").Info("Tool invoked")

	session, err := s.sessions.Get(ctx, params.SessionID)
	if err != nil {
		return s.createErrorResult("Review session unavailable", err), nil, nil
	}

	outcome, err := s.service.AssessProfile(ctx, session.Profile, session.Rejected, domain.UserContext{
		Age:            params.Age,
		SexContext:     domain.SexContext(params.SexContext),
		Symptoms:       params.Symptoms,
		MedicalHistory: params.MedicalHistory,
	})
	if err != nil {
		var malformed *domain.MalformedInputError
		if errors.As(err, &malformed) {
			return s.createErrorResult("Invalid user context", err), nil, nil
		}
		return nil, nil, err
	}

	if err := s.sessions.Delete(ctx, params.SessionID); err != nil {
		s.logger.WithError(err).WithField("session_id", params.SessionID).Warn("Failed to delete assessed session")
	}
	return s.outcomeResult(outcome)
}
