package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/report"
	"github.com/biomarker-assessment-engine/pkg/labtext"
)

// ExtractParams defines parameters for extract_biomarkers.
type ExtractParams struct {
	ReportText string `json:"report_text" jsonschema:"free text of a blood test report"`
}

// ExtractResult is the extract_biomarkers payload.
type ExtractResult struct {
	Profile      domain.BiomarkerProfile       `json:"profile"`
	Candidates   []labtext.Candidate           `json:"candidates"`
	Validation   domain.ValidationVerdict      `json:"validation"`
	Descriptions []domain.BiomarkerDescription `json:"descriptions,omitempty"`
}

// ProfileParams defines parameters for validate_profile.
type ProfileParams struct {
	Biomarkers map[string]float64 `json:"biomarkers" jsonschema:"canonical biomarker name to value in its canonical unit"`
}

// ProfileResult is the validate_profile payload.
type ProfileResult struct {
	Profile           domain.BiomarkerProfile   `json:"profile"`
	Validation        domain.ValidationVerdict  `json:"validation"`
	RejectedOverrides []domain.RejectedOverride `json:"rejected_overrides,omitempty"`
}

// ScreenParams defines parameters for screen_safety.
type ScreenParams struct {
	Biomarkers     map[string]float64 `json:"biomarkers,omitempty" jsonschema:"canonical biomarker name to value"`
	Symptoms       []string           `json:"symptoms,omitempty" jsonschema:"symptoms reported by the user"`
	MedicalHistory string             `json:"medical_history,omitempty" jsonschema:"free text medical history"`
}

// ScreenResult is the screen_safety payload. Overrides that could not be
// applied are listed so the caller knows they were not screened.
type ScreenResult struct {
	Safety            domain.SafetyVerdict      `json:"safety"`
	RejectedOverrides []domain.RejectedOverride `json:"rejected_overrides,omitempty"`
}

// AssessParams defines parameters for assess_health.
type AssessParams struct {
	ReportText     string             `json:"report_text,omitempty" jsonschema:"free text of a blood test report"`
	Overrides      map[string]float64 `json:"overrides,omitempty" jsonschema:"manual values that win over extracted ones"`
	Age            int                `json:"age" jsonschema:"chronological age in years"`
	SexContext     string             `json:"sex_context" jsonschema:"menstruating, non_menstruating, post_menopausal or not_applicable"`
	Symptoms       []string           `json:"symptoms,omitempty"`
	MedicalHistory string             `json:"medical_history,omitempty"`
}

// DescribeParams defines parameters for describe_biomarkers.
type DescribeParams struct {
	Names []string `json:"names,omitempty" jsonschema:"biomarkers to describe; all when empty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "extract_biomarkers",
		Description: "Extract biomarker readings from lab report text and report which mandatory biomarkers are missing.",
	}, s.handleExtract)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "validate_profile",
		Description: "Check a set of biomarker values for completeness before assessment.",
	}, s.handleValidate)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "screen_safety",
		Description: "Screen biomarker values and symptoms for emergencies or topics that need a clinician.",
	}, s.handleScreen)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "assess_health",
		Description: "Run the full pipeline: extraction, validation, safety screening and metabolic, inflammation and oxygen scoring.",
	}, s.handleAssess)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "describe_biomarkers",
		Description: "Return display names, units and reference ranges for biomarkers.",
	}, s.handleDescribe)
	s.registerReviewTools()

	s.logger.WithField("tool_count", 8).Debug("Registered MCP tools")
}

func (s *Server) handleExtract(ctx context.Context, req *mcp.CallToolRequest, params ExtractParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "extract_biomarkers").Info("Tool invoked")

	if strings.TrimSpace(params.ReportText) == "" {
		return s.createErrorResult("Missing required parameter", errors.New("report_text is required")), nil, nil
	}

	profile := s.service.Extract(params.ReportText)
	return s.createJSONResult(ExtractResult{
		Profile:      profile,
		Candidates:   s.service.ExtractCandidates(params.ReportText),
		Validation:   s.service.Validate(profile),
		Descriptions: s.service.Describe(profile),
	})
}

func (s *Server) handleValidate(ctx context.Context, req *mcp.CallToolRequest, params ProfileParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "validate_profile").Info("Tool invoked")

	profile, rejected := s.service.MergeOverrides(domain.NewBiomarkerProfile(), params.Biomarkers)
	return s.createJSONResult(ProfileResult{
		Profile:           profile,
		Validation:        s.service.Validate(profile),
		RejectedOverrides: rejected,
	})
}

func (s *Server) handleScreen(ctx context.Context, req *mcp.CallToolRequest, params ScreenParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "screen_safety").Info("Tool invoked")

	profile, rejected := s.service.MergeOverrides(domain.NewBiomarkerProfile(), params.Biomarkers)
	return s.createJSONResult(ScreenResult{
		Safety:            s.service.Screen(profile, params.Symptoms, params.MedicalHistory),
		RejectedOverrides: rejected,
	})
}

func (s *Server) handleAssess(ctx context.Context, req *mcp.CallToolRequest, params AssessParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "assess_health").Info("Tool invoked")

	userCtx := domain.UserContext{
		Age:            params.Age,
		SexContext:     domain.SexContext(params.SexContext),
		Symptoms:       params.Symptoms,
		MedicalHistory: params.MedicalHistory,
	}
	outcome, err := s.service.Assess(ctx, params.ReportText, params.Overrides, userCtx)
	if err != nil {
		var malformed *domain.MalformedInputError
		if errors.As(err, &malformed) {
			return s.createErrorResult("Invalid user context", err), nil, nil
		}
		return nil, nil, err
	}
	return s.outcomeResult(outcome)
}

// outcomeResult renders the profile brief followed by the outcome JSON.
func (s *Server) outcomeResult(outcome *domain.AssessmentOutcome) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode outcome: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: report.Brief(outcome)},
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

func (s *Server) handleDescribe(ctx context.Context, req *mcp.CallToolRequest, params DescribeParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "describe_biomarkers").Info("Tool invoked")

	catalog := s.service.Tables().Catalog
	if len(params.Names) == 0 {
		return s.createJSONResult(catalog.All())
	}

	out := make([]domain.BiomarkerDescription, 0, len(params.Names))
	var unknown []string
	for _, name := range params.Names {
		b, err := domain.ParseBiomarker(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		if d, ok := catalog.Lookup(b); ok {
			out = append(out, d)
		}
	}
	if len(unknown) > 0 {
		return s.createErrorResult("Unknown biomarker", fmt.Errorf("unknown biomarkers: %s", strings.Join(unknown, ", "))), nil, nil
	}
	return s.createJSONResult(out)
}

func (s *Server) createJSONResult(v interface{}) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %v", message, err)},
		},
	}
}
