package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/report"
	"github.com/biomarker-assessment-engine/pkg/labtext"
)

type extractRequest struct {
	ReportText string             `json:"report_text" binding:"required"`
	Overrides  map[string]float64 `json:"overrides"`
}

type extractResponse struct {
	Profile           domain.BiomarkerProfile       `json:"profile"`
	Candidates        []labtext.Candidate           `json:"candidates"`
	Validation        domain.ValidationVerdict      `json:"validation"`
	RejectedOverrides []domain.RejectedOverride     `json:"rejected_overrides,omitempty"`
	Descriptions      []domain.BiomarkerDescription `json:"descriptions,omitempty"`
}

type profileRequest struct {
	Biomarkers map[string]float64 `json:"biomarkers" binding:"required"`
}

type profileResponse struct {
	Profile           domain.BiomarkerProfile   `json:"profile"`
	Validation        domain.ValidationVerdict  `json:"validation"`
	RejectedOverrides []domain.RejectedOverride `json:"rejected_overrides,omitempty"`
}

type screenRequest struct {
	Biomarkers     map[string]float64 `json:"biomarkers"`
	Symptoms       []string           `json:"symptoms"`
	MedicalHistory string             `json:"medical_history"`
}

type screenResponse struct {
	Safety            domain.SafetyVerdict      `json:"safety"`
	RejectedOverrides []domain.RejectedOverride `json:"rejected_overrides,omitempty"`
}

type assessRequest struct {
	ReportText string             `json:"report_text"`
	Overrides  map[string]float64 `json:"overrides"`
	Context    domain.UserContext `json:"context"`
}

type assessResponse struct {
	*domain.AssessmentOutcome
	Brief string `json:"brief,omitempty"`
}

func (s *Server) handleCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"reference_version": s.service.Tables().Version,
		"biomarkers":        s.service.Tables().Catalog.All(),
	})
}

func (s *Server) handleExtract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	profile := s.service.Extract(req.ReportText)
	profile, rejected := s.service.MergeOverrides(profile, req.Overrides)

	c.JSON(http.StatusOK, extractResponse{
		Profile:           profile,
		Candidates:        s.service.ExtractCandidates(req.ReportText),
		Validation:        s.service.Validate(profile),
		RejectedOverrides: rejected,
		Descriptions:      s.service.Describe(profile),
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	profile, rejected := s.service.MergeOverrides(domain.NewBiomarkerProfile(), req.Biomarkers)
	c.JSON(http.StatusOK, profileResponse{
		Profile:           profile,
		Validation:        s.service.Validate(profile),
		RejectedOverrides: rejected,
	})
}

func (s *Server) handleScreen(c *gin.Context) {
	var req screenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	profile, rejected := s.service.MergeOverrides(domain.NewBiomarkerProfile(), req.Biomarkers)
	c.JSON(http.StatusOK, screenResponse{
		Safety:            s.service.Screen(profile, req.Symptoms, req.MedicalHistory),
		RejectedOverrides: rejected,
	})
}

// handleAssess returns 200 for every terminal status; only malformed input and
// timeouts are errors.
func (s *Server) handleAssess(c *gin.Context) {
	var req assessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	outcome, err := s.service.Assess(c.Request.Context(), req.ReportText, req.Overrides, req.Context)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondOutcome(c, outcome)
}

func (s *Server) respondOutcome(c *gin.Context, outcome *domain.AssessmentOutcome) {
	resp := assessResponse{AssessmentOutcome: outcome}
	if c.Query("brief") == "true" {
		resp.Brief = report.Brief(outcome)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAuditSummary(c *gin.Context) {
	ctx := c.Request.Context()
	total, err := s.audit.Count(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	byStatus, err := s.audit.CountByStatus(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "by_status": byStatus})
}
