package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-assessment-engine/internal/domain"
)

type createSessionRequest struct {
	ReportText string             `json:"report_text" binding:"required"`
	Overrides  map[string]float64 `json:"overrides"`
}

type correctionRequest struct {
	Overrides map[string]float64 `json:"overrides" binding:"required"`
}

type assessSessionRequest struct {
	Context domain.UserContext `json:"context"`
}

// handleCreateSession extracts a profile and holds it for review.
func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	profile := s.service.Extract(req.ReportText)
	profile, rejected := s.service.MergeOverrides(profile, req.Overrides)

	now := time.Now().UTC()
	session := &domain.ReviewSession{
		ID:         uuid.New().String(),
		Profile:    profile,
		Validation: s.service.Validate(profile),
		Rejected:   rejected,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.sessions.Save(c.Request.Context(), session); err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":      session.ID,
		"biomarker_count": profile.Len(),
	}).Debug("Review session created")

	c.JSON(http.StatusCreated, session)
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// handleCorrectSession merges manual values into the held profile and
// re-validates it. Concurrent corrections of one session are serialized by the
// store.
func (s *Server) handleCorrectSession(c *gin.Context) {
	var req correctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	session, err := s.sessions.Update(c.Request.Context(), c.Param("id"), func(session *domain.ReviewSession) error {
		profile, rejected := s.service.MergeOverrides(session.Profile, req.Overrides)
		session.Profile = profile
		session.Rejected = append(session.Rejected, rejected...)
		session.Validation = s.service.Validate(profile)
		session.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// handleAssessSession runs the pipeline on the reviewed profile. The session is
// deleted once an outcome exists; a malformed context leaves it in place.
func (s *Server) handleAssessSession(c *gin.Context) {
	var req assessSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	outcome, err := s.service.AssessProfile(ctx, session.Profile, session.Rejected, req.Context)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		s.logger.WithError(err).WithField("session_id", id).Warn("Failed to delete assessed session")
	}
	s.respondOutcome(c, outcome)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
