package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/middleware"
)

// respondError maps pipeline errors onto HTTP statuses and an APIError body.
func (s *Server) respondError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	var malformed *domain.MalformedInputError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &malformed):
		details := make([]string, 0, len(malformed.Fields))
		for _, f := range malformed.Fields {
			details = append(details, f.Field+": "+f.Message)
		}
		c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.ErrCodeMalformedContext,
			"User context is missing or invalid", strings.Join(details, "; "), requestID))
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, domain.NewAPIError(domain.ErrCodeInvalidInput,
			"Request body too large", "", requestID))
	case errors.Is(err, domain.ErrPreconditionViolation):
		c.JSON(http.StatusConflict, domain.NewAPIError(domain.ErrCodePrecondition,
			"Stage invoked out of order", err.Error(), requestID))
	case errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, domain.NewAPIError(domain.ErrCodeSessionNotFound,
			"Review session not found or expired", "", requestID))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(domain.ErrCodeTimeout,
			"Request timed out", "", requestID))
	default:
		s.logger.WithError(err).WithField("correlation_id", requestID).Error("Request failed")
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(domain.ErrCodeInternalServer,
			"Internal server error", "", requestID))
	}
}

// respondBindError reports a request body that could not be decoded.
func (s *Server) respondBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.ErrCodeInvalidInput,
		"Invalid request body", err.Error(), c.GetString(middleware.CorrelationIDKey)))
}
