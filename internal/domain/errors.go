package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for errors.Is checks.
var (
	ErrMalformedInput          = errors.New("malformed input")
	ErrPreconditionViolation   = errors.New("precondition violation")
	ErrSessionNotFound         = errors.New("session not found")
	ErrInvalidReferenceVersion = errors.New("invalid reference tables")
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeMalformedContext = "MALFORMED_CONTEXT"
	ErrCodePrecondition     = "PRECONDITION_VIOLATION"
	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"
	ErrCodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	ErrCodeTimeout          = "REQUEST_TIMEOUT"
	ErrCodeInternalServer   = "INTERNAL_SERVER_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents a rejected input field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// MalformedInputError is returned when the user context is missing or invalid.
// Missing fields are never defaulted.
type MalformedInputError struct {
	Fields []ValidationError `json:"fields"`
}

func (e *MalformedInputError) Error() string {
	if len(e.Fields) == 0 {
		return "malformed input"
	}
	msg := "malformed input: " + e.Fields[0].Error()
	if len(e.Fields) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(e.Fields)-1)
	}
	return msg
}

// Is makes errors.Is(err, ErrMalformedInput) succeed.
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// PreconditionError is returned when a stage is invoked out of order, e.g.
// scoring a profile that the safety guard flagged or never screened.
type PreconditionError struct {
	Stage  string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violation in %s: %s", e.Stage, e.Reason)
}

// Is makes errors.Is(err, ErrPreconditionViolation) succeed.
func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionViolation
}
