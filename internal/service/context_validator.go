package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/biomarker-assessment-engine/internal/domain"
)

// ContextValidator checks the caller-supplied user context. Nothing is
// defaulted: a missing age or sex context is a malformed request.
type ContextValidator struct {
	validate *validator.Validate
}

// NewContextValidator creates a validator that reports JSON field names.
func NewContextValidator() *ContextValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &ContextValidator{validate: v}
}

// Validate returns a *domain.MalformedInputError listing every invalid field.
func (c *ContextValidator) Validate(userCtx domain.UserContext) error {
	err := c.validate.Struct(userCtx)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating user context: %w", err)
	}

	malformed := &domain.MalformedInputError{}
	for _, fe := range fieldErrs {
		malformed.Fields = append(malformed.Fields, domain.ValidationError{
			Field:   fe.Field(),
			Message: describeTag(fe),
			Value:   fe.Value(),
		})
	}
	return malformed
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return "must not exceed " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
