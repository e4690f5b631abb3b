package validator

import (
	"errors"
	"reflect"
	"strings"

	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps the struct validator shared by config, services and handlers.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a validator with every custom rule registered
func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{structValidator: structValidator}
}

// Engine exposes the underlying validator for callers that report raw field errors.
func (v *Validator) Engine() *validator.Validate {
	return v.structValidator
}

// Validate checks struct tags and converts failures into ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	err := v.structValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.ToValidationErrors(verrs)
	}
	return err
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	_ = validate.RegisterValidation("failure_policy", validateFailurePolicy)
	_ = validate.RegisterValidation("exam_stage", validateStage)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateFailurePolicy(fl validator.FieldLevel) bool {
	return models.FailurePolicy(fl.Field().String()).IsValid()
}

func validateStage(fl validator.FieldLevel) bool {
	switch models.Stage(fl.Field().String()) {
	case models.StageGeneration, models.StageGrading, models.StageAnalysis:
		return true
	}
	return false
}
