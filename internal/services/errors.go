package services

import (
	"errors"

	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")

	// Exam and pipeline errors
	ErrExamNotFound      = errors.New("exam not found")
	ErrClusterNotFound   = errors.New("performance cluster not found")
	ErrExamNotRetryable  = errors.New("exam is not in a failed state")
	ErrStageInProgress   = errors.New("stage is already running for this exam")
	ErrStageLeaseHeld    = errors.New("stage lease is held by another worker")
	ErrInvalidTransition = errors.New("invalid exam status transition")

	// Stage input errors
	ErrNoSessions     = errors.New("no student sessions found")
	ErrNoPerformances = errors.New("no student performances found")
	ErrNoQuestions    = errors.New("no questions generated")
	ErrNoReport       = errors.New("report has not been computed yet")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationErrors = apperrors.ValidationErrors

// ===== ERROR HELPERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExamNotFound) ||
		errors.Is(err, ErrClusterNotFound) ||
		errors.Is(err, ErrNoReport)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve) || apperrors.IsConfiguration(err)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrStageInProgress)
}

// IsInvalidState checks if the exam's status forbids the requested operation
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrExamNotRetryable)
}
