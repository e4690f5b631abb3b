package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ConfigurationError is returned when a stage cannot start because its stored
// or requested configuration is incomplete. The stage is never entered.
type ConfigurationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Message)
}

func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// GenerationError wraps a failure reported by the external generation
// collaborator. Message is kept verbatim for the exam's diagnostic string.
type GenerationError struct {
	Task    string `json:"task"`
	Message string `json:"message"`
	Raw     string `json:"raw,omitempty"`
	Err     error  `json:"-"`
}

func (e *GenerationError) Error() string {
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func NewGenerationError(task, message string, err error) *GenerationError {
	return &GenerationError{Task: task, Message: message, Err: err}
}

// WithRaw attaches the undecodable response body for diagnostics.
func (e *GenerationError) WithRaw(raw string) *GenerationError {
	e.Raw = raw
	return e
}

// FailureDetail records one failed item of a batch.
type FailureDetail struct {
	ID     uint   `json:"id"`
	Reason string `json:"reason"`
}

// PartialFailureError is returned when some items of a batch failed. Kind
// names the batch ("Sessions", "Clusters", "Answers") in diagnostic strings.
type PartialFailureError struct {
	Kind    string          `json:"kind"`
	Summary string          `json:"summary"`
	Details []FailureDetail `json:"details"`
}

func (e *PartialFailureError) Error() string {
	details, err := json.Marshal(e.Details)
	if err != nil {
		details = []byte("[]")
	}
	if e.Kind == "" {
		return fmt.Sprintf("%s: %s", e.Summary, details)
	}
	return fmt.Sprintf("%s | %s: %s", e.Summary, e.Kind, details)
}

func NewPartialFailureError(kind, summary string, details []FailureDetail) *PartialFailureError {
	return &PartialFailureError{Kind: kind, Summary: summary, Details: details}
}

// UnexpectedError is a recovered panic or an error nobody classified.
type UnexpectedError struct {
	Cause string `json:"cause"`
}

func (e *UnexpectedError) Error() string {
	return "Unexpected error: " + e.Cause
}

func NewUnexpectedError(recovered any) *UnexpectedError {
	if err, ok := recovered.(error); ok {
		return &UnexpectedError{Cause: err.Error()}
	}
	return &UnexpectedError{Cause: fmt.Sprint(recovered)}
}

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return stderrors.As(err, &target)
}

func IsGeneration(err error) bool {
	var target *GenerationError
	return stderrors.As(err, &target)
}

func IsPartialFailure(err error) bool {
	var target *PartialFailureError
	return stderrors.As(err, &target)
}

func IsUnexpected(err error) bool {
	var target *UnexpectedError
	return stderrors.As(err, &target)
}
