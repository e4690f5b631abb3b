// Package generation is the boundary to the external text generation
// collaborator. Every call takes a JSON-serialisable payload and yields either
// a list of result objects or a failure carrying the collaborator's message.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
)

// Task names a kind of generation request.
type Task string

const (
	TaskExamQuestions       Task = "exam_questions"
	TaskAnswerGrades        Task = "answer_grades"
	TaskClassInsights       Task = "class_insights"
	TaskStrandInsights      Task = "strand_insights"
	TaskCorrelationInsights Task = "sub_strand_correlation_insights"
	TaskFollowUpQuiz        Task = "follow_up_quiz"
)

const unexpectedShapeMessage = "unexpected response shape"

// Generator produces structured results for a task. A failed generation is
// returned as *errors.GenerationError.
type Generator interface {
	Generate(ctx context.Context, task Task, payload any) ([]json.RawMessage, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, task Task, payload any) ([]json.RawMessage, error)

func (f Func) Generate(ctx context.Context, task Task, payload any) ([]json.RawMessage, error) {
	return f(ctx, task, payload)
}

var fence = regexp.MustCompile("^```(?:json)?\\n?|\\n?```$")

// CleanResponse trims whitespace and strips a surrounding markdown code fence.
func CleanResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = fence.ReplaceAllString(cleaned, "")
	}
	return strings.TrimSpace(cleaned)
}

// Decode classifies a raw response. A JSON array is success. An object with an
// "error" key is a failure carrying that message verbatim. Anything else is a
// failure too.
func Decode(task Task, raw string) ([]json.RawMessage, error) {
	cleaned := CleanResponse(raw)
	body := []byte(cleaned)

	switch {
	case bytes.HasPrefix(body, []byte("[")):
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, apperrors.NewGenerationError(string(task),
				fmt.Sprintf("Failed to parse response: %v", err), err).WithRaw(cleaned)
		}
		return items, nil
	case bytes.HasPrefix(body, []byte("{")):
		var failure struct {
			Error *string `json:"error"`
		}
		if err := json.Unmarshal(body, &failure); err == nil && failure.Error != nil {
			return nil, apperrors.NewGenerationError(string(task), *failure.Error, nil).WithRaw(cleaned)
		}
	}
	return nil, apperrors.NewGenerationError(string(task), unexpectedShapeMessage, nil).WithRaw(cleaned)
}

// DecodeItems unmarshals every item into T.
func DecodeItems[T any](task Task, items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, apperrors.NewGenerationError(string(task),
				fmt.Sprintf("Failed to parse item %d: %v", i, err), err).WithRaw(string(item))
		}
		out = append(out, v)
	}
	return out, nil
}

// GenerateItems runs a task and decodes its items into T.
func GenerateItems[T any](ctx context.Context, gen Generator, task Task, payload any) ([]T, error) {
	items, err := gen.Generate(ctx, task, payload)
	if err != nil {
		return nil, err
	}
	return DecodeItems[T](task, items)
}

// Static returns a Generator that answers every task from a fixed JSON string.
// It is used for offline runs.
func Static(responses map[Task]string) Generator {
	return Func(func(_ context.Context, task Task, _ any) ([]json.RawMessage, error) {
		raw, ok := responses[task]
		if !ok {
			return nil, apperrors.NewGenerationError(string(task), fmt.Sprintf("no response configured for %s", task), nil)
		}
		return Decode(task, raw)
	})
}
