package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/SAP-F-2025/exam-analysis-service/internal/errors"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible chat completion backend.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// OpenAIGenerator sends each task as a single chat completion.
type OpenAIGenerator struct {
	api     *openai.Client
	model   string
	temp    float32
	timeout time.Duration
	logger  *slog.Logger
}

func NewOpenAIGenerator(cfg OpenAIConfig, logger *slog.Logger) *OpenAIGenerator {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIGenerator{
		api:     openai.NewClientWithConfig(config),
		model:   cfg.Model,
		temp:    cfg.Temperature,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "generation"),
	}
}

var instructions = map[Task]string{
	TaskExamQuestions:       "Write exam questions for the requested curriculum sub-strands.",
	TaskAnswerGrades:        "Grade each student answer against the expected answer on a 0 to 4 scale.",
	TaskClassInsights:       "Summarise the class performance data as general insights.",
	TaskStrandInsights:      "Give insights and suggestions for each strand.",
	TaskCorrelationInsights: "Explain each negatively correlated sub-strand pair.",
	TaskFollowUpQuiz:        "Write a follow-up quiz targeting the weaknesses of this student cluster.",
}

// Generate implements Generator. Transport failures and timeouts are reported
// as generation errors so the calling stage fails instead of hanging.
func (g *OpenAIGenerator) Generate(ctx context.Context, task Task, payload any) ([]json.RawMessage, error) {
	instruction, ok := instructions[task]
	if !ok {
		return nil, apperrors.NewGenerationError(string(task), fmt.Sprintf("unknown task %q", task), nil)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", task, err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction + " Respond ONLY with a JSON array, or a JSON object with an \"error\" key if you cannot."},
			{Role: openai.ChatMessageRoleUser, Content: string(body)},
		},
		Temperature: g.temp,
	})
	if err != nil {
		return nil, apperrors.NewGenerationError(string(task), fmt.Sprintf("Error: %v", err), err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewGenerationError(string(task), "Error: no choices returned", nil)
	}

	raw := resp.Choices[0].Message.Content
	g.logger.DebugContext(ctx, "generation response",
		"task", string(task),
		"duration", time.Since(start),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return Decode(task, raw)
}
