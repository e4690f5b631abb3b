package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	appvalidator "github.com/SAP-F-2025/exam-analysis-service/internal/validator"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// StageRunner executes one stage. A returned error asks for redelivery.
type StageRunner interface {
	RunStage(ctx context.Context, examID uint, stage models.Stage) error
}

type WorkerConfig struct {
	Topic         string
	MaxRetries    int
	RetryInterval time.Duration
	CloseTimeout  time.Duration
}

// Worker consumes stage tasks and hands them to the runner.
type Worker struct {
	router *message.Router
	logger *slog.Logger
}

func NewWorker(subscriber message.Subscriber, runner StageRunner, cfg WorkerConfig, logger *slog.Logger) (*Worker, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task router: %w", err)
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryInterval,
			Multiplier:      2,
			Logger:          wmLogger,
		}.Middleware,
	)
	router.AddNoPublisherHandler("run_stage", cfg.Topic, subscriber, stageHandler(runner, logger))

	return &Worker{router: router, logger: logger}, nil
}

// Run blocks until ctx is cancelled or the worker is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Starting stage worker")
	return w.router.Run(ctx)
}

// Running is closed once the worker consumes messages.
func (w *Worker) Running() chan struct{} {
	return w.router.Running()
}

func (w *Worker) Close() error {
	return w.router.Close()
}

var validate = appvalidator.New()

// stageHandler acks malformed payloads, since redelivering them cannot succeed.
func stageHandler(runner StageRunner, logger *slog.Logger) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var task StageTask
		if err := json.Unmarshal(msg.Payload, &task); err != nil {
			logger.Error("Dropping malformed stage task", "message_uuid", msg.UUID, "error", err)
			return nil
		}
		if err := validate.Validate(task); err != nil {
			logger.Error("Dropping invalid stage task", "message_uuid", msg.UUID, "error", err)
			return nil
		}
		return runner.RunStage(msg.Context(), task.ExamID, task.Stage)
	}
}
